package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRefresh(t *testing.T) {
	before := testutil.ToFloat64(RefreshTotal.WithLabelValues("tiktok", "ok"))

	RecordRefresh("tiktok", "ok", 1.5)

	assert.Equal(t, before+1, testutil.ToFloat64(RefreshTotal.WithLabelValues("tiktok", "ok")))
}

func TestRecordParse_CountsFallbacks(t *testing.T) {
	before := testutil.ToFloat64(FallbackURLsTotal.WithLabelValues("youtube"))

	RecordParse("youtube", 6, 2)
	RecordParse("youtube", 3, 0)

	assert.Equal(t, before+2, testutil.ToFloat64(FallbackURLsTotal.WithLabelValues("youtube")))
}
