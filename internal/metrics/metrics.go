// Package metrics provides Prometheus metrics for trendscope.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefreshTotal counts pipeline invocations by outcome.
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendscope",
			Name:      "refresh_total",
			Help:      "Total number of trend refreshes",
		},
		[]string{"platform", "status"},
	)

	// RefreshDuration measures the end-to-end refresh time.
	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trendscope",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of trend refreshes in seconds",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"platform"},
	)

	// RecordsParsed observes how many records a reply yielded.
	RecordsParsed = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trendscope",
			Name:      "records_parsed",
			Help:      "Distribution of records parsed per reply",
			Buckets:   []float64{0, 1, 3, 6, 9, 12, 20},
		},
		[]string{"platform"},
	)

	// FallbackURLsTotal counts records whose link was synthesized.
	FallbackURLsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendscope",
			Name:      "fallback_urls_total",
			Help:      "Total number of records without a grounded link",
		},
		[]string{"platform"},
	)
)

// RecordRefresh records a finished refresh.
func RecordRefresh(platform, status string, duration float64) {
	RefreshTotal.WithLabelValues(platform, status).Inc()
	RefreshDuration.WithLabelValues(platform).Observe(duration)
}

// RecordParse records the shape of a parsed reply.
func RecordParse(platform string, records, fallbacks int) {
	RecordsParsed.WithLabelValues(platform).Observe(float64(records))
	if fallbacks > 0 {
		FallbackURLsTotal.WithLabelValues(platform).Add(float64(fallbacks))
	}
}
