package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetRun(t *testing.T) {
	s := newTestStore(t)
	started := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)

	run := RunRecord{
		ID:            "run-1",
		Platform:      "TikTok",
		TimeRange:     "Today",
		Status:        StatusOK,
		RecordCount:   7,
		GroundedCount: 3,
		Topic:         "Dance",
		StartedAt:     started,
		FinishedAt:    started.Add(4 * time.Second),
	}
	require.NoError(t, s.SaveRun(run))

	got, err := s.GetRun("run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "TikTok", got.Platform)
	assert.Equal(t, 7, got.RecordCount)
	assert.Equal(t, 3, got.GroundedCount)
	assert.Equal(t, "Dance", got.Topic)
	assert.True(t, started.Equal(got.StartedAt))
	assert.True(t, started.Add(4*time.Second).Equal(got.FinishedAt))
}

func TestGetRun_Missing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetRun("nope")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveRun_Upsert(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	require.NoError(t, s.SaveRun(RunRecord{ID: "r", Platform: "YouTube", TimeRange: "Today", Status: StatusOK, StartedAt: now, FinishedAt: now}))
	require.NoError(t, s.SaveRun(RunRecord{ID: "r", Platform: "YouTube", TimeRange: "Today", Status: StatusError, Error: "quota", StartedAt: now, FinishedAt: now}))

	got, err := s.GetRun("r")
	require.NoError(t, err)
	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, "quota", got.Error)
}

func TestRecentRuns_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		at := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.SaveRun(RunRecord{ID: id, Platform: "All Platforms", TimeRange: "Today", Status: StatusEmpty, StartedAt: at, FinishedAt: at}))
	}

	runs, err := s.RecentRuns(2)

	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
}
