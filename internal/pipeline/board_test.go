package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chyiyaqing/trendscope/internal/trend"
)

// gatedFetcher blocks each Fetch until the test releases it.
type gatedFetcher struct {
	started chan trend.Query
	release map[trend.Platform]chan fetchOutcome
}

type fetchOutcome struct {
	run *Run
	err error
}

func newGatedFetcher(platforms ...trend.Platform) *gatedFetcher {
	g := &gatedFetcher{
		started: make(chan trend.Query, len(platforms)),
		release: make(map[trend.Platform]chan fetchOutcome),
	}
	for _, p := range platforms {
		g.release[p] = make(chan fetchOutcome, 1)
	}
	return g
}

func (g *gatedFetcher) Fetch(_ context.Context, q trend.Query) (*Run, error) {
	g.started <- q
	out := <-g.release[q.Platform]
	return out.run, out.err
}

type stubFetcher struct {
	run *Run
	err error
}

func (s stubFetcher) Fetch(_ context.Context, q trend.Query) (*Run, error) {
	if s.run != nil {
		s.run.Query = q
	}
	return s.run, s.err
}

func runFor(p trend.Platform, topic string) *Run {
	return &Run{
		ID:     string(p),
		Query:  trend.Query{Platform: p, Range: trend.Today},
		Result: trend.Result{Records: []trend.Record{{Title: "t", Platform: p}}, Topic: topic},
	}
}

func TestBoard_LastRequestWins(t *testing.T) {
	g := newGatedFetcher(trend.YouTube, trend.TikTok)
	b := NewBoard(g, trend.Query{})

	type result struct {
		run *Run
		err error
	}
	first := make(chan result, 1)
	second := make(chan result, 1)

	go func() {
		run, err := b.Refresh(context.Background(), trend.Query{Platform: trend.YouTube})
		first <- result{run, err}
	}()
	<-g.started

	go func() {
		run, err := b.Refresh(context.Background(), trend.Query{Platform: trend.TikTok})
		second <- result{run, err}
	}()
	<-g.started

	assert.True(t, b.Current().Pending)

	// The newer request completes first, then the stale one.
	g.release[trend.TikTok] <- fetchOutcome{run: runFor(trend.TikTok, "Dance")}
	r2 := <-second
	require.NoError(t, r2.err)

	g.release[trend.YouTube] <- fetchOutcome{run: runFor(trend.YouTube, "Gaming")}
	r1 := <-first
	assert.ErrorIs(t, r1.err, ErrSuperseded)
	assert.Nil(t, r1.run)

	snap := b.Current()
	require.NotNil(t, snap.Run)
	assert.Equal(t, "Dance", snap.Run.Result.Topic)
	assert.Equal(t, trend.TikTok, snap.Selection.Platform)
	assert.False(t, snap.Pending)
}

func TestBoard_SelectSupersedesInflight(t *testing.T) {
	g := newGatedFetcher(trend.YouTube)
	b := NewBoard(g, trend.Query{})

	done := make(chan error, 1)
	go func() {
		_, err := b.Refresh(context.Background(), trend.Query{Platform: trend.YouTube})
		done <- err
	}()
	<-g.started

	assert.True(t, b.Current().Pending)
	assert.True(t, b.Select(trend.Query{Platform: trend.Instagram}))
	assert.False(t, b.Current().Pending, "a stale fetch does not count as pending")
	g.release[trend.YouTube] <- fetchOutcome{run: runFor(trend.YouTube, "x")}

	assert.ErrorIs(t, <-done, ErrSuperseded)
	snap := b.Current()
	assert.False(t, snap.Loaded())
	assert.Equal(t, trend.Instagram, snap.Selection.Platform)
}

func TestBoard_SelectSameQueryIsNoop(t *testing.T) {
	b := NewBoard(stubFetcher{}, trend.Query{Platform: trend.YouTube})

	assert.False(t, b.Select(trend.Query{Platform: trend.YouTube, Range: trend.Today}))
	assert.True(t, b.Select(trend.Query{Platform: trend.YouTube, Range: trend.ThisWeek}))
	assert.Equal(t, trend.ThisWeek, b.Selection().Range)
}

func TestBoard_ErrorSnapshotDistinctFromEmpty(t *testing.T) {
	failing := NewBoard(stubFetcher{run: &Run{}, err: errors.New("unavailable")}, trend.Query{})
	_, err := failing.RefreshCurrent(context.Background())
	require.Error(t, err)
	snap := failing.Current()
	assert.Error(t, snap.Err)
	assert.True(t, snap.Loaded())

	empty := NewBoard(stubFetcher{run: &Run{Result: trend.Result{Records: []trend.Record{}}}}, trend.Query{})
	_, err = empty.RefreshCurrent(context.Background())
	require.NoError(t, err)
	snap = empty.Current()
	assert.NoError(t, snap.Err)
	require.NotNil(t, snap.Run)
	assert.Empty(t, snap.Run.Result.Records)
}

func TestBoard_InitialSnapshot(t *testing.T) {
	b := NewBoard(stubFetcher{}, trend.Query{Range: trend.ThisMonth})

	snap := b.Current()

	assert.False(t, snap.Loaded())
	assert.False(t, snap.Pending)
	assert.Equal(t, trend.All, snap.Selection.Platform)
	assert.Equal(t, trend.ThisMonth, snap.Selection.Range)
}
