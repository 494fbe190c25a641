package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chyiyaqing/trendscope/internal/pipeline"
	"github.com/chyiyaqing/trendscope/internal/trend"
)

type fakeBoard struct {
	run   *pipeline.Run
	err   error
	calls int
}

func (f *fakeBoard) RefreshCurrent(context.Context) (*pipeline.Run, error) {
	f.calls++
	return f.run, f.err
}

type fakeNotifier struct {
	title, body string
	sent        int
	err         error
}

func (f *fakeNotifier) Send(_ context.Context, title, body string) error {
	f.sent++
	f.title, f.body = title, body
	return f.err
}

func digest(run *pipeline.Run) (string, string) {
	return "trends", run.Result.Topic
}

func runWith(n int) *pipeline.Run {
	recs := make([]trend.Record, n)
	return &pipeline.Run{Result: trend.Result{Records: recs, Topic: "Music"}}
}

func TestTick_NotifiesAfterSuccess(t *testing.T) {
	b := &fakeBoard{run: runWith(3)}
	n := &fakeNotifier{}

	New(b, n, digest, nil).Tick(context.Background())

	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, n.sent)
	assert.Equal(t, "Music", n.body)
}

func TestTick_SkipsNotifyOnErrorOrEmpty(t *testing.T) {
	n := &fakeNotifier{}

	New(&fakeBoard{err: errors.New("boom")}, n, digest, nil).Tick(context.Background())
	New(&fakeBoard{err: pipeline.ErrSuperseded}, n, digest, nil).Tick(context.Background())
	New(&fakeBoard{run: runWith(0)}, n, digest, nil).Tick(context.Background())

	assert.Equal(t, 0, n.sent)
}

func TestTick_WithoutNotifier(t *testing.T) {
	b := &fakeBoard{run: runWith(2)}

	assert.NotPanics(t, func() { New(b, nil, nil, nil).Tick(context.Background()) })
	assert.Equal(t, 1, b.calls)
}

func TestRun_RefreshesImmediatelyAndStops(t *testing.T) {
	b := &fakeBoard{run: runWith(1)}
	s := New(b, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "0 0 1 1 *") }()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, 1, b.calls)
}

func TestRun_InvalidSchedule(t *testing.T) {
	b := &fakeBoard{}

	err := New(b, nil, nil, nil).Run(context.Background(), "not a cron")

	assert.Error(t, err)
	assert.Equal(t, 0, b.calls)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(DefaultSchedule))
	assert.Error(t, Validate("every minute"))
}

func TestInitialQuery(t *testing.T) {
	q := InitialQuery("tiktok", "week", nil)
	assert.Equal(t, trend.Query{Platform: trend.TikTok, Range: trend.ThisWeek}, q)

	q = InitialQuery("myspace", "", nil)
	assert.Equal(t, trend.Query{Platform: trend.All, Range: trend.Today}, q)
}
