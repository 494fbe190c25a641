package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chyiyaqing/trendscope/internal/trend"
)

// ErrSuperseded is returned by Board.Refresh when a newer refresh or
// selection was started before this one completed. Its result is discarded.
var ErrSuperseded = errors.New("refresh superseded by a newer request")

// Fetcher is implemented by *Service.
type Fetcher interface {
	Fetch(ctx context.Context, q trend.Query) (*Run, error)
}

// Snapshot is what the dashboard renders. Err set means the service was
// unavailable; a run with zero records means no data. Pending is true while
// the newest refresh of the current selection is still running.
type Snapshot struct {
	Selection trend.Query `json:"selection"`
	Run       *Run        `json:"run,omitempty"`
	Err       error       `json:"-"`
	Pending   bool        `json:"pending"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Loaded reports whether any refresh has completed.
func (s Snapshot) Loaded() bool {
	return s.Run != nil || s.Err != nil
}

// Board holds the current selection and the latest completed snapshot.
// Only the newest request may update it.
type Board struct {
	fetcher Fetcher
	now     func() time.Time

	mu        sync.Mutex
	selection trend.Query
	seq       uint64
	pending   bool
	current   Snapshot
}

func NewBoard(f Fetcher, initial trend.Query) *Board {
	return &Board{
		fetcher:   f,
		now:       time.Now,
		selection: initial.Normalize(),
	}
}

// Select changes the selection and reports whether it differs from the
// previous one. A change invalidates refreshes still in flight.
func (b *Board) Select(q trend.Query) bool {
	q = q.Normalize()
	b.mu.Lock()
	defer b.mu.Unlock()
	if q == b.selection {
		return false
	}
	b.selection = q
	b.seq++
	b.pending = false
	return true
}

func (b *Board) Selection() trend.Query {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selection
}

// Refresh selects q and fetches it. If another Refresh or Select happens
// before the fetch returns, the result is dropped and ErrSuperseded is
// returned instead.
func (b *Board) Refresh(ctx context.Context, q trend.Query) (*Run, error) {
	q = q.Normalize()

	b.mu.Lock()
	b.selection = q
	b.seq++
	seq := b.seq
	b.pending = true
	b.mu.Unlock()

	run, err := b.fetcher.Fetch(ctx, q)

	b.mu.Lock()
	defer b.mu.Unlock()
	if seq != b.seq {
		return nil, ErrSuperseded
	}
	b.pending = false
	b.current = Snapshot{
		Selection: q,
		Run:       run,
		Err:       err,
		UpdatedAt: b.now(),
	}
	return run, err
}

// RefreshCurrent refreshes the current selection.
func (b *Board) RefreshCurrent(ctx context.Context) (*Run, error) {
	return b.Refresh(ctx, b.Selection())
}

// Current returns the latest snapshot together with the live selection.
func (b *Board) Current() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := b.current
	snap.Pending = b.pending
	if !snap.Loaded() {
		snap.Selection = b.selection
	}
	return snap
}
