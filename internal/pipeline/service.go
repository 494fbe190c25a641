// Package pipeline runs the query, generate, parse sequence and keeps the
// dashboard board state.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chyiyaqing/trendscope/internal/ai"
	"github.com/chyiyaqing/trendscope/internal/events"
	"github.com/chyiyaqing/trendscope/internal/metrics"
	"github.com/chyiyaqing/trendscope/internal/store"
	"github.com/chyiyaqing/trendscope/internal/trend"
)

// Searcher performs one search-grounded generation call.
type Searcher interface {
	Search(ctx context.Context, prompt string) (*trend.Reply, error)
}

// RunLog persists refresh outcomes.
type RunLog interface {
	SaveRun(r store.RunRecord) error
}

// Run is one invocation of the pipeline.
type Run struct {
	ID         string       `json:"id"`
	Query      trend.Query  `json:"query"`
	Result     trend.Result `json:"result"`
	Stats      trend.Stats  `json:"stats"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Err        error        `json:"-"`
}

// Status is store.StatusError, store.StatusEmpty or store.StatusOK.
func (r *Run) Status() string {
	switch {
	case r.Err != nil:
		return store.StatusError
	case len(r.Result.Records) == 0:
		return store.StatusEmpty
	}
	return store.StatusOK
}

// GroundedCount is the number of records whose link came from a grounding
// reference.
func (r *Run) GroundedCount() int {
	n := 0
	for _, rec := range r.Result.Records {
		if rec.Grounded {
			n++
		}
	}
	return n
}

func (r *Run) record() store.RunRecord {
	rec := store.RunRecord{
		ID:            r.ID,
		Platform:      string(r.Query.Platform),
		TimeRange:     string(r.Query.Range),
		Status:        r.Status(),
		RecordCount:   len(r.Result.Records),
		GroundedCount: r.GroundedCount(),
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	} else {
		rec.Topic = r.Result.Topic
	}
	return rec
}

func (r *Run) event() events.RefreshEvent {
	rec := r.record()
	return events.RefreshEvent{
		RunID:         rec.ID,
		Platform:      rec.Platform,
		TimeRange:     rec.TimeRange,
		Status:        rec.Status,
		RecordCount:   rec.RecordCount,
		GroundedCount: rec.GroundedCount,
		Topic:         rec.Topic,
		Error:         rec.Error,
		FinishedAt:    rec.FinishedAt,
	}
}

type Service struct {
	searcher  Searcher
	parser    *trend.Parser
	runs      RunLog
	publisher events.Publisher
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Service)

func WithRunLog(runs RunLog) Option {
	return func(s *Service) { s.runs = runs }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock sets the clock used for the prompt date and run timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithParser(p *trend.Parser) Option {
	return func(s *Service) { s.parser = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService builds a pipeline around searcher. A nil searcher means no
// credentials are configured; every Fetch then fails with
// ai.ErrMissingAPIKey.
func NewService(searcher Searcher, opts ...Option) *Service {
	s := &Service{
		searcher:  searcher,
		publisher: events.Nop{},
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parser == nil {
		s.parser = trend.NewParser(trend.WithClock(s.now))
	}
	return s
}

// Prompt returns the prompt Fetch would send for q right now.
func (s *Service) Prompt(q trend.Query) string {
	q = q.Normalize()
	return trend.BuildPrompt(q.Platform, q.Range, s.now())
}

// Fetch runs the pipeline once for q. The returned run is never nil; on
// failure its Err equals the returned error, which comes straight from the
// searcher.
func (s *Service) Fetch(ctx context.Context, q trend.Query) (*Run, error) {
	q = q.Normalize()
	run := &Run{
		ID:        uuid.NewString(),
		Query:     q,
		Result:    trend.Result{Records: []trend.Record{}, Topic: trend.DefaultTopic},
		StartedAt: s.now(),
	}

	run.Err = s.fetch(ctx, run)
	run.FinishedAt = s.now()
	if run.Err == nil {
		run.Stats = trend.Summarize(run.Result)
	}

	s.observe(ctx, run)
	return run, run.Err
}

func (s *Service) fetch(ctx context.Context, run *Run) error {
	if s.searcher == nil {
		return ai.ErrMissingAPIKey
	}
	prompt := trend.BuildPrompt(run.Query.Platform, run.Query.Range, run.StartedAt)
	reply, err := s.searcher.Search(ctx, prompt)
	if err != nil {
		return err
	}
	if reply != nil {
		run.Result = s.parser.Parse(reply.Text, reply.References)
	}
	return nil
}

// observe reports a finished run to metrics, the run log and the event bus.
// Failures here are logged only.
func (s *Service) observe(ctx context.Context, run *Run) {
	slug := run.Query.Platform.Slug()
	status := run.Status()
	metrics.RecordRefresh(slug, status, run.FinishedAt.Sub(run.StartedAt).Seconds())

	attrs := []any{
		"run_id", run.ID,
		"platform", run.Query.Platform,
		"window", run.Query.Range,
		"status", status,
		"duration", run.FinishedAt.Sub(run.StartedAt),
	}
	if run.Err != nil {
		s.logger.Error("refresh failed", append(attrs, "error", run.Err)...)
	} else {
		records := len(run.Result.Records)
		metrics.RecordParse(slug, records, records-run.GroundedCount())
		s.logger.Info("refresh finished", append(attrs, "records", records, "topic", run.Result.Topic)...)
	}

	if s.runs != nil {
		if err := s.runs.SaveRun(run.record()); err != nil {
			s.logger.Warn("save run", "run_id", run.ID, "error", err)
		}
	}
	if err := s.publisher.Publish(ctx, run.event()); err != nil {
		s.logger.Warn("publish refresh event", "run_id", run.ID, "error", err)
	}
}
