package scheduler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/chyiyaqing/trendscope/internal/notify"
	"github.com/chyiyaqing/trendscope/internal/pipeline"
	"github.com/chyiyaqing/trendscope/internal/trend"
)

const DefaultSchedule = "*/30 * * * *"

// Refresher is implemented by *pipeline.Board.
type Refresher interface {
	RefreshCurrent(ctx context.Context) (*pipeline.Run, error)
}

// DigestFunc renders a run for the notifier.
type DigestFunc func(run *pipeline.Run) (title, body string)

type Scheduler struct {
	board    Refresher
	notifier notify.Notifier
	digest   DigestFunc
	logger   *slog.Logger
}

// New returns a scheduler for board. notifier may be nil.
func New(board Refresher, notifier notify.Notifier, digest DigestFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{board: board, notifier: notifier, digest: digest, logger: logger}
}

// Run refreshes the board immediately, then starts a cron scheduler to
// repeat it periodically. It blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { s.Tick(ctx) }); err != nil {
		return err
	}

	s.logger.Info("running initial refresh")
	s.Tick(ctx)

	c.Start()
	s.logger.Info("scheduler started", "schedule", schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// Tick performs one scheduled refresh and notifies on success.
func (s *Scheduler) Tick(ctx context.Context) {
	run, err := s.board.RefreshCurrent(ctx)
	switch {
	case errors.Is(err, pipeline.ErrSuperseded):
		s.logger.Info("scheduled refresh superseded by a newer request")
		return
	case err != nil:
		s.logger.Error("scheduled refresh", "error", err)
		return
	}

	if s.notifier == nil || s.digest == nil {
		return
	}
	if len(run.Result.Records) == 0 {
		s.logger.Info("no trends to notify", "platform", run.Query.Platform, "window", run.Query.Range)
		return
	}
	title, body := s.digest(run)
	if err := s.notifier.Send(ctx, title, body); err != nil {
		s.logger.Warn("send notification", "error", err)
		return
	}
	s.logger.Info("digest sent", "records", len(run.Result.Records), "topic", run.Result.Topic)
}

// Validate reports whether expr is a valid five-field cron expression.
func Validate(expr string) error {
	_, err := cron.ParseStandard(expr)
	return err
}

// InitialQuery parses the configured selection, falling back to all
// platforms for today on unknown values.
func InitialQuery(platform, window string, logger *slog.Logger) trend.Query {
	if logger == nil {
		logger = slog.Default()
	}
	var q trend.Query
	if platform != "" {
		p, err := trend.ParsePlatform(platform)
		if err != nil {
			logger.Warn("ignoring schedule platform", "error", err)
		}
		q.Platform = p
	}
	if window != "" {
		r, err := trend.ParseTimeRange(window)
		if err != nil {
			logger.Warn("ignoring schedule window", "error", err)
		}
		q.Range = r
	}
	return q.Normalize()
}
