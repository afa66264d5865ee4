package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Runner executes one pipeline pass.
type Runner interface {
	Run(ctx context.Context) (Report, error)
}

// Scheduler re-runs the pipeline on a cron schedule. Ticks that fire while a
// run is still in progress are skipped.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger *slog.Logger
}

// NewScheduler registers runner under a standard five-field cron spec.
func NewScheduler(ctx context.Context, spec string, runner Runner, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		runner: runner,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.trigger(ctx) }); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the pipeline once synchronously, then starts the schedule.
// The initial run's error is logged and returned; the schedule starts regardless.
func (s *Scheduler) Start(ctx context.Context) error {
	err := s.trigger(ctx)
	s.cron.Start()
	s.logger.Info("refresh scheduled", "entries", len(s.cron.Entries()))
	return err
}

// Stop halts the schedule. The returned context is done once a run in progress finishes.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) trigger(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	_, err := s.runner.Run(ctx)
	if errors.Is(err, ErrRunInProgress) {
		s.logger.Warn("skipping scheduled run, previous run still in progress")
		return nil
	}
	if err != nil {
		s.logger.Error("scheduled run failed", "error", err)
	}
	return err
}
