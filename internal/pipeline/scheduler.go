package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/aviation-weather-etl/internal/observability"
	"github.com/robfig/cron/v3"
)

// Runner performs one complete load cycle.
type Runner interface {
	RunOnce(ctx context.Context) error
}

// Scheduler runs load cycles on a cron schedule. A cycle still running when
// the next one is due causes that tick to be skipped.
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	runner   Runner
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewScheduler parses spec (standard five-field cron or a descriptor such as
// "@every 5m").
func NewScheduler(spec string, runner Runner, logger *slog.Logger, metrics *observability.Metrics) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse refresh schedule %q: %w", spec, err)
	}
	return &Scheduler{
		spec:     spec,
		schedule: schedule,
		runner:   runner,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Run loads once immediately, then on every tick until ctx is cancelled.
// It waits for an in-flight cycle to finish before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "schedule", s.spec)
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	s.cycle(ctx)

	log := cronLogger{logger: s.logger}
	c := cron.New(cron.WithLogger(log), cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)))
	c.Schedule(s.schedule, cron.FuncJob(func() { s.cycle(ctx) }))
	c.Start()

	<-ctx.Done()
	s.logger.Info("scheduler stopping", "reason", ctx.Err())
	<-c.Stop().Done()
	return nil
}

func (s *Scheduler) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.runner.RunOnce(ctx); err != nil {
		s.logger.Warn("load cycle had failures", "error", err)
	}
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
