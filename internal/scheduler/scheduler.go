package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Default schedules, in standard five-field cron syntax.
const (
	DefaultSyncSchedule    = "0 */6 * * *" // 00:00, 06:00, 12:00, 18:00
	DefaultCleanupSchedule = "0 2 * * *"
)

// Config selects when the jobs run.
type Config struct {
	SyncSchedule    string
	CleanupSchedule string
}

// Scheduler owns the cron runner. A job still running when its next tick
// arrives makes that tick a no-op.
type Scheduler struct {
	cron   *cron.Cron
	batch  *Batch
	logger *slog.Logger
	// ctx is cancelled by Stop so a running batch ends early.
	ctx    context.Context
	cancel context.CancelFunc
}

// New registers the jobs. An invalid schedule is an error.
func New(cfg Config, batch *Batch, logger *slog.Logger) (*Scheduler, error) {
	if cfg.SyncSchedule == "" {
		cfg.SyncSchedule = DefaultSyncSchedule
	}
	if cfg.CleanupSchedule == "" {
		cfg.CleanupSchedule = DefaultCleanupSchedule
	}

	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, batch: batch, logger: logger, ctx: ctx, cancel: cancel}

	if _, err := c.AddFunc(cfg.SyncSchedule, s.runSync); err != nil {
		cancel()
		return nil, fmt.Errorf("scheduler: GitHub sync schedule %q: %w", cfg.SyncSchedule, err)
	}
	if _, err := c.AddFunc(cfg.CleanupSchedule, s.runCleanup); err != nil {
		cancel()
		return nil, fmt.Errorf("scheduler: cleanup schedule %q: %w", cfg.CleanupSchedule, err)
	}

	logger.Info("scheduled tasks initialized",
		slog.String("githubSync", cfg.SyncSchedule),
		slog.String("cleanup", cfg.CleanupSchedule),
	)
	return s, nil
}

// Start runs the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling, cancels a running batch and returns a context that
// is done once running jobs have returned.
func (s *Scheduler) Stop() context.Context {
	s.cancel()
	return s.cron.Stop()
}

func (s *Scheduler) runSync() {
	s.logger.Info("scheduled GitHub sync triggered")
	s.batch.SyncAll(s.ctx)
}

// runCleanup has nothing to remove yet; expired sessions are stateless JWTs.
func (s *Scheduler) runCleanup() {
	s.logger.Info("daily cleanup task triggered")
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}
