// Package scheduler runs the periodic jobs: the GitHub batch sync and the
// daily cleanup.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/evergreeners/internal/service"
)

// DefaultDelay is the pause between two users of a batch. It keeps a full
// run well inside GitHub's secondary rate limits.
const DefaultDelay = 500 * time.Millisecond

// Syncer is implemented by *service.SyncService.
type Syncer interface {
	SyncOne(ctx context.Context, userID string) service.SyncResult
}

// EligibleLister is implemented by the user repository.
type EligibleLister interface {
	ListSyncEligible(ctx context.Context) ([]string, error)
}

// Report summarizes one batch run.
type Report struct {
	Attempted int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// Batch syncs every eligible user, one at a time.
type Batch struct {
	users  EligibleLister
	syncer Syncer
	delay  time.Duration
	logger *slog.Logger
}

func NewBatch(users EligibleLister, syncer Syncer, delay time.Duration, logger *slog.Logger) *Batch {
	if delay < 0 {
		delay = 0
	}
	return &Batch{users: users, syncer: syncer, delay: delay, logger: logger}
}

// SyncAll syncs each eligible user in turn with b.delay between users. A
// failing user is counted and skipped. Cancelling ctx stops the run before
// the next user; users not reached are not counted as attempted.
func (b *Batch) SyncAll(ctx context.Context) Report {
	start := time.Now()
	var rep Report

	ids, err := b.users.ListSyncEligible(ctx)
	if err != nil {
		b.logger.Error("GitHub batch sync: listing users failed", slog.String("error", err.Error()))
		return rep
	}
	b.logger.Info("GitHub batch sync started", slog.Int("users", len(ids)))

	for i, id := range ids {
		if i > 0 && !sleep(ctx, b.delay) {
			b.logger.Warn("GitHub batch sync cancelled", slog.Int("remaining", len(ids)-i))
			break
		}

		rep.Attempted++
		if res := b.syncer.SyncOne(ctx, id); res.OK() {
			rep.Succeeded++
		} else {
			rep.Failed++
		}
	}

	rep.Duration = time.Since(start)
	b.logger.Info("GitHub batch sync completed",
		slog.Int("attempted", rep.Attempted),
		slog.Int("succeeded", rep.Succeeded),
		slog.Int("failed", rep.Failed),
		slog.Duration("duration", rep.Duration),
	)
	return rep
}

// sleep waits for d or until ctx is done. It reports false if ctx ended
// first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
