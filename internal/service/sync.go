package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/evergreeners/internal/apperror"
	"github.com/sakif/evergreeners/internal/model"
	"github.com/sakif/evergreeners/internal/repository"
	"github.com/sakif/evergreeners/internal/streak"
)

// DefaultCacheWindow is how long stored GitHub stats count as fresh for the
// cached sync endpoint.
const DefaultCacheWindow = 60 * time.Minute

// SyncResult is the outcome of syncing one user. Exactly one of Stats and
// Err is set.
type SyncResult struct {
	UserID string
	Stats  *model.GitHubStats
	Err    error
}

// OK reports whether the sync succeeded.
func (r SyncResult) OK() bool {
	return r.Err == nil
}

// CachedSync is returned by SyncCached. Cached is true when the stored stats
// were fresh enough and GitHub was not contacted.
type CachedSync struct {
	Stats  model.GitHubStats
	Cached bool
}

// SyncService pulls a user's GitHub data, derives the streak figures and
// stores them on the user record.
type SyncService struct {
	users    repository.UserRepository
	accounts repository.AccountRepository
	gh       GitHubAPI
	observer SyncObserver
	logger   *slog.Logger
	now      func() time.Time
}

// NewSyncService creates a SyncService. observer may be nil.
func NewSyncService(
	users repository.UserRepository,
	accounts repository.AccountRepository,
	gh GitHubAPI,
	observer SyncObserver,
	logger *slog.Logger,
) *SyncService {
	if observer == nil {
		observer = noopObserver{}
	}
	return &SyncService{
		users:    users,
		accounts: accounts,
		gh:       gh,
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

// SyncOne fetches the user's GitHub profile and contribution calendar with
// the stored access token and writes the derived stats in one update.
//
// It never panics and never leaves a partial write: every failure happens
// before the single UpdateGitHubStats call, and is logged and returned in
// the result. Callers decide whether a failure matters (the HTTP handler
// does, the batch job only counts it).
func (s *SyncService) SyncOne(ctx context.Context, userID string) SyncResult {
	start := time.Now()

	stats, outcome, err := s.sync(ctx, userID)
	s.observer.ObserveSync(outcome, time.Since(start))

	if err != nil {
		s.logger.Error("GitHub sync failed",
			slog.String("userID", userID),
			slog.String("outcome", outcome),
			slog.String("error", err.Error()),
		)
		return SyncResult{UserID: userID, Err: err}
	}

	s.logger.Info("GitHub sync completed",
		slog.String("userID", userID),
		slog.String("login", stats.Username),
		slog.Int("totalCommits", stats.TotalCommits),
		slog.Int("streak", stats.Streak),
	)
	return SyncResult{UserID: userID, Stats: stats}
}

func (s *SyncService) sync(ctx context.Context, userID string) (*model.GitHubStats, string, error) {
	acc, err := s.accounts.GetAccount(ctx, userID, model.ProviderGitHub)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, OutcomeNoAccount, apperror.PreconditionFailed("No connected GitHub account found.")
		}
		return nil, OutcomeStore, fmt.Errorf("service/sync: loading GitHub account: %w", err)
	}
	if acc.AccessToken == "" {
		return nil, OutcomeNoAccount, apperror.PreconditionFailed("No connected GitHub account found.")
	}

	ghUser, err := s.gh.FetchUser(ctx, acc.AccessToken)
	if err != nil {
		return nil, OutcomeUpstream, apperror.Upstream("Failed to sync with GitHub", err)
	}

	cal, err := s.gh.FetchContributions(ctx, ghUser.Login, acc.AccessToken)
	if err != nil {
		return nil, OutcomeUpstream, apperror.Upstream("Failed to sync with GitHub", err)
	}

	now := s.now().UTC()
	sum := streak.Calculate(cal.Days, now)

	stats := &model.GitHubStats{
		Username:         ghUser.Login,
		Streak:           sum.Current,
		TotalCommits:     cal.Total,
		TodayCommits:     sum.Today,
		ContributionData: cal.Days,
		SyncedAt:         now,
	}
	if err := s.users.UpdateGitHubStats(ctx, userID, *stats); err != nil {
		return nil, OutcomeStore, fmt.Errorf("service/sync: storing GitHub stats: %w", err)
	}
	return stats, OutcomeSuccess, nil
}

// IsSyncNeeded reports whether stats last synced at lastSyncedAt are stale
// at now. A user that never synced always needs one; exactly window old is
// still fresh.
func IsSyncNeeded(lastSyncedAt *time.Time, window time.Duration, now time.Time) bool {
	if lastSyncedAt == nil {
		return true
	}
	return now.Sub(*lastSyncedAt) > window
}

// SyncCached returns the stored stats when they are younger than window and
// syncs otherwise. After a sync the user is re-read so the response shows
// what is actually stored.
func (s *SyncService) SyncCached(ctx context.Context, userID string, window time.Duration) (*CachedSync, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/sync: loading user: %w", err)
	}

	if !IsSyncNeeded(user.GitHubSyncedAt, window, s.now()) {
		return &CachedSync{Stats: user.Stats(), Cached: true}, nil
	}

	if res := s.SyncOne(ctx, userID); !res.OK() {
		return nil, res.Err
	}

	user, err = s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/sync: reloading user: %w", err)
	}
	return &CachedSync{Stats: user.Stats(), Cached: false}, nil
}
