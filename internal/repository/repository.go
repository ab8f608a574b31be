// Package repository declares the storage interfaces the services depend on.
// internal/repository/sqlite is the only implementation; service tests use
// in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/evergreeners/internal/model"
)

// UserRepository stores users, their profile and their GitHub statistics.
//
// Lookups return an error matching apperror.ErrNotFound when the user does
// not exist.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// UpdateProfile applies the non-nil fields of upd and returns the
	// stored user afterwards.
	UpdateProfile(ctx context.Context, id string, upd model.ProfileUpdate) (*model.User, error)

	// UpdateGitHubStats writes the outcome of a successful sync in one
	// statement and marks the user as GitHub-connected. The stored sync
	// time never moves backwards.
	UpdateGitHubStats(ctx context.Context, id string, stats model.GitHubStats) error

	// MarkGitHubConnected records a freshly linked GitHub login. image is
	// only written when the user has none yet.
	MarkGitHubConnected(ctx context.Context, id, githubUsername, image string) error

	// ListSyncEligible returns the IDs of users that are connected to
	// GitHub and have syncing enabled.
	ListSyncEligible(ctx context.Context) ([]string, error)
}

// AccountRepository stores per-provider credentials of users.
type AccountRepository interface {
	GetAccount(ctx context.Context, userID, providerID string) (*model.Account, error)
	GetAccountByProviderID(ctx context.Context, providerID, accountID string) (*model.Account, error)

	// UpsertAccount keeps at most one account per (user, provider): an
	// existing row gets the new account ID and token, otherwise a row is
	// inserted. acc.ID and timestamps are filled in.
	UpsertAccount(ctx context.Context, acc *model.Account) error
}
