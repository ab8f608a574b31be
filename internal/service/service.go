// Package service holds the business rules of the API.
//
//	Handler (HTTP) → Service (rules, orchestration) → Repository (storage)
//	                                                ↘ GitHub API
//
// Services never see an http.Request and never write SQL. They depend on the
// repository interfaces and on the small interfaces declared below, so tests
// run them against in-memory fakes.
//
// Errors returned to handlers come from internal/apperror; the handler maps
// them to status codes.
package service

import (
	"context"
	"time"

	"github.com/sakif/evergreeners/internal/github"
)

// GitHubAPI is the part of *github.Client the services use.
type GitHubAPI interface {
	FetchUser(ctx context.Context, token string) (*github.User, error)
	FetchContributions(ctx context.Context, login, token string) (*github.Calendar, error)
}

// CodeExchanger trades an OAuth authorization code for an access token.
// *auth.GitHubProvider implements it.
type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (string, error)
}

// Sync outcomes reported to a SyncObserver and used as metric labels.
const (
	OutcomeSuccess   = "success"
	OutcomeNoAccount = "no_account"
	OutcomeUpstream  = "upstream_error"
	OutcomeStore     = "store_error"
)

// SyncObserver receives one call per SyncOne. *metrics.Metrics implements it.
type SyncObserver interface {
	ObserveSync(outcome string, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveSync(string, time.Duration) {}
