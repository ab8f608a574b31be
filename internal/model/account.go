package model

import "time"

// ProviderGitHub is the provider id stored on GitHub accounts.
const ProviderGitHub = "github"

// Account is a per-provider credential owned by a User.
//
// A user has at most one account per provider. The storage layer enforces
// that with lookup-then-upsert rather than a unique index.
type Account struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	ProviderID  string    `json:"providerId"`
	AccountID   string    `json:"accountId"` // provider's id for the user
	AccessToken string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
