// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account together with its GitHub linkage and
// the statistics derived from the most recent successful sync.
//
// The GitHub* aggregate fields are written only by the sync orchestrator and
// always come from the same fetched calendar; profile updates never touch them.
//
// WHY *time.Time FOR GitHubSyncedAt?
// "never synced" is a real state (the cached-sync endpoint treats it as
// "sync needed"), so we keep it distinguishable from the zero time.
type User struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	PasswordHash  string `json:"-"` // never serialized
	Image         string `json:"image"`
	Username      string `json:"username"`
	Bio           string `json:"bio"`
	Location      string `json:"location"`
	Website       string `json:"website"`
	IsPublic      bool   `json:"isPublic"`
	AnonymousName string `json:"anonymousName"`

	GitHubUsername         string            `json:"githubUsername"`
	IsGitHubConnected      bool              `json:"isGithubConnected"`
	GitHubSyncEnabled      bool              `json:"githubSyncEnabled"`
	GitHubSyncedAt         *time.Time        `json:"githubSyncedAt"`
	GitHubStreak           int               `json:"githubStreak"`
	GitHubTotalCommits     int               `json:"githubTotalCommits"`
	GitHubTodayCommits     int               `json:"githubTodayCommits"`
	GitHubContributionData []ContributionDay `json:"githubContributionData"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfileUpdate is a partial update of the user-editable profile fields.
// A nil pointer means "leave unchanged".
type ProfileUpdate struct {
	Name              *string `json:"name"`
	Username          *string `json:"username"`
	Bio               *string `json:"bio"`
	Location          *string `json:"location"`
	Website           *string `json:"website"`
	Image             *string `json:"image"`
	IsPublic          *bool   `json:"isPublic"`
	AnonymousName     *string `json:"anonymousName"`
	GitHubSyncEnabled *bool   `json:"githubSyncEnabled"`
}
