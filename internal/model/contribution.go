package model

import "time"

// ContributionDay is one cell of a GitHub contribution calendar.
// Date is a calendar date in YYYY-MM-DD form; Count is never negative.
//
// The JSON names match GitHub's GraphQL field names so a stored calendar can
// be handed to the dashboard unchanged.
type ContributionDay struct {
	Date  string `json:"date"`
	Count int    `json:"contributionCount"`
}

// GitHubStats is the set of fields a successful sync writes onto a User.
type GitHubStats struct {
	Username         string            `json:"username"`
	Streak           int               `json:"streak"`
	TotalCommits     int               `json:"totalCommits"`
	TodayCommits     int               `json:"todayCommits"`
	ContributionData []ContributionDay `json:"contributionData"`
	SyncedAt         time.Time         `json:"syncedAt"`
}

// Stats returns the GitHub aggregates currently stored on the user.
func (u *User) Stats() GitHubStats {
	s := GitHubStats{
		Username:         u.GitHubUsername,
		Streak:           u.GitHubStreak,
		TotalCommits:     u.GitHubTotalCommits,
		TodayCommits:     u.GitHubTodayCommits,
		ContributionData: u.GitHubContributionData,
	}
	if u.GitHubSyncedAt != nil {
		s.SyncedAt = *u.GitHubSyncedAt
	}
	return s
}
