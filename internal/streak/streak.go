// Package streak derives streaks and dashboard aggregates from a GitHub
// contribution calendar.
//
// All functions are pure: "now" is always passed in, so results are
// reproducible in tests and independent of the server's wall clock.
// Dates are compared as YYYY-MM-DD strings in UTC, which orders the same way
// as the dates themselves.
package streak

import (
	"time"

	"github.com/sakif/evergreeners/internal/model"
)

// DateLayout is the calendar date format used by GitHub and stored on users.
const DateLayout = "2006-01-02"

// Summary is the result of Calculate.
type Summary struct {
	Total   int // sum of all counts in the calendar
	Today   int // count on today's date, 0 if today is absent
	Current int // current consecutive-day streak
}

// Calculate computes today's count and the current streak from a calendar
// ordered newest first.
//
// The streak starts at the most recent day with a non-zero count. If that day
// is older than yesterday the streak has lapsed and is 0, even when a longer
// run exists further back. Otherwise it is the length of the run of non-zero
// days starting there. Only that single most-recent day is checked against
// the one-day grace; days between it and today are not re-validated.
func Calculate(days []model.ContributionDay, now time.Time) Summary {
	today := now.UTC().Format(DateLayout)
	yesterday := now.UTC().Add(-24 * time.Hour).Format(DateLayout)

	var s Summary
	start := -1
	sawToday := false
	for i, d := range days {
		s.Total += d.Count
		if d.Date == today && !sawToday {
			s.Today = d.Count
			sawToday = true
		}
		if start == -1 && d.Count > 0 {
			start = i
		}
	}

	if start == -1 {
		return s
	}

	last := days[start].Date
	if last < yesterday && last != today {
		return s
	}

	for _, d := range days[start:] {
		if d.Count <= 0 {
			break
		}
		s.Current++
	}
	return s
}

// Longest returns the longest run of consecutive non-zero entries in days.
// The order of days does not matter as long as it is chronological in one
// direction.
func Longest(days []model.ContributionDay) int {
	longest, run := 0, 0
	for _, d := range days {
		if d.Count > 0 {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return longest
}
