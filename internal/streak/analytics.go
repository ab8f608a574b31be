package streak

import (
	"time"

	"github.com/sakif/evergreeners/internal/model"
)

// ActivityWindow is how many of the most recent days the activity grid shows.
const ActivityWindow = 365

// MonthsShown is how many calendar months the monthly trend covers.
const MonthsShown = 6

// DayBucket is the weekly distribution entry for one weekday.
type DayBucket struct {
	Day     string `json:"day"`
	Commits int    `json:"commits"`
}

// MonthBucket is the monthly trend entry for one calendar month.
type MonthBucket struct {
	Month   string `json:"month"`
	Year    int    `json:"year"`
	Commits int    `json:"commits"`
}

// Goal is progress towards a daily contribution target.
type Goal struct {
	Current int     `json:"current"`
	Target  int     `json:"target"`
	Percent float64 `json:"percent"` // capped at 100
}

// Analytics is everything the dashboard charts need from one calendar.
type Analytics struct {
	CurrentStreak int           `json:"currentStreak"`
	LongestStreak int           `json:"longestStreak"`
	TotalCommits  int           `json:"totalCommits"`
	TodayCommits  int           `json:"todayCommits"`
	ActiveDays    int           `json:"activeDays"`
	Weekly        []DayBucket   `json:"weekly"`
	Monthly       []MonthBucket `json:"monthly"`
	Activity      []int         `json:"activity"` // oldest first, 0..4
	Goal          Goal          `json:"goal"`
}

// Analyze builds dashboard analytics from a newest-first calendar.
// goalTarget values below 1 are treated as 1.
func Analyze(days []model.ContributionDay, now time.Time, goalTarget int) Analytics {
	sum := Calculate(days, now)

	a := Analytics{
		CurrentStreak: sum.Current,
		LongestStreak: Longest(days),
		TotalCommits:  sum.Total,
		TodayCommits:  sum.Today,
		Weekly:        Weekly(days),
		Monthly:       Monthly(days, now),
		Activity:      Activity(days),
		Goal:          GoalProgress(sum.Today, goalTarget),
	}
	for _, d := range days {
		if d.Count > 0 {
			a.ActiveDays++
		}
	}
	return a
}

// Weekly sums counts per weekday, Sunday first. Days with unparseable dates
// are skipped.
func Weekly(days []model.ContributionDay) []DayBucket {
	var totals [7]int
	for _, d := range days {
		t, err := time.Parse(DateLayout, d.Date)
		if err != nil {
			continue
		}
		totals[t.Weekday()] += d.Count
	}

	out := make([]DayBucket, 7)
	for wd := range totals {
		out[wd] = DayBucket{Day: time.Weekday(wd).String()[:3], Commits: totals[wd]}
	}
	return out
}

// Monthly sums counts for the last MonthsShown calendar months ending with
// now's month, oldest first. Months with no data are present with 0.
func Monthly(days []model.ContributionDay, now time.Time) []MonthBucket {
	type ym struct {
		year  int
		month time.Month
	}
	totals := make(map[ym]int)
	for _, d := range days {
		t, err := time.Parse(DateLayout, d.Date)
		if err != nil {
			continue
		}
		totals[ym{t.Year(), t.Month()}] += d.Count
	}

	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]MonthBucket, 0, MonthsShown)
	for i := MonthsShown - 1; i >= 0; i-- {
		m := first.AddDate(0, -i, 0)
		out = append(out, MonthBucket{
			Month:   m.Month().String()[:3],
			Year:    m.Year(),
			Commits: totals[ym{m.Year(), m.Month()}],
		})
	}
	return out
}

// Activity returns intensity levels (0..4) for the most recent
// ActivityWindow days, oldest first, ready for a week-column grid.
func Activity(days []model.ContributionDay) []int {
	n := min(len(days), ActivityWindow)
	out := make([]int, n)
	for i := 0; i < n; i++ {
		// days is newest first; fill from the end so out is oldest first
		out[n-1-i] = Intensity(days[i].Count)
	}
	return out
}

// Intensity buckets a daily count into the grid's 0..4 scale.
func Intensity(count int) int {
	switch {
	case count <= 0:
		return 0
	case count <= 2:
		return 1
	case count <= 5:
		return 2
	case count <= 9:
		return 3
	default:
		return 4
	}
}

// GoalProgress reports current against target, percent capped at 100.
func GoalProgress(current, target int) Goal {
	if target < 1 {
		target = 1
	}
	pct := float64(current) / float64(target) * 100
	return Goal{Current: current, Target: target, Percent: min(pct, 100)}
}
