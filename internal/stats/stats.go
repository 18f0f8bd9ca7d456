// Package stats derives aggregate statistics from a user's habits.
// Everything here is pure: no I/O, no clock, inputs are never mutated.
package stats

import (
	"iter"
	"slices"
	"time"

	"github.com/templui/habits/internal/model"
)

// DefaultHorizonDays is the length of a habit's completion calendar.
const DefaultHorizonDays = 365

// Summary is the statistics view for one user.
type Summary struct {
	HabitCount      int     `json:"habitCount"`
	LongestStreak   int     `json:"longestStreak"`
	MostCompletions int     `json:"mostCompletions"`
	StartedTracking *string `json:"startedTracking"`
}

func Summarize(habits []*model.Habit) Summary {
	s := Summary{
		HabitCount:      HabitCount(habits),
		LongestStreak:   LongestStreak(habits),
		MostCompletions: MostCompletions(habits),
	}
	if day, ok := EarliestTrackedDate(habits); ok {
		s.StartedTracking = &day
	}
	return s
}

func HabitCount(habits []*model.Habit) int {
	return len(habits)
}

// MostCompletions returns the completion count of the busiest habit, or 0 for
// no habits. It is a per-habit maximum, not a sum across habits.
func MostCompletions(habits []*model.Habit) int {
	best := 0
	for _, h := range habits {
		best = max(best, len(h.CompletedDates))
	}
	return best
}

// LongestStreak returns the longest run of consecutive calendar days completed
// on any single habit. Duplicate and unparseable entries are ignored.
func LongestStreak(habits []*model.Habit) int {
	best := 0
	for _, h := range habits {
		best = max(best, habitStreak(h.CompletedDates))
	}
	return best
}

func habitStreak(dates model.DateList) int {
	days := make([]int64, 0, len(dates))
	for _, d := range dates {
		t, err := time.Parse(model.DateLayout, d)
		if err != nil {
			continue
		}
		days = append(days, t.Unix()/86400)
	}
	if len(days) == 0 {
		return 0
	}

	slices.Sort(days)
	days = slices.Compact(days)

	best, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i] == days[i-1]+1 {
			run++
		} else {
			run = 1
		}
		best = max(best, run)
	}
	return best
}

// EarliestTrackedDate returns the earliest habit creation date as YYYY-MM-DD.
// ok is false when there are no habits.
func EarliestTrackedDate(habits []*model.Habit) (day string, ok bool) {
	if len(habits) == 0 {
		return "", false
	}

	earliest := habits[0].CreatedAt
	for _, h := range habits[1:] {
		if h.CreatedAt.Before(earliest) {
			earliest = h.CreatedAt
		}
	}
	return earliest.Format(model.DateLayout), true
}

// Calendar yields days consecutive dates starting at start's calendar day,
// each at midnight in start's location. The sequence can be ranged over any
// number of times.
func Calendar(start time.Time, days int) iter.Seq[time.Time] {
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	return func(yield func(time.Time) bool) {
		for i := range days {
			if !yield(first.AddDate(0, 0, i)) {
				return
			}
		}
	}
}

// HabitCalendar is Calendar anchored at the habit's creation date.
func HabitCalendar(h *model.Habit, days int) iter.Seq[time.Time] {
	return Calendar(h.CreatedAt, days)
}

// CompletionSet indexes a habit's completion dates for O(1) lookups.
func CompletionSet(h *model.Habit) map[string]struct{} {
	set := make(map[string]struct{}, len(h.CompletedDates))
	for _, d := range h.CompletedDates {
		set[d] = struct{}{}
	}
	return set
}

// Day is one cell of a habit's completion grid.
type Day struct {
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
}

// Days pairs each calendar date of the habit with its completion state.
func Days(h *model.Habit, days int) []Day {
	done := CompletionSet(h)
	out := make([]Day, 0, max(days, 0))
	for t := range HabitCalendar(h, days) {
		date := t.Format(model.DateLayout)
		_, completed := done[date]
		out = append(out, Day{Date: date, Completed: completed})
	}
	return out
}
