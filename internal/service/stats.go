package service

import (
	"context"
	"fmt"

	"github.com/templui/habits/internal/stats"
)

// MaxCalendarDays bounds the calendar endpoint to ten years of cells.
const MaxCalendarDays = 3660

type StatsService struct {
	habits *HabitService
}

func NewStatsService(habits *HabitService) *StatsService {
	return &StatsService{habits: habits}
}

func (s *StatsService) Summary(ctx context.Context, userID string) (stats.Summary, error) {
	habits, err := s.habits.List(ctx, userID)
	if err != nil {
		return stats.Summary{}, err
	}
	return stats.Summarize(habits), nil
}

// Calendar returns the habit's completion grid starting at its creation date.
func (s *StatsService) Calendar(ctx context.Context, userID, habitID string, days int) ([]stats.Day, error) {
	if days < 1 || days > MaxCalendarDays {
		return nil, newValidationError("days", fmt.Sprintf("must be between 1 and %d", MaxCalendarDays))
	}

	habit, err := s.habits.Get(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	return stats.Days(habit, days), nil
}
