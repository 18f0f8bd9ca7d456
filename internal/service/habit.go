package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/templui/habits/internal/logger"
	"github.com/templui/habits/internal/metrics"
	"github.com/templui/habits/internal/model"
	"github.com/templui/habits/internal/repository"
	"github.com/templui/habits/internal/validation"
)

// HabitInput carries the user-editable fields of a habit.
type HabitInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

type HabitService struct {
	repo repository.HabitRepository
	loc  *time.Location
	now  func() time.Time
}

// NewHabitService returns a service whose notion of "today" follows loc.
func NewHabitService(repo repository.HabitRepository, loc *time.Location) *HabitService {
	if loc == nil {
		loc = time.UTC
	}
	return &HabitService{
		repo: repo,
		loc:  loc,
		now:  time.Now,
	}
}

// Today returns the current calendar date in the service's timezone.
func (s *HabitService) Today() string {
	return s.now().In(s.loc).Format(model.DateLayout)
}

func (s *HabitService) List(ctx context.Context, userID string) (habits []*model.Habit, err error) {
	defer record("list", &err)

	if userID == "" {
		return nil, ErrUnauthenticated
	}

	habits, err = s.repo.Habits(ctx, userID)
	if err != nil {
		return nil, storeError("list habits", err)
	}

	for _, h := range habits {
		s.localize(h)
	}
	return habits, nil
}

func (s *HabitService) Get(ctx context.Context, userID, habitID string) (habit *model.Habit, err error) {
	defer record("get", &err)

	habit, err = s.owned(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	return s.localize(habit), nil
}

func (s *HabitService) Count(ctx context.Context, userID string) (count int, err error) {
	defer record("count", &err)

	if userID == "" {
		return 0, ErrUnauthenticated
	}

	count, err = s.repo.CountUserHabits(ctx, userID)
	if err != nil {
		return 0, storeError("count habits", err)
	}
	return count, nil
}

func (s *HabitService) Create(ctx context.Context, userID string, input HabitInput) (habit *model.Habit, err error) {
	defer record("create", &err)

	if userID == "" {
		return nil, ErrUnauthenticated
	}

	input, err = validateInput(input)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	habit = &model.Habit{
		ID:             uuid.New().String(),
		UserID:         userID,
		Name:           input.Name,
		Description:    input.Description,
		CompletedDates: model.DateList{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.repo.Create(ctx, habit)
	if err != nil {
		return nil, storeError("create habit", err)
	}

	logger.FromContext(ctx).Debug("habit created", "user_id", userID, "habit_id", habit.ID)
	return s.localize(habit), nil
}

func (s *HabitService) Edit(ctx context.Context, userID, habitID string, input HabitInput) (habit *model.Habit, err error) {
	defer record("edit", &err)

	// Verify ownership
	habit, err = s.owned(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}

	input, err = validateInput(input)
	if err != nil {
		return nil, err
	}

	habit.Name = input.Name
	habit.Description = input.Description

	err = s.save(ctx, habit)
	if err != nil {
		return nil, err
	}
	return s.localize(habit), nil
}

// Delete removes the habit and returns it as it was just before deletion.
func (s *HabitService) Delete(ctx context.Context, userID, habitID string) (habit *model.Habit, err error) {
	defer record("delete", &err)

	// Verify ownership
	habit, err = s.owned(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}

	err = s.repo.Delete(ctx, userID, habitID)
	if errors.Is(err, repository.ErrHabitNotFound) {
		return nil, fmt.Errorf("habit %s: %w", habitID, ErrNotFound)
	}
	if err != nil {
		return nil, storeError("delete habit", err)
	}

	logger.FromContext(ctx).Debug("habit deleted", "user_id", userID, "habit_id", habitID)
	return s.localize(habit), nil
}

// MarkComplete records today as done. Completing twice on the same day is a no-op.
func (s *HabitService) MarkComplete(ctx context.Context, userID, habitID string) (habit *model.Habit, err error) {
	defer record("mark_complete", &err)

	// Verify ownership
	habit, err = s.owned(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}

	today := s.Today()
	if habit.CompletedDates.Contains(today) {
		return s.localize(habit), nil
	}

	habit.CompletedDates = append(habit.CompletedDates, today)
	err = s.save(ctx, habit)
	if err != nil {
		return nil, err
	}
	return s.localize(habit), nil
}

// MarkIncomplete removes every entry for today.
func (s *HabitService) MarkIncomplete(ctx context.Context, userID, habitID string) (habit *model.Habit, err error) {
	defer record("mark_incomplete", &err)

	// Verify ownership
	habit, err = s.owned(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}

	today := s.Today()
	if !habit.CompletedDates.Contains(today) {
		return s.localize(habit), nil
	}

	habit.CompletedDates = habit.CompletedDates.Without(today)
	err = s.save(ctx, habit)
	if err != nil {
		return nil, err
	}
	return s.localize(habit), nil
}

// owned loads a habit and checks that userID owns it. A missing habit is
// ErrNotFound; someone else's habit is ErrUnauthorized.
func (s *HabitService) owned(ctx context.Context, userID, habitID string) (*model.Habit, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if habitID == "" {
		return nil, newValidationError("id", "is required")
	}

	habit, err := s.repo.ByID(ctx, habitID)
	if errors.Is(err, repository.ErrHabitNotFound) {
		return nil, fmt.Errorf("habit %s: %w", habitID, ErrNotFound)
	}
	if err != nil {
		return nil, storeError("load habit", err)
	}

	if habit.UserID != userID {
		logger.FromContext(ctx).Warn("habit access denied", "user_id", userID, "habit_id", habitID)
		return nil, fmt.Errorf("habit %s: %w", habitID, ErrUnauthorized)
	}

	return habit, nil
}

func (s *HabitService) save(ctx context.Context, habit *model.Habit) error {
	habit.UpdatedAt = s.now().UTC()

	err := s.repo.Update(ctx, habit)
	if errors.Is(err, repository.ErrHabitNotFound) {
		// Deleted between the ownership check and the write.
		return fmt.Errorf("habit %s: %w", habit.ID, ErrNotFound)
	}
	if err != nil {
		return storeError("update habit", err)
	}
	return nil
}

func (s *HabitService) localize(h *model.Habit) *model.Habit {
	h.CreatedAt = h.CreatedAt.In(s.loc)
	if h.CompletedDates == nil {
		h.CompletedDates = model.DateList{}
	}
	return h
}

func validateInput(input HabitInput) (HabitInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)

	if fields := validation.Struct(input); fields != nil {
		return input, &ValidationError{Fields: fields}
	}
	return input, nil
}

func record(operation string, err *error) {
	metrics.RecordOperation(operation, Outcome(*err))
}
