package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/habits/internal/model"
)

var (
	ErrHabitNotFound = errors.New("habit not found")
)

type HabitRepository interface {
	Create(ctx context.Context, habit *model.Habit) error
	ByID(ctx context.Context, habitID string) (*model.Habit, error)
	Habits(ctx context.Context, userID string) ([]*model.Habit, error)
	CountUserHabits(ctx context.Context, userID string) (int, error)
	Update(ctx context.Context, habit *model.Habit) error
	Delete(ctx context.Context, userID, habitID string) error
}

type habitRepository struct {
	db *sqlx.DB
}

func NewHabitRepository(db *sqlx.DB) HabitRepository {
	return &habitRepository{db: db}
}

func (r *habitRepository) Create(ctx context.Context, habit *model.Habit) error {
	query := `INSERT INTO habits (id, user_id, name, description, completed_dates, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		habit.ID,
		habit.UserID,
		habit.Name,
		habit.Description,
		habit.CompletedDates,
		habit.CreatedAt,
		habit.UpdatedAt,
	)

	return err
}

// ByID loads a habit regardless of owner; callers compare UserID themselves
// so they can tell a missing habit from someone else's.
func (r *habitRepository) ByID(ctx context.Context, habitID string) (*model.Habit, error) {
	habit := &model.Habit{}
	query := `SELECT id, user_id, name, description, completed_dates, created_at, updated_at
	          FROM habits WHERE id = $1`

	err := r.db.GetContext(ctx, habit, query, habitID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHabitNotFound
	}
	if err != nil {
		return nil, err
	}

	return habit, nil
}

func (r *habitRepository) Habits(ctx context.Context, userID string) ([]*model.Habit, error) {
	habits := []*model.Habit{}
	query := `SELECT id, user_id, name, description, completed_dates, created_at, updated_at
	          FROM habits WHERE user_id = $1 ORDER BY created_at ASC, id ASC`

	err := r.db.SelectContext(ctx, &habits, query, userID)
	if err != nil {
		return nil, err
	}

	return habits, nil
}

func (r *habitRepository) CountUserHabits(ctx context.Context, userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM habits WHERE user_id = $1`
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&count)
	return count, err
}

// Update writes the mutable fields. The user_id predicate keeps a stale
// ownership check from touching another user's row.
func (r *habitRepository) Update(ctx context.Context, habit *model.Habit) error {
	if habit.UpdatedAt.IsZero() {
		habit.UpdatedAt = time.Now().UTC()
	}

	query := `UPDATE habits
	          SET name = $1, description = $2, completed_dates = $3, updated_at = $4
	          WHERE id = $5 AND user_id = $6`

	result, err := r.db.ExecContext(ctx, query,
		habit.Name,
		habit.Description,
		habit.CompletedDates,
		habit.UpdatedAt,
		habit.ID,
		habit.UserID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrHabitNotFound
	}

	return nil
}

func (r *habitRepository) Delete(ctx context.Context, userID, habitID string) error {
	query := `DELETE FROM habits WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, habitID, userID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrHabitNotFound
	}

	return nil
}
