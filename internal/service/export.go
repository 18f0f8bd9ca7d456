package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/templui/habits/internal/model"
	"github.com/templui/habits/internal/stats"
	"github.com/templui/habits/internal/storage"
)

var (
	ErrExportStorageDisabled = errors.New("export storage is not configured")
)

// Export is a point-in-time snapshot of a user's habits.
type Export struct {
	ExportedAt time.Time      `json:"exportedAt"`
	Habits     []*model.Habit `json:"habits"`
	Stats      stats.Summary  `json:"stats"`
}

type ExportService struct {
	habits  *HabitService
	storage storage.Storage // nil when uploads are disabled
	expiry  time.Duration
	now     func() time.Time
}

func NewExportService(habits *HabitService, store storage.Storage, expiry time.Duration) *ExportService {
	return &ExportService{
		habits:  habits,
		storage: store,
		expiry:  expiry,
		now:     time.Now,
	}
}

func (s *ExportService) Export(ctx context.Context, userID string) (*Export, error) {
	habits, err := s.habits.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Export{
		ExportedAt: s.now().UTC(),
		Habits:     habits,
		Stats:      stats.Summarize(habits),
	}, nil
}

// UploadsEnabled reports whether Upload can succeed at all.
func (s *ExportService) UploadsEnabled() bool {
	return s.storage != nil
}

// Upload stores an export in object storage and returns a presigned download URL.
func (s *ExportService) Upload(ctx context.Context, userID string) (string, error) {
	if s.storage == nil {
		return "", ErrExportStorageDisabled
	}

	export, err := s.Export(ctx, userID)
	if err != nil {
		return "", err
	}

	body, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode export: %w", err)
	}

	key := fmt.Sprintf("exports/%s/%s.json", userID, export.ExportedAt.Format("20060102T150405Z"))
	err = s.storage.Save(ctx, key, bytes.NewReader(body), "application/json")
	if err != nil {
		return "", fmt.Errorf("failed to upload export: %w", err)
	}

	url, err := s.storage.PresignedURL(ctx, key, s.expiry)
	if err != nil {
		return "", fmt.Errorf("failed to presign export: %w", err)
	}

	slog.Info("habit export uploaded", "user_id", userID, "key", key, "habits", len(export.Habits))
	return url, nil
}
