package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStorage struct {
	objects     map[string][]byte
	contentType string
	saveErr     error
}

func (m *memoryStorage) Save(_ context.Context, path string, body io.Reader, contentType string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[path] = data
	m.contentType = contentType
	return nil
}

func (m *memoryStorage) PresignedURL(_ context.Context, path string, expiry time.Duration) (string, error) {
	return "https://storage.test/" + path + "?expires=" + expiry.String(), nil
}

func TestExportService_Export(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	h := f.create(t, f.alice, "Read")
	_, err := f.svc.MarkComplete(ctx, f.alice, h.ID)
	require.NoError(t, err)
	f.create(t, f.bob, "Swim")

	svc := NewExportService(f.svc, nil, time.Hour)
	svc.now = f.clock.now

	export, err := svc.Export(ctx, f.alice)
	require.NoError(t, err)
	assert.True(t, f.clock.t.Equal(export.ExportedAt))
	require.Len(t, export.Habits, 1)
	assert.Equal(t, "Read", export.Habits[0].Name)
	assert.Equal(t, 1, export.Stats.HabitCount)
	assert.Equal(t, 1, export.Stats.LongestStreak)

	_, err = svc.Export(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestExportService_Upload(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, f.alice, "Read")

	store := &memoryStorage{}
	svc := NewExportService(f.svc, store, 15*time.Minute)
	svc.now = f.clock.now
	require.True(t, svc.UploadsEnabled())

	url, err := svc.Upload(ctx, f.alice)
	require.NoError(t, err)

	key := "exports/" + f.alice + "/20240510T090000Z.json"
	assert.Equal(t, "https://storage.test/"+key+"?expires=15m0s", url)
	assert.Equal(t, "application/json", store.contentType)
	require.Contains(t, store.objects, key)

	var stored Export
	require.NoError(t, json.NewDecoder(bytes.NewReader(store.objects[key])).Decode(&stored))
	require.Len(t, stored.Habits, 1)
	assert.Equal(t, "Read", stored.Habits[0].Name)
	assert.NotContains(t, string(store.objects[key]), f.alice+`"`, "owner id is not serialized")
}

func TestExportService_Upload_Disabled(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	svc := NewExportService(f.svc, nil, time.Hour)
	assert.False(t, svc.UploadsEnabled())

	_, err := svc.Upload(context.Background(), f.alice)
	assert.ErrorIs(t, err, ErrExportStorageDisabled)
}

func TestExportService_Upload_StorageFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	boom := errors.New("bucket unavailable")
	svc := NewExportService(f.svc, &memoryStorage{saveErr: boom}, time.Hour)

	_, err := svc.Upload(context.Background(), f.alice)
	assert.ErrorIs(t, err, boom)
}
