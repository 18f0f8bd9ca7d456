package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/habits/internal/ctxkeys"
)

func TestNew_ProductionWritesJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false, "")

	l.Debug("hidden")
	l.Info("habit created", "habit_id", "h1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "habit created", entry["msg"])
	assert.Equal(t, "h1", entry["habit_id"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_DevelopmentWritesTextAtDebug(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, true, "")

	l.Debug("visible")

	assert.Contains(t, buf.String(), "msg=visible")
}

func TestFromContext_AddsRequestID(t *testing.T) {
	ctx := ctxkeys.WithRequestID(context.Background(), "req-123")
	l := FromContext(ctx)
	require.NotNil(t, l)

	assert.NotSame(t, l, FromContext(context.Background()))
}
