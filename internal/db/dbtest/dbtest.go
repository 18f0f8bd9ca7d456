// Package dbtest provides migrated SQLite databases for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/templui/habits/internal/db"
)

// New returns a fresh, fully migrated SQLite database in t's temp dir.
func New(t testing.TB) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "habits.db")
	database, err := db.Init("sqlite", path+"?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = database.Close()
	})

	err = db.RunMigrations(context.Background(), database.DB, "sqlite")
	require.NoError(t, err)

	return database
}

// CreateUser inserts a user row so habits can reference it.
func CreateUser(t testing.TB, database *sqlx.DB, email string) string {
	t.Helper()

	id := uuid.New().String()
	_, err := database.Exec(
		`INSERT INTO users (id, email, name, provider, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, email, "", "test", time.Now().UTC(),
	)
	require.NoError(t, err)
	return id
}
