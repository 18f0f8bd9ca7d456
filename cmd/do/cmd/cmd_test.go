package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-1234"

// setupEnv points config at a fresh SQLite file. Tests using it cannot run in
// parallel because they set process environment.
func setupEnv(t *testing.T) {
	t.Helper()

	t.Setenv("APP_ENV", "development")
	t.Setenv("APP_URL", "http://localhost:8090")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_CONNECTION", filepath.Join(t.TempDir(), "habits.db")+"?_pragma=foreign_keys(1)")
	t.Setenv("S3_BUCKET", "")
	t.Setenv("SENTRY_DSN", "")
}

func run(t *testing.T, args ...string) string {
	t.Helper()

	root := &cobra.Command{Use: "do", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(MigrateCmd(), TokenCmd())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	require.NoError(t, root.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func userIDFromToken(t *testing.T, token string) string {
	t.Helper()

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(testSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	require.NoError(t, err)

	id, _ := claims["user_id"].(string)
	return id
}

// ---------------------------------------------------------------------------
// migrate
// ---------------------------------------------------------------------------

func TestMigrateCmd_UpThenStatus(t *testing.T) {
	setupEnv(t)

	run(t, "migrate", "up")
	out := run(t, "migrate", "status")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3, out)
	assert.Contains(t, lines[0], "VERSION")
	assert.Contains(t, lines[1], "create_users")
	assert.Contains(t, lines[1], "true")
	assert.Contains(t, lines[2], "create_habits")
	assert.Contains(t, lines[2], "true")
}

func TestMigrateCmd_StatusBeforeUp(t *testing.T) {
	setupEnv(t)

	out := run(t, "migrate", "status")
	assert.Contains(t, out, "create_users")
	assert.Contains(t, out, "false")
	assert.NotContains(t, out, "true")
}

// ---------------------------------------------------------------------------
// token
// ---------------------------------------------------------------------------

func TestTokenCmd_ReusesUser(t *testing.T) {
	setupEnv(t)

	first := strings.TrimSpace(run(t, "token", "A@Example.com", "--name", "A"))
	second := strings.TrimSpace(run(t, "token", "a@example.com"))

	firstID := userIDFromToken(t, first)
	require.NotEmpty(t, firstID)
	assert.Equal(t, firstID, userIDFromToken(t, second))
}

func TestTokenCmd_InvalidEmail(t *testing.T) {
	setupEnv(t)

	root := &cobra.Command{Use: "do", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(TokenCmd())
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"token", "not-an-email"})

	assert.Error(t, root.ExecuteContext(context.Background()))
}
