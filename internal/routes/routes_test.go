package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/habits/internal/app"
	"github.com/templui/habits/internal/config"
)

func newServer(t *testing.T) (*httptest.Server, *app.App) {
	t.Helper()

	cfg := &config.Config{
		AppName:         "Habits",
		AppEnv:          "development",
		AppURL:          "http://localhost:8090",
		Timezone:        "UTC",
		DBDriver:        "sqlite",
		DBConnection:    filepath.Join(t.TempDir(), "habits.db") + "?_pragma=foreign_keys(1)",
		JWTSecret:       "test-secret-that-is-long-enough-1234",
		JWTExpiry:       time.Hour,
		RequestTimeout:  5 * time.Second,
		APIRateLimit:    100,
		APIRateBurst:    100,
		GitHubClientID:  "gh-client",
		S3PresignExpiry: time.Hour,
	}

	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	srv := httptest.NewServer(SetupRoutes(a))
	t.Cleanup(srv.Close)
	return srv, a
}

func bearer(t *testing.T, a *app.App, email string) string {
	t.Helper()

	user, err := a.AuthService.AuthenticateOAuth(context.Background(), email, "", "github")
	require.NoError(t, err)
	token, err := a.AuthService.GenerateJWT(user)
	require.NoError(t, err)
	return token
}

func do(t *testing.T, srv *httptest.Server, method, path, token, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRoutes_HabitLifecycle(t *testing.T) {
	t.Parallel()
	srv, a := newServer(t)
	token := bearer(t, a, "alice@example.com")

	resp := do(t, srv, http.MethodPost, "/api/habits", token, `{"name":"Read","description":"20 pages"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var habit struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&habit))

	resp = do(t, srv, http.MethodPost, "/api/habits/"+habit.ID+"/complete", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/habits/count", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var count map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&count))
	assert.Equal(t, 1, count["count"])

	resp = do(t, srv, http.MethodGet, "/api/habits/"+habit.ID+"/calendar?days=3", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/stats", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.EqualValues(t, 1, summary["longestStreak"])

	resp = do(t, srv, http.MethodDelete, "/api/habits/"+habit.ID+"/complete", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodDelete, "/api/habits/"+habit.ID, token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/habits/"+habit.ID, token, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoutes_RequireAuthentication(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t)

	for _, path := range []string{"/api/habits", "/api/habits/count", "/api/stats", "/api/export", "/api/me"} {
		resp := do(t, srv, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	resp := do(t, srv, http.MethodGet, "/api/habits", "not-a-token", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRoutes_CrossUser(t *testing.T) {
	t.Parallel()
	srv, a := newServer(t)
	alice := bearer(t, a, "alice@example.com")
	bob := bearer(t, a, "bob@example.com")

	resp := do(t, srv, http.MethodPost, "/api/habits", alice, `{"name":"Read"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var habit struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&habit))

	resp = do(t, srv, http.MethodPut, "/api/habits/"+habit.ID, bob, `{"name":"Mine"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/habits", bob, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Empty(t, list)
}

func TestRoutes_Public(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t)

	resp := do(t, srv, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/auth/github", "", "")
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "github.com/login/oauth/authorize")

	resp = do(t, srv, http.MethodGet, "/auth/google", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "google is not configured")

	resp = do(t, srv, http.MethodGet, "/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoutes_DeleteAccount(t *testing.T) {
	t.Parallel()
	srv, a := newServer(t)
	token := bearer(t, a, "alice@example.com")

	resp := do(t, srv, http.MethodDelete, "/api/account", token, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/me", token, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
