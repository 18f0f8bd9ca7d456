package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/habits/internal/ctxkeys"
	"github.com/templui/habits/internal/db/dbtest"
	"github.com/templui/habits/internal/model"
	"github.com/templui/habits/internal/repository"
	"github.com/templui/habits/internal/service"
	"golang.org/x/time/rate"
)

func ok(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error.Code
}

// ---------------------------------------------------------------------------
// Chain
// ---------------------------------------------------------------------------

func TestChain_Order(t *testing.T) {
	t.Parallel()

	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(ok), mw("a"), mw("b"), mw("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "c"}, order)
}

// ---------------------------------------------------------------------------
// RequestID / Recovery / Timeout
// ---------------------------------------------------------------------------

func TestRequestID(t *testing.T) {
	t.Parallel()

	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ctxkeys.RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", decodeErrorCode(t, rec))
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	var deadline time.Time
	var hasDeadline bool
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, hasDeadline = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.True(t, hasDeadline)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)

	h = Timeout(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, hasDeadline)
}

func TestRequestLogging_PassesThrough(t *testing.T) {
	t.Parallel()

	h := RequestLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/habits", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	database := dbtest.New(t)
	auth := service.NewAuthService(repository.NewUserRepository(database), "test-secret-that-is-long-enough-1234", time.Hour, false)
	user, err := auth.AuthenticateOAuth(context.Background(), "a@example.com", "A", "github")
	require.NoError(t, err)
	token, err := auth.GenerateJWT(user)
	require.NoError(t, err)

	var got *model.User
	h := AuthMiddleware(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ctxkeys.User(r.Context())
	}))

	t.Run("bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		h.ServeHTTP(httptest.NewRecorder(), req)
		require.NotNil(t, got)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
		h.ServeHTTP(httptest.NewRecorder(), req)
		require.NotNil(t, got)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("invalid token clears cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: "garbage"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Nil(t, got)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Empty(t, cookies[0].Value)
	})

	t.Run("anonymous", func(t *testing.T) {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Nil(t, got)
	})

	t.Run("store timeout keeps cookie", func(t *testing.T) {
		slow := service.NewAuthService(failingUsers{err: context.DeadlineExceeded}, "test-secret-that-is-long-enough-1234", time.Hour, false)
		called := false
		h := AuthMiddleware(slow)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
		assert.Equal(t, "timeout", decodeErrorCode(t, rec))
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("store failure is internal", func(t *testing.T) {
		broken := service.NewAuthService(failingUsers{err: errors.New("disk I/O error")}, "test-secret-that-is-long-enough-1234", time.Hour, false)
		h := AuthMiddleware(broken)(http.HandlerFunc(ok))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal", decodeErrorCode(t, rec))
		assert.Empty(t, rec.Result().Cookies())
	})
}

// failingUsers is a user repository whose lookups always fail with err.
type failingUsers struct {
	repository.UserRepository
	err error
}

func (f failingUsers) ByID(context.Context, string) (*model.User, error) {
	return nil, f.err
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	h := RequireAuth(ok)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", decodeErrorCode(t, rec))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ctxkeys.WithUser(req.Context(), &model.User{ID: "u1"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// ---------------------------------------------------------------------------
// Rate limiting
// ---------------------------------------------------------------------------

func TestRateLimiter_Burst(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(rate.Every(time.Hour), 2)
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"))
}

func TestRateLimiter_CleanupDropsIdleKeys(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(rate.Every(90*time.Second), 10)
	rl.Allow("1.2.3.4")
	rl.Allow("5.6.7.8")

	rl.mu.Lock()
	rl.clients["1.2.3.4"].lastSeen = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	rl.cleanup(time.Now())

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.clients, "1.2.3.4")
	assert.Contains(t, rl.clients, "5.6.7.8")
}

func TestRateLimitAuth(t *testing.T) {
	t.Parallel()

	h := RateLimitAuth()(ok)
	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/auth/github", nil)
		req.Header.Set("X-Real-IP", ip)
		rec := httptest.NewRecorder()
		h(rec, req)
		return rec
	}

	for range 10 {
		assert.Equal(t, http.StatusNoContent, call("10.0.0.9").Code)
	}
	rec := call("10.0.0.9")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decodeErrorCode(t, rec))

	assert.Equal(t, http.StatusNoContent, call("10.0.0.10").Code)
}

func TestAPIRateLimiter_KeysByUser(t *testing.T) {
	t.Parallel()

	rl := NewAPIRateLimiter(1, 2)
	h := rl.Limit(ok)

	request := func(userID string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/habits", nil)
		if userID != "" {
			req = req.WithContext(ctxkeys.WithUser(req.Context(), &model.User{ID: userID}))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, request("alice"))
	assert.Equal(t, http.StatusNoContent, request("alice"))
	assert.Equal(t, http.StatusTooManyRequests, request("alice"))

	assert.Equal(t, http.StatusNoContent, request("bob"), "users have separate buckets")
	assert.Equal(t, http.StatusNoContent, request(""), "anonymous clients are keyed by IP")
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", clientIP(r))

	r.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", clientIP(r))

	r.Header.Set("X-Forwarded-For", "10.0.0.3, 10.0.0.4")
	assert.Equal(t, "10.0.0.3", clientIP(r))
}
