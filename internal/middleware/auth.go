package middleware

import (
	"errors"
	"net/http"

	"github.com/templui/habits/internal/ctxkeys"
	"github.com/templui/habits/internal/logger"
	"github.com/templui/habits/internal/service"
)

// AuthMiddleware resolves the session token (bearer header or cookie) and adds
// the user to the context. Requests without a valid token continue anonymously;
// a store failure during the lookup ends the request with 504 or 500.
func AuthMiddleware(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := service.TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := authService.Authenticate(r.Context(), token)
			if err != nil {
				if !errors.Is(err, service.ErrUnauthenticated) {
					// Store failure, the token may still be good: keep the cookie.
					logger.FromContext(r.Context()).Error("failed to authenticate request", "error", err)
					writeServiceError(w, err)
					return
				}
				// Invalid token, clear cookie and continue
				authService.ClearJWTCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			ctx := ctxkeys.WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := ctxkeys.User(r.Context())
		if user == nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	}
}
