package routes

import (
	"net/http"

	"github.com/templui/habits/internal/app"
	"github.com/templui/habits/internal/handler"
	"github.com/templui/habits/internal/metrics"
	"github.com/templui/habits/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	auth := handler.NewAuthHandler(app.AuthService, app.Cfg)
	habit := handler.NewHabitHandler(app.HabitService)
	stats := handler.NewStatsHandler(app.StatsService)
	export := handler.NewExportHandler(app.ExportService)
	health := handler.NewHealthHandler(app.DB)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Health)
	mux.Handle("GET /metrics", metrics.Handler())

	// Auth - Authentication flow (rate limited)
	rateLimiter := middleware.RateLimitAuth()

	mux.HandleFunc("GET /auth/{provider}", rateLimiter(auth.Login))
	mux.HandleFunc("GET /auth/{provider}/callback", rateLimiter(auth.Callback))
	mux.HandleFunc("POST /auth/logout", auth.Logout)

	// ============================================================================
	// API ROUTES (/api/*, authenticated)
	// ============================================================================

	apiLimiter := middleware.NewAPIRateLimiter(app.Cfg.APIRateLimit, app.Cfg.APIRateBurst)
	api := func(h http.HandlerFunc) http.HandlerFunc {
		return apiLimiter.Limit(middleware.RequireAuth(h))
	}

	// Habits
	mux.HandleFunc("GET /api/habits", api(habit.List))
	mux.HandleFunc("POST /api/habits", api(habit.Create))
	mux.HandleFunc("GET /api/habits/count", api(habit.Count))
	mux.HandleFunc("GET /api/habits/{id}", api(habit.Get))
	mux.HandleFunc("PUT /api/habits/{id}", api(habit.Edit))
	mux.HandleFunc("DELETE /api/habits/{id}", api(habit.Delete))
	mux.HandleFunc("POST /api/habits/{id}/complete", api(habit.MarkComplete))
	mux.HandleFunc("DELETE /api/habits/{id}/complete", api(habit.MarkIncomplete))

	// Stats
	mux.HandleFunc("GET /api/stats", api(stats.Summary))
	mux.HandleFunc("GET /api/habits/{id}/calendar", api(stats.Calendar))

	// Export
	mux.HandleFunc("GET /api/export", api(export.Download))
	mux.HandleFunc("POST /api/export", api(export.Upload))

	// Account
	mux.HandleFunc("GET /api/me", api(auth.Me))
	mux.HandleFunc("DELETE /api/account", api(auth.DeleteAccount))

	// ============================================================================
	// FALLBACK
	// ============================================================================

	mux.HandleFunc("/", handler.NotFound)

	// Global middleware - executed in order (top to bottom)
	return middleware.Chain(
		mux,
		middleware.Recovery,
		middleware.RequestID,
		middleware.RequestLogging,
		middleware.Timeout(app.Cfg.RequestTimeout),
		middleware.AuthMiddleware(app.AuthService),
		metrics.InstrumentHandler, // Must wrap the mux directly (reads r.Pattern)
	)
}
