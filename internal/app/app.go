package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/templui/habits/internal/config"
	"github.com/templui/habits/internal/db"
	"github.com/templui/habits/internal/repository"
	"github.com/templui/habits/internal/service"
	"github.com/templui/habits/internal/storage"
)

type App struct {
	Cfg           *config.Config
	DB            *sqlx.DB
	AuthService   *service.AuthService
	HabitService  *service.HabitService
	StatsService  *service.StatsService
	ExportService *service.ExportService
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.RunMigrations(ctx, database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Repositories
	userRepository := repository.NewUserRepository(database)
	habitRepository := repository.NewHabitRepository(database)

	// Storage (optional, only needed for export uploads)
	exportStorage, err := storage.New(cfg)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Services
	authService := service.NewAuthService(userRepository, cfg.JWTSecret, cfg.JWTExpiry, cfg.SecureCookies)
	habitService := service.NewHabitService(habitRepository, cfg.Location())
	statsService := service.NewStatsService(habitService)
	exportService := service.NewExportService(habitService, exportStorage, cfg.S3PresignExpiry)

	return &App{
		Cfg:           cfg,
		DB:            database,
		AuthService:   authService,
		HabitService:  habitService,
		StatsService:  statsService,
		ExportService: exportService,
	}, nil
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
