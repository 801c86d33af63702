package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"service-scheduling/internal/app"
	"service-scheduling/internal/config"
	servicemigrations "service-scheduling/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	if err := db.Ping(); err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	logger.Debug("database connection successful")

	if err := servicemigrations.Up(db); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Debug("migrations completed")

	application, err := app.New(db, cfg, logger)
	if err != nil {
		logger.Fatal("failed to wire application", zap.Error(err))
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("service-scheduling running",
		zap.String("env", cfg.Env),
		zap.Duration("dispatch_interval", cfg.DispatchInterval),
	)
	application.RunDispatcher(shutdownCtx)
	logger.Info("service-scheduling stopped")
}

func buildLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
