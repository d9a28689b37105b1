package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/config"
	"github.com/pengaduan/pengaduan-backend/internal/database"
	"github.com/pengaduan/pengaduan-backend/internal/logging"
	"github.com/pengaduan/pengaduan-backend/internal/notify"
	"github.com/pengaduan/pengaduan-backend/internal/server"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.AppEnv)

	if err := run(cfg); err != nil {
		slog.Error("pengaduan server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if cfg.DBPassword == "" {
		return errors.New("DB_PASSWORD environment variable is required")
	}

	if err := database.Connect(cfg); err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer closeDB(database.DB)
	if err := database.Migrate(database.DB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// ERROR+ records are also batched into system_logs.
	pgLog := logging.NewPGHandler(database.DB)
	defer pgLog.Stop()
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		logging.NewJSONHandler(os.Stdout, cfg.AppEnv),
		pgLog,
	)))

	cleanupDone := make(chan struct{})
	defer close(cleanupDone)
	logging.StartCleanup(database.DB, cfg.LogRetentionDays, cleanupDone)

	initSentry(cfg)
	defer sentry.Flush(2 * time.Second)

	stopDispatch, err := startDispatcher(cfg, database.DB)
	if err != nil {
		return err
	}
	defer stopDispatch()

	app := server.New(cfg, database.DB, server.Options{Ping: database.Ping, AccessLog: true})

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv)
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-listenErr:
		return fmt.Errorf("listen: %w", err)
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	}

	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

func initSentry(cfg *config.Config) {
	if cfg.SentryDSN == "" {
		return
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		EnableTracing:    true,
		TracesSampleRate: 0.2,
		Environment:      cfg.AppEnv,
	}); err != nil {
		slog.Error("sentry init failed", "error", err)
	}
}

// startDispatcher drains the report_events outbox until the returned stop
// function is called. Stop blocks until the loop has returned and the
// publisher is closed.
func startDispatcher(cfg *config.Config, db *gorm.DB) (func(), error) {
	publisher, closePublisher, err := notify.NewPublisher(cfg.RedisURL, cfg.NotifyChannel)
	if err != nil {
		return nil, fmt.Errorf("notification publisher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		notify.NewDispatcher(db, publisher, cfg.DispatchInterval).Run(ctx)
	}()

	return func() {
		cancel()
		<-done
		if err := closePublisher(); err != nil {
			slog.Error("publisher close error", "error", err)
		}
	}, nil
}

func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}
}
