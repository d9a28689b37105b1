// Package server assembles the Fiber application from configuration and a database.
package server

import (
	"log/slog"
	"path/filepath"

	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/config"
	"github.com/pengaduan/pengaduan-backend/internal/handlers"
	"github.com/pengaduan/pengaduan-backend/internal/middleware"
	"github.com/pengaduan/pengaduan-backend/internal/routes"
	"github.com/pengaduan/pengaduan-backend/internal/services"
)

type Options struct {
	// Blobs defaults to a LocalBlobStore under cfg.UploadDir.
	Blobs services.BlobStore
	// Ping reports database health; defaults to pinging db.
	Ping func() error
	// AccessLog enables the per-request log line.
	AccessLog bool
}

func New(cfg *config.Config, db *gorm.DB, opts Options) *fiber.App {
	blobs := opts.Blobs
	if blobs == nil {
		blobs = services.NewLocalBlobStore(cfg.UploadDir)
	}
	ping := opts.Ping
	if ping == nil {
		ping = func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Ping()
		}
	}

	// Services
	reportService := services.NewReportService(db, cfg, blobs)
	lifecycleService := services.NewLifecycleService(db, cfg.TransitionBucket)
	evidenceService := services.NewEvidenceService(db, blobs, cfg.MaxEvidenceFiles)
	threadService := services.NewThreadService(db, cfg.CommentMaxRunes)
	dispositionService := services.NewDispositionService(db)
	statsService := services.NewStatsService(db, cfg.TrendMonths)

	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.BodyLimitBytes,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))
	app.Use(recover.New())
	app.Use(requestid.New())
	if opts.AccessLog {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${locals:requestid}\n",
		}))
	}
	app.Use(middleware.Metrics())
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})
	app.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Stored evidence is referenced as "<upload dir name>/<file>"
	app.Static("/"+filepath.Base(cfg.UploadDir), cfg.UploadDir, fiber.Static{Browse: false})

	routes.Setup(app, cfg, db, routes.Handlers{
		Health:    handlers.NewHealthHandler(ping),
		Reports:   handlers.NewReportHandler(reportService),
		Lifecycle: handlers.NewLifecycleHandler(lifecycleService, reportService),
		Evidence:  handlers.NewEvidenceHandler(evidenceService, blobs, cfg.MaxEvidenceBytes),
		Thread:    handlers.NewThreadHandler(threadService, reportService, blobs, cfg.MaxEvidenceBytes),
		Category:  handlers.NewCategoryHandler(dispositionService),
		Stats:     handlers.NewStatsHandler(statsService),
	})
	return app
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
