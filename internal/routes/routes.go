package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/config"
	"github.com/pengaduan/pengaduan-backend/internal/handlers"
	"github.com/pengaduan/pengaduan-backend/internal/middleware"
)

type Handlers struct {
	Health    *handlers.HealthHandler
	Reports   *handlers.ReportHandler
	Lifecycle *handlers.LifecycleHandler
	Evidence  *handlers.EvidenceHandler
	Thread    *handlers.ThreadHandler
	Category  *handlers.CategoryHandler
	Stats     *handlers.StatsHandler
}

func Setup(app *fiber.App, cfg *config.Config, db *gorm.DB, h Handlers) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", h.Health.Check)

	// Public reads
	api.Get("/categories", h.Category.List)
	api.Get("/reports/public", h.Reports.Public)
	api.Get("/reports/track", h.Reports.Track)
	api.Get("/reports/:id/followups", h.Thread.ListFollowUps)

	// Protected routes take their middleware per route so public reads stay untouched
	jwt := middleware.JWTProtected(cfg)
	loadActor := middleware.LoadActor(db)

	// Report submission: 10 req/min per IP (stricter)
	submitLimit := limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})
	api.Post("/reports", submitLimit, jwt, loadActor, h.Reports.Create)
	api.Get("/reports/my", jwt, loadActor, h.Reports.Mine)
	api.Get("/reports/:id", jwt, loadActor, h.Reports.Get)
	api.Post("/reports/:id/evidence", jwt, loadActor, h.Evidence.Upload)
	api.Get("/reports/:id/evidence", jwt, loadActor, h.Evidence.List)
	api.Post("/reports/:id/comments", jwt, loadActor, h.Thread.AddComment)
	api.Get("/reports/:id/comments", jwt, loadActor, h.Thread.ListComments)

	// Per-report authorization is decided by disposition inside the services
	admin := api.Group("/admin", jwt, loadActor, middleware.RequireStaff())
	admin.Get("/reports", h.Reports.Query)
	admin.Patch("/reports/:id/status", h.Lifecycle.Transition)
	admin.Patch("/reports/:id", h.Lifecycle.Amend)
	admin.Post("/reports/:id/followups", h.Thread.AddFollowUp)

	admin.Get("/evidence/stats", h.Evidence.Stats)
	admin.Delete("/evidence/:id", h.Evidence.SoftDelete)
	admin.Post("/evidence/:id/restore", h.Evidence.Restore)
	admin.Delete("/evidence/:id/permanent", h.Evidence.Purge)

	admin.Get("/stats", h.Stats.Overview)
	admin.Get("/stats/trends", h.Stats.Trends)
	admin.Get("/stats/categories", h.Stats.ByCategory)

	admin.Get("/admins", h.Category.Admins)
	admin.Post("/categories", h.Category.Create)
	admin.Put("/categories/:id", h.Category.Update)
	admin.Put("/categories/:id/admin", h.Category.AssignAdmin)
	admin.Delete("/categories/:id", h.Category.Delete)
}
