package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/pengaduan/pengaduan-backend/internal/config"
)

// CORS allows the citizen portal and the admin dashboard origins. Credentials
// are only allowed for an explicit origin list; fiber rejects them with "*".
func CORS(cfg *config.Config) fiber.Handler {
	origins := strings.TrimSpace(cfg.CORSOrigins)
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Authorization, Accept, X-Request-ID",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders:    "X-Request-ID, Retry-After, X-Ratelimit-Remaining",
		AllowCredentials: origins != "*" && origins != "",
		MaxAge:           600,
	})
}
