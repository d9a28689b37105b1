package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pengaduan/pengaduan-backend/internal/metrics"
)

// Metrics records request counts and latency keyed by the matched route pattern,
// so /reports/:id is one series regardless of the id.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		metrics.RequestStarted()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		endpoint := "unknown"
		if r := c.Route(); r != nil && r.Path != "" {
			endpoint = r.Path
		}
		metrics.RequestFinished(c.Method(), endpoint, status, time.Since(start))
		return err
	}
}
