package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pengaduan/pengaduan-backend/internal/services"
)

type StatsHandler struct {
	statsService *services.StatsService
}

func NewStatsHandler(statsService *services.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// Overview handles GET /admin/stats.
func (h *StatsHandler) Overview(c *fiber.Ctx) error {
	a, ok := currentActor(c)
	if !ok {
		return unauthorized(c)
	}
	stats, err := h.statsService.Overview(c.UserContext(), a)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// Trends handles GET /admin/stats/trends?by=month|week.
func (h *StatsHandler) Trends(c *fiber.Ctx) error {
	a, ok := currentActor(c)
	if !ok {
		return unauthorized(c)
	}
	trends, err := h.statsService.Trends(c.UserContext(), a, c.Query("by"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(trends)
}

// ByCategory handles GET /admin/stats/categories.
func (h *StatsHandler) ByCategory(c *fiber.Ctx) error {
	a, ok := currentActor(c)
	if !ok {
		return unauthorized(c)
	}
	rows, err := h.statsService.ByCategory(c.UserContext(), a)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rows)
}
