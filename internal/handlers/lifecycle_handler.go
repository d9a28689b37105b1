package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pengaduan/pengaduan-backend/internal/core/lifecycle"
	"github.com/pengaduan/pengaduan-backend/internal/dto"
	"github.com/pengaduan/pengaduan-backend/internal/services"
)

type LifecycleHandler struct {
	lifecycleService *services.LifecycleService
	reportService    *services.ReportService
}

func NewLifecycleHandler(lifecycleService *services.LifecycleService, reportService *services.ReportService) *LifecycleHandler {
	return &LifecycleHandler{lifecycleService: lifecycleService, reportService: reportService}
}

// Transition handles PATCH /admin/reports/:id/status and returns the history entry.
func (h *LifecycleHandler) Transition(c *fiber.Ctx) error {
	a, ok := currentActor(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := dto.Validate(req); err != nil {
		return respondError(c, err)
	}
	status, err := lifecycle.Parse(req.Status)
	if err != nil {
		return respondError(c, err)
	}

	entry, err := h.lifecycleService.Transition(c.UserContext(), a, id, status, req.Note)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ProjectStatusChange(*entry))
}

// Amend handles PATCH /admin/reports/:id.
func (h *LifecycleHandler) Amend(c *fiber.Ctx) error {
	a, ok := currentActor(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req dto.AmendReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := dto.Validate(req); err != nil {
		return respondError(c, err)
	}

	if _, err := h.lifecycleService.Amend(c.UserContext(), a, id, services.AmendInput{
		Title:            req.Title,
		Description:      req.Description,
		Wilayah:          req.Wilayah,
		Lokasi:           req.Lokasi,
		Latitude:         req.Latitude,
		Longitude:        req.Longitude,
		CategoryID:       req.CategoryID,
		ClearCategory:    req.ClearCategory,
		ClearCoordinates: req.ClearCoordinates,
	}); err != nil {
		return respondError(c, err)
	}

	report, err := h.reportService.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ProjectReport(*report, a))
}
