package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/pengaduan/pengaduan-backend/internal/actor"
	"github.com/pengaduan/pengaduan-backend/internal/apperr"
	"github.com/pengaduan/pengaduan-backend/internal/dto"
)

// respondError maps engine errors onto HTTP statuses. Anything unrecognised is
// logged and reported as a bare 500.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: apperr.ErrValidation.Error(), Fields: apperr.Fields(err),
		})
	case errors.Is(err, apperr.ErrLimitExceeded):
		status = fiber.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		status = fiber.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidTransition),
		errors.Is(err, apperr.ErrInvalidState),
		errors.Is(err, apperr.ErrConflict):
		status = fiber.StatusConflict
	}

	if status == fiber.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"request_id", requestID(c),
			"error", err.Error(),
		)
		return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: "Internal server error"})
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: msg})
}

func currentActor(c *fiber.Ctx) (actor.Actor, bool) {
	a, err := actor.FromCtx(c)
	return a, err == nil
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: true, Message: "Unauthorized"})
}

// viewer returns the authenticated actor when there is one and actor.Anonymous otherwise.
func viewer(c *fiber.Ctx) actor.Actor {
	if a, err := actor.FromCtx(c); err == nil {
		return a
	}
	return actor.Anonymous
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.Invalid(name, "must be a UUID")
	}
	return id, nil
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}
