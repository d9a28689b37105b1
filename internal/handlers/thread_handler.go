package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/pengaduan/pengaduan-backend/internal/apperr"
	"github.com/pengaduan/pengaduan-backend/internal/core/evidence"
	"github.com/pengaduan/pengaduan-backend/internal/core/thread"
	"github.com/pengaduan/pengaduan-backend/internal/dto"
	"github.com/pengaduan/pengaduan-backend/internal/services"
)

const followUpPhotoField = "photo"

type ThreadHandler struct {
	threadService *services.ThreadService
	reportService *services.ReportService
	blobs         services.BlobStore
	maxBytes      int64
}

func NewThreadHandler(threadService *services.ThreadService, reportService *services.ReportService, blobs services.BlobStore, maxBytes int64) *ThreadHandler {
	return &ThreadHandler{threadService: threadService, reportService: reportService, blobs: blobs, maxBytes: maxBytes}
}

// AddComment handles POST /reports/:id/comments.
func (h *ThreadHandler) AddComment(c *fiber.Ctx) error {
	a, ok := currentActor(c)
	if !ok {
		return unauthorized(c)
	}
	reportID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := dto.Validate(req); err != nil {
		return respondError(c, err)
	}

	entry, err := h.threadService.AddComment(c.UserContext(), a, reportID, req.Text)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ProjectOwnThreadEntry(*entry))
}

// AddFollowUp handles POST /admin/reports/:id/followups (multipart, optional "photo").
func (h *ThreadHandler) AddFollowUp(c *fiber.Ctx) error {
	a, ok := currentActor(c)
	if !ok {
		return unauthorized(c)
	}
	reportID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req dto.FollowUpRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := dto.Validate(req); err != nil {
		return respondError(c, err)
	}

	var photoRef string
	if fh, err := c.FormFile(followUpPhotoField); err == nil {
		kind, ok := evidence.KindFromMIME(fh.Header.Get(fiber.HeaderContentType))
		if !ok || kind != evidence.MediaImage {
			return respondError(c, apperr.Invalid(followUpPhotoField, "only images are accepted"))
		}
		if fh.Size > h.maxBytes {
			return respondError(c, apperr.Invalid(followUpPhotoField, fmt.Sprintf("file exceeds %d MB", h.maxBytes/(1024*1024))))
		}
		f, err := fh.Open()
		if err != nil {
			return badRequest(c, "Failed to read uploaded file")
		}
		defer f.Close()
		if photoRef, err = h.blobs.Put(c.UserContext(), fh.Filename, f); err != nil {
			return respondError(c, err)
		}
	}

	entry, err := h.threadService.AddFollowUp(c.UserContext(), a, reportID, req.Deskripsi, photoRef)
	if err != nil {
		if photoRef != "" {
			if derr := h.blobs.Delete(context.WithoutCancel(c.UserContext()), photoRef); derr != nil {
				slog.Warn("failed to remove unused blob", "ref", photoRef, "error", derr)
			}
		}
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ProjectOwnThreadEntry(*entry))
}

// ListComments handles GET /reports/:id/comments.
func (h *ThreadHandler) ListComments(c *fiber.Ctx) error {
	return h.list(c, thread.KindComment)
}

// ListFollowUps handles GET /reports/:id/followups.
func (h *ThreadHandler) ListFollowUps(c *fiber.Ctx) error {
	return h.list(c, thread.KindFollowUp)
}

func (h *ThreadHandler) list(c *fiber.Ctx, kind thread.Kind) error {
	reportID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	report, err := h.reportService.Get(c.UserContext(), reportID)
	if err != nil {
		return respondError(c, err)
	}
	entries, err := h.threadService.List(c.UserContext(), reportID, kind)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ProjectThread(entries, *report, viewer(c)))
}
