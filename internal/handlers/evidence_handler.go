package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/pengaduan/pengaduan-backend/internal/actor"
	"github.com/pengaduan/pengaduan-backend/internal/apperr"
	"github.com/pengaduan/pengaduan-backend/internal/core/evidence"
	"github.com/pengaduan/pengaduan-backend/internal/dto"
	"github.com/pengaduan/pengaduan-backend/internal/models"
	"github.com/pengaduan/pengaduan-backend/internal/services"
)

type EvidenceHandler struct {
	evidenceService *services.EvidenceService
	blobs           services.BlobStore
	maxBytes        int64
}

func NewEvidenceHandler(evidenceService *services.EvidenceService, blobs services.BlobStore, maxBytes int64) *EvidenceHandler {
	return &EvidenceHandler{evidenceService: evidenceService, blobs: blobs, maxBytes: maxBytes}
}

// Upload handles POST /reports/:id/evidence. The optional evidence_id form field
// makes a retried upload return the evidence created by the first attempt.
func (h *EvidenceHandler) Upload(c *fiber.Ctx) error {
	a, ok := currentActor(c)
	if !ok {
		return unauthorized(c)
	}
	reportID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var evidenceID *uuid.UUID
	if raw := c.FormValue("evidence_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return respondError(c, apperr.Invalid("evidence_id", "must be a UUID"))
		}
		evidenceID = &id
	}

	fh, err := c.FormFile(evidenceField)
	if err != nil {
		return respondError(c, apperr.Invalid(evidenceField, "file is required"))
	}
	contentType := fh.Header.Get(fiber.HeaderContentType)
	if _, ok := evidence.KindFromMIME(contentType); !ok {
		return respondError(c, apperr.Invalid(evidenceField, "only images and PDF files are accepted"))
	}
	if fh.Size > h.maxBytes {
		return respondError(c, apperr.Invalid(evidenceField, fmt.Sprintf("file exceeds %d MB", h.maxBytes/(1024*1024))))
	}

	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "Failed to read uploaded file")
	}
	defer f.Close()

	ref, err := h.blobs.Put(c.UserContext(), fh.Filename, f)
	if err != nil {
		return respondError(c, err)
	}

	ev, err := h.evidenceService.Attach(c.UserContext(), a, reportID, services.FileRef{
		Path:        ref,
		ContentType: contentType,
		Size:        fh.Size,
	}, evidenceID)
	if err != nil || ev.PhotoURL != ref {
		h.discard(c.UserContext(), ref)
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ProjectEvidence(*ev))
}

func (h *EvidenceHandler) discard(ctx context.Context, ref string) {
	if err := h.blobs.Delete(context.WithoutCancel(ctx), ref); err != nil {
		slog.Warn("failed to remove unused blob", "ref", ref, "error", err)
	}
}

// List handles GET /reports/:id/evidence?include_deleted=true.
func (h *EvidenceHandler) List(c *fiber.Ctx) error {
	reportID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	items, err := h.evidenceService.List(c.UserContext(), viewer(c), reportID, c.QueryBool("include_deleted", false))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.EvidenceResponse, 0, len(items))
	for _, ev := range items {
		out = append(out, dto.ProjectEvidence(ev))
	}
	return c.JSON(out)
}

// SoftDelete handles DELETE /admin/evidence/:id.
func (h *EvidenceHandler) SoftDelete(c *fiber.Ctx) error {
	return h.apply(c, h.evidenceService.SoftDelete)
}

// Restore handles POST /admin/evidence/:id/restore.
func (h *EvidenceHandler) Restore(c *fiber.Ctx) error {
	return h.apply(c, h.evidenceService.Restore)
}

// Purge handles DELETE /admin/evidence/:id/permanent.
func (h *EvidenceHandler) Purge(c *fiber.Ctx) error {
	return h.apply(c, h.evidenceService.PermanentlyDelete)
}

type evidenceAction func(context.Context, actor.Actor, uuid.UUID) (*models.Evidence, error)

func (h *EvidenceHandler) apply(c *fiber.Ctx, action evidenceAction) error {
	a, ok := currentActor(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ev, err := action(c.UserContext(), a, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ProjectEvidence(*ev))
}

// Stats handles GET /admin/evidence/stats.
func (h *EvidenceHandler) Stats(c *fiber.Ctx) error {
	a, ok := currentActor(c)
	if !ok {
		return unauthorized(c)
	}
	stats, err := h.evidenceService.Stats(c.UserContext(), a)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}
