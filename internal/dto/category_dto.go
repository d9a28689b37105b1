package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/pengaduan/pengaduan-backend/internal/models"
)

// CategoryRequest carries the responsible admin as a list so that multi-admin
// payloads can be rejected explicitly instead of silently truncated.
type CategoryRequest struct {
	Name     string      `json:"name" validate:"required,max=120"`
	AdminIDs []uuid.UUID `json:"admin_ids"`
}

type AssignAdminRequest struct {
	AdminIDs []uuid.UUID `json:"admin_ids"`
}

type CategoryResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	ResponsibleAdminID *uuid.UUID `json:"responsible_admin_id"`
	CreatedAt          time.Time  `json:"created_at"`
}

type AdminResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func ProjectCategory(c models.Category) CategoryResponse {
	return CategoryResponse{ID: c.ID, Name: c.Name, ResponsibleAdminID: c.ResponsibleAdminID, CreatedAt: c.CreatedAt}
}
