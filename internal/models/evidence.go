package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/core/evidence"
)

// Evidence is a photo or PDF attached to a report ("bukti foto"). Soft-deleted rows
// keep DeletedAt set and are hidden from default GORM queries.
type Evidence struct {
	ID         uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID   uuid.UUID          `gorm:"type:uuid;not null;index" json:"report_id"`
	PhotoURL   string             `gorm:"size:500;not null" json:"photo_url"`
	MediaKind  evidence.MediaKind `gorm:"size:10;not null" json:"media_kind"`
	SizeBytes  int64              `gorm:"not null" json:"size_bytes"`
	State      evidence.State     `gorm:"size:20;not null;index" json:"state"`
	UploadedBy uuid.UUID          `gorm:"type:uuid;not null" json:"-"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	DeletedAt  gorm.DeletedAt     `gorm:"index" json:"deleted_at,omitempty"`
}

func (e *Evidence) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (Evidence) TableName() string {
	return "evidence"
}

// EvidenceTombstone marks an evidence id as permanently deleted. It keeps no
// reference to the blob so the id can never resolve to content again.
type EvidenceTombstone struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID uuid.UUID `gorm:"type:uuid;not null;index" json:"report_id"`
	PurgedBy uuid.UUID `gorm:"type:uuid;not null" json:"purged_by"`
	PurgedAt time.Time `gorm:"not null" json:"purged_at"`
}

func (EvidenceTombstone) TableName() string {
	return "evidence_tombstones"
}
