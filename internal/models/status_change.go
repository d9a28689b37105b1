package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/core/lifecycle"
)

// StatusChange is one immutable riwayat entry. ActorID is nil for the entry
// synthesized at creation; ResolvedAdminID snapshots the disposition at the time
// of the change (nil = superadmin).
type StatusChange struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID        uuid.UUID        `gorm:"type:uuid;not null;index:idx_status_changes_report_time,priority:1" json:"report_id"`
	Status          lifecycle.Status `gorm:"size:20;not null" json:"status"`
	ActorID         *uuid.UUID       `gorm:"type:uuid" json:"actor_id"`
	ResolvedAdminID *uuid.UUID       `gorm:"type:uuid" json:"resolved_admin_id"`
	Note            string           `gorm:"type:text" json:"note"`
	IdempotencyKey  string           `gorm:"size:160;not null;uniqueIndex" json:"-"`
	CreatedAt       time.Time        `gorm:"not null;index:idx_status_changes_report_time,priority:2" json:"created_at"`
}

func (s *StatusChange) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (StatusChange) TableName() string {
	return "status_changes"
}
