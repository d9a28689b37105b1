package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/core/lifecycle"
)

const EventStatusChanged = "report.status_changed"

// ReportEvent is a transactional outbox row; the unique key guarantees one event per
// transition even when the request is retried.
type ReportEvent struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID       uuid.UUID        `gorm:"type:uuid;not null;index" json:"report_id"`
	Kind           string           `gorm:"size:50;not null" json:"kind"`
	Status         lifecycle.Status `gorm:"size:20;not null" json:"status"`
	IdempotencyKey string           `gorm:"size:160;not null;uniqueIndex" json:"idempotency_key"`
	Payload        datatypes.JSON   `gorm:"type:jsonb" json:"payload"`
	Attempts       int              `gorm:"not null" json:"attempts"`
	CreatedAt      time.Time        `gorm:"not null;index" json:"created_at"`
	PublishedAt    *time.Time       `gorm:"index" json:"published_at"`
}

func (e *ReportEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (ReportEvent) TableName() string {
	return "report_events"
}
