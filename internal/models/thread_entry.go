package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/core/thread"
)

// ThreadEntry is a comment or a follow-up ("tindak lanjut"). Entries are append-only.
type ThreadEntry struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID   uuid.UUID         `gorm:"type:uuid;not null;index:idx_thread_report_kind_time,priority:1" json:"report_id"`
	Kind       thread.Kind       `gorm:"size:10;not null;index:idx_thread_report_kind_time,priority:2" json:"kind"`
	AuthorID   uuid.UUID         `gorm:"type:uuid;not null" json:"-"`
	AuthorRole thread.AuthorRole `gorm:"size:10;not null" json:"author_role"`
	Body       string            `gorm:"type:text;not null" json:"body"`
	PhotoURL   string            `gorm:"size:500" json:"photo_url,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index:idx_thread_report_kind_time,priority:3" json:"created_at"`

	Author User `gorm:"foreignKey:AuthorID" json:"-"`
}

func (t *ThreadEntry) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (ThreadEntry) TableName() string {
	return "thread_entries"
}
