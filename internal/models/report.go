package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/core/lifecycle"
)

// Report is a citizen complaint ("pengaduan"). Reports are never deleted.
type Report struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	TrackingID  string           `gorm:"size:20;not null;uniqueIndex" json:"tracking_id"`
	Title       string           `gorm:"size:255;not null" json:"title"`
	Description string           `gorm:"type:text;not null" json:"description"`
	CategoryID  *uuid.UUID       `gorm:"type:uuid;index" json:"category_id"`
	Wilayah     string           `gorm:"size:120;not null;index" json:"wilayah"`
	Lokasi      string           `gorm:"size:255" json:"lokasi"`
	Latitude    *float64         `json:"latitude"`
	Longitude   *float64         `json:"longitude"`
	IsAnonymous bool             `gorm:"not null" json:"is_anonymous"`
	Status      lifecycle.Status `gorm:"size:20;not null;index" json:"status"`
	SubmitterID uuid.UUID        `gorm:"type:uuid;not null;index" json:"-"`
	Version     int              `gorm:"not null" json:"-"`
	CreatedAt   time.Time        `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`

	Category  *Category      `gorm:"foreignKey:CategoryID" json:"-"`
	Submitter User           `gorm:"foreignKey:SubmitterID" json:"-"`
	History   []StatusChange `gorm:"foreignKey:ReportID" json:"-"`
	Evidence  []Evidence     `gorm:"foreignKey:ReportID" json:"-"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ResponsibleAdminID is the category's current admin, nil when unassigned.
// Category must be preloaded.
func (r Report) ResponsibleAdminID() *uuid.UUID {
	if r.Category == nil {
		return nil
	}
	return r.Category.ResponsibleAdminID
}
