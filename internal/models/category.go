package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category routes reports to at most one responsible admin. A nil admin means the
// superadmin handles the category.
type Category struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name               string     `gorm:"size:120;not null;uniqueIndex" json:"name"`
	ResponsibleAdminID *uuid.UUID `gorm:"type:uuid;index" json:"responsible_admin_id"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	ResponsibleAdmin *User `gorm:"foreignKey:ResponsibleAdminID" json:"-"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
