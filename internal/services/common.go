package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pengaduan/pengaduan-backend/internal/apperr"
	"github.com/pengaduan/pengaduan-backend/internal/models"
)

func utcNow() time.Time { return time.Now().UTC() }

// loadReport fetches a report with its category. lock adds FOR UPDATE where the
// dialect supports it.
func loadReport(tx *gorm.DB, id uuid.UUID, lock bool) (*models.Report, error) {
	q := tx.Preload("Category")
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var report models.Report
	if err := q.First(&report, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Wrap(apperr.ErrNotFound, "report %s", id)
		}
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	return &report, nil
}

// bumpVersion applies updates only if nobody else wrote the report since it was read.
func bumpVersion(tx *gorm.DB, report *models.Report, updates map[string]interface{}) error {
	updates["version"] = gorm.Expr("version + 1")
	result := tx.Model(&models.Report{}).
		Where("id = ? AND version = ?", report.ID, report.Version).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update report: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.Wrap(apperr.ErrConflict, "report %s was modified concurrently", report.ID)
	}
	report.Version++
	return nil
}

// outcome labels an operation result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, apperr.ErrValidation):
		return "validation"
	case errors.Is(err, apperr.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, apperr.ErrInvalidTransition), errors.Is(err, apperr.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrLimitExceeded):
		return "limit"
	}
	return "error"
}
