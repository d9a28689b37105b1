package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/actor"
	"github.com/pengaduan/pengaduan-backend/internal/apperr"
	"github.com/pengaduan/pengaduan-backend/internal/core/disposition"
	"github.com/pengaduan/pengaduan-backend/internal/models"
)

// CategoryInput creates or replaces a category. AdminIDs may hold at most one id;
// an empty list leaves the category to the superadmin.
type CategoryInput struct {
	Name     string
	AdminIDs []uuid.UUID
}

type DispositionService struct {
	db *gorm.DB
}

func NewDispositionService(db *gorm.DB) *DispositionService {
	return &DispositionService{db: db}
}

// Resolve reads the category's current admin on every call.
func (s *DispositionService) Resolve(ctx context.Context, reportID uuid.UUID) (disposition.AdminIdentity, error) {
	report, err := loadReport(s.db.WithContext(ctx), reportID, false)
	if err != nil {
		return disposition.AdminIdentity{}, err
	}
	return disposition.Resolve(report.ResponsibleAdminID()), nil
}

func (s *DispositionService) Authorize(ctx context.Context, a actor.Actor, reportID uuid.UUID) error {
	resolved, err := s.Resolve(ctx, reportID)
	if err != nil {
		return err
	}
	return disposition.Authorize(a, resolved)
}

func (s *DispositionService) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := s.db.WithContext(ctx).Order("name").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// ListAdmins returns the active admins a category can be assigned to.
func (s *DispositionService) ListAdmins(ctx context.Context) ([]models.User, error) {
	var admins []models.User
	err := s.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", actor.RoleAdmin, true).
		Order("name").
		Find(&admins).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	return admins, nil
}

func (s *DispositionService) CreateCategory(ctx context.Context, a actor.Actor, in CategoryInput) (*models.Category, error) {
	if !a.IsSuperadmin() {
		return nil, apperr.ErrUnauthorized
	}
	name, adminID, err := s.checkCategoryInput(ctx, in)
	if err != nil {
		return nil, err
	}

	category := models.Category{Name: name, ResponsibleAdminID: adminID}
	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Invalid("name", "a category with this name already exists")
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	slog.Info("category created", "category_id", category.ID.String(), "actor_id", a.ID.String())
	return &category, nil
}

// UpdateCategory replaces the name and the responsible admin.
func (s *DispositionService) UpdateCategory(ctx context.Context, a actor.Actor, id uuid.UUID, in CategoryInput) (*models.Category, error) {
	if !a.IsSuperadmin() {
		return nil, apperr.ErrUnauthorized
	}
	name, adminID, err := s.checkCategoryInput(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, a, id, map[string]interface{}{"name": name, "responsible_admin_id": adminID})
}

// AssignAdmin replaces the category's responsible admin. Reports in the category
// resolve to the new admin immediately, old and new alike.
func (s *DispositionService) AssignAdmin(ctx context.Context, a actor.Actor, categoryID uuid.UUID, adminIDs []uuid.UUID) (*models.Category, error) {
	if !a.IsSuperadmin() {
		return nil, apperr.ErrUnauthorized
	}
	adminID, err := disposition.SingleAdmin(adminIDs)
	if err != nil {
		return nil, err
	}
	if err := s.checkAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.update(ctx, a, categoryID, map[string]interface{}{"responsible_admin_id": adminID})
}

func (s *DispositionService) update(ctx context.Context, a actor.Actor, id uuid.UUID, updates map[string]interface{}) (*models.Category, error) {
	db := s.db.WithContext(ctx)
	result := db.Model(&models.Category{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, apperr.Invalid("name", "a category with this name already exists")
		}
		return nil, fmt.Errorf("failed to update category: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperr.Wrap(apperr.ErrNotFound, "category %s", id)
	}

	var category models.Category
	if err := db.First(&category, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to reload category: %w", err)
	}
	slog.Info("category updated", "category_id", id.String(), "actor_id", a.ID.String())
	return &category, nil
}

// DeleteCategory refuses to orphan reports that still reference the category.
func (s *DispositionService) DeleteCategory(ctx context.Context, a actor.Actor, id uuid.UUID) error {
	if !a.IsSuperadmin() {
		return apperr.ErrUnauthorized
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inUse int64
		if err := tx.Model(&models.Report{}).Where("category_id = ?", id).Count(&inUse).Error; err != nil {
			return fmt.Errorf("failed to count reports: %w", err)
		}
		if inUse > 0 {
			return apperr.Wrap(apperr.ErrConflict, "category still has %d reports", inUse)
		}
		result := tx.Delete(&models.Category{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete category: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperr.Wrap(apperr.ErrNotFound, "category %s", id)
		}
		return nil
	})
}

func (s *DispositionService) checkCategoryInput(ctx context.Context, in CategoryInput) (string, *uuid.UUID, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > 120 {
		return "", nil, apperr.Invalid("name", "must be 1 to 120 characters")
	}
	adminID, err := disposition.SingleAdmin(in.AdminIDs)
	if err != nil {
		return "", nil, err
	}
	if err := s.checkAdmin(ctx, adminID); err != nil {
		return "", nil, err
	}
	return name, adminID, nil
}

func (s *DispositionService) checkAdmin(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", *id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Invalid("admin_ids", "unknown user")
		}
		return fmt.Errorf("failed to load admin: %w", err)
	}
	if user.Role != actor.RoleAdmin || !user.IsActive {
		return apperr.Invalid("admin_ids", "user is not an active admin")
	}
	return nil
}
