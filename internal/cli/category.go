package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/apperr"
	"github.com/pengaduan/pengaduan-backend/internal/models"
	"github.com/pengaduan/pengaduan-backend/internal/services"
)

// AssignCategory hands a category, looked up by name, to the admin with the given
// email. An empty email returns the category to the superadmin. A missing category
// is created.
func AssignCategory(ctx context.Context, db *gorm.DB, categoryName, adminEmail string) (*models.Category, error) {
	var adminIDs []uuid.UUID
	if adminEmail != "" {
		var admin models.User
		if err := db.WithContext(ctx).First(&admin, "email = ?", adminEmail).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.Wrap(apperr.ErrNotFound, "user %s", adminEmail)
			}
			return nil, fmt.Errorf("failed to load admin: %w", err)
		}
		adminIDs = []uuid.UUID{admin.ID}
	}

	dispositions := services.NewDispositionService(db)
	var category models.Category
	err := db.WithContext(ctx).First(&category, "name = ?", categoryName).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return dispositions.CreateCategory(ctx, operator, services.CategoryInput{Name: categoryName, AdminIDs: adminIDs})
	case err != nil:
		return nil, fmt.Errorf("failed to load category: %w", err)
	}
	return dispositions.AssignAdmin(ctx, operator, category.ID, adminIDs)
}

func AssignCategoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assign-category [category name]",
		Short: "Set the responsible admin of a category",
		Long:  "Set the responsible admin of a category, creating the category if needed.\nOmit --admin to hand the category back to the superadmin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adminEmail, _ := cmd.Flags().GetString("admin")

			db, _, err := connect()
			if err != nil {
				return err
			}
			category, err := AssignCategory(cmd.Context(), db, args[0], adminEmail)
			if err != nil {
				return err
			}
			if category.ResponsibleAdminID == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s is handled by the superadmin\n", yellow("!"), category.Name)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s → %s\n", green("✓"), category.Name, adminEmail)
			return nil
		},
	}
	cmd.Flags().String("admin", "", "email of the responsible admin")
	return cmd
}
