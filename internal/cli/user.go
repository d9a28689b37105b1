package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/actor"
	"github.com/pengaduan/pengaduan-backend/internal/apperr"
	"github.com/pengaduan/pengaduan-backend/internal/models"
)

// CreateUser provisions an account. Tokens are issued elsewhere; the hash is kept
// so the identity service can share this table.
func CreateUser(ctx context.Context, db *gorm.DB, name, email, password string, role actor.Role) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	fields := map[string]string{}
	if name == "" {
		fields["name"] = "is required"
	}
	if email == "" || !strings.Contains(email, "@") {
		fields["email"] = "must be an email address"
	}
	if len(password) < 8 {
		fields["password"] = "must be at least 8 characters"
	}
	if !role.Valid() {
		fields["role"] = "must be citizen, admin or superadmin"
	}
	if len(fields) > 0 {
		return nil, &apperr.ValidationError{Fields: fields}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := models.User{Name: name, Email: email, Password: string(hash), Role: role, IsActive: true}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Wrap(apperr.ErrConflict, "email %s is already registered", email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

func CreateUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-user [name]",
		Short: "Create a citizen, admin or superadmin account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			role, _ := cmd.Flags().GetString("role")

			db, _, err := connect()
			if err != nil {
				return err
			}
			user, err := CreateUser(cmd.Context(), db, args[0], email, password, actor.Role(role))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created %s %s (%s)\n", green("✓"), user.Role, user.Name, user.ID)
			return nil
		},
	}
	cmd.Flags().String("email", "", "login email (required)")
	cmd.Flags().String("password", "", "initial password, at least 8 characters (required)")
	cmd.Flags().String("role", string(actor.RoleCitizen), "citizen, admin or superadmin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
