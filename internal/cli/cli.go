// Package cli implements the pengaduanctl operator commands.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/actor"
	"github.com/pengaduan/pengaduan-backend/internal/config"
	"github.com/pengaduan/pengaduan-backend/internal/database"
)

// operator is the identity the CLI acts with on superadmin-only operations.
var operator = actor.Actor{Name: "pengaduanctl", Role: actor.RoleSuperadmin}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

// connect opens the configured database; commands share one lazily opened pool.
func connect() (*gorm.DB, *config.Config, error) {
	cfg := config.Load()
	if database.DB == nil {
		if err := database.Connect(cfg); err != nil {
			return nil, nil, err
		}
	}
	return database.DB, cfg, nil
}

func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := connect()
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", green("✓"))
			return nil
		},
	}
}
