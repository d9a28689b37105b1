package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pengaduan/pengaduan-backend/internal/cli"
	"github.com/pengaduan/pengaduan-backend/internal/logging"
)

func main() {
	logging.Setup(os.Getenv("APP_ENV"))

	rootCmd := &cobra.Command{
		Use:   "pengaduanctl",
		Short: "Operator tool for the pengaduan backend",
		Long: `pengaduanctl runs schema migrations, provisions accounts, assigns
categories to admins and drains the report event outbox.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.MigrateCmd())
	rootCmd.AddCommand(cli.CreateUserCmd())
	rootCmd.AddCommand(cli.AssignCategoryCmd())
	rootCmd.AddCommand(cli.DispatchOnceCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
