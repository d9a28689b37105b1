package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pengaduan/pengaduan-backend/internal/notify"
)

func DispatchOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch-once",
		Short: "Publish pending report events and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cfg, err := connect()
			if err != nil {
				return err
			}
			publisher, closePublisher, err := notify.NewPublisher(cfg.RedisURL, cfg.NotifyChannel)
			if err != nil {
				return err
			}
			defer closePublisher()

			n, err := notify.NewDispatcher(db, publisher, cfg.DispatchInterval).DispatchOnce(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "%s published %d event(s)\n", green("✓"), n)
			if err != nil {
				return fmt.Errorf("dispatch stopped early: %w", err)
			}
			return nil
		},
	}
}
