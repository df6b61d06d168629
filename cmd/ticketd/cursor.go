package main

import (
	"fmt"
	"strconv"

	"ticket_dispatcher/internal/app"
	"ticket_dispatcher/internal/infra/logger"

	"github.com/spf13/cobra"
)

func newCursorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cursor",
		Short: "Inspect or correct the next sheet row to process",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the cursor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			l, err := openLedger(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer l.Close()

			next, err := app.NewAdminService(l, nil, cfg.AdminTelegramID).Cursor(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), next)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <row>",
		Short: "Overwrite the cursor; run only while the service is stopped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			next, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("row must be an integer: %w", err)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			l, err := openLedger(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer l.Close()

			admin := app.NewAdminService(l, nil, cfg.AdminTelegramID)
			prev, err := admin.Cursor(cmd.Context())
			if err != nil {
				return err
			}
			if err := admin.SetCursor(cmd.Context(), next); err != nil {
				return err
			}
			logger.Component("cli").WithField("from", prev).WithField("to", next).Warn("Cursor overwritten by operator")
			fmt.Fprintf(cmd.OutOrStdout(), "cursor: %d -> %d\n", prev, next)
			return nil
		},
	})

	return cmd
}
