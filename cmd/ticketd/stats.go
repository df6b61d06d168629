package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"ticket_dispatcher/internal/app"
	"ticket_dispatcher/internal/domain/ticket"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var (
		asJSON bool
		last   int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print ticket statistics from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			if last < 0 {
				return fmt.Errorf("--last must not be negative")
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
			return writeStats(cmd.Context(), cmd.OutOrStdout(), admin, asJSON, last)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.Flags().IntVar(&last, "last", 0, "also list the last N ticket records")
	return cmd
}

type statsOutput struct {
	Stats   ticket.Stats    `json:"stats"`
	Tickets []ticket.Record `json:"tickets,omitempty"`
}

func writeStats(ctx context.Context, out io.Writer, admin *app.AdminService, asJSON bool, last int) error {
	st, err := admin.Stats(ctx)
	if err != nil {
		return err
	}

	var records []ticket.Record
	if last > 0 {
		if records, err = admin.Tickets(ctx, last); err != nil {
			return err
		}
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(statsOutput{Stats: st, Tickets: records})
	}

	fmt.Fprintln(out, app.FormatStats(st))
	if len(records) > 0 {
		fmt.Fprintln(out)
		for _, r := range records {
			fmt.Fprintf(out, "%s %-9s %-6s row=%d attempt=%d %s %s\n",
				r.Timestamp.Format("2006-01-02T15:04:05"), r.TicketID, r.Status, r.Row, r.Attempt, r.Session, r.Email)
		}
	}
	return nil
}
