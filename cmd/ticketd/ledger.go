package main

import (
	"context"
	"fmt"

	"ticket_dispatcher/internal/domain/ticket"
	"ticket_dispatcher/internal/infra/config"
	idb "ticket_dispatcher/internal/infra/database"
	"ticket_dispatcher/internal/infra/ledger"
	"ticket_dispatcher/internal/infra/logger"
)

// openLedger opens the backend selected by LEDGER_BACKEND.
func openLedger(ctx context.Context, cfg *config.AppConfig) (ticket.Ledger, error) {
	log := logger.Component("ledger").WithField("backend", cfg.LedgerBackend)

	switch cfg.LedgerBackend {
	case config.LedgerFile:
		l, err := ledger.OpenFileLedger(cfg.CursorFile, cfg.TicketsFile)
		if err != nil {
			return nil, err
		}
		log.WithField("cursor_file", cfg.CursorFile).WithField("tickets_file", cfg.TicketsFile).Info("Ledger opened")
		return l, nil
	case config.LedgerBadger:
		l, err := ledger.OpenBadgerLedger(cfg.BadgerDir, log)
		if err != nil {
			return nil, err
		}
		log.WithField("dir", cfg.BadgerDir).Info("Ledger opened")
		return l, nil
	case config.LedgerPostgres:
		l, err := idb.OpenPostgresLedger(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Info("Ledger opened")
		return l, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}

// loadConfig loads configuration and initializes the global logger.
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load application configuration: %w", err)
	}
	logger.Init(cfg)
	return cfg, nil
}
