package app

import (
	"context"
	"errors"
	"fmt"

	"ticket_dispatcher/internal/domain/ticket"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = errors.New("performing user is not authorized as an admin")

// AdminService backs the operator surfaces (CLI, chat commands, HTTP).
type AdminService struct {
	ledger          ticket.Ledger
	poller          Poller
	adminTelegramID int64
}

func NewAdminService(ledger ticket.Ledger, poller Poller, adminID int64) *AdminService {
	return &AdminService{
		ledger:          ledger,
		poller:          poller,
		adminTelegramID: adminID,
	}
}

// Authorize fails unless performingAdminID is the configured admin.
func (s *AdminService) Authorize(performingAdminID int64) error {
	if s.adminTelegramID == 0 || performingAdminID != s.adminTelegramID {
		return ErrAdminNotAuthorized
	}
	return nil
}

func (s *AdminService) Stats(ctx context.Context) (ticket.Stats, error) {
	st, err := s.ledger.Stats(ctx)
	if err != nil {
		return ticket.Stats{}, fmt.Errorf("failed to read ticket stats: %w", err)
	}
	return st, nil
}

func (s *AdminService) Cursor(ctx context.Context) (int, error) {
	next, err := s.ledger.ReadCursor(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read cursor: %w", err)
	}
	return next, nil
}

// SetCursor overwrites the cursor. It is meant for offline operator
// corrections; moving it backwards makes the next cycle reissue tickets.
func (s *AdminService) SetCursor(ctx context.Context, next int) error {
	if err := ticket.ValidateCursor(next); err != nil {
		return err
	}
	if err := s.ledger.WriteCursor(ctx, next); err != nil {
		return fmt.Errorf("failed to write cursor: %w", err)
	}
	return nil
}

// Tickets returns the ticket log, newest last. limit <= 0 returns everything.
func (s *AdminService) Tickets(ctx context.Context, limit int) ([]ticket.Record, error) {
	records, err := s.ledger.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ticket records: %w", err)
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

// TriggerPoll runs a cycle now. It returns ErrCycleInProgress when the
// scheduler is already inside one.
func (s *AdminService) TriggerPoll(ctx context.Context) (*CycleResult, error) {
	if s.poller == nil {
		return nil, errors.New("polling is not available")
	}
	return s.poller.RunCycle(ctx)
}
