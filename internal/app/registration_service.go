// internal/app/registration_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ticket_dispatcher/internal/domain/email"
	"ticket_dispatcher/internal/domain/registration"
	"ticket_dispatcher/internal/domain/ticket"
	"ticket_dispatcher/internal/infra/clock"

	"github.com/sirupsen/logrus"
)

// ErrCycleInProgress is returned when a poll cycle is requested while
// another one is still running.
var ErrCycleInProgress = errors.New("a poll cycle is already running")

// Poller runs one registration poll cycle.
type Poller interface {
	RunCycle(ctx context.Context) (*CycleResult, error)
}

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	StartCursor   int `json:"startCursor"`
	Cursor        int `json:"cursor"`
	RowsFetched   int `json:"rowsFetched"`
	RowsProcessed int `json:"rowsProcessed"`
	RowsSkipped   int `json:"rowsSkipped"`
	Retried       int `json:"retried"`
	Sent          int `json:"sent"`
	Failed        int `json:"failed"`
}

// RegistrationOptions tunes the poll loop.
type RegistrationOptions struct {
	// SendDelay is waited between two consecutive deliveries of a cycle.
	SendDelay time.Duration
	// MaxSendAttempts caps the attempts per (row, session); 1 disables retries.
	MaxSendAttempts int
}

// RegistrationService turns new sheet rows into delivered tickets. It owns
// the cursor bookkeeping that keeps repeated cycles from issuing twice.
type RegistrationService struct {
	source   registration.Source
	ledger   ticket.Ledger
	issuer   Issuer
	notifier email.Notifier
	clock    clock.Clock
	opts     RegistrationOptions
	logger   *logrus.Entry

	runMu sync.Mutex
}

func NewRegistrationService(
	source registration.Source,
	ledger ticket.Ledger,
	issuer Issuer,
	notifier email.Notifier,
	clk clock.Clock,
	opts RegistrationOptions,
	logger *logrus.Entry,
) *RegistrationService {
	if opts.MaxSendAttempts < 1 {
		opts.MaxSendAttempts = 1
	}
	return &RegistrationService{
		source:   source,
		ledger:   ledger,
		issuer:   issuer,
		notifier: notifier,
		clock:    clk,
		opts:     opts,
		logger:   logger,
	}
}

// cycle carries per-cycle state: the pacing counter and the result.
type cycle struct {
	deliveries int
	result     CycleResult
}

// RunCycle fetches the sheet, retries earlier failed deliveries and issues
// tickets for every row at or after the cursor. Only one cycle runs at a
// time; a concurrent call returns ErrCycleInProgress immediately.
//
// A row is always finished once started, even if ctx is cancelled midway,
// so the cursor never stops inside a row.
func (s *RegistrationService) RunCycle(ctx context.Context) (*CycleResult, error) {
	if !s.runMu.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer s.runMu.Unlock()

	cur, err := s.ledger.ReadCursor(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read cursor")
		return nil, fmt.Errorf("reading cursor: %w", err)
	}
	c := &cycle{result: CycleResult{StartCursor: cur, Cursor: cur}}

	rows, err := s.source.FetchRows(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Error checking sheet")
		return &c.result, fmt.Errorf("fetching registrations: %w", err)
	}
	c.result.RowsFetched = len(rows)

	s.retryFailed(ctx, c)

	if len(rows) <= cur {
		s.logger.WithField("cursor", cur).Debug("No new registrations")
		return &c.result, nil
	}

	s.logger.Infof("Processing %d new registration(s)...", len(rows)-cur)

	for i := cur; i < len(rows); i++ {
		if err := ctx.Err(); err != nil {
			s.logger.WithField("row", i).Warn("Cycle interrupted, remaining rows left for the next cycle")
			return &c.result, err
		}

		reg, err := registration.FromRow(i, rows[i])
		if err != nil {
			// The cursor is not written for this row; a later row moves it past.
			s.logger.WithError(err).WithField("row", i).Info("Skipping row: missing data")
			c.result.RowsSkipped++
			continue
		}

		// Once a row has started, its sends and its cursor write run to
		// completion together; a cursor left behind a sent row reissues it.
		rowCtx := context.WithoutCancel(ctx)
		s.processRow(rowCtx, c, reg)

		if err := s.ledger.WriteCursor(rowCtx, i+1); err != nil {
			s.logger.WithError(err).WithField("row", i).Error("Error saving last row")
			continue
		}
		c.result.Cursor = i + 1
		c.result.RowsProcessed++
		s.logger.WithField("cursor", i+1).Info("Last row updated")
	}

	s.logger.WithFields(logrus.Fields{
		"cursor": c.result.Cursor,
		"sent":   c.result.Sent,
		"failed": c.result.Failed,
	}).Info("Finished processing new registrations.")
	return &c.result, nil
}

func (s *RegistrationService) processRow(ctx context.Context, c *cycle, reg *registration.Registration) {
	rowLogger := s.logger.WithFields(logrus.Fields{"row": reg.Row, "email": reg.Email})
	rowLogger.WithField("sessions", reg.Sessions).Infof("Processing: %s", reg.Name)

	for _, label := range reg.Sessions {
		session, err := ticket.ParseSession(label)
		if err != nil {
			rowLogger.WithField("session", label).Warn("Unknown session")
			continue
		}
		s.deliver(ctx, c, reg.Row, 1, reg.Name, reg.Email, session)
	}
}

// retryFailed gives every failed (row, session) pair one more attempt,
// oldest first, until it succeeds or runs out of attempts.
func (s *RegistrationService) retryFailed(ctx context.Context, c *cycle) {
	if s.opts.MaxSendAttempts <= 1 {
		return
	}
	records, err := s.ledger.ListRecords(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load ticket log for retries")
		return
	}

	for _, rec := range ticket.PendingRetries(records, s.opts.MaxSendAttempts) {
		if ctx.Err() != nil {
			return
		}
		session, err := ticket.ParseSession(rec.Session)
		if err != nil {
			s.logger.WithError(err).WithField("row", rec.Row).Warn("Cannot retry record with unknown session")
			continue
		}
		s.logger.WithFields(logrus.Fields{
			"row":     rec.Row,
			"email":   rec.Email,
			"session": rec.Session,
			"attempt": rec.Attempt + 1,
		}).Info("Retrying failed ticket")
		s.deliver(context.WithoutCancel(ctx), c, rec.Row, rec.Attempt+1, rec.Name, rec.Email, session)
		c.result.Retried++
	}
}

// deliver issues and sends one ticket and records the outcome. Failures
// are logged and recorded, never returned.
func (s *RegistrationService) deliver(ctx context.Context, c *cycle, row, attempt int, name, addr string, session ticket.Session) {
	log := s.logger.WithFields(logrus.Fields{"row": row, "email": addr, "session": session.Label(), "attempt": attempt})

	if c.deliveries > 0 && s.opts.SendDelay > 0 {
		if err := s.clock.Sleep(ctx, s.opts.SendDelay); err != nil {
			log.WithError(err).Warn("Pacing delay interrupted")
		}
	}
	c.deliveries++

	rec := &ticket.Record{
		Row:     row,
		Attempt: attempt,
		Name:    name,
		Email:   addr,
		Session: session.Label(),
	}

	issued, err := s.issuer.Issue(ctx, name, addr, session)
	if err == nil {
		rec.TicketID = issued.ID
		log = log.WithField("ticket_id", issued.ID)
		rec.MessageID, err = s.notifier.Send(ctx, NewTicketMessage(issued, name, addr))
	}
	rec.Timestamp = s.clock.Now()

	if err != nil {
		rec.Status = ticket.StatusFailed
		rec.Error = err.Error()
		rec.MessageID = ""
		c.result.Failed++
		log.WithError(err).Error("Failed to send ticket")
	} else {
		rec.Status = ticket.StatusSent
		c.result.Sent++
		log.WithField("message_id", rec.MessageID).Info("Ticket sent")
	}

	if err := s.ledger.AppendRecord(ctx, rec); err != nil {
		log.WithError(err).Error("Error saving ticket info")
	}
}
