// internal/infra/database/postgres_ledger_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ticket_dispatcher/internal/domain/ticket"

	"github.com/lib/pq" // For pq.Error inspection and driver registration
)

const uniqueViolation = pq.ErrorCode("23505")

// PostgresLedger is the ticket.Ledger backed by PostgreSQL.
type PostgresLedger struct {
	db *sql.DB
}

var _ ticket.Ledger = (*PostgresLedger)(nil)

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// OpenPostgresLedger connects, migrates and returns a ready ledger.
func OpenPostgresLedger(ctx context.Context, dataSourceName string) (*PostgresLedger, error) {
	db, err := NewPostgresConnection(ctx, dataSourceName)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return NewPostgresLedger(db), nil
}

func (r *PostgresLedger) ReadCursor(ctx context.Context) (int, error) {
	var next int
	err := r.db.QueryRowContext(ctx, `SELECT next_row FROM registration_cursor WHERE id = 1`).Scan(&next)
	if err != nil {
		if err == sql.ErrNoRows {
			return ticket.DefaultCursor, nil
		}
		return 0, fmt.Errorf("error reading cursor: %w", err)
	}
	if next < ticket.DefaultCursor {
		return ticket.DefaultCursor, nil
	}
	return next, nil
}

func (r *PostgresLedger) WriteCursor(ctx context.Context, next int) error {
	if err := ticket.ValidateCursor(next); err != nil {
		return err
	}
	query := `INSERT INTO registration_cursor (id, next_row) VALUES (1, $1)
               ON CONFLICT (id) DO UPDATE SET next_row = EXCLUDED.next_row, updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, next); err != nil {
		return fmt.Errorf("error writing cursor: %w", err)
	}
	return nil
}

func (r *PostgresLedger) AppendRecord(ctx context.Context, rec *ticket.Record) error {
	query := `INSERT INTO ticket_records
               (ticket_id, row_index, attempt, name, email, session, status, message_id, error, created_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query,
		nullString(rec.TicketID), rec.Row, rec.Attempt, rec.Name, rec.Email, rec.Session,
		string(rec.Status), nullString(rec.MessageID), nullString(rec.Error), rec.Timestamp)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ticket.ErrDuplicateTicketID, rec.TicketID)
		}
		return fmt.Errorf("error appending ticket record: %w", err)
	}
	return nil
}

func (r *PostgresLedger) ListRecords(ctx context.Context) ([]ticket.Record, error) {
	query := `SELECT ticket_id, row_index, attempt, name, email, session, status, message_id, error, created_at
               FROM ticket_records ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing ticket records: %w", err)
	}
	defer rows.Close()

	records := make([]ticket.Record, 0)
	for rows.Next() {
		var (
			rec                         ticket.Record
			ticketID, messageID, errMsg sql.NullString
			status                      string
		)
		if err := rows.Scan(&ticketID, &rec.Row, &rec.Attempt, &rec.Name, &rec.Email, &rec.Session,
			&status, &messageID, &errMsg, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("error scanning ticket record: %w", err)
		}
		rec.TicketID = ticketID.String
		rec.MessageID = messageID.String
		rec.Error = errMsg.String
		rec.Status = ticket.Status(status)
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ticket records: %w", err)
	}
	return records, nil
}

func (r *PostgresLedger) Stats(ctx context.Context) (ticket.Stats, error) {
	query := `SELECT COUNT(*),
                      COUNT(*) FILTER (WHERE status = 'sent'),
                      COUNT(*) FILTER (WHERE status = 'failed')
               FROM ticket_records`
	var st ticket.Stats
	if err := r.db.QueryRowContext(ctx, query).Scan(&st.Total, &st.Sent, &st.Failed); err != nil {
		return ticket.Stats{}, fmt.Errorf("error computing ticket stats: %w", err)
	}
	return st, nil
}

func (r *PostgresLedger) TicketIDExists(ctx context.Context, ticketID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM ticket_records WHERE ticket_id = $1)`, ticketID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking ticket id: %w", err)
	}
	return exists, nil
}

func (r *PostgresLedger) Close() error {
	return r.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
