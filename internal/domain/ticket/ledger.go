package ticket

import (
	"context"
	"errors"
)

// DefaultCursor is the cursor of a fresh ledger: row 0 is the sheet header.
const DefaultCursor = 1

var (
	ErrInvalidCursor     = errors.New("cursor must be at least 1")
	ErrDuplicateTicketID = errors.New("ticket id already recorded")
)

// Ledger is the durable state of the dispatcher: the row cursor and the
// ticket log. Implementations assume a single writer.
type Ledger interface {
	// ReadCursor returns the index of the first unprocessed row, or
	// DefaultCursor when none has been stored or the stored value is unusable.
	ReadCursor(ctx context.Context) (int, error)
	WriteCursor(ctx context.Context, next int) error

	AppendRecord(ctx context.Context, rec *Record) error
	ListRecords(ctx context.Context) ([]Record, error)
	Stats(ctx context.Context) (Stats, error)
	TicketIDChecker

	Close() error
}

// TicketIDChecker reports whether a ticket id was already issued.
type TicketIDChecker interface {
	TicketIDExists(ctx context.Context, ticketID string) (bool, error)
}

func ValidateCursor(next int) error {
	if next < DefaultCursor {
		return ErrInvalidCursor
	}
	return nil
}
