// Package ledger holds the embedded ticket.Ledger implementations: plain
// files and a badger key-value store. The postgres ledger lives in the
// database package.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"ticket_dispatcher/internal/domain/ticket"
)

// FileLedger keeps the cursor as a plain-text integer and the ticket log as
// a JSON array. Both files are rewritten whole on every change.
type FileLedger struct {
	cursorPath  string
	ticketsPath string

	mu sync.Mutex
}

var _ ticket.Ledger = (*FileLedger)(nil)

// OpenFileLedger creates the ticket log as an empty array if it is missing.
func OpenFileLedger(cursorPath, ticketsPath string) (*FileLedger, error) {
	l := &FileLedger{cursorPath: cursorPath, ticketsPath: ticketsPath}
	if _, err := os.Stat(ticketsPath); errors.Is(err, fs.ErrNotExist) {
		if err := writeFileAtomic(ticketsPath, []byte("[]")); err != nil {
			return nil, fmt.Errorf("initializing ticket log: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("checking ticket log: %w", err)
	}
	return l, nil
}

func (l *FileLedger) ReadCursor(_ context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.cursorPath)
	if errors.Is(err, fs.ErrNotExist) {
		return ticket.DefaultCursor, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading cursor file: %w", err)
	}
	return parseCursor(string(data)), nil
}

func (l *FileLedger) WriteCursor(_ context.Context, next int) error {
	if err := ticket.ValidateCursor(next); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := writeFileAtomic(l.cursorPath, []byte(strconv.Itoa(next))); err != nil {
		return fmt.Errorf("writing cursor file: %w", err)
	}
	return nil
}

func (l *FileLedger) AppendRecord(_ context.Context, rec *ticket.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return err
	}
	if rec.TicketID != "" {
		for _, r := range records {
			if r.TicketID == rec.TicketID {
				return fmt.Errorf("%w: %s", ticket.ErrDuplicateTicketID, rec.TicketID)
			}
		}
	}
	records = append(records, *rec)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding ticket log: %w", err)
	}
	if err := writeFileAtomic(l.ticketsPath, data); err != nil {
		return fmt.Errorf("writing ticket log: %w", err)
	}
	return nil
}

func (l *FileLedger) ListRecords(_ context.Context) ([]ticket.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

func (l *FileLedger) Stats(ctx context.Context) (ticket.Stats, error) {
	records, err := l.ListRecords(ctx)
	if err != nil {
		return ticket.Stats{}, err
	}
	return ticket.ComputeStats(records), nil
}

func (l *FileLedger) TicketIDExists(ctx context.Context, ticketID string) (bool, error) {
	records, err := l.ListRecords(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if r.TicketID == ticketID {
			return true, nil
		}
	}
	return false, nil
}

func (l *FileLedger) Close() error { return nil }

// load must be called with l.mu held.
func (l *FileLedger) load() ([]ticket.Record, error) {
	data, err := os.ReadFile(l.ticketsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return []ticket.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ticket log: %w", err)
	}
	records := []ticket.Record{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding ticket log %s: %w", l.ticketsPath, err)
	}
	return records, nil
}

// parseCursor falls back to the default for anything that is not a usable
// row index.
func parseCursor(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < ticket.DefaultCursor {
		return ticket.DefaultCursor
	}
	return n
}

// writeFileAtomic replaces path via a temp file in the same directory so
// readers never observe a half-written file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
