package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"ticket_dispatcher/internal/domain/ticket"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

var (
	keyCursor       = []byte("cursor")
	keySequence     = []byte("meta/seq")
	prefixRecord    = []byte("ticket/")
	prefixTicketIDs = []byte("ticketid/")
)

// BadgerLedger stores the cursor and the ticket log in an embedded badger
// database. Records are keyed by a monotonically increasing sequence so
// iteration returns them in append order; a secondary key per ticket id
// makes uniqueness checks a point lookup.
type BadgerLedger struct {
	db *badger.DB
}

var _ ticket.Ledger = (*BadgerLedger)(nil)

// OpenBadgerLedger opens (or creates) the store in dir.
func OpenBadgerLedger(dir string, log *logrus.Entry) (*BadgerLedger, error) {
	opts := badger.DefaultOptions(dir)
	if log != nil {
		opts = opts.WithLogger(log)
	} else {
		opts = opts.WithLogger(nil)
	}
	return openBadger(opts)
}

func openBadger(opts badger.Options) (*BadgerLedger, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger ledger: %w", err)
	}
	return &BadgerLedger{db: db}, nil
}

func (l *BadgerLedger) ReadCursor(_ context.Context) (int, error) {
	next := ticket.DefaultCursor
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyCursor)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		next = parseCursor(string(val))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reading cursor: %w", err)
	}
	return next, nil
}

func (l *BadgerLedger) WriteCursor(_ context.Context, next int) error {
	if err := ticket.ValidateCursor(next); err != nil {
		return err
	}
	err := l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyCursor, []byte(strconv.Itoa(next)))
	})
	if err != nil {
		return fmt.Errorf("writing cursor: %w", err)
	}
	return nil
}

func (l *BadgerLedger) AppendRecord(_ context.Context, rec *ticket.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding ticket record: %w", err)
	}

	err = l.db.Update(func(txn *badger.Txn) error {
		if rec.TicketID != "" {
			_, err := txn.Get(ticketIDKey(rec.TicketID))
			if err == nil {
				return fmt.Errorf("%w: %s", ticket.ErrDuplicateTicketID, rec.TicketID)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}

		seq, err := nextSequence(txn)
		if err != nil {
			return err
		}
		key := recordKey(seq)
		if err := txn.Set(key, data); err != nil {
			return err
		}
		if rec.TicketID != "" {
			if err := txn.Set(ticketIDKey(rec.TicketID), key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("appending ticket record: %w", err)
	}
	return nil
}

func (l *BadgerLedger) ListRecords(_ context.Context) ([]ticket.Record, error) {
	records := []ticket.Record{}
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixRecord
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefixRecord); it.ValidForPrefix(prefixRecord); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec ticket.Record
			if err := json.Unmarshal(val, &rec); err != nil {
				return fmt.Errorf("decoding %s: %w", it.Item().Key(), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing ticket records: %w", err)
	}
	return records, nil
}

func (l *BadgerLedger) Stats(ctx context.Context) (ticket.Stats, error) {
	records, err := l.ListRecords(ctx)
	if err != nil {
		return ticket.Stats{}, err
	}
	return ticket.ComputeStats(records), nil
}

func (l *BadgerLedger) TicketIDExists(_ context.Context, ticketID string) (bool, error) {
	found := false
	err := l.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(ticketIDKey(ticketID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("looking up ticket id: %w", err)
	}
	return found, nil
}

func (l *BadgerLedger) Close() error {
	return l.db.Close()
}

func nextSequence(txn *badger.Txn) (uint64, error) {
	var seq uint64
	item, err := txn.Get(keySequence)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return 0, err
	default:
		val, err := item.ValueCopy(nil)
		if err != nil {
			return 0, err
		}
		seq, err = strconv.ParseUint(string(val), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("corrupt sequence %q: %w", val, err)
		}
	}
	seq++
	if err := txn.Set(keySequence, []byte(strconv.FormatUint(seq, 10))); err != nil {
		return 0, err
	}
	return seq, nil
}

func recordKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixRecord, seq))
}

func ticketIDKey(id string) []byte {
	var b bytes.Buffer
	b.Write(prefixTicketIDs)
	b.WriteString(id)
	return b.Bytes()
}
