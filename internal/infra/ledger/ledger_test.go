package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ticket_dispatcher/internal/domain/ticket"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerFactory func(t *testing.T) ticket.Ledger

func backends() map[string]ledgerFactory {
	return map[string]ledgerFactory{
		"file": func(t *testing.T) ticket.Ledger {
			dir := t.TempDir()
			l, err := OpenFileLedger(filepath.Join(dir, "last_row.txt"), filepath.Join(dir, "sent_tickets.json"))
			require.NoError(t, err)
			return l
		},
		"badger": func(t *testing.T) ticket.Ledger {
			l, err := openBadger(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
			require.NoError(t, err)
			t.Cleanup(func() { _ = l.Close() })
			return l
		},
	}
}

func TestLedgerCursor(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := open(t)

			next, err := l.ReadCursor(ctx)
			require.NoError(t, err)
			assert.Equal(t, ticket.DefaultCursor, next)

			require.NoError(t, l.WriteCursor(ctx, 17))
			next, err = l.ReadCursor(ctx)
			require.NoError(t, err)
			assert.Equal(t, 17, next)

			assert.ErrorIs(t, l.WriteCursor(ctx, 0), ticket.ErrInvalidCursor)
		})
	}
}

func TestLedgerRecordsAndStats(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := open(t)
			ts := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

			const n = 7
			for i := 0; i < n; i++ {
				rec := &ticket.Record{
					Row:       i + 1,
					Attempt:   1,
					Name:      fmt.Sprintf("guest %d", i),
					Email:     fmt.Sprintf("guest%d@x.com", i),
					Session:   ticket.SessionOne.Label(),
					Status:    ticket.StatusSent,
					Timestamp: ts,
				}
				if i%3 == 0 {
					rec.Status = ticket.StatusFailed
					rec.Error = "smtp: connection refused"
				} else {
					rec.TicketID = fmt.Sprintf("T7S1%05d", 10000+i)
					rec.MessageID = fmt.Sprintf("<%d@x.com>", i)
				}
				require.NoError(t, l.AppendRecord(ctx, rec))
			}

			st, err := l.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, n, st.Total)
			assert.Equal(t, n, st.Sent+st.Failed)
			assert.Equal(t, 3, st.Failed)

			records, err := l.ListRecords(ctx)
			require.NoError(t, err)
			require.Len(t, records, n)
			for i, r := range records {
				assert.Equal(t, i+1, r.Row, "records keep append order")
			}
			assert.True(t, records[1].Timestamp.Equal(ts))

			exists, err := l.TicketIDExists(ctx, "T7S110001")
			require.NoError(t, err)
			assert.True(t, exists)
			exists, err = l.TicketIDExists(ctx, "T7S299999")
			require.NoError(t, err)
			assert.False(t, exists)

			dup := &ticket.Record{TicketID: "T7S110001", Status: ticket.StatusSent}
			assert.ErrorIs(t, l.AppendRecord(ctx, dup), ticket.ErrDuplicateTicketID)
		})
	}
}

func TestFileLedgerInitializesEmptyLog(t *testing.T) {
	dir := t.TempDir()
	tickets := filepath.Join(dir, "sent_tickets.json")

	_, err := OpenFileLedger(filepath.Join(dir, "last_row.txt"), tickets)
	require.NoError(t, err)

	data, err := os.ReadFile(tickets)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestFileLedgerKeepsExistingLog(t *testing.T) {
	dir := t.TempDir()
	tickets := filepath.Join(dir, "sent_tickets.json")
	require.NoError(t, os.WriteFile(tickets, []byte(`[{"ticketId":"T7S212345","name":"Old","email":"old@x.com","session":"Session 2","status":"sent","timestamp":"2025-09-01T10:00:00Z"}]`), 0o644))

	l, err := OpenFileLedger(filepath.Join(dir, "last_row.txt"), tickets)
	require.NoError(t, err)

	st, err := l.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ticket.Stats{Total: 1, Sent: 1}, st)
}

func TestFileLedgerInvalidCursorFallsBack(t *testing.T) {
	for _, content := range []string{"", "abc", "-4", "0"} {
		dir := t.TempDir()
		cursor := filepath.Join(dir, "last_row.txt")
		require.NoError(t, os.WriteFile(cursor, []byte(content), 0o644))

		l, err := OpenFileLedger(cursor, filepath.Join(dir, "sent_tickets.json"))
		require.NoError(t, err)

		next, err := l.ReadCursor(context.Background())
		require.NoError(t, err)
		assert.Equal(t, ticket.DefaultCursor, next, "content %q", content)
	}
}

func TestFileLedgerCursorSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	cursor := filepath.Join(dir, "last_row.txt")
	tickets := filepath.Join(dir, "sent_tickets.json")

	l, err := OpenFileLedger(cursor, tickets)
	require.NoError(t, err)
	require.NoError(t, l.WriteCursor(context.Background(), 42))

	data, err := os.ReadFile(cursor)
	require.NoError(t, err)
	assert.Equal(t, "42", string(data))

	reopened, err := OpenFileLedger(cursor, tickets)
	require.NoError(t, err)
	next, err := reopened.ReadCursor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, next)
}

func TestBadgerLedgerSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	l, err := OpenBadgerLedger(dir, nil)
	require.NoError(t, err)
	require.NoError(t, l.WriteCursor(ctx, 5))
	require.NoError(t, l.AppendRecord(ctx, &ticket.Record{TicketID: "T7S154321", Row: 4, Status: ticket.StatusSent}))
	require.NoError(t, l.Close())

	reopened, err := OpenBadgerLedger(dir, nil)
	require.NoError(t, err)
	defer reopened.Close()

	next, err := reopened.ReadCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, next)

	exists, err := reopened.TicketIDExists(ctx, "T7S154321")
	require.NoError(t, err)
	assert.True(t, exists)
}
