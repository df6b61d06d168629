package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"ticket_dispatcher/internal/domain/email"
	"ticket_dispatcher/internal/domain/ticket"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"gopkg.in/telebot.v3"
)

type fakeSource struct {
	rows  [][]string
	err   error
	calls int
	// onFetch runs inside FetchRows, before returning.
	onFetch func()
}

func (f *fakeSource) FetchRows(_ context.Context) ([][]string, error) {
	f.calls++
	if f.onFetch != nil {
		f.onFetch()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type memLedger struct {
	mu        sync.Mutex
	cursor    int
	records   []ticket.Record
	writes    []int
	cursorErr error
	// ctxAware makes writes fail on a done context, like a database driver.
	ctxAware bool
}

func newMemLedger(cursor int) *memLedger {
	return &memLedger{cursor: cursor}
}

func (l *memLedger) ReadCursor(context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cursorErr != nil {
		return 0, l.cursorErr
	}
	return l.cursor, nil
}

func (l *memLedger) WriteCursor(ctx context.Context, next int) error {
	if l.ctxAware && ctx.Err() != nil {
		return ctx.Err()
	}
	if err := ticket.ValidateCursor(next); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cursor = next
	l.writes = append(l.writes, next)
	return nil
}

func (l *memLedger) AppendRecord(_ context.Context, rec *ticket.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, *rec)
	return nil
}

func (l *memLedger) ListRecords(context.Context) ([]ticket.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ticket.Record, len(l.records))
	copy(out, l.records)
	return out, nil
}

func (l *memLedger) Stats(ctx context.Context) (ticket.Stats, error) {
	records, _ := l.ListRecords(ctx)
	return ticket.ComputeStats(records), nil
}

func (l *memLedger) TicketIDExists(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.records {
		if r.TicketID == id {
			return true, nil
		}
	}
	return false, nil
}

func (l *memLedger) Close() error { return nil }

type issueCall struct {
	name, email string
	session     ticket.Session
}

// countingIssuer delegates to a real TicketIssuer and records every call.
type countingIssuer struct {
	inner Issuer
	calls []issueCall
	// failFor makes Issue fail for the given email.
	failFor map[string]error
}

func (c *countingIssuer) Issue(ctx context.Context, name, addr string, session ticket.Session) (*IssuedTicket, error) {
	c.calls = append(c.calls, issueCall{name: name, email: addr, session: session})
	if err, ok := c.failFor[addr]; ok {
		return nil, err
	}
	return c.inner.Issue(ctx, name, addr, session)
}

type fakeNotifier struct {
	sent []*email.Message
	// failures is consumed front to back; nil entries mean success.
	failures []error
	onSend   func()
}

func (n *fakeNotifier) Send(_ context.Context, msg *email.Message) (string, error) {
	n.sent = append(n.sent, msg)
	if n.onSend != nil {
		n.onSend()
	}
	if len(n.failures) > 0 {
		err := n.failures[0]
		n.failures = n.failures[1:]
		if err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("<%d@mail.test>", len(n.sent)), nil
}

type stubRenderer struct {
	err      error
	payloads []string
}

func (r *stubRenderer) RenderPNG(content string) ([]byte, error) {
	r.payloads = append(r.payloads, content)
	if r.err != nil {
		return nil, r.err
	}
	return []byte("\x89PNG-stub"), nil
}

type sentChat struct {
	chatID  int64
	text    string
	options *telebot.SendOptions
}

type fakeChat struct {
	messages []sentChat
	err      error
}

func (c *fakeChat) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	c.messages = append(c.messages, sentChat{chatID: chatID, text: text, options: options})
	return c.err
}

var errSMTP = errors.New("smtp: 550 mailbox unavailable")

func newTestLogger() (*logrus.Entry, *test.Hook) {
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(l), hook
}

func entriesWithMessage(hook *test.Hook, level logrus.Level, msg string) []*logrus.Entry {
	var out []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == level && e.Message == msg {
			out = append(out, e)
		}
	}
	return out
}

func randIntN(n int) int { return rand.IntN(n) }
