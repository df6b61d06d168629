package app

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"ticket_dispatcher/internal/domain/ticket"
	"ticket_dispatcher/internal/infra/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEvent = EventInfo{
	Name:      "TEDxIITPatna - Kaleidoscopic Interludes",
	Date:      "14th SEP, 2025",
	Venue:     "AUDITORIUM",
	Organizer: "TEDxIITPatna",
}

var ticketIDPattern = regexp.MustCompile(`^(T7S1|T7S2)(\d{5})$`)

func TestGenerateTicketIDFormat(t *testing.T) {
	for _, s := range []ticket.Session{ticket.SessionOne, ticket.SessionTwo} {
		prefix, err := s.Prefix()
		require.NoError(t, err)

		min, max := 99999, 0
		for i := 0; i < 2000; i++ {
			id, err := GenerateTicketID(s, randIntN)
			require.NoError(t, err)

			m := ticketIDPattern.FindStringSubmatch(id)
			require.NotNil(t, m, "id %q", id)
			assert.Equal(t, prefix, m[1])

			n, _ := strconv.Atoi(m[2])
			require.GreaterOrEqual(t, n, 10000)
			require.LessOrEqual(t, n, 99999)
			min, max = minInt(min, n), maxInt(max, n)
		}
		// 2000 uniform draws over 90000 values land near both ends.
		assert.Less(t, min, 20000)
		assert.Greater(t, max, 89999)
	}
}

func TestGenerateTicketIDBounds(t *testing.T) {
	id, err := GenerateTicketID(ticket.SessionOne, func(int) int { return 0 })
	require.NoError(t, err)
	assert.Equal(t, "T7S110000", id)

	id, err = GenerateTicketID(ticket.SessionTwo, func(n int) int { return n - 1 })
	require.NoError(t, err)
	assert.Equal(t, "T7S299999", id)

	_, err = GenerateTicketID(ticket.Session(3), randIntN)
	assert.ErrorIs(t, err, ticket.ErrUnknownSession)
}

func TestIssueBuildsPayloadAndHTML(t *testing.T) {
	logger, _ := newTestLogger()
	renderer := &stubRenderer{}
	now := time.Date(2025, 9, 1, 10, 30, 0, 0, time.UTC)
	issuer := NewTicketIssuer(renderer, newMemLedger(1), testEvent, clock.NewFake(now), logger)

	issued, err := issuer.Issue(context.Background(), "Alice <A>", "alice@x.com", ticket.SessionTwo)
	require.NoError(t, err)

	assert.Regexp(t, `^T7S2\d{5}$`, issued.ID)
	require.Len(t, renderer.payloads, 1)

	var payload QRPayload
	require.NoError(t, json.Unmarshal([]byte(renderer.payloads[0]), &payload))
	assert.Equal(t, QRPayload{
		TicketID:    issued.ID,
		Event:       testEvent.Name,
		Date:        testEvent.Date,
		Venue:       testEvent.Venue,
		Name:        "Alice <A>",
		Email:       "alice@x.com",
		Session:     "Session 2",
		GeneratedAt: "2025-09-01T10:30:00Z",
	}, payload)

	assert.Contains(t, issued.HTML, issued.ID)
	assert.Contains(t, issued.HTML, "Session 2")
	assert.Contains(t, issued.HTML, `src="data:image/png;base64,`)
	assert.Contains(t, issued.HTML, "Alice &lt;A&gt;", "registrant data is escaped")
	assert.NotContains(t, issued.HTML, "ZgotmplZ")
}

func TestIssuePropagatesQRFailure(t *testing.T) {
	logger, _ := newTestLogger()
	boom := errors.New("content too long")
	issuer := NewTicketIssuer(&stubRenderer{err: boom}, nil, testEvent, clock.NewFake(time.Now()), logger)

	_, err := issuer.Issue(context.Background(), "Bob", "bob@x.com", ticket.SessionOne)
	assert.ErrorIs(t, err, boom)
}

func TestIssueRedrawsTakenIDs(t *testing.T) {
	logger, _ := newTestLogger()
	ledger := newMemLedger(1)
	ledger.records = []ticket.Record{{TicketID: "T7S110000"}, {TicketID: "T7S110001"}}

	issuer := NewTicketIssuer(&stubRenderer{}, ledger, testEvent, clock.NewFake(time.Now()), logger)
	draws := []int{0, 1, 2}
	issuer.intN = func(int) int {
		n := draws[0]
		draws = draws[1:]
		return n
	}

	issued, err := issuer.Issue(context.Background(), "Bob", "bob@x.com", ticket.SessionOne)
	require.NoError(t, err)
	assert.Equal(t, "T7S110002", issued.ID)
}

func TestIssueGivesUpWhenIDsExhausted(t *testing.T) {
	logger, _ := newTestLogger()
	ledger := newMemLedger(1)
	ledger.records = []ticket.Record{{TicketID: "T7S110000"}}

	issuer := NewTicketIssuer(&stubRenderer{}, ledger, testEvent, clock.NewFake(time.Now()), logger)
	issuer.intN = func(int) int { return 0 }

	_, err := issuer.Issue(context.Background(), "Bob", "bob@x.com", ticket.SessionOne)
	assert.ErrorIs(t, err, ErrTicketIDExhausted)
}

func TestNewTicketMessage(t *testing.T) {
	issued := &IssuedTicket{ID: "T7S154321", Event: testEvent, HTML: "<html>ticket</html>"}

	msg := NewTicketMessage(issued, "Alice", "alice@x.com")

	assert.Equal(t, "alice@x.com", msg.To)
	assert.Equal(t, "🎫 Your TEDxIITPatna Ticket - T7S154321", msg.Subject)
	assert.Equal(t, issued.HTML, msg.HTMLBody)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "TEDxIITPatna-Ticket-T7S154321.html", msg.Attachments[0].Filename)
	assert.Equal(t, "text/html", msg.Attachments[0].ContentType)
	assert.True(t, strings.Contains(string(msg.Attachments[0].Content), "ticket"))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
