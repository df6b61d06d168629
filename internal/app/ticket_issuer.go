// internal/app/ticket_issuer.go
package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"math/rand/v2"
	"strings"
	"time"

	"ticket_dispatcher/internal/domain/email"
	"ticket_dispatcher/internal/domain/ticket"
	"ticket_dispatcher/internal/infra/clock"

	"github.com/sirupsen/logrus"
)

const (
	ticketSuffixMin = 10000
	ticketSuffixMax = 99999
	// maxTicketIDDraws bounds the redraws when a candidate id is already in the ledger.
	maxTicketIDDraws = 10
)

var ErrTicketIDExhausted = errors.New("could not draw an unused ticket id")

// Issuer turns a registrant and a session into a deliverable ticket.
type Issuer interface {
	Issue(ctx context.Context, name, emailAddr string, session ticket.Session) (*IssuedTicket, error)
}

// QRRenderer encodes a payload as a PNG image.
type QRRenderer interface {
	RenderPNG(content string) ([]byte, error)
}

// EventInfo is the fixed event metadata printed on every ticket.
type EventInfo struct {
	Name      string
	Date      string
	Venue     string
	Organizer string
}

// QRPayload is the JSON document encoded in the ticket's QR code.
type QRPayload struct {
	TicketID    string `json:"ticketId"`
	Event       string `json:"event"`
	Date        string `json:"date"`
	Venue       string `json:"venue"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Session     string `json:"session"`
	GeneratedAt string `json:"generatedAt"`
}

// IssuedTicket is the result of a successful issuance.
type IssuedTicket struct {
	ID          string
	Session     ticket.Session
	Event       EventInfo
	QRPayload   string
	QRPNG       []byte
	HTML        string
	GeneratedAt time.Time
}

// TicketIssuer is the production Issuer.
type TicketIssuer struct {
	renderer QRRenderer
	ids      ticket.TicketIDChecker
	event    EventInfo
	clock    clock.Clock
	intN     func(n int) int
	logger   *logrus.Entry
}

func NewTicketIssuer(renderer QRRenderer, ids ticket.TicketIDChecker, event EventInfo, clk clock.Clock, logger *logrus.Entry) *TicketIssuer {
	return &TicketIssuer{
		renderer: renderer,
		ids:      ids,
		event:    event,
		clock:    clk,
		intN:     rand.IntN,
		logger:   logger,
	}
}

// GenerateTicketID returns the session prefix followed by a 5-digit number
// drawn uniformly from [10000, 99999]. intN must behave like rand.IntN.
func GenerateTicketID(session ticket.Session, intN func(n int) int) (string, error) {
	prefix, err := session.Prefix()
	if err != nil {
		return "", err
	}
	suffix := ticketSuffixMin + intN(ticketSuffixMax-ticketSuffixMin+1)
	return fmt.Sprintf("%s%d", prefix, suffix), nil
}

func (i *TicketIssuer) Issue(ctx context.Context, name, emailAddr string, session ticket.Session) (*IssuedTicket, error) {
	id, err := i.drawTicketID(ctx, session)
	if err != nil {
		return nil, err
	}

	generatedAt := i.clock.Now()
	payload, err := json.Marshal(QRPayload{
		TicketID:    id,
		Event:       i.event.Name,
		Date:        i.event.Date,
		Venue:       i.event.Venue,
		Name:        name,
		Email:       emailAddr,
		Session:     session.Label(),
		GeneratedAt: generatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding QR payload: %w", err)
	}

	png, err := i.renderer.RenderPNG(string(payload))
	if err != nil {
		return nil, fmt.Errorf("generating QR code for %s: %w", id, err)
	}

	html, err := renderTicketHTML(ticketView{
		TicketID:  id,
		Name:      name,
		Email:     emailAddr,
		Session:   session.Label(),
		Event:     i.event,
		QRDataURL: template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering ticket %s: %w", id, err)
	}

	return &IssuedTicket{
		ID:          id,
		Session:     session,
		Event:       i.event,
		QRPayload:   string(payload),
		QRPNG:       png,
		HTML:        html,
		GeneratedAt: generatedAt,
	}, nil
}

func (i *TicketIssuer) drawTicketID(ctx context.Context, session ticket.Session) (string, error) {
	for draw := 0; draw < maxTicketIDDraws; draw++ {
		id, err := GenerateTicketID(session, i.intN)
		if err != nil {
			return "", err
		}
		if i.ids == nil {
			return id, nil
		}
		taken, err := i.ids.TicketIDExists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("checking ticket id %s: %w", id, err)
		}
		if !taken {
			return id, nil
		}
		i.logger.WithField("ticket_id", id).Debug("Ticket id already issued, drawing again")
	}
	return "", fmt.Errorf("%w for %s after %d draws", ErrTicketIDExhausted, session.Label(), maxTicketIDDraws)
}

// NewTicketMessage builds the email carrying t to recipient. The HTML
// ticket is both the body and a downloadable attachment.
func NewTicketMessage(t *IssuedTicket, recipientName, recipientEmail string) *email.Message {
	organizer := t.Event.Organizer
	return &email.Message{
		To:       recipientEmail,
		ToName:   recipientName,
		Subject:  fmt.Sprintf("🎫 Your %s Ticket - %s", organizer, t.ID),
		HTMLBody: t.HTML,
		Attachments: []email.Attachment{{
			Filename:    fmt.Sprintf("%s-Ticket-%s.html", strings.ReplaceAll(organizer, " ", ""), t.ID),
			ContentType: "text/html",
			Content:     []byte(t.HTML),
		}},
	}
}

type ticketView struct {
	TicketID  string
	Name      string
	Email     string
	Session   string
	Event     EventInfo
	QRDataURL template.URL
}

var ticketTemplate = template.Must(template.New("ticket").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <title>{{.Event.Organizer}} Ticket</title>
  <style>
    body { font-family: Arial, sans-serif; background: #f5f5f5; padding: 20px; }
    .ticket-container { max-width: 600px; margin: auto; background: white; border-radius: 10px; box-shadow: 0 4px 10px rgba(0,0,0,0.1); overflow: hidden; }
    .header { background: #8B0000; color: white; text-align: center; padding: 20px; }
    .content { padding: 20px; }
    .qr-code { text-align: center; margin-top: 20px; }
    .qr-code img { width: 150px; }
    .footer { background: #f0f0f0; text-align: center; padding: 10px; font-size: 12px; }
  </style>
</head>
<body>
  <div class="ticket-container">
    <div class="header">
      <h1>{{.Event.Organizer}}</h1>
      <h3>{{.Session}}</h3>
    </div>
    <div class="content">
      <p><strong>Ticket ID:</strong> {{.TicketID}}</p>
      <p><strong>Name:</strong> {{.Name}}</p>
      <p><strong>Email:</strong> {{.Email}}</p>
      <p><strong>Event:</strong> {{.Event.Name}}</p>
      <p><strong>Date:</strong> {{.Event.Date}}</p>
      <p><strong>Venue:</strong> {{.Event.Venue}}</p>
      <div class="qr-code">
        <img src="{{.QRDataURL}}" alt="QR Code"/>
        <p>Scan at entrance</p>
      </div>
    </div>
    <div class="footer">
      {{.Event.Organizer}}
    </div>
  </div>
</body>
</html>
`))

func renderTicketHTML(v ticketView) (string, error) {
	var b strings.Builder
	if err := ticketTemplate.Execute(&b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}
