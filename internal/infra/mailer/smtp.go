// internal/infra/mailer/smtp.go
package mailer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"ticket_dispatcher/internal/domain/email"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	gomail "gopkg.in/mail.v2"
)

// SMTPConfig holds the authenticated relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// FromName is the display name on the From header.
	FromName string
	Timeout  time.Duration
}

// sender is the part of gomail.Dialer used here.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier delivers ticket emails through an SMTP relay with STARTTLS.
type SMTPNotifier struct {
	cfg    SMTPConfig
	sender sender
	logger *logrus.Entry
}

func NewSMTPNotifier(cfg SMTPConfig, logger *logrus.Entry) *SMTPNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.StartTLSPolicy = gomail.MandatoryStartTLS
	d.Timeout = cfg.Timeout
	return &SMTPNotifier{cfg: cfg, sender: d, logger: logger}
}

// Send delivers msg and returns the Message-ID it was sent with.
func (n *SMTPNotifier) Send(ctx context.Context, msg *email.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m, messageID := n.buildMessage(msg)

	start := time.Now()
	if err := n.sender.DialAndSend(m); err != nil {
		return "", fmt.Errorf("sending mail to %s: %w", msg.To, err)
	}
	n.logger.WithFields(logrus.Fields{
		"to":          msg.To,
		"message_id":  messageID,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Mail accepted by relay")
	return messageID, nil
}

func (n *SMTPNotifier) buildMessage(msg *email.Message) (*gomail.Message, string) {
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), senderDomain(n.cfg.Username))

	m := gomail.NewMessage()
	if n.cfg.FromName != "" {
		m.SetAddressHeader("From", n.cfg.Username, n.cfg.FromName)
	} else {
		m.SetHeader("From", n.cfg.Username)
	}
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.To, msg.ToName)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", messageID)
	m.SetBody("text/html", msg.HTMLBody)

	for _, a := range msg.Attachments {
		content := a.Content
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
		}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{
				"Content-Type": {a.ContentType + `; name="` + a.Filename + `"`},
			}))
		}
		m.Attach(a.Filename, settings...)
	}
	return m, messageID
}

func senderDomain(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}
