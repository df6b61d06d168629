// internal/app/report_service.go
package app

import (
	"context"
	"fmt"
	"strings"

	"ticket_dispatcher/internal/domain/telegram"
	"ticket_dispatcher/internal/domain/ticket"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3" // For the inline "Poll now" button
)

// PollNowUnique is the callback id of the inline button attached to stats reports.
const PollNowUnique = "poll_now"

// ReportService publishes the periodic ticket statistics summary.
type ReportService struct {
	ledger      ticket.Ledger
	chat        telegram.Client // nil when no operator chat is configured
	adminChatID int64
	logger      *logrus.Entry
}

func NewReportService(ledger ticket.Ledger, chat telegram.Client, adminChatID int64, logger *logrus.Entry) *ReportService {
	return &ReportService{
		ledger:      ledger,
		chat:        chat,
		adminChatID: adminChatID,
		logger:      logger,
	}
}

// Report logs the current statistics and pushes them to the operator chat.
func (s *ReportService) Report(ctx context.Context) error {
	st, err := s.ledger.Stats(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Error reading stats")
		return fmt.Errorf("reading ticket stats: %w", err)
	}

	rate := "N/A"
	if pct, ok := st.SuccessRate(); ok {
		rate = fmt.Sprintf("%d%%", pct)
	}
	s.logger.WithFields(logrus.Fields{
		"total":        st.Total,
		"sent":         st.Sent,
		"failed":       st.Failed,
		"success_rate": rate,
	}).Info("Ticket Statistics")

	if s.chat == nil || s.adminChatID == 0 {
		return nil
	}

	markup := &telebot.ReplyMarkup{}
	btnPoll := markup.Data("Poll now", PollNowUnique)
	markup.Inline(markup.Row(btnPoll))

	if err := s.chat.SendMessage(s.adminChatID, FormatStats(st), &telebot.SendOptions{ReplyMarkup: markup}); err != nil {
		s.logger.WithError(err).WithField("chat_id", s.adminChatID).Error("Failed to push stats to operator chat")
		return fmt.Errorf("sending stats report: %w", err)
	}
	return nil
}

// FormatStats renders stats as the multi-line summary shown to operators.
func FormatStats(st ticket.Stats) string {
	var b strings.Builder
	b.WriteString("📊 Ticket Statistics\n")
	fmt.Fprintf(&b, "Total: %d\n", st.Total)
	fmt.Fprintf(&b, "Sent: %d\n", st.Sent)
	fmt.Fprintf(&b, "Failed: %d\n", st.Failed)
	if pct, ok := st.SuccessRate(); ok {
		fmt.Fprintf(&b, "Success Rate: %d%%", pct)
	} else {
		b.WriteString("Success Rate: N/A")
	}
	return b.String()
}
