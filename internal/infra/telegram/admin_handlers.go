package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ticket_dispatcher/internal/app"
	"ticket_dispatcher/internal/domain/ticket"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const (
	defaultTicketsLimit = 5
	maxTicketsLimit     = 50
)

// RegisterAdminHandlers registers the operator commands. Every command is
// refused unless the sender is the configured admin.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, cycleTimeout time.Duration, baseLogger *logrus.Entry) {
	b.Handle("/stats", func(c telebot.Context) error {
		handlerLogger := commandLogger(baseLogger, "/stats", c)
		if err := adminService.Authorize(c.Sender().ID); err != nil {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		st, err := adminService.Stats(ctx)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to read stats")
			return c.Send("Could not read ticket statistics, see the logs.")
		}
		return c.Send(app.FormatStats(st), &telebot.SendOptions{ReplyMarkup: pollNowMarkup()})
	})

	b.Handle("/cursor", func(c telebot.Context) error {
		handlerLogger := commandLogger(baseLogger, "/cursor", c)
		if err := adminService.Authorize(c.Sender().ID); err != nil {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		next, err := adminService.Cursor(ctx)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to read cursor")
			return c.Send("Could not read the cursor, see the logs.")
		}
		return c.Send(fmt.Sprintf("Next sheet row to read: %d", next))
	})

	b.Handle("/tickets", func(c telebot.Context) error {
		handlerLogger := commandLogger(baseLogger, "/tickets", c)
		if err := adminService.Authorize(c.Sender().ID); err != nil {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		limit, err := parseTicketsLimit(c.Args())
		if err != nil {
			return c.Send("Invalid command format. Use: /tickets [N]")
		}

		records, err := adminService.Tickets(ctx, limit)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to list tickets")
			return c.Send("Could not read the ticket log, see the logs.")
		}
		return c.Send(FormatRecords(records))
	})

	b.Handle("/poll", func(c telebot.Context) error {
		handlerLogger := commandLogger(baseLogger, "/poll", c)
		if err := adminService.Authorize(c.Sender().ID); err != nil {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}
		return c.Send(runPoll(ctx, cycleTimeout, adminService, handlerLogger))
	})
}

// RegisterPollNowHandler answers the inline button attached to stats reports.
func RegisterPollNowHandler(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, cycleTimeout time.Duration, baseLogger *logrus.Entry) {
	b.Handle(&telebot.Btn{Unique: app.PollNowUnique}, func(c telebot.Context) error {
		handlerLogger := commandLogger(baseLogger, "poll_now", c)
		if err := adminService.Authorize(c.Sender().ID); err != nil {
			handlerLogger.Warn("Unauthorized callback")
			return c.Respond(&telebot.CallbackResponse{Text: "Not allowed."})
		}

		summary := runPoll(ctx, cycleTimeout, adminService, handlerLogger)
		if err := c.Respond(&telebot.CallbackResponse{Text: "Poll finished"}); err != nil {
			handlerLogger.WithError(err).Warn("Failed to answer callback")
		}
		return c.Send(summary)
	})
}

func runPoll(ctx context.Context, cycleTimeout time.Duration, adminService *app.AdminService, log *logrus.Entry) string {
	ctx, cancel := context.WithTimeout(ctx, cycleTimeout)
	defer cancel()

	res, err := adminService.TriggerPoll(ctx)
	switch {
	case errors.Is(err, app.ErrCycleInProgress):
		return "A poll cycle is already running, try again in a moment."
	case err != nil:
		log.WithError(err).Error("Manual poll failed")
		return fmt.Sprintf("Poll failed: %s", err.Error())
	}
	log.WithField("sent", res.Sent).Info("Manual poll completed")
	return FormatCycleResult(res)
}

func commandLogger(base *logrus.Entry, handler string, c telebot.Context) *logrus.Entry {
	l := base.WithFields(logrus.Fields{
		"handler":   handler,
		"sender_id": c.Sender().ID,
	})
	l.Info("Command received")
	return l
}

func pollNowMarkup() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("Poll now", app.PollNowUnique)))
	return markup
}

func parseTicketsLimit(args []string) (int, error) {
	if len(args) == 0 {
		return defaultTicketsLimit, nil
	}
	if len(args) > 1 {
		return 0, errors.New("too many arguments")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid limit %q", args[0])
	}
	if n > maxTicketsLimit {
		n = maxTicketsLimit
	}
	return n, nil
}

// FormatCycleResult renders the outcome of a manual poll.
func FormatCycleResult(res *app.CycleResult) string {
	return fmt.Sprintf("Poll finished.\nRows: %d processed, %d skipped\nRetried: %d\nSent: %d\nFailed: %d\nNext row: %d",
		res.RowsProcessed, res.RowsSkipped, res.Retried, res.Sent, res.Failed, res.Cursor)
}

// FormatRecords renders ticket records one per line, oldest first.
func FormatRecords(records []ticket.Record) string {
	if len(records) == 0 {
		return "No tickets issued yet."
	}
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteByte('\n')
		}
		id := r.TicketID
		if id == "" {
			id = "-"
		}
		status := "✅"
		if r.Status == ticket.StatusFailed {
			status = "❌"
		}
		fmt.Fprintf(&b, "%s %s %s %s (%s)", status, id, r.Session, r.Email, r.Timestamp.Format("2006-01-02 15:04"))
	}
	return b.String()
}
