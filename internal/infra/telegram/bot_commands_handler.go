// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const helpText = "Available commands:\n\n" +
	"`/stats`\n - Ticket statistics with a \"Poll now\" button.\n\n" +
	"`/cursor`\n - The next sheet row the poller will read.\n\n" +
	"`/tickets [N]`\n - The last N ticket records (default 5).\n\n" +
	"`/poll`\n - Run a poll cycle now.\n\n" +
	"`/help`\n - Show this message."

func RegisterBotCommands(
	b *telebot.Bot,
	adminTelegramID int64,
	baseLogger *logrus.Entry,
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID == adminTelegramID {
			logCtx.Info("User identified as Admin")
			return c.Send(fmt.Sprintf("Hi %s! The ticket dispatcher is running. Use /help for the list of commands.", c.Sender().FirstName))
		}

		logCtx.Info("User is unknown")
		return c.Send("Hi! This bot reports on ticket delivery to the event organizers only.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if senderID != adminTelegramID {
			logCtx.Info("User is unknown, sending restricted help.")
			return c.Send("No commands are available to you.")
		}
		return c.Send(strings.TrimSpace(helpText), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}
