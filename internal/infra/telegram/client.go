// internal/infra/telegram/client.go
package telegram

import (
	"fmt"

	"ticket_dispatcher/internal/domain/telegram"

	"gopkg.in/telebot.v3"
)

var _ telegram.Client = (*TelebotAdapter)(nil)

// TelebotAdapter pushes operator messages (stats reports, poll summaries)
// through a telebot.Bot.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends text to chatID. Link previews are off unless options are given.
func (tba *TelebotAdapter) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{DisableWebPagePreview: true}
	}

	if _, err := tba.bot.Send(telebot.ChatID(chatID), text, options); err != nil {
		return fmt.Errorf("telegram send to chat %d: %w", chatID, err)
	}
	return nil
}
