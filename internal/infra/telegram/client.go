// internal/infra/telegram/client.go
package telegram

import (
	"gopkg.in/telebot.v3"
)

// TelebotAdapter satisfies domain telegram.Client on top of a live bot.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage delivers text to a private chat. Workers talk to the bot
// directly, so the chat ID equals their user ID.
func (tba *TelebotAdapter) SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}
	_, err := tba.bot.Send(&telebot.User{ID: recipientChatID}, text, options)
	return err
}
