package gateway

import (
	"context"
	"fmt"

	"shift_attendance_bot/internal/domain/notification"
	"shift_attendance_bot/internal/domain/telegram"

	"gopkg.in/telebot.v3"
)

const confirmButtonText = "✅ I'm on site"

// ChatSender delivers over Telegram. Confirmable messages carry an inline
// button whose callback data names the confirmation record.
type ChatSender struct {
	client telegram.Client
}

func NewChatSender(client telegram.Client) *ChatSender {
	return &ChatSender{client: client}
}

func (s *ChatSender) Send(ctx context.Context, to notification.Recipient, msg notification.Message) error {
	if to.TelegramID == 0 {
		return fmt.Errorf("%w: worker %s has no telegram account", notification.ErrNoAddress, to.WorkerID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := &telebot.SendOptions{}
	if msg.Confirmable && msg.RecordID != "" {
		opts.ReplyMarkup = &telebot.ReplyMarkup{
			InlineKeyboard: [][]telebot.InlineButton{{
				{Text: confirmButtonText, Data: telegram.ConfirmCallbackPrefix + msg.RecordID},
			}},
		}
	}
	return s.client.SendMessage(to.TelegramID, msg.Text, opts)
}

func (s *ChatSender) Name() string {
	return "chat"
}
