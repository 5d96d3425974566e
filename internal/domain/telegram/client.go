package telegram

import "gopkg.in/telebot.v3"

// ConfirmCallbackPrefix prefixes the inline button data of a confirmable
// chat message; the remainder is the confirmation record ID.
const ConfirmCallbackPrefix = "present_"

// Client is the part of the bot API the chat channel depends on.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}
