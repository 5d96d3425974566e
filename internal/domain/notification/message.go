// internal/domain/notification/message.go
package notification

import (
	"context"
	"errors"

	"shift_attendance_bot/internal/domain/escalation"
)

var (
	ErrChannelNotConfigured = errors.New("notification channel not configured")
	ErrNoAddress            = errors.New("recipient has no address for channel")
)

// Recipient is a resolved addressee. Which address is used depends on the
// channel: TelegramID for chat, Phone for sms and call.
type Recipient struct {
	WorkerID   string
	Name       string
	TelegramID int64
	Phone      string
}

// Message is the payload handed to the gateway. When RecordID is set and
// the recipient is the scheduled worker, chat messages carry a confirm button.
type Message struct {
	Text        string
	RecordID    string
	Confirmable bool
}

// Gateway sends a single message attempt. It never retries: a non-nil error
// is a failed attempt and the next escalation stage is the retry.
type Gateway interface {
	Send(ctx context.Context, channel escalation.Channel, to Recipient, msg Message) error
}
