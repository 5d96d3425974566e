// Package gateway delivers single notification attempts over the configured
// channels. Retries are not done here; the next escalation stage is the retry.
package gateway

import (
	"context"
	"fmt"

	"shift_attendance_bot/internal/domain/escalation"
	"shift_attendance_bot/internal/domain/notification"
)

// Sender delivers one message on one channel.
type Sender interface {
	Send(ctx context.Context, to notification.Recipient, msg notification.Message) error
	Name() string
}

// Router implements notification.Gateway by channel lookup.
type Router struct {
	senders map[escalation.Channel]Sender
}

func NewRouter() *Router {
	return &Router{senders: make(map[escalation.Channel]Sender)}
}

// Register binds a sender to a channel, replacing any previous one.
func (r *Router) Register(channel escalation.Channel, s Sender) *Router {
	r.senders[channel] = s
	return r
}

func (r *Router) Send(ctx context.Context, channel escalation.Channel, to notification.Recipient, msg notification.Message) error {
	s, ok := r.senders[channel]
	if !ok {
		return fmt.Errorf("%w: %s", notification.ErrChannelNotConfigured, channel)
	}
	if err := s.Send(ctx, to, msg); err != nil {
		return fmt.Errorf("%s: %w", s.Name(), err)
	}
	return nil
}

// Channels lists the configured channels.
func (r *Router) Channels() []escalation.Channel {
	out := make([]escalation.Channel, 0, len(r.senders))
	for ch := range r.senders {
		out = append(out, ch)
	}
	return out
}
