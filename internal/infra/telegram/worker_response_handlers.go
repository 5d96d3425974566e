// internal/infra/telegram/worker_response_handlers.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shift_attendance_bot/internal/app"
	domaintg "shift_attendance_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// PresenceConfirmer is what the chat handlers need from the response side.
type PresenceConfirmer interface {
	ConfirmRecord(ctx context.Context, recordID string, senderTelegramID int64, now time.Time) (*app.ConfirmResult, error)
	ConfirmToday(ctx context.Context, senderTelegramID int64, now time.Time) ([]*app.ConfirmResult, error)
}

// RegisterWorkerResponseHandlers wires the confirm button and the /present
// command. clock supplies "now" in the organisation's time zone.
func RegisterWorkerResponseHandlers(ctx context.Context, b *telebot.Bot, confirmer PresenceConfirmer, clock func() time.Time, baseLogger *logrus.Entry) {
	responseLogger := baseLogger.WithField("handler_group", "worker_response")

	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		return handleConfirmCallback(ctx, c, confirmer, clock(), responseLogger)
	})

	b.Handle("/present", func(c telebot.Context) error {
		return handlePresentCommand(ctx, c, confirmer, clock(), responseLogger)
	})
}

func handleConfirmCallback(ctx context.Context, c telebot.Context, confirmer PresenceConfirmer, now time.Time, logger *logrus.Entry) error {
	text, alert := confirmCallbackReply(ctx, confirmer, c.Callback().Data, c.Sender().ID, now, logger)
	return c.Respond(&telebot.CallbackResponse{Text: text, ShowAlert: alert})
}

func handlePresentCommand(ctx context.Context, c telebot.Context, confirmer PresenceConfirmer, now time.Time, logger *logrus.Entry) error {
	return c.Send(presentCommandReply(ctx, confirmer, c.Sender().ID, now, logger))
}

// confirmCallbackReply returns the toast text for a button press and whether
// it should be shown as an alert.
func confirmCallbackReply(ctx context.Context, confirmer PresenceConfirmer, data string, senderID int64, now time.Time, logger *logrus.Entry) (string, bool) {
	data = strings.TrimSpace(data)
	logCtx := logger.WithFields(logrus.Fields{"callback_data": data, "sender_id": senderID})

	recordID, ok := strings.CutPrefix(data, domaintg.ConfirmCallbackPrefix)
	if !ok || recordID == "" {
		logCtx.Warn("Unhandled callback data")
		return "Unknown action.", false
	}

	res, err := confirmer.ConfirmRecord(ctx, recordID, senderID, now)
	if err != nil {
		logCtx.WithError(err).Warn("Could not confirm presence from button")
		return confirmErrorText(err), true
	}
	if res.AlreadyConfirmed {
		return "Already confirmed, thank you.", false
	}
	logCtx.WithField("record_id", recordID).Info("Presence confirmed via button")
	return "Presence confirmed. Have a good shift!", false
}

func presentCommandReply(ctx context.Context, confirmer PresenceConfirmer, senderID int64, now time.Time, logger *logrus.Entry) string {
	logCtx := logger.WithFields(logrus.Fields{"command": "/present", "sender_id": senderID})

	results, err := confirmer.ConfirmToday(ctx, senderID, now)
	if err != nil && len(results) == 0 {
		logCtx.WithError(err).Warn("Could not confirm presence from command")
		return confirmErrorText(err)
	}
	if err != nil {
		logCtx.WithError(err).Error("Presence confirmed for some shifts only")
	}

	fresh := 0
	for _, r := range results {
		if !r.AlreadyConfirmed {
			fresh++
		}
	}
	logCtx.WithFields(logrus.Fields{"records": len(results), "newly_confirmed": fresh}).Info("Processed /present")
	if fresh == 0 {
		return "Your presence for today was already confirmed."
	}
	return fmt.Sprintf("Presence confirmed for %d shift(s) today. Have a good shift!", fresh)
}

func confirmErrorText(err error) string {
	switch {
	case errors.Is(err, app.ErrUnknownWorker):
		return "Your Telegram account is not linked to a worker. Please contact your supervisor."
	case errors.Is(err, app.ErrNotRecordOwner):
		return "This confirmation belongs to another worker."
	case errors.Is(err, app.ErrNoPendingConfirmation):
		return "There is no shift waiting for your confirmation today."
	default:
		return "Something went wrong while confirming. Please try again."
	}
}
