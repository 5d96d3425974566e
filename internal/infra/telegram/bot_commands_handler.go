// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shift_attendance_bot/internal/domain/roster"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// WorkerDirectory resolves chat users to workers.
type WorkerDirectory interface {
	GetWorkerByTelegramID(ctx context.Context, telegramID int64) (*roster.Worker, error)
}

func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	adminTelegramID int64,
	workers WorkerDirectory,
	baseLogger *logrus.Entry,
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", c.Sender().ID)
		logCtx.Info("Processing /start command")
		return c.Send(startReply(ctx, c.Sender(), adminTelegramID, workers, logCtx))
	})

	b.Handle("/help", func(c telebot.Context) error {
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", c.Sender().ID)
		logCtx.Info("Processing /help command")
		text, markdown := helpReply(ctx, c.Sender().ID, adminTelegramID, workers, logCtx)
		if markdown {
			return c.Send(text, &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
		}
		return c.Send(text)
	})
}

func startReply(ctx context.Context, sender *telebot.User, adminTelegramID int64, workers WorkerDirectory, logCtx *logrus.Entry) string {
	if sender.ID == adminTelegramID {
		logCtx.Info("User identified as Admin")
		return fmt.Sprintf("Hello, %s! Shift monitoring is running. Use /help for the list of commands.", sender.FirstName)
	}

	w, err := workers.GetWorkerByTelegramID(ctx, sender.ID)
	switch {
	case err == nil && w.IsActive:
		logCtx.WithField("worker_id", w.ID).Info("User identified as active worker")
		return fmt.Sprintf("Hello, %s! Before each of your shifts I will ask you to confirm that you are on site.", w.FullName)
	case err == nil:
		logCtx.WithField("worker_id", w.ID).Info("User identified as inactive worker")
		return "Your worker profile is inactive. Please contact your supervisor."
	case !errors.Is(err, roster.ErrWorkerNotFound):
		logCtx.WithError(err).Error("Error checking worker status for /start command")
		return "An error occurred while checking your status. Please try again later."
	}

	logCtx.Info("User is unknown")
	return fmt.Sprintf("Hello! I send shift presence reminders. If you are a worker, ask your supervisor to link Telegram ID %d to your profile.", sender.ID)
}

func helpReply(ctx context.Context, senderID, adminTelegramID int64, workers WorkerDirectory, logCtx *logrus.Entry) (string, bool) {
	if senderID == adminTelegramID {
		logCtx.Info("User identified as Admin, sending admin help.")
		var helpText strings.Builder
		helpText.WriteString("Admin commands:\n\n")
		helpText.WriteString("`/link_worker <WorkerID> <TelegramID>`\n - Link a worker profile to a Telegram account.\n\n")
		helpText.WriteString("`/abort_chain <ChainID>`\n - Stop a running escalation chain.\n\n")
		helpText.WriteString("`/escalations [YYYY-MM-DD]`\n - Show the escalation summary for a day, today by default.\n\n")
		helpText.WriteString("`/help`\n - Show this message.")
		return helpText.String(), true
	}

	w, err := workers.GetWorkerByTelegramID(ctx, senderID)
	switch {
	case err == nil && w.IsActive:
		logCtx.WithField("worker_id", w.ID).Info("User identified as active worker, sending worker help.")
		return "Shortly before each shift I send you a message with an \"I'm on site\" button. Press it once you arrive. " +
			"If you do not confirm, reminders follow and your supervisor is informed.\n\n" +
			"`/present` - Confirm all of today's shifts.\n`/help` - Show this message.", true
	case err == nil:
		return "Your worker profile is inactive. Please contact your supervisor.", false
	case !errors.Is(err, roster.ErrWorkerNotFound):
		logCtx.WithError(err).Error("Error checking worker status for /help command")
		return "An error occurred while checking your status. Please try again later.", false
	}

	logCtx.Info("User is unknown, sending restricted help.")
	return "No commands are available to you. Ask your supervisor to link your Telegram account to your worker profile.", false
}
