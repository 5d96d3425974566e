package telegram

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"shift_attendance_bot/internal/app"
	"shift_attendance_bot/internal/domain/attendance"
	"shift_attendance_bot/internal/domain/escalation"
	"shift_attendance_bot/internal/domain/roster"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const unauthorizedText = "Error: you are not allowed to run this command."

// AdminOperations is the slice of app.AdminService the admin commands use.
type AdminOperations interface {
	Authorize(performingAdminID int64) error
	LinkWorker(ctx context.Context, workerID string, telegramID int64) (*roster.Worker, error)
	AbortChain(ctx context.Context, chainID string) (*escalation.Chain, error)
	EscalationSummary(ctx context.Context, date time.Time) (*app.EscalationSummary, error)
}

// RegisterAdminHandlers registers handlers for admin commands.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, admin AdminOperations, clock func() time.Time, baseLogger *logrus.Entry) {
	adminCommand := func(name string, reply func(args []string, logger *logrus.Entry) string) {
		b.Handle(name, func(c telebot.Context) error {
			handlerLogger := baseLogger.WithFields(logrus.Fields{
				"handler":   name,
				"sender_id": c.Sender().ID,
			})
			handlerLogger.Info("Command received")

			if err := admin.Authorize(c.Sender().ID); err != nil {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(unauthorizedText)
			}
			return c.Send(reply(c.Args(), handlerLogger))
		})
	}

	adminCommand("/link_worker", func(args []string, logger *logrus.Entry) string {
		return linkWorkerReply(ctx, admin, args, logger)
	})
	adminCommand("/abort_chain", func(args []string, logger *logrus.Entry) string {
		return abortChainReply(ctx, admin, args, logger)
	})
	adminCommand("/escalations", func(args []string, logger *logrus.Entry) string {
		return escalationsReply(ctx, admin, args, clock(), logger)
	})
}

// linkWorkerReply handles /link_worker <WorkerID> <TelegramID>.
func linkWorkerReply(ctx context.Context, admin AdminOperations, args []string, logger *logrus.Entry) string {
	if len(args) != 2 {
		logger.WithField("args_count", len(args)).Warn("Invalid command format")
		return "Invalid command format. Use: /link_worker <WorkerID> <TelegramID>"
	}
	workerID := strings.TrimSpace(args[0])
	telegramID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || telegramID <= 0 {
		return "Error: Telegram ID must be a positive number."
	}
	logger = logger.WithFields(logrus.Fields{"worker_id": workerID, "telegram_id": telegramID})

	w, err := admin.LinkWorker(ctx, workerID, telegramID)
	if err != nil {
		logWithError := logger.WithError(err)
		switch {
		case errors.Is(err, roster.ErrWorkerNotFound):
			logWithError.Warn("Worker to link not found")
			return fmt.Sprintf("Worker %s not found.", workerID)
		case errors.Is(err, roster.ErrTelegramInUse):
			logWithError.Warn("Telegram account already linked")
			return fmt.Sprintf("Telegram ID %d is already linked to another worker.", telegramID)
		default:
			logWithError.Error("Failed to link worker")
			return fmt.Sprintf("An error occurred while linking the worker: %s", err.Error())
		}
	}
	logger.Info("Worker linked successfully")
	return fmt.Sprintf("Worker %s (%s) is now linked to Telegram ID %d.", w.FullName, w.ID, telegramID)
}

// abortChainReply handles /abort_chain <ChainID>.
func abortChainReply(ctx context.Context, admin AdminOperations, args []string, logger *logrus.Entry) string {
	if len(args) != 1 {
		return "Invalid command format. Use: /abort_chain <ChainID>"
	}
	chainID := strings.TrimSpace(args[0])
	logger = logger.WithField("chain_id", chainID)

	chain, err := admin.AbortChain(ctx, chainID)
	if err != nil {
		logWithError := logger.WithError(err)
		switch {
		case errors.Is(err, escalation.ErrChainNotFound):
			logWithError.Warn("Chain to abort not found")
			return fmt.Sprintf("Escalation chain %s not found.", chainID)
		case errors.Is(err, app.ErrChainAlreadyCompleted):
			logWithError.Warn("Chain already completed")
			return fmt.Sprintf("Escalation chain %s is already completed (%s).", chainID, chain.Outcome)
		default:
			logWithError.Error("Failed to abort chain")
			return fmt.Sprintf("An error occurred while aborting the chain: %s", err.Error())
		}
	}
	logger.Info("Chain aborted")
	return fmt.Sprintf("Escalation chain %s for record %s aborted at stage %d.", chain.ID, chain.RecordID, chain.CurrentStageIndex)
}

// escalationsReply handles /escalations [YYYY-MM-DD]; the default is today.
func escalationsReply(ctx context.Context, admin AdminOperations, args []string, now time.Time, logger *logrus.Entry) string {
	date := now
	if len(args) > 0 {
		parsed, err := time.ParseInLocation("2006-01-02", args[0], now.Location())
		if err != nil {
			return "Invalid date. Use: /escalations [YYYY-MM-DD]"
		}
		date = parsed
	}

	sum, err := admin.EscalationSummary(ctx, date)
	if err != nil {
		logger.WithError(err).Error("Failed to build escalation summary")
		return fmt.Sprintf("An error occurred while building the summary: %s", err.Error())
	}
	return formatSummary(sum)
}

func formatSummary(sum *app.EscalationSummary) string {
	var response strings.Builder
	response.WriteString(fmt.Sprintf("--- Escalations for %s ---\n", sum.Date.Format("2006-01-02")))
	if sum.Total == 0 {
		response.WriteString("No confirmation records.")
		return response.String()
	}
	response.WriteString(fmt.Sprintf("Records: %d, awaiting confirmation: %d\n", sum.Total, sum.Pending))

	statuses := make([]string, 0, len(sum.ByStatus))
	for st := range sum.ByStatus {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		response.WriteString(fmt.Sprintf("%s: %d\n", st, sum.ByStatus[attendance.EscalationStatus(st)]))
	}

	if len(sum.Failed) > 0 {
		response.WriteString("Needs follow-up:\n")
		for _, rec := range sum.Failed {
			response.WriteString(fmt.Sprintf("- worker %s, shift %s (record %s)\n", rec.WorkerID, rec.ShiftID, rec.ID))
		}
	}
	return strings.TrimRight(response.String(), "\n")
}
