// internal/app/dispatcher.go
package app

import (
	"context"
	"database/sql"
	"time"

	"shift_attendance_bot/internal/domain/escalation"
	"shift_attendance_bot/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

// Dispatcher sends stage notifications and writes one audit row per attempt.
type Dispatcher struct {
	gateway notification.Gateway
	logs    notification.LogRepository
	logger  *logrus.Entry
}

func NewDispatcher(gw notification.Gateway, logs notification.LogRepository, logger *logrus.Entry) *Dispatcher {
	return &Dispatcher{gateway: gw, logs: logs, logger: logger}
}

// dispatch sends to every target on channel. The stage counts as sent if at
// least one attempt succeeded. Send errors never propagate.
func (d *Dispatcher) dispatch(ctx context.Context, sc *stageContext, chainID string, stageIndex int, channel escalation.Channel, targets []target, now time.Time) escalation.StageOutcome {
	outcome := escalation.StageFailed
	for _, t := range targets {
		msg := composeMessage(sc, stageIndex, t)
		entry := &notification.LogEntry{
			ID:          newID(),
			RecordID:    sc.record.ID,
			ChainID:     chainID,
			StageIndex:  stageIndex,
			Channel:     channel,
			RecipientID: sql.NullString{String: t.recipient.WorkerID, Valid: true},
			Payload:     msg.Text,
			AttemptedAt: now,
		}
		logCtx := d.logger.WithFields(logrus.Fields{
			"record_id":    sc.record.ID,
			"chain_id":     chainID,
			"stage_index":  stageIndex,
			"channel":      channel,
			"recipient_id": t.recipient.WorkerID,
		})

		if err := d.gateway.Send(ctx, channel, t.recipient, msg); err != nil {
			logCtx.WithError(err).Warn("Notification dispatch failed")
			entry.Outcome = notification.OutcomeFailed
			entry.Error = sql.NullString{String: err.Error(), Valid: true}
		} else {
			logCtx.Info("Notification dispatched")
			entry.Outcome = notification.OutcomeSent
			outcome = escalation.StageSent
		}
		d.appendLog(ctx, entry)
	}
	return outcome
}

// logUnresolved records a stage that had nobody to send to.
func (d *Dispatcher) logUnresolved(ctx context.Context, recordID, chainID string, stageIndex int, channel escalation.Channel, cause error, now time.Time) {
	d.logger.WithError(cause).WithFields(logrus.Fields{
		"record_id":   recordID,
		"chain_id":    chainID,
		"stage_index": stageIndex,
	}).Warn("Stage recipient unresolved")

	d.appendLog(ctx, &notification.LogEntry{
		ID:          newID(),
		RecordID:    recordID,
		ChainID:     chainID,
		StageIndex:  stageIndex,
		Channel:     channel,
		Outcome:     notification.OutcomeFailed,
		Error:       sql.NullString{String: cause.Error(), Valid: true},
		AttemptedAt: now,
	})
}

func (d *Dispatcher) appendLog(ctx context.Context, entry *notification.LogEntry) {
	if err := d.logs.AppendLogEntry(ctx, entry); err != nil {
		d.logger.WithError(err).WithFields(logrus.Fields{
			"record_id":   entry.RecordID,
			"stage_index": entry.StageIndex,
		}).Error("Failed to append notification log entry")
	}
}
