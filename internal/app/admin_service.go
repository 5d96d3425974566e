package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shift_attendance_bot/internal/domain/attendance"
	"shift_attendance_bot/internal/domain/escalation"
	"shift_attendance_bot/internal/domain/roster"

	"github.com/sirupsen/logrus"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrChainAlreadyCompleted = fmt.Errorf("escalation chain is already completed")

// EscalationSummary is the operator view of one day.
type EscalationSummary struct {
	Date     time.Time
	Total    int
	Pending  int
	ByStatus map[attendance.EscalationStatus]int
	Failed   []*attendance.Record // chains exhausted, need human follow-up
}

type AdminService struct {
	records         attendance.Repository
	chains          escalation.ChainRepository
	roster          roster.Repository
	adminTelegramID int64
	logger          *logrus.Entry
}

func NewAdminService(ar attendance.Repository, cr escalation.ChainRepository, rr roster.Repository, adminID int64, logger *logrus.Entry) *AdminService {
	return &AdminService{
		records:         ar,
		chains:          cr,
		roster:          rr,
		adminTelegramID: adminID,
		logger:          logger,
	}
}

// Authorize checks that the chat user is the configured admin.
func (s *AdminService) Authorize(performingAdminID int64) error {
	if s.adminTelegramID == 0 || performingAdminID != s.adminTelegramID {
		return ErrAdminNotAuthorized
	}
	return nil
}

// LinkWorker attaches a Telegram account to a worker so the chat channel
// can reach them and their button presses can be attributed.
func (s *AdminService) LinkWorker(ctx context.Context, workerID string, telegramID int64) (*roster.Worker, error) {
	w, err := s.roster.GetWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if err := s.roster.LinkTelegram(ctx, workerID, telegramID); err != nil {
		return nil, fmt.Errorf("failed to link telegram account: %w", err)
	}
	w.TelegramID.Int64, w.TelegramID.Valid = telegramID, true
	s.logger.WithFields(logrus.Fields{"worker_id": workerID, "telegram_id": telegramID}).Info("Worker linked to telegram")
	return w, nil
}

// AbortChain forcibly completes a running chain. The record's escalation
// status moves to resolved if it was mid-escalation.
func (s *AdminService) AbortChain(ctx context.Context, chainID string) (*escalation.Chain, error) {
	chain, err := s.chains.GetChainByID(ctx, chainID)
	if err != nil {
		return nil, err
	}
	if err := s.chains.CompleteChain(ctx, chainID, escalation.OutcomeAborted); err != nil {
		if errors.Is(err, escalation.ErrChainNotRunning) {
			return chain, ErrChainAlreadyCompleted
		}
		return nil, fmt.Errorf("failed to abort chain %s: %w", chainID, err)
	}
	chain.Status = escalation.ChainCompleted
	chain.Outcome = escalation.OutcomeAborted
	chain.NextActionTime.Valid = false

	rec, err := s.records.GetRecordByID(ctx, chain.RecordID)
	if err != nil {
		s.logger.WithError(err).WithField("chain_id", chainID).Warn("Chain aborted but its record could not be loaded")
		return chain, nil
	}
	if rec.EscalationStatus == attendance.EscalationEscalating {
		if err := s.records.SetEscalationStatus(ctx, rec.ID, attendance.EscalationResolved); err != nil {
			return chain, fmt.Errorf("chain aborted but record status not updated: %w", err)
		}
	}
	s.logger.WithFields(logrus.Fields{"chain_id": chainID, "record_id": chain.RecordID}).Warn("Escalation chain aborted by operator")
	return chain, nil
}

func (s *AdminService) EscalationSummary(ctx context.Context, date time.Time) (*EscalationSummary, error) {
	recs, err := s.records.ListRecordsByDate(ctx, attendance.DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("failed to list records for %s: %w", date.Format("2006-01-02"), err)
	}
	sum := &EscalationSummary{
		Date:     attendance.DateOf(date),
		Total:    len(recs),
		ByStatus: make(map[attendance.EscalationStatus]int),
	}
	for _, rec := range recs {
		sum.ByStatus[rec.EscalationStatus]++
		if !rec.IsConfirmed() {
			sum.Pending++
		}
		if rec.EscalationStatus == attendance.EscalationFailed {
			sum.Failed = append(sum.Failed, rec)
		}
	}
	return sum, nil
}
