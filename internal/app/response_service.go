// internal/app/response_service.go
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

var (
	ErrNoPendingConfirmation = errors.New("no open confirmation record for this worker")
	ErrNotRecordOwner        = errors.New("confirmation record belongs to another worker")
	ErrUnknownWorker         = errors.New("sender is not linked to a worker")
)

// ConfirmResult describes the effect of one presence confirmation.
type ConfirmResult struct {
	Record           *attendance.Record
	AlreadyConfirmed bool
	ChainCompleted   bool
}

// ResponseService ingests "present" signals. It is safe to run concurrently
// with an escalation sweep: the sweep re-reads the record before every step.
type ResponseService struct {
	records   attendance.Repository
	chains    escalation.ChainRepository
	roster    roster.Repository
	tolerance time.Duration
	logger    *logrus.Entry
}

// NewResponseService takes the trigger tolerance so that a confirmation sent
// just before midnight finds the record of a shift starting just after it.
func NewResponseService(ar attendance.Repository, cr escalation.ChainRepository, rr roster.Repository, tolerance time.Duration, logger *logrus.Entry) *ResponseService {
	if tolerance <= 0 {
		tolerance = DefaultTriggerTolerance
	}
	return &ResponseService{records: ar, chains: cr, roster: rr, tolerance: tolerance, logger: logger}
}

// ConfirmPresence confirms the open record for (worker, shift) around now.
func (s *ResponseService) ConfirmPresence(ctx context.Context, workerID, shiftID string, now time.Time) (*ConfirmResult, error) {
	var found *attendance.Record
	for _, day := range s.candidateDates(now) {
		rec, err := s.records.FindRecord(ctx, workerID, shiftID, day.date)
		if errors.Is(err, attendance.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find record for worker %s shift %s: %w", workerID, shiftID, err)
		}
		open, err := s.isOpen(ctx, rec, day.runningOnly)
		if err != nil {
			return nil, err
		}
		if open {
			return s.confirm(ctx, rec, now)
		}
		if found == nil && !day.runningOnly {
			found = rec
		}
	}
	if found == nil {
		return nil, ErrNoPendingConfirmation
	}
	return s.confirm(ctx, found, now)
}

type candidateDate struct {
	date time.Time
	// runningOnly limits the date to records whose chain is still running.
	runningOnly bool
}

// candidateDates lists the shift dates a confirmation at now can refer to,
// in lookup order: the next day when a shift after midnight is already inside
// the trigger window, today, then yesterday for overnight escalations.
func (s *ResponseService) candidateDates(now time.Time) []candidateDate {
	today := attendance.DateOf(now)
	dates := make([]candidateDate, 0, 3)
	if ahead := attendance.DateOf(now.Add(s.tolerance)); !ahead.Equal(today) {
		dates = append(dates, candidateDate{date: ahead})
	}
	dates = append(dates,
		candidateDate{date: today},
		candidateDate{date: today.AddDate(0, 0, -1), runningOnly: true},
	)
	return dates
}

// isOpen reports whether rec still waits for a response. With runningOnly
// its chain must also be running.
func (s *ResponseService) isOpen(ctx context.Context, rec *attendance.Record, runningOnly bool) (bool, error) {
	if rec.IsConfirmed() {
		return false, nil
	}
	if !runningOnly {
		return true, nil
	}
	chain, err := s.chains.GetChainByRecordID(ctx, rec.ID)
	switch {
	case errors.Is(err, escalation.ErrChainNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to get chain for record %s: %w", rec.ID, err)
	}
	return chain.IsRunning(), nil
}

// ConfirmRecord confirms a record addressed directly, e.g. from a chat
// button. The sender must be the record's worker.
func (s *ResponseService) ConfirmRecord(ctx context.Context, recordID string, senderTelegramID int64, now time.Time) (*ConfirmResult, error) {
	worker, err := s.workerByTelegram(ctx, senderTelegramID)
	if err != nil {
		return nil, err
	}
	rec, err := s.records.GetRecordByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, attendance.ErrRecordNotFound) {
			return nil, ErrNoPendingConfirmation
		}
		return nil, fmt.Errorf("failed to get record %s: %w", recordID, err)
	}
	if rec.WorkerID != worker.ID {
		return nil, ErrNotRecordOwner
	}
	return s.confirm(ctx, rec, now)
}

// ConfirmToday confirms every record of the sender's worker for today, plus
// the open records of the adjacent dates ConfirmPresence would accept.
func (s *ResponseService) ConfirmToday(ctx context.Context, senderTelegramID int64, now time.Time) ([]*ConfirmResult, error) {
	worker, err := s.workerByTelegram(ctx, senderTelegramID)
	if err != nil {
		return nil, err
	}
	today := attendance.DateOf(now)
	var recs []*attendance.Record
	for _, day := range s.candidateDates(now) {
		dayRecs, err := s.records.ListRecordsForWorkerOnDate(ctx, worker.ID, day.date)
		if err != nil {
			return nil, fmt.Errorf("failed to list records of worker %s on %s: %w", worker.ID, day.date.Format("2006-01-02"), err)
		}
		for _, rec := range dayRecs {
			if day.date.Equal(today) {
				recs = append(recs, rec)
				continue
			}
			open, err := s.isOpen(ctx, rec, day.runningOnly)
			if err != nil {
				return nil, err
			}
			if open {
				recs = append(recs, rec)
			}
		}
	}
	if len(recs) == 0 {
		return nil, ErrNoPendingConfirmation
	}

	results := make([]*ConfirmResult, 0, len(recs))
	for _, rec := range recs {
		res, err := s.confirm(ctx, rec, now)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *ResponseService) workerByTelegram(ctx context.Context, telegramID int64) (*roster.Worker, error) {
	w, err := s.roster.GetWorkerByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, roster.ErrWorkerNotFound) {
			return nil, ErrUnknownWorker
		}
		return nil, fmt.Errorf("failed to look up worker by telegram ID: %w", err)
	}
	return w, nil
}

// confirm sets the response time once and stops any running chain. Calling
// it again for a confirmed record only re-checks the chain.
func (s *ResponseService) confirm(ctx context.Context, rec *attendance.Record, now time.Time) (*ConfirmResult, error) {
	logCtx := s.logger.WithFields(logrus.Fields{
		"record_id": rec.ID,
		"worker_id": rec.WorkerID,
		"shift_id":  rec.ShiftID,
	})
	res := &ConfirmResult{Record: rec}

	if err := s.records.SetConfirmed(ctx, rec.ID, now); err != nil {
		if !errors.Is(err, attendance.ErrAlreadyConfirmed) {
			return nil, fmt.Errorf("failed to confirm record %s: %w", rec.ID, err)
		}
		logCtx.Info("Record already confirmed")
		res.AlreadyConfirmed = true
	} else {
		rec.ConfirmationStatus = attendance.ConfirmationConfirmed
		rec.ResponseTime.Time, rec.ResponseTime.Valid = now, true
		logCtx.Info("Presence confirmed")
	}

	chain, err := s.chains.GetChainByRecordID(ctx, rec.ID)
	switch {
	case errors.Is(err, escalation.ErrChainNotFound):
		return res, nil
	case err != nil:
		return nil, fmt.Errorf("failed to get chain for record %s: %w", rec.ID, err)
	}

	if chain.IsRunning() {
		err := s.chains.CompleteChain(ctx, chain.ID, escalation.OutcomeResolvedByResponse)
		switch {
		case err == nil:
			res.ChainCompleted = true
			logCtx.WithField("chain_id", chain.ID).Info("Escalation chain resolved by response")
		case errors.Is(err, escalation.ErrChainNotRunning):
		default:
			return nil, fmt.Errorf("failed to complete chain %s: %w", chain.ID, err)
		}
	}

	// Re-read after the response is stored: a sweep may have marked the
	// record escalating since it was loaded, and cannot do so any more.
	fresh, err := s.records.GetRecordByID(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read record %s: %w", rec.ID, err)
	}
	if fresh.EscalationStatus == attendance.EscalationEscalating {
		if err := s.records.SetEscalationStatus(ctx, rec.ID, attendance.EscalationResolved); err != nil {
			return nil, fmt.Errorf("failed to mark record %s resolved: %w", rec.ID, err)
		}
		fresh.EscalationStatus = attendance.EscalationResolved
	}
	res.Record = fresh
	return res, nil
}
