// internal/app/trigger_service.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shift_attendance_bot/internal/domain/attendance"
	"shift_attendance_bot/internal/domain/escalation"
	"shift_attendance_bot/internal/domain/roster"

	"github.com/sirupsen/logrus"
)

// DefaultTriggerTolerance is how far a shift start may be from the sweep
// time and still be matched. The trigger cron interval must not exceed it.
const DefaultTriggerTolerance = 5 * time.Minute

var errAlreadyTriggered = errors.New("confirmation already triggered")

// TriggerReport summarises one roster-scan sweep.
type TriggerReport struct {
	ShiftsDue        int `json:"shiftsDue"`
	RecordsCreated   int `json:"recordsCreated"`
	AlreadyTriggered int `json:"alreadyTriggered"`
	ChainsReopened   int `json:"chainsReopened"`
	Skipped          int `json:"skipped"`
	Failed           int `json:"failed"`
}

// TriggerService scans the roster for shifts about to start and opens a
// confirmation record plus escalation chain for every scheduled worker.
type TriggerService struct {
	roster          roster.Repository
	records         attendance.Repository
	chains          escalation.ChainRepository
	policies        escalation.PolicyRepository
	resolver        *RecipientResolver
	dispatcher      *Dispatcher
	tolerance       time.Duration
	defaultPolicyID string
	logger          *logrus.Entry
}

func NewTriggerService(
	rr roster.Repository,
	ar attendance.Repository,
	cr escalation.ChainRepository,
	pr escalation.PolicyRepository,
	resolver *RecipientResolver,
	dispatcher *Dispatcher,
	tolerance time.Duration,
	defaultPolicyID string,
	logger *logrus.Entry,
) *TriggerService {
	if tolerance <= 0 {
		tolerance = DefaultTriggerTolerance
	}
	return &TriggerService{
		roster:          rr,
		records:         ar,
		chains:          cr,
		policies:        pr,
		resolver:        resolver,
		dispatcher:      dispatcher,
		tolerance:       tolerance,
		defaultPolicyID: defaultPolicyID,
		logger:          logger,
	}
}

// RunSweep processes every shift due at now. Failures are contained to the
// (shift, worker) pair; the returned error is only set when the roster
// itself could not be read.
func (s *TriggerService) RunSweep(ctx context.Context, now time.Time) (TriggerReport, error) {
	var report TriggerReport
	window := roster.WindowAround(now, s.tolerance)

	var shifts []*roster.Shift
	for _, day := range window.Dates() {
		dayShifts, err := s.roster.ListShiftsDueForConfirmation(ctx, day, window)
		if err != nil {
			return report, fmt.Errorf("failed to list shifts due on %s: %w", day.Format("2006-01-02"), err)
		}
		shifts = append(shifts, dayShifts...)
	}
	report.ShiftsDue = len(shifts)
	if len(shifts) == 0 {
		s.logger.Debug("No shifts due for confirmation")
		return report, nil
	}

	for _, shift := range shifts {
		if shift.Status != roster.ShiftScheduled || !window.Contains(shift.StartTime) {
			continue
		}
		shiftLog := s.logger.WithFields(logrus.Fields{
			"shift_id":        shift.ID,
			"organization_id": shift.OrganizationID,
		})

		policy, err := s.policyFor(ctx, shift)
		if err != nil {
			shiftLog.WithError(err).Error("Skipping shift: escalation policy unavailable")
			report.Skipped += len(shift.WorkerIDs)
			continue
		}

		for _, workerID := range shift.WorkerIDs {
			reopened, err := s.triggerWorker(ctx, now, shift, policy, workerID)
			switch {
			case err == nil && reopened:
				report.ChainsReopened++
			case err == nil:
				report.RecordsCreated++
			case errors.Is(err, errAlreadyTriggered):
				report.AlreadyTriggered++
			default:
				shiftLog.WithError(err).WithField("worker_id", workerID).Error("Failed to trigger confirmation")
				report.Failed++
			}
		}
	}

	s.logger.WithFields(logrus.Fields{
		"shifts_due":        report.ShiftsDue,
		"records_created":   report.RecordsCreated,
		"already_triggered": report.AlreadyTriggered,
		"chains_reopened":   report.ChainsReopened,
		"skipped":           report.Skipped,
		"failed":            report.Failed,
	}).Info("Trigger sweep finished")
	return report, nil
}

func (s *TriggerService) policyFor(ctx context.Context, shift *roster.Shift) (*escalation.Policy, error) {
	policyID := shift.EscalationPolicyID
	if policyID == "" {
		policyID = s.defaultPolicyID
	}
	if policyID == "" {
		return nil, fmt.Errorf("shift %s has no escalation policy and no default is configured: %w", shift.ID, escalation.ErrPolicyNotFound)
	}
	policy, err := s.policies.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get policy %s: %w", policyID, err)
	}
	if len(policy.Stages) == 0 {
		return nil, fmt.Errorf("policy %s has no stages: %w", policyID, escalation.ErrInvalidPolicy)
	}
	return policy, nil
}

// triggerWorker creates the record, opens the chain and sends the stage-0
// chat notification. A record left without a chain by an interrupted sweep
// gets its chain on the next sweep that still sees the shift.
func (s *TriggerService) triggerWorker(ctx context.Context, now time.Time, shift *roster.Shift, policy *escalation.Policy, workerID string) (reopened bool, err error) {
	date := attendance.DateOf(shift.ShiftDate)

	// Explicit existence check; the unique constraint behind CreateRecord
	// covers sweeps racing each other.
	rec, err := s.records.FindRecord(ctx, workerID, shift.ID, date)
	switch {
	case err == nil:
		if _, err := s.chains.GetChainByRecordID(ctx, rec.ID); err == nil {
			return false, errAlreadyTriggered
		} else if !errors.Is(err, escalation.ErrChainNotFound) {
			return false, fmt.Errorf("failed to check chain of record %s: %w", rec.ID, err)
		}
		reopened = true
	case errors.Is(err, attendance.ErrRecordNotFound):
		rec = &attendance.Record{
			ID:                 newID(),
			OrganizationID:     shift.OrganizationID,
			ShiftID:            shift.ID,
			WorkerID:           workerID,
			ShiftDate:          date,
			ConfirmationStatus: attendance.ConfirmationPending,
			EscalationStatus:   attendance.EscalationNone,
		}
		if err := s.records.CreateRecord(ctx, rec); err != nil {
			if errors.Is(err, attendance.ErrDuplicateRecord) {
				return false, errAlreadyTriggered
			}
			return false, fmt.Errorf("failed to create confirmation record: %w", err)
		}
	default:
		return false, fmt.Errorf("failed to check existing record: %w", err)
	}

	if rec.IsConfirmed() {
		// Confirmed before its chain existed: nothing to escalate.
		return false, errAlreadyTriggered
	}

	chain := &escalation.Chain{
		ID:                newID(),
		RecordID:          rec.ID,
		PolicyID:          policy.ID,
		CurrentStageIndex: 0,
		Status:            escalation.ChainRunning,
		NextActionTime:    sql.NullTime{Time: now.Add(policy.Stages[0].Wait()), Valid: true},
		History:           []escalation.HistoryEntry{{StageIndex: 0, ExecutedAt: now, Outcome: escalation.StagePending}},
	}
	if err := s.chains.CreateChain(ctx, chain); err != nil {
		if errors.Is(err, escalation.ErrDuplicateChain) {
			return false, errAlreadyTriggered
		}
		return false, fmt.Errorf("record %s created but escalation chain was not: %w", rec.ID, err)
	}

	sc := loadStageContext(ctx, s.roster, rec, policy, shift, s.logger)
	outcome := escalation.StageFailed
	targets, err := s.resolver.workerSelf(sc)
	if err != nil {
		s.dispatcher.logUnresolved(ctx, rec.ID, chain.ID, 0, escalation.ChannelChat, err, now)
	} else {
		outcome = s.dispatcher.dispatch(ctx, sc, chain.ID, 0, escalation.ChannelChat, targets, now)
	}
	if err := s.chains.SetStageOutcome(ctx, chain.ID, 0, outcome); err != nil {
		s.logger.WithError(err).WithField("chain_id", chain.ID).Error("Failed to record stage-0 outcome")
	}

	s.logger.WithFields(logrus.Fields{
		"record_id":        rec.ID,
		"chain_id":         chain.ID,
		"worker_id":        workerID,
		"shift_id":         shift.ID,
		"reopened":         reopened,
		"initial_outcome":  outcome,
		"next_action_time": chain.NextActionTime.Time.Format(time.RFC3339),
	}).Info("Confirmation triggered")
	return reopened, nil
}
