// internal/app/escalation_service.go
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

type sweepResult int

const (
	resultAdvanced sweepResult = iota
	resultResolved
	resultExhausted
	resultSkipped
)

// EscalationReport summarises one escalation sweep.
type EscalationReport struct {
	Due       int `json:"due"`
	Advanced  int `json:"advanced"`
	Resolved  int `json:"resolved"`
	Exhausted int `json:"exhausted"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// EscalationService advances due escalation chains by one step per sweep.
type EscalationService struct {
	records    attendance.Repository
	chains     escalation.ChainRepository
	policies   escalation.PolicyRepository
	roster     roster.Repository
	resolver   *RecipientResolver
	dispatcher *Dispatcher
	logger     *logrus.Entry
}

func NewEscalationService(
	ar attendance.Repository,
	cr escalation.ChainRepository,
	pr escalation.PolicyRepository,
	rr roster.Repository,
	resolver *RecipientResolver,
	dispatcher *Dispatcher,
	logger *logrus.Entry,
) *EscalationService {
	return &EscalationService{
		records:    ar,
		chains:     cr,
		policies:   pr,
		roster:     rr,
		resolver:   resolver,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RunSweep processes every running chain whose next action time is at or
// before now. Chains are independent; one failing chain never stops the rest.
func (s *EscalationService) RunSweep(ctx context.Context, now time.Time) (EscalationReport, error) {
	var report EscalationReport

	due, err := s.chains.FindDueChains(ctx, now)
	if err != nil {
		return report, fmt.Errorf("failed to find due chains: %w", err)
	}
	report.Due = len(due)

	for _, chain := range due {
		if ctx.Err() != nil {
			s.logger.WithError(ctx.Err()).Warn("Escalation sweep interrupted")
			break
		}
		result, err := s.processChain(ctx, now, chain)
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"chain_id":  chain.ID,
				"record_id": chain.RecordID,
			}).Error("Failed to process escalation chain")
			report.Failed++
			continue
		}
		switch result {
		case resultAdvanced:
			report.Advanced++
		case resultResolved:
			report.Resolved++
		case resultExhausted:
			report.Exhausted++
		case resultSkipped:
			report.Skipped++
		}
	}

	if report.Due > 0 {
		s.logger.WithFields(logrus.Fields{
			"due":       report.Due,
			"advanced":  report.Advanced,
			"resolved":  report.Resolved,
			"exhausted": report.Exhausted,
			"skipped":   report.Skipped,
			"failed":    report.Failed,
		}).Info("Escalation sweep finished")
	}
	return report, nil
}

func (s *EscalationService) processChain(ctx context.Context, now time.Time, chain *escalation.Chain) (result sweepResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing chain %s: %v", chain.ID, r)
		}
	}()

	chainLog := s.logger.WithFields(logrus.Fields{
		"chain_id":    chain.ID,
		"record_id":   chain.RecordID,
		"stage_index": chain.CurrentStageIndex,
	})

	// 1. A confirmed response always wins.
	rec, err := s.records.GetRecordByID(ctx, chain.RecordID)
	if err != nil {
		if errors.Is(err, attendance.ErrRecordNotFound) {
			chainLog.WithError(err).Error("Confirmation record missing, leaving chain for manual inspection")
			return resultSkipped, nil
		}
		return 0, fmt.Errorf("failed to get record %s: %w", chain.RecordID, err)
	}
	if rec.IsConfirmed() {
		if err := s.complete(ctx, chain, rec, escalation.OutcomeResolvedByResponse); err != nil {
			if errors.Is(err, escalation.ErrChainNotRunning) {
				return resultSkipped, nil
			}
			return 0, err
		}
		chainLog.Info("Chain resolved by worker response")
		return resultResolved, nil
	}

	// 2. Stage list exhausted.
	policy, err := s.policies.GetPolicy(ctx, chain.PolicyID)
	if err != nil {
		if errors.Is(err, escalation.ErrPolicyNotFound) {
			chainLog.WithError(err).WithField("policy_id", chain.PolicyID).Error("Escalation policy missing, leaving chain for manual inspection")
			return resultSkipped, nil
		}
		return 0, fmt.Errorf("failed to get policy %s: %w", chain.PolicyID, err)
	}

	next := chain.CurrentStageIndex + 1
	if next >= len(policy.Stages) {
		if err := s.complete(ctx, chain, rec, escalation.OutcomeStagesExhausted); err != nil {
			if errors.Is(err, escalation.ErrChainNotRunning) {
				return resultSkipped, nil
			}
			return 0, err
		}
		chainLog.Warn("Escalation stages exhausted, worker presence still unconfirmed")
		return resultExhausted, nil
	}

	// 3. Execute the next stage. The cursor is claimed before dispatch so an
	// overlapping sweep cannot send the same stage twice.
	stage := policy.Stages[next]
	nextAction := sql.NullTime{Time: now.Add(stage.Wait()), Valid: true}
	entry := escalation.HistoryEntry{StageIndex: next, ExecutedAt: now, Outcome: escalation.StagePending}
	if err := s.chains.AdvanceChain(ctx, chain.ID, next, nextAction, entry); err != nil {
		if errors.Is(err, escalation.ErrStaleAdvance) {
			chainLog.Info("Chain already advanced or completed by another writer")
			return resultSkipped, nil
		}
		return 0, fmt.Errorf("failed to advance chain %s to stage %d: %w", chain.ID, next, err)
	}
	if err := s.records.MarkEscalating(ctx, rec.ID); err != nil {
		if errors.Is(err, attendance.ErrAlreadyConfirmed) {
			return s.resolveClaimed(ctx, chain, next, chainLog)
		}
		chainLog.WithError(err).Error("Failed to mark record as escalating")
	}

	sc := loadStageContext(ctx, s.roster, rec, policy, nil, chainLog)
	outcome := escalation.StageFailed
	targets, err := s.resolver.resolve(ctx, stage.RecipientRule, sc)
	if err != nil {
		s.dispatcher.logUnresolved(ctx, rec.ID, chain.ID, next, stage.Channel, err, now)
	} else {
		outcome = s.dispatcher.dispatch(ctx, sc, chain.ID, next, stage.Channel, targets, now)
	}

	if err := s.chains.SetStageOutcome(ctx, chain.ID, next, outcome); err != nil {
		chainLog.WithError(err).WithField("next_stage", next).Error("Failed to record stage outcome")
	}

	chainLog.WithFields(logrus.Fields{
		"next_stage":       next,
		"channel":          stage.Channel,
		"recipient_rule":   stage.RecipientRule,
		"outcome":          outcome,
		"next_action_time": nextAction.Time.Format(time.RFC3339),
	}).Info("Escalation stage executed")
	return resultAdvanced, nil
}

// resolveClaimed handles a response that landed between the stage claim and
// the escalating mark. The claimed stage is not sent.
func (s *EscalationService) resolveClaimed(ctx context.Context, chain *escalation.Chain, stageIndex int, chainLog *logrus.Entry) (sweepResult, error) {
	if err := s.chains.SetStageOutcome(ctx, chain.ID, stageIndex, escalation.StageSkipped); err != nil {
		chainLog.WithError(err).WithField("next_stage", stageIndex).Error("Failed to record stage outcome")
	}
	rec, err := s.records.GetRecordByID(ctx, chain.RecordID)
	if err != nil {
		return 0, fmt.Errorf("failed to re-read record %s: %w", chain.RecordID, err)
	}
	if err := s.complete(ctx, chain, rec, escalation.OutcomeResolvedByResponse); err != nil {
		if errors.Is(err, escalation.ErrChainNotRunning) {
			chainLog.Info("Response arrived during dispatch, chain already resolved")
			return resultSkipped, nil
		}
		return 0, err
	}
	chainLog.Info("Chain resolved by worker response")
	return resultResolved, nil
}

// complete closes the chain and moves the record's escalation status.
func (s *EscalationService) complete(ctx context.Context, chain *escalation.Chain, rec *attendance.Record, outcome escalation.CompletionOutcome) error {
	if err := s.chains.CompleteChain(ctx, chain.ID, outcome); err != nil {
		return fmt.Errorf("failed to complete chain %s: %w", chain.ID, err)
	}

	var status attendance.EscalationStatus
	switch outcome {
	case escalation.OutcomeStagesExhausted:
		status = attendance.EscalationFailed
	default:
		if rec.EscalationStatus != attendance.EscalationEscalating {
			return nil
		}
		status = attendance.EscalationResolved
	}
	if err := s.records.SetEscalationStatus(ctx, rec.ID, status); err != nil {
		return fmt.Errorf("chain %s completed but record %s status not updated: %w", chain.ID, rec.ID, err)
	}
	return nil
}
