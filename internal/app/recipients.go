// internal/app/recipients.go
package app

import (
	"context"
	"errors"
	"fmt"

	"shift_attendance_bot/internal/domain/attendance"
	"shift_attendance_bot/internal/domain/escalation"
	"shift_attendance_bot/internal/domain/notification"
	"shift_attendance_bot/internal/domain/roster"

	"github.com/sirupsen/logrus"
)

// ErrRecipientUnresolved is returned when a stage has nobody to notify.
var ErrRecipientUnresolved = errors.New("recipient could not be resolved")

type recipientRole int

const (
	roleWorker recipientRole = iota // the worker scheduled on the shift
	roleStaff                       // fixed roster member, e.g. a manager
	roleCover                       // occupant of the next shift of the slot
)

type target struct {
	recipient notification.Recipient
	role      recipientRole
}

// stageContext is everything loaded once per record for executing a stage.
// worker and shift may be nil if the roster no longer has them.
type stageContext struct {
	record *attendance.Record
	policy *escalation.Policy
	worker *roster.Worker
	shift  *roster.Shift
}

// loadStageContext looks up the worker and, unless already known, the shift
// behind a record. Lookup failures are logged and leave the field nil.
func loadStageContext(ctx context.Context, rr roster.Repository, rec *attendance.Record, policy *escalation.Policy, shift *roster.Shift, logger *logrus.Entry) *stageContext {
	sc := &stageContext{record: rec, policy: policy, shift: shift}

	w, err := rr.GetWorker(ctx, rec.WorkerID)
	if err != nil {
		logger.WithError(err).WithField("worker_id", rec.WorkerID).Warn("Could not load worker for confirmation record")
	} else {
		sc.worker = w
	}

	if sc.shift != nil {
		return sc
	}
	sh, err := rr.GetShift(ctx, rec.ShiftID)
	if err != nil {
		logger.WithError(err).WithField("shift_id", rec.ShiftID).Warn("Could not load shift for confirmation record")
	} else {
		sc.shift = sh
	}
	return sc
}

// RecipientResolver maps a stage's recipient rule to concrete addressees.
type RecipientResolver struct {
	roster roster.Repository
	logger *logrus.Entry
}

func NewRecipientResolver(rr roster.Repository, logger *logrus.Entry) *RecipientResolver {
	return &RecipientResolver{roster: rr, logger: logger}
}

func (r *RecipientResolver) resolve(ctx context.Context, rule escalation.RecipientRule, sc *stageContext) ([]target, error) {
	switch rule {
	case escalation.RecipientWorkerSelf:
		return r.workerSelf(sc)
	case escalation.RecipientFixedRoster:
		return r.fixedRoster(ctx, sc)
	case escalation.RecipientNextShiftOccupant:
		return r.nextShiftOccupant(ctx, sc)
	default:
		return nil, fmt.Errorf("%w: unknown recipient rule %q", ErrRecipientUnresolved, rule)
	}
}

func (r *RecipientResolver) workerSelf(sc *stageContext) ([]target, error) {
	if sc.worker == nil {
		return nil, fmt.Errorf("%w: worker %s not found", ErrRecipientUnresolved, sc.record.WorkerID)
	}
	return []target{{recipient: recipientFromWorker(sc.worker), role: roleWorker}}, nil
}

// fixedRoster notifies every staff member that can be found. Missing or
// inactive members are logged and skipped.
func (r *RecipientResolver) fixedRoster(ctx context.Context, sc *stageContext) ([]target, error) {
	var targets []target
	for _, staffID := range sc.policy.StaffIDs {
		w, err := r.roster.GetWorker(ctx, staffID)
		if err != nil {
			r.logger.WithError(err).WithFields(logrus.Fields{
				"policy_id": sc.policy.ID,
				"staff_id":  staffID,
			}).Warn("Skipping fixed roster member")
			continue
		}
		if !w.IsActive {
			r.logger.WithField("staff_id", staffID).Info("Skipping inactive fixed roster member")
			continue
		}
		targets = append(targets, target{recipient: recipientFromWorker(w), role: roleStaff})
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no active staff on the fixed roster of policy %s", ErrRecipientUnresolved, sc.policy.ID)
	}
	return targets, nil
}

func (r *RecipientResolver) nextShiftOccupant(ctx context.Context, sc *stageContext) ([]target, error) {
	if sc.shift == nil {
		return nil, fmt.Errorf("%w: shift %s not found", ErrRecipientUnresolved, sc.record.ShiftID)
	}
	workerIDs, err := r.roster.NextShiftOccupants(ctx, sc.shift)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecipientUnresolved, err)
	}

	var targets []target
	for _, id := range workerIDs {
		if id == sc.record.WorkerID {
			continue
		}
		w, err := r.roster.GetWorker(ctx, id)
		if err != nil {
			r.logger.WithError(err).WithField("worker_id", id).Warn("Skipping next shift occupant")
			continue
		}
		targets = append(targets, target{recipient: recipientFromWorker(w), role: roleCover})
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrRecipientUnresolved, roster.ErrNoOccupant)
	}
	return targets, nil
}

func recipientFromWorker(w *roster.Worker) notification.Recipient {
	rcpt := notification.Recipient{
		WorkerID: w.ID,
		Name:     w.FullName,
	}
	if w.TelegramID.Valid {
		rcpt.TelegramID = w.TelegramID.Int64
	}
	if w.Phone.Valid {
		rcpt.Phone = w.Phone.String
	}
	return rcpt
}
