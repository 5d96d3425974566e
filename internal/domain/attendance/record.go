// internal/domain/attendance/record.go
package attendance

import (
	"database/sql"
	"time"
)

// ConfirmationStatus tells whether the worker has signalled presence.
type ConfirmationStatus string

const (
	ConfirmationPending   ConfirmationStatus = "PENDING"
	ConfirmationConfirmed ConfirmationStatus = "CONFIRMED"
)

// EscalationStatus is the operator-facing summary of the escalation chain.
type EscalationStatus string

const (
	EscalationNone       EscalationStatus = "NONE"
	EscalationEscalating EscalationStatus = "ESCALATING"
	EscalationResolved   EscalationStatus = "RESOLVED"
	EscalationFailed     EscalationStatus = "FAILED" // chain exhausted, needs human follow-up
)

func (s EscalationStatus) Valid() bool {
	switch s {
	case EscalationNone, EscalationEscalating, EscalationResolved, EscalationFailed:
		return true
	}
	return false
}

// Record is one confirmation per (worker, shift occurrence, calendar day).
// Corresponds to the 'confirmation_records' table. Records are never deleted.
type Record struct {
	ID                 string
	OrganizationID     string
	ShiftID            string
	WorkerID           string
	ShiftDate          time.Time    // date part only
	ResponseTime       sql.NullTime // set exactly once, when presence is confirmed
	ConfirmationStatus ConfirmationStatus
	EscalationStatus   EscalationStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (r *Record) IsConfirmed() bool {
	return r.ConfirmationStatus == ConfirmationConfirmed
}

// DateOf truncates t to midnight in its own location.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay compares calendar dates, ignoring time of day and location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
