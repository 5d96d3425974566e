// internal/domain/attendance/repository.go
package attendance

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRecordNotFound   = errors.New("confirmation record not found")
	ErrDuplicateRecord  = errors.New("confirmation record already exists for (worker, shift, date)")
	ErrAlreadyConfirmed = errors.New("confirmation record already confirmed")
)

// Repository persists confirmation records.
type Repository interface {
	// FindRecord returns ErrRecordNotFound when no record exists for the triple.
	FindRecord(ctx context.Context, workerID, shiftID string, date time.Time) (*Record, error)
	GetRecordByID(ctx context.Context, id string) (*Record, error)
	ListRecordsForWorkerOnDate(ctx context.Context, workerID string, date time.Time) ([]*Record, error)
	ListRecordsByDate(ctx context.Context, date time.Time) ([]*Record, error)
	// CreateRecord returns ErrDuplicateRecord if the (worker, shift, date) triple is taken.
	CreateRecord(ctx context.Context, rec *Record) error
	// SetConfirmed moves ResponseTime from null to at. It returns
	// ErrAlreadyConfirmed if the response time was already set.
	SetConfirmed(ctx context.Context, recordID string, at time.Time) error
	SetEscalationStatus(ctx context.Context, recordID string, status EscalationStatus) error
	// MarkEscalating sets EscalationEscalating only while the record has no
	// response. It returns ErrAlreadyConfirmed once a response is stored.
	MarkEscalating(ctx context.Context, recordID string) error
}
