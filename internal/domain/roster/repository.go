package roster

import (
	"context"
	"errors"
	"time"
)

var (
	ErrWorkerNotFound = errors.New("worker not found")
	ErrShiftNotFound  = errors.New("shift not found")
	ErrNoOccupant     = errors.New("no worker assigned to the next occurrence of the slot")
	ErrTelegramInUse  = errors.New("telegram ID already linked to another worker")
)

// Repository is the read side of the shift roster plus the worker directory.
type Repository interface {
	// ListShiftsDueForConfirmation returns scheduled shifts on date whose
	// start time falls inside window.
	ListShiftsDueForConfirmation(ctx context.Context, date time.Time, window Window) ([]*Shift, error)
	GetShift(ctx context.Context, id string) (*Shift, error)
	// NextShiftOccupants returns the workers of the next scheduled occurrence
	// of the shift's slot. Returns ErrNoOccupant when there is none.
	NextShiftOccupants(ctx context.Context, shift *Shift) ([]string, error)

	GetWorker(ctx context.Context, id string) (*Worker, error)
	GetWorkerByTelegramID(ctx context.Context, telegramID int64) (*Worker, error)
	LinkTelegram(ctx context.Context, workerID string, telegramID int64) error
}
