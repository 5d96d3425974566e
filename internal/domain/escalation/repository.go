// internal/domain/escalation/repository.go
package escalation

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	ErrPolicyNotFound  = errors.New("escalation policy not found")
	ErrChainNotFound   = errors.New("escalation chain not found")
	ErrChainNotRunning = errors.New("escalation chain is not running")
	ErrDuplicateChain  = errors.New("escalation chain already exists for record")
	// ErrStaleAdvance means the chain was already moved past the expected
	// stage (or completed) by another writer.
	ErrStaleAdvance = errors.New("escalation chain advanced concurrently")
)

type PolicyRepository interface {
	GetPolicy(ctx context.Context, id string) (*Policy, error)
}

// ChainRepository persists escalation chains. Mutations are conditional on
// the chain still running so concurrent writers cannot regress it.
type ChainRepository interface {
	// CreateChain returns ErrDuplicateChain if the record already has a chain.
	CreateChain(ctx context.Context, chain *Chain) error
	GetChainByID(ctx context.Context, id string) (*Chain, error)
	GetChainByRecordID(ctx context.Context, recordID string) (*Chain, error)
	FindDueChains(ctx context.Context, now time.Time) ([]*Chain, error)
	// AdvanceChain moves the cursor from newStageIndex-1 to newStageIndex and
	// appends entry to the history. Returns ErrStaleAdvance if the chain is no
	// longer running at newStageIndex-1.
	AdvanceChain(ctx context.Context, chainID string, newStageIndex int, nextActionTime sql.NullTime, entry HistoryEntry) error
	// SetStageOutcome rewrites the outcome of an existing history entry.
	SetStageOutcome(ctx context.Context, chainID string, stageIndex int, outcome StageOutcome) error
	// CompleteChain marks a running chain completed and clears NextActionTime.
	// Returns ErrChainNotRunning if it is already completed.
	CompleteChain(ctx context.Context, chainID string, outcome CompletionOutcome) error
}
