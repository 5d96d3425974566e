// internal/domain/escalation/chain.go
package escalation

import (
	"database/sql"
	"time"
)

type ChainStatus string

const (
	ChainRunning   ChainStatus = "RUNNING"
	ChainCompleted ChainStatus = "COMPLETED"
)

// CompletionOutcome records why a chain stopped.
type CompletionOutcome string

const (
	OutcomeResolvedByResponse CompletionOutcome = "resolved_by_response"
	OutcomeStagesExhausted    CompletionOutcome = "stages_exhausted"
	OutcomeAborted            CompletionOutcome = "aborted"
)

// StageOutcome is the result of executing one stage (stage 0 included).
type StageOutcome string

const (
	StagePending StageOutcome = "pending" // claimed, dispatch not finished yet
	StageSent    StageOutcome = "sent"
	StageFailed  StageOutcome = "failed"
	StageSkipped StageOutcome = "skipped" // response arrived after the claim
)

type HistoryEntry struct {
	StageIndex int          `json:"stage_index"`
	ExecutedAt time.Time    `json:"executed_at"`
	Outcome    StageOutcome `json:"outcome"`
}

// Chain is the run of a policy against one confirmation record.
// CurrentStageIndex never decreases and NextActionTime is null iff the chain
// is completed. Once stage 0 is logged, len(History) == CurrentStageIndex+1.
type Chain struct {
	ID                string
	RecordID          string
	PolicyID          string
	CurrentStageIndex int
	Status            ChainStatus
	NextActionTime    sql.NullTime
	Outcome           CompletionOutcome // empty while running
	History           []HistoryEntry
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (c *Chain) IsRunning() bool {
	return c.Status == ChainRunning
}

// IsDue reports whether the scheduler should pick the chain up at now.
func (c *Chain) IsDue(now time.Time) bool {
	return c.IsRunning() && c.NextActionTime.Valid && !c.NextActionTime.Time.After(now)
}
