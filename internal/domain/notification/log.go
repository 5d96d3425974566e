// internal/domain/notification/log.go
package notification

import (
	"database/sql"
	"time"

	"shift_attendance_bot/internal/domain/escalation"
)

type Outcome string

const (
	OutcomeSent   Outcome = "sent"
	OutcomeFailed Outcome = "failed"
)

// LogEntry is an append-only audit row for one dispatch attempt.
// Corresponds to the 'notification_log' table.
type LogEntry struct {
	ID          string
	RecordID    string
	ChainID     string
	StageIndex  int
	Channel     escalation.Channel
	RecipientID sql.NullString // null when the recipient could not be resolved
	Payload     string
	Outcome     Outcome
	Error       sql.NullString
	AttemptedAt time.Time
	CreatedAt   time.Time
}
