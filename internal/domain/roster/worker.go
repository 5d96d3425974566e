package roster

import (
	"database/sql"
	"time"
)

// Worker is a member of staff who can be scheduled on shifts or notified by
// an escalation stage.
type Worker struct {
	ID             string
	OrganizationID string
	FullName       string
	Phone          sql.NullString
	TelegramID     sql.NullInt64 // set once the worker has linked the chat bot
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
