// internal/infra/database/postgres_notification_log_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"shift_attendance_bot/internal/domain/notification"
)

// PostgresNotificationLogRepository appends to 'notification_log'. Rows are
// never updated.
type PostgresNotificationLogRepository struct {
	db *sql.DB
}

func NewPostgresNotificationLogRepository(db *sql.DB) *PostgresNotificationLogRepository {
	return &PostgresNotificationLogRepository{db: db}
}

func (r *PostgresNotificationLogRepository) AppendLogEntry(ctx context.Context, e *notification.LogEntry) error {
	query := `INSERT INTO notification_log (id, record_id, chain_id, stage_index, channel, recipient_id, payload, outcome, error, attempted_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
               RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query,
		e.ID, e.RecordID, e.ChainID, e.StageIndex, e.Channel, e.RecipientID, e.Payload, e.Outcome, e.Error, e.AttemptedAt,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("error appending notification log entry: %w", err)
	}
	return nil
}

func (r *PostgresNotificationLogRepository) ListLogEntriesByRecord(ctx context.Context, recordID string) ([]*notification.LogEntry, error) {
	query := `SELECT id, record_id, chain_id, stage_index, channel, recipient_id, payload, outcome, error, attempted_at, created_at
               FROM notification_log
               WHERE record_id = $1
               ORDER BY attempted_at, created_at`
	rows, err := r.db.QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("error querying notification log: %w", err)
	}
	defer rows.Close()

	entries := make([]*notification.LogEntry, 0)
	for rows.Next() {
		e := &notification.LogEntry{}
		if err := rows.Scan(&e.ID, &e.RecordID, &e.ChainID, &e.StageIndex, &e.Channel, &e.RecipientID,
			&e.Payload, &e.Outcome, &e.Error, &e.AttemptedAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning notification log row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification log rows: %w", err)
	}
	return entries, nil
}
