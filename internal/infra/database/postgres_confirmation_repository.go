// internal/infra/database/postgres_confirmation_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shift_attendance_bot/internal/domain/attendance"
)

const recordColumns = `id, organization_id, shift_id, worker_id, shift_date, response_time,
       confirmation_status, escalation_status, created_at, updated_at`

type PostgresConfirmationRepository struct {
	db *sql.DB
}

func NewPostgresConfirmationRepository(db *sql.DB) *PostgresConfirmationRepository {
	return &PostgresConfirmationRepository{db: db}
}

func scanRecord(row interface{ Scan(...any) error }) (*attendance.Record, error) {
	rec := &attendance.Record{}
	err := row.Scan(
		&rec.ID, &rec.OrganizationID, &rec.ShiftID, &rec.WorkerID, &rec.ShiftDate, &rec.ResponseTime,
		&rec.ConfirmationStatus, &rec.EscalationStatus, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *PostgresConfirmationRepository) FindRecord(ctx context.Context, workerID, shiftID string, date time.Time) (*attendance.Record, error) {
	query := `SELECT ` + recordColumns + `
               FROM confirmation_records
               WHERE worker_id = $1 AND shift_id = $2 AND shift_date = $3::date`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, workerID, shiftID, sqlDate(date)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, attendance.ErrRecordNotFound
		}
		return nil, fmt.Errorf("error finding confirmation record: %w", err)
	}
	return rec, nil
}

func (r *PostgresConfirmationRepository) GetRecordByID(ctx context.Context, id string) (*attendance.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM confirmation_records WHERE id = $1`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, attendance.ErrRecordNotFound
		}
		return nil, fmt.Errorf("error getting confirmation record by ID: %w", err)
	}
	return rec, nil
}

func (r *PostgresConfirmationRepository) ListRecordsForWorkerOnDate(ctx context.Context, workerID string, date time.Time) ([]*attendance.Record, error) {
	query := `SELECT ` + recordColumns + `
               FROM confirmation_records
               WHERE worker_id = $1 AND shift_date = $2::date
               ORDER BY created_at`
	return r.list(ctx, query, workerID, sqlDate(date))
}

func (r *PostgresConfirmationRepository) ListRecordsByDate(ctx context.Context, date time.Time) ([]*attendance.Record, error) {
	query := `SELECT ` + recordColumns + `
               FROM confirmation_records
               WHERE shift_date = $1::date
               ORDER BY organization_id, created_at`
	return r.list(ctx, query, sqlDate(date))
}

func (r *PostgresConfirmationRepository) list(ctx context.Context, query string, args ...any) ([]*attendance.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying confirmation records: %w", err)
	}
	defer rows.Close()

	records := make([]*attendance.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning confirmation record row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating confirmation record rows: %w", err)
	}
	return records, nil
}

func (r *PostgresConfirmationRepository) CreateRecord(ctx context.Context, rec *attendance.Record) error {
	query := `INSERT INTO confirmation_records (id, organization_id, shift_id, worker_id, shift_date, confirmation_status, escalation_status)
               VALUES ($1, $2, $3, $4, $5::date, $6, $7)
               RETURNING shift_date, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		rec.ID, rec.OrganizationID, rec.ShiftID, rec.WorkerID, sqlDate(rec.ShiftDate),
		rec.ConfirmationStatus, rec.EscalationStatus,
	).Scan(&rec.ShiftDate, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "confirmation_records_worker_shift_date_key") {
			return attendance.ErrDuplicateRecord
		}
		return fmt.Errorf("error creating confirmation record: %w", err)
	}
	return nil
}

// SetConfirmed only touches rows whose response_time is still null, which
// keeps the null->set transition single-shot under concurrent callers.
func (r *PostgresConfirmationRepository) SetConfirmed(ctx context.Context, recordID string, at time.Time) error {
	query := `UPDATE confirmation_records
               SET response_time = $2, confirmation_status = $3, updated_at = NOW()
               WHERE id = $1 AND response_time IS NULL`
	res, err := r.db.ExecContext(ctx, query, recordID, at, attendance.ConfirmationConfirmed)
	if err != nil {
		return fmt.Errorf("error confirming record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := r.GetRecordByID(ctx, recordID); err != nil {
		return err
	}
	return attendance.ErrAlreadyConfirmed
}

func (r *PostgresConfirmationRepository) SetEscalationStatus(ctx context.Context, recordID string, status attendance.EscalationStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid escalation status %q", status)
	}
	query := `UPDATE confirmation_records SET escalation_status = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, recordID, status)
	if err != nil {
		return fmt.Errorf("error updating escalation status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return attendance.ErrRecordNotFound
	}
	return nil
}

// MarkEscalating is conditional on response_time still being null so a
// sweep racing a confirmation cannot leave a confirmed record escalating.
func (r *PostgresConfirmationRepository) MarkEscalating(ctx context.Context, recordID string) error {
	query := `UPDATE confirmation_records
               SET escalation_status = $2, updated_at = NOW()
               WHERE id = $1 AND response_time IS NULL`
	res, err := r.db.ExecContext(ctx, query, recordID, attendance.EscalationEscalating)
	if err != nil {
		return fmt.Errorf("error marking record escalating: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := r.GetRecordByID(ctx, recordID); err != nil {
		return err
	}
	return attendance.ErrAlreadyConfirmed
}
