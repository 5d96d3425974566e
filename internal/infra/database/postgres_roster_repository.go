// internal/infra/database/postgres_roster_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shift_attendance_bot/internal/domain/roster"

	"github.com/lib/pq"
)

const shiftColumns = `s.id, s.organization_id, s.slot_id, s.shift_date, s.start_at, s.end_at, s.status,
       COALESCE(s.escalation_policy_id, ''),
       COALESCE(ARRAY(SELECT sw.worker_id FROM shift_workers sw WHERE sw.shift_id = s.id ORDER BY sw.worker_id), '{}')`

const workerColumns = `id, organization_id, full_name, phone, telegram_id, is_active, created_at, updated_at`

// PostgresRosterRepository reads shifts and workers. The roster tables are
// owned by the scheduling console; the only write here is chat linking.
type PostgresRosterRepository struct {
	db *sql.DB
}

func NewPostgresRosterRepository(db *sql.DB) *PostgresRosterRepository {
	return &PostgresRosterRepository{db: db}
}

func scanShift(row interface{ Scan(...any) error }) (*roster.Shift, error) {
	sh := &roster.Shift{}
	var workers pq.StringArray
	err := row.Scan(&sh.ID, &sh.OrganizationID, &sh.SlotID, &sh.ShiftDate, &sh.StartTime, &sh.EndTime, &sh.Status,
		&sh.EscalationPolicyID, &workers)
	if err != nil {
		return nil, err
	}
	sh.WorkerIDs = []string(workers)
	return sh, nil
}

func (r *PostgresRosterRepository) ListShiftsDueForConfirmation(ctx context.Context, date time.Time, window roster.Window) ([]*roster.Shift, error) {
	query := `SELECT ` + shiftColumns + `
               FROM shifts s
               WHERE s.shift_date = $1::date AND s.status = $2 AND s.start_at BETWEEN $3 AND $4
               ORDER BY s.start_at`
	rows, err := r.db.QueryContext(ctx, query, sqlDate(date), roster.ShiftScheduled, window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("error listing shifts due for confirmation: %w", err)
	}
	defer rows.Close()

	shifts := make([]*roster.Shift, 0)
	for rows.Next() {
		sh, err := scanShift(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning shift row: %w", err)
		}
		shifts = append(shifts, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shift rows: %w", err)
	}
	return shifts, nil
}

func (r *PostgresRosterRepository) GetShift(ctx context.Context, id string) (*roster.Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts s WHERE s.id = $1`
	sh, err := scanShift(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, roster.ErrShiftNotFound
		}
		return nil, fmt.Errorf("error getting shift by ID: %w", err)
	}
	return sh, nil
}

func (r *PostgresRosterRepository) NextShiftOccupants(ctx context.Context, shift *roster.Shift) ([]string, error) {
	query := `SELECT ` + shiftColumns + `
               FROM shifts s
               WHERE s.organization_id = $1 AND s.slot_id = $2 AND s.status = $3 AND s.start_at > $4 AND s.id <> $5
               ORDER BY s.start_at
               LIMIT 1`
	next, err := scanShift(r.db.QueryRowContext(ctx, query, shift.OrganizationID, shift.SlotID, roster.ShiftScheduled, shift.StartTime, shift.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, roster.ErrNoOccupant
		}
		return nil, fmt.Errorf("error finding next shift of slot %s: %w", shift.SlotID, err)
	}
	if len(next.WorkerIDs) == 0 {
		return nil, roster.ErrNoOccupant
	}
	return next.WorkerIDs, nil
}

func scanWorker(row interface{ Scan(...any) error }) (*roster.Worker, error) {
	w := &roster.Worker{}
	err := row.Scan(&w.ID, &w.OrganizationID, &w.FullName, &w.Phone, &w.TelegramID, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *PostgresRosterRepository) GetWorker(ctx context.Context, id string) (*roster.Worker, error) {
	query := `SELECT ` + workerColumns + ` FROM workers WHERE id = $1`
	w, err := scanWorker(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, roster.ErrWorkerNotFound
		}
		return nil, fmt.Errorf("error getting worker by ID: %w", err)
	}
	return w, nil
}

func (r *PostgresRosterRepository) GetWorkerByTelegramID(ctx context.Context, telegramID int64) (*roster.Worker, error) {
	query := `SELECT ` + workerColumns + ` FROM workers WHERE telegram_id = $1`
	w, err := scanWorker(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, roster.ErrWorkerNotFound
		}
		return nil, fmt.Errorf("error getting worker by Telegram ID: %w", err)
	}
	return w, nil
}

func (r *PostgresRosterRepository) LinkTelegram(ctx context.Context, workerID string, telegramID int64) error {
	query := `UPDATE workers SET telegram_id = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, workerID, telegramID)
	if err != nil {
		if isUniqueViolation(err, "workers_telegram_id_key") {
			return roster.ErrTelegramInUse
		}
		return fmt.Errorf("error linking worker telegram account: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return roster.ErrWorkerNotFound
	}
	return nil
}
