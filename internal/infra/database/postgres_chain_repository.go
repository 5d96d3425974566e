// internal/infra/database/postgres_chain_repository.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"shift_attendance_bot/internal/domain/escalation"
)

const chainColumns = `id, record_id, policy_id, current_stage_index, status, next_action_time,
       COALESCE(outcome, ''), history, created_at, updated_at`

// PostgresChainRepository stores escalation chains in 'escalation_chains'.
// The history is a JSONB array whose element i is the entry for stage i.
type PostgresChainRepository struct {
	db *sql.DB
}

func NewPostgresChainRepository(db *sql.DB) *PostgresChainRepository {
	return &PostgresChainRepository{db: db}
}

func scanChain(row interface{ Scan(...any) error }) (*escalation.Chain, error) {
	c := &escalation.Chain{}
	var history []byte
	err := row.Scan(
		&c.ID, &c.RecordID, &c.PolicyID, &c.CurrentStageIndex, &c.Status, &c.NextActionTime,
		&c.Outcome, &history, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &c.History); err != nil {
			return nil, fmt.Errorf("error decoding history of chain %s: %w", c.ID, err)
		}
	}
	return c, nil
}

func (r *PostgresChainRepository) CreateChain(ctx context.Context, chain *escalation.Chain) error {
	history, err := json.Marshal(chain.History)
	if err != nil {
		return fmt.Errorf("error encoding chain history: %w", err)
	}
	query := `INSERT INTO escalation_chains (id, record_id, policy_id, current_stage_index, status, next_action_time, history)
               VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
               RETURNING created_at, updated_at`
	err = r.db.QueryRowContext(ctx, query,
		chain.ID, chain.RecordID, chain.PolicyID, chain.CurrentStageIndex, chain.Status, chain.NextActionTime, string(history),
	).Scan(&chain.CreatedAt, &chain.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "escalation_chains_record_id_key") {
			return escalation.ErrDuplicateChain
		}
		return fmt.Errorf("error creating escalation chain: %w", err)
	}
	return nil
}

func (r *PostgresChainRepository) GetChainByID(ctx context.Context, id string) (*escalation.Chain, error) {
	query := `SELECT ` + chainColumns + ` FROM escalation_chains WHERE id = $1`
	c, err := scanChain(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, escalation.ErrChainNotFound
		}
		return nil, fmt.Errorf("error getting escalation chain by ID: %w", err)
	}
	return c, nil
}

func (r *PostgresChainRepository) GetChainByRecordID(ctx context.Context, recordID string) (*escalation.Chain, error) {
	query := `SELECT ` + chainColumns + ` FROM escalation_chains WHERE record_id = $1 ORDER BY created_at DESC LIMIT 1`
	c, err := scanChain(r.db.QueryRowContext(ctx, query, recordID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, escalation.ErrChainNotFound
		}
		return nil, fmt.Errorf("error getting escalation chain by record ID: %w", err)
	}
	return c, nil
}

func (r *PostgresChainRepository) FindDueChains(ctx context.Context, now time.Time) ([]*escalation.Chain, error) {
	query := `SELECT ` + chainColumns + `
               FROM escalation_chains
               WHERE status = $1 AND next_action_time <= $2
               ORDER BY next_action_time ASC` // Process older ones first
	rows, err := r.db.QueryContext(ctx, query, escalation.ChainRunning, now)
	if err != nil {
		return nil, fmt.Errorf("error querying due escalation chains: %w", err)
	}
	defer rows.Close()

	chains := make([]*escalation.Chain, 0)
	for rows.Next() {
		c, err := scanChain(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning escalation chain row: %w", err)
		}
		chains = append(chains, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating escalation chain rows: %w", err)
	}
	return chains, nil
}

func (r *PostgresChainRepository) AdvanceChain(ctx context.Context, chainID string, newStageIndex int, nextActionTime sql.NullTime, entry escalation.HistoryEntry) error {
	encoded, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("error encoding history entry: %w", err)
	}
	query := `UPDATE escalation_chains
               SET current_stage_index = $2,
                   next_action_time = $3,
                   history = history || jsonb_build_array($4::jsonb),
                   updated_at = NOW()
               WHERE id = $1 AND status = $5 AND current_stage_index = $2 - 1`
	res, err := r.db.ExecContext(ctx, query, chainID, newStageIndex, nextActionTime, string(encoded), escalation.ChainRunning)
	if err != nil {
		return fmt.Errorf("error advancing escalation chain: %w", err)
	}
	return r.expectOneRow(ctx, res, chainID, escalation.ErrStaleAdvance)
}

func (r *PostgresChainRepository) SetStageOutcome(ctx context.Context, chainID string, stageIndex int, outcome escalation.StageOutcome) error {
	query := `UPDATE escalation_chains
               SET history = jsonb_set(history, ARRAY[$2::text, 'outcome'], to_jsonb($3::text)),
                   updated_at = NOW()
               WHERE id = $1 AND jsonb_array_length(history) > $4`
	res, err := r.db.ExecContext(ctx, query, chainID, strconv.Itoa(stageIndex), string(outcome), stageIndex)
	if err != nil {
		return fmt.Errorf("error setting stage outcome: %w", err)
	}
	return r.expectOneRow(ctx, res, chainID, escalation.ErrChainNotFound)
}

func (r *PostgresChainRepository) CompleteChain(ctx context.Context, chainID string, outcome escalation.CompletionOutcome) error {
	query := `UPDATE escalation_chains
               SET status = $2, outcome = $3, next_action_time = NULL, updated_at = NOW()
               WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, chainID, escalation.ChainCompleted, outcome, escalation.ChainRunning)
	if err != nil {
		return fmt.Errorf("error completing escalation chain: %w", err)
	}
	return r.expectOneRow(ctx, res, chainID, escalation.ErrChainNotRunning)
}

// expectOneRow maps "no row matched" to ErrChainNotFound when the chain does
// not exist and to conflictErr otherwise.
func (r *PostgresChainRepository) expectOneRow(ctx context.Context, res sql.Result, chainID string, conflictErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := r.GetChainByID(ctx, chainID); err != nil {
		return err
	}
	return conflictErr
}
