// internal/infra/database/postgres_policy_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shift_attendance_bot/internal/domain/escalation"

	"github.com/lib/pq" // For pq.Array
)

type PostgresPolicyRepository struct {
	db *sql.DB
}

func NewPostgresPolicyRepository(db *sql.DB) *PostgresPolicyRepository {
	return &PostgresPolicyRepository{db: db}
}

// GetPolicy loads the policy with its stages in position order and validates
// it before handing it to the engine.
func (r *PostgresPolicyRepository) GetPolicy(ctx context.Context, id string) (*escalation.Policy, error) {
	query := `SELECT id, organization_id, name, staff_ids FROM escalation_policies WHERE id = $1`
	p := &escalation.Policy{}
	var staff pq.StringArray
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.OrganizationID, &p.Name, &staff)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, escalation.ErrPolicyNotFound
		}
		return nil, fmt.Errorf("error getting escalation policy: %w", err)
	}
	p.StaffIDs = []string(staff)

	stagesQuery := `SELECT stage_number, wait_minutes, channel, recipient_rule, stop_on_response
                     FROM escalation_policy_stages
                     WHERE policy_id = $1
                     ORDER BY position`
	rows, err := r.db.QueryContext(ctx, stagesQuery, id)
	if err != nil {
		return nil, fmt.Errorf("error querying policy stages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st escalation.Stage
		if err := rows.Scan(&st.StageNumber, &st.WaitMinutes, &st.Channel, &st.RecipientRule, &st.StopOnResponse); err != nil {
			return nil, fmt.Errorf("error scanning policy stage row: %w", err)
		}
		p.Stages = append(p.Stages, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policy stage rows: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
