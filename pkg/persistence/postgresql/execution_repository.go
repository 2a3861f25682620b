package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
)

// ExecutionRepository handles the workflow execution ledger. The dedupe key
// carries a unique index, so concurrent sweep passes for the same window race
// on the insert and exactly one wins.
type ExecutionRepository struct {
	db *sql.DB
}

const executionColumns = `id, org_id, workflow_id, entity_id, event_id, depth, event_source,
	dedupe_key, matched_conditions, actions_executed, status,
	paused_at_action_index, paused_task_id, error_message, started_at, completed_at`

func (r *ExecutionRepository) Create(ctx context.Context, execution *models.WorkflowExecution) error {
	actionsJSON, err := json.Marshal(execution.ActionsExecuted)
	if err != nil {
		return fmt.Errorf("failed to marshal action records: %w", err)
	}

	query := `
		INSERT INTO workflow_executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID, execution.OrgID, execution.WorkflowID, execution.EntityID,
		execution.EventID, execution.Depth, execution.EventSource, execution.DedupeKey,
		execution.MatchedConditions, actionsJSON, execution.Status,
		execution.PausedAtActionIndex, execution.PausedTaskID, execution.ErrorMessage,
		execution.StartedAt, execution.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewStoreError("Create", execution.DedupeKey, persistence.ErrDuplicateExecution)
		}

		return fmt.Errorf("failed to create execution: %w", err)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `
		SELECT id, org_id, workflow_id, entity_id, event_id, depth, event_source,
			COALESCE(dedupe_key, ''), matched_conditions, actions_executed, status,
			paused_at_action_index, paused_task_id, error_message, started_at, completed_at
		FROM workflow_executions
		WHERE id = $1
	`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

func (r *ExecutionRepository) Update(ctx context.Context, execution *models.WorkflowExecution) error {
	actionsJSON, err := json.Marshal(execution.ActionsExecuted)
	if err != nil {
		return fmt.Errorf("failed to marshal action records: %w", err)
	}

	query := `
		UPDATE workflow_executions
		SET matched_conditions = $2, actions_executed = $3, status = $4,
			paused_at_action_index = $5, paused_task_id = $6, error_message = $7,
			completed_at = $8
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		execution.ID, execution.MatchedConditions, actionsJSON, execution.Status,
		execution.PausedAtActionIndex, execution.PausedTaskID, execution.ErrorMessage,
		execution.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewStoreError("Update", execution.ID, persistence.ErrExecutionNotFound)
	}

	return nil
}

func (r *ExecutionRepository) CountSince(ctx context.Context, workflowID, entityID string, cutoff time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM workflow_executions WHERE workflow_id = $1 AND started_at >= $2`
	args := []any{workflowID, cutoff}

	if entityID != "" {
		query += ` AND entity_id = $3`
		args = append(args, entityID)
	}

	var count int

	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count executions: %w", err)
	}

	return count, nil
}

func (r *ExecutionRepository) HasCompleted(ctx context.Context, workflowID, entityID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM workflow_executions
			WHERE workflow_id = $1 AND entity_id = $2 AND status = 'completed'
		)
	`

	var exists bool

	err := r.db.QueryRowContext(ctx, query, workflowID, entityID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check completed executions: %w", err)
	}

	return exists, nil
}

func scanExecution(row rowScanner) (*models.WorkflowExecution, error) {
	execution := &models.WorkflowExecution{}

	var actionsJSON []byte

	err := row.Scan(
		&execution.ID, &execution.OrgID, &execution.WorkflowID, &execution.EntityID,
		&execution.EventID, &execution.Depth, &execution.EventSource, &execution.DedupeKey,
		&execution.MatchedConditions, &actionsJSON, &execution.Status,
		&execution.PausedAtActionIndex, &execution.PausedTaskID, &execution.ErrorMessage,
		&execution.StartedAt, &execution.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(actionsJSON) > 0 {
		err = json.Unmarshal(actionsJSON, &execution.ActionsExecuted)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal action records: %w", err)
		}
	}

	return execution, nil
}
