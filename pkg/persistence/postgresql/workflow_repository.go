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

// WorkflowRepository handles workflow definitions. Trigger config, conditions,
// and actions are stored as JSONB documents.
type WorkflowRepository struct {
	db *sql.DB
}

const workflowColumns = `id, org_id, name, description, trigger_type, trigger_config,
	condition_logic, conditions, actions, scope, owner_id, recurrence,
	rate_limit_per_hour, rate_limit_per_entity_per_day, requires_review, enabled,
	last_run_at, last_error, created_at, updated_at`

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	triggerConfigJSON, err := json.Marshal(workflow.TriggerConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger config: %w", err)
	}

	conditionsJSON, err := json.Marshal(workflow.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal conditions: %w", err)
	}

	actionsJSON, err := json.Marshal(workflow.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	query := `
		INSERT INTO workflows (` + workflowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			trigger_type = EXCLUDED.trigger_type,
			trigger_config = EXCLUDED.trigger_config,
			condition_logic = EXCLUDED.condition_logic,
			conditions = EXCLUDED.conditions,
			actions = EXCLUDED.actions,
			scope = EXCLUDED.scope,
			owner_id = EXCLUDED.owner_id,
			recurrence = EXCLUDED.recurrence,
			rate_limit_per_hour = EXCLUDED.rate_limit_per_hour,
			rate_limit_per_entity_per_day = EXCLUDED.rate_limit_per_entity_per_day,
			requires_review = EXCLUDED.requires_review,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID, workflow.OrgID, workflow.Name, workflow.Description,
		workflow.TriggerType, triggerConfigJSON, workflow.Logic(), conditionsJSON,
		actionsJSON, workflow.Scope, workflow.OwnerID, workflow.Recurrence,
		workflow.RateLimitPerHour, workflow.RateLimitPerEntityPerDay,
		workflow.RequiresReview, workflow.Enabled, workflow.LastRunAt,
		workflow.LastError, workflow.CreatedAt, workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewStoreError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) GetEnabledByTrigger(ctx context.Context, orgID string, triggerType models.TriggerType) ([]*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE org_id = $1 AND trigger_type = $2 AND enabled
		ORDER BY created_at
	`

	return r.queryWorkflows(ctx, query, orgID, triggerType)
}

func (r *WorkflowRepository) GetRecurring(ctx context.Context) ([]*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE enabled AND recurrence IS NOT NULL
		ORDER BY created_at
	`

	return r.queryWorkflows(ctx, query)
}

func (r *WorkflowRepository) RecordRun(ctx context.Context, id string, lastRunAt time.Time, lastError string) error {
	query := `UPDATE workflows SET last_run_at = $2, last_error = COALESCE(NULLIF($3, ''), last_error) WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, lastRunAt, lastError)
	if err != nil {
		return fmt.Errorf("failed to record workflow run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewStoreError("RecordRun", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) queryWorkflows(ctx context.Context, query string, args ...any) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*models.Workflow

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	return workflows, rows.Err()
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	workflow := &models.Workflow{}

	var triggerConfigJSON, conditionsJSON, actionsJSON []byte

	err := row.Scan(
		&workflow.ID, &workflow.OrgID, &workflow.Name, &workflow.Description,
		&workflow.TriggerType, &triggerConfigJSON, &workflow.ConditionLogic, &conditionsJSON,
		&actionsJSON, &workflow.Scope, &workflow.OwnerID, &workflow.Recurrence,
		&workflow.RateLimitPerHour, &workflow.RateLimitPerEntityPerDay,
		&workflow.RequiresReview, &workflow.Enabled, &workflow.LastRunAt,
		&workflow.LastError, &workflow.CreatedAt, &workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(triggerConfigJSON) > 0 {
		err = json.Unmarshal(triggerConfigJSON, &workflow.TriggerConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger config: %w", err)
		}
	}

	if len(conditionsJSON) > 0 {
		err = json.Unmarshal(conditionsJSON, &workflow.Conditions)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
		}
	}

	if len(actionsJSON) > 0 {
		err = json.Unmarshal(actionsJSON, &workflow.Actions)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
		}
	}

	return workflow, nil
}
