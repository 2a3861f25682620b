package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
)

// ResumeJobRepository handles resume idempotency records. Claim is a
// conditional update on processed_at, so two workers resuming the same
// execution cannot both win.
type ResumeJobRepository struct {
	db *sql.DB
}

func (r *ResumeJobRepository) Create(ctx context.Context, job *models.WorkflowResumeJob) error {
	query := `
		INSERT INTO workflow_resume_jobs (id, execution_id, task_id, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, job.ID, job.ExecutionID, job.TaskID, job.CreatedAt, job.ProcessedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewStoreError("Create", job.ExecutionID, persistence.ErrDuplicateResumeJob)
		}

		return fmt.Errorf("failed to create resume job: %w", err)
	}

	return nil
}

func (r *ResumeJobRepository) GetByExecutionAndTask(ctx context.Context, executionID, taskID string) (*models.WorkflowResumeJob, error) {
	query := `
		SELECT id, execution_id, task_id, created_at, processed_at
		FROM workflow_resume_jobs
		WHERE execution_id = $1 AND task_id = $2
	`

	job := &models.WorkflowResumeJob{}

	err := r.db.QueryRowContext(ctx, query, executionID, taskID).Scan(
		&job.ID, &job.ExecutionID, &job.TaskID, &job.CreatedAt, &job.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByExecutionAndTask", executionID, persistence.ErrResumeJobNotFound)
		}

		return nil, fmt.Errorf("failed to scan resume job: %w", err)
	}

	return job, nil
}

func (r *ResumeJobRepository) Claim(ctx context.Context, id string, processedAt time.Time) error {
	query := `UPDATE workflow_resume_jobs SET processed_at = $2 WHERE id = $1 AND processed_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, processedAt)
	if err != nil {
		return fmt.Errorf("failed to claim resume job: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewStoreError("Claim", id, persistence.ErrResumeJobAlreadyProcessed)
	}

	return nil
}
