// Package persistence provides the data storage abstraction for entities,
// stages, the status history ledger, approval requests, workflows, and the
// execution ledger.
package persistence

import (
	"context"
	"time"

	"github.com/caseflowhq/caseflow/pkg/models"
)

type Persistence interface {
	OrganizationRepository() OrganizationRepository
	EntityRepository() EntityRepository
	StageRepository() StageRepository
	HistoryRepository() HistoryRepository
	RequestRepository() RequestRepository
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	ResumeJobRepository() ResumeJobRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

type OrganizationRepository interface {
	GetByID(ctx context.Context, id string) (*models.Organization, error)
	Save(ctx context.Context, org *models.Organization) error
	GetAll(ctx context.Context) ([]*models.Organization, error)
}

type EntityRepository interface {
	GetByID(ctx context.Context, id string) (*models.Case, error)
	Save(ctx context.Context, entity *models.Case) error
	GetByOrg(ctx context.Context, orgID string) ([]*models.Case, error)

	// GetInactiveSince returns entities whose last activity predates the
	// cutoff, for the inactivity sweep.
	GetInactiveSince(ctx context.Context, orgID string, cutoff time.Time) ([]*models.Case, error)
}

type StageRepository interface {
	GetByID(ctx context.Context, id string) (*models.Stage, error)
	Save(ctx context.Context, stage *models.Stage) error

	// GetByPipeline returns the pipeline's stages ordered by Stage.Order.
	GetByPipeline(ctx context.Context, pipelineID string) ([]*models.Stage, error)
}

// HistoryRepository is append-only: entries are never updated or deleted.
type HistoryRepository interface {
	Append(ctx context.Context, entry *models.StatusHistoryEntry) error
	GetByEntity(ctx context.Context, entityID string) ([]*models.StatusHistoryEntry, error)

	// Latest returns the most recent entry by recorded time, or nil when the
	// entity has no history yet.
	Latest(ctx context.Context, entityID string) (*models.StatusHistoryEntry, error)
}

type RequestRepository interface {
	// Create persists a new request. A pending request for the same
	// (entity, target stage) pair surfaces ErrDuplicatePendingRequest; the
	// check is a storage-level unique constraint, never read-then-write.
	Create(ctx context.Context, request *models.StatusChangeRequest) error

	GetByID(ctx context.Context, id string) (*models.StatusChangeRequest, error)
	Update(ctx context.Context, request *models.StatusChangeRequest) error
	GetPendingByOrg(ctx context.Context, orgID string) ([]*models.StatusChangeRequest, error)
}

type WorkflowRepository interface {
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error

	// GetEnabledByTrigger returns the org's enabled workflows for one
	// trigger type.
	GetEnabledByTrigger(ctx context.Context, orgID string, triggerType models.TriggerType) ([]*models.Workflow, error)

	// GetRecurring returns enabled workflows with a recurrence expression,
	// across all orgs, for the sweeper.
	GetRecurring(ctx context.Context) ([]*models.Workflow, error)

	// RecordRun updates the workflow's last run bookkeeping. An empty
	// lastError leaves the stored error in place, so a failure recorded by
	// an inner cascade frame survives the enclosing successful runs.
	RecordRun(ctx context.Context, id string, lastRunAt time.Time, lastError string) error
}

type ExecutionRepository interface {
	// Create writes a ledger row. A non-empty dedupe key that already exists
	// surfaces ErrDuplicateExecution.
	Create(ctx context.Context, execution *models.WorkflowExecution) error

	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	Update(ctx context.Context, execution *models.WorkflowExecution) error

	// CountSince counts ledger rows for a workflow after the cutoff;
	// entityID narrows to one entity when non-empty. Used for rate limits.
	CountSince(ctx context.Context, workflowID, entityID string, cutoff time.Time) (int, error)

	// HasCompleted reports whether the workflow ever completed a run for
	// the entity. Drives the first-run approval policy.
	HasCompleted(ctx context.Context, workflowID, entityID string) (bool, error)
}

type ResumeJobRepository interface {
	// Create persists a resume job. A job for the same
	// (execution, task) pair surfaces ErrDuplicateResumeJob.
	Create(ctx context.Context, job *models.WorkflowResumeJob) error

	GetByExecutionAndTask(ctx context.Context, executionID, taskID string) (*models.WorkflowResumeJob, error)

	// Claim atomically marks the job processed. It returns
	// ErrResumeJobAlreadyProcessed when another worker claimed it first.
	Claim(ctx context.Context, id string, processedAt time.Time) error
}
