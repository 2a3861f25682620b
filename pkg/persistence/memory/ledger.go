package memory

import (
	"context"
	"time"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
)

type historyRepository struct {
	store *Persistence
}

func (r *historyRepository) Append(_ context.Context, entry *models.StatusHistoryEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	copied := *entry
	r.store.history = append(r.store.history, &copied)

	return nil
}

func (r *historyRepository) GetByEntity(_ context.Context, entityID string) ([]*models.StatusHistoryEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var entries []*models.StatusHistoryEntry

	for _, entry := range r.store.history {
		if entry.EntityID == entityID {
			copied := *entry
			entries = append(entries, &copied)
		}
	}

	return entries, nil
}

func (r *historyRepository) Latest(_ context.Context, entityID string) (*models.StatusHistoryEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var latest *models.StatusHistoryEntry

	for _, entry := range r.store.history {
		if entry.EntityID != entityID {
			continue
		}

		if latest == nil || entry.RecordedAt.After(latest.RecordedAt) {
			latest = entry
		}
	}

	if latest == nil {
		return nil, nil
	}

	copied := *latest

	return &copied, nil
}

type requestRepository struct {
	store *Persistence
}

func (r *requestRepository) Create(_ context.Context, request *models.StatusChangeRequest) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if request.Status == models.RequestStatusPending {
		for _, existing := range r.store.requests {
			if existing.Status == models.RequestStatusPending &&
				existing.EntityID == request.EntityID &&
				existing.TargetStageID == request.TargetStageID {
				return persistence.NewStoreError("Create", request.ID, persistence.ErrDuplicatePendingRequest)
			}
		}
	}

	copied := *request
	r.store.requests[request.ID] = &copied

	return nil
}

func (r *requestRepository) GetByID(_ context.Context, id string) (*models.StatusChangeRequest, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	request, ok := r.store.requests[id]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", id, persistence.ErrRequestNotFound)
	}

	copied := *request

	return &copied, nil
}

func (r *requestRepository) Update(_ context.Context, request *models.StatusChangeRequest) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.requests[request.ID]; !ok {
		return persistence.NewStoreError("Update", request.ID, persistence.ErrRequestNotFound)
	}

	copied := *request
	r.store.requests[request.ID] = &copied

	return nil
}

func (r *requestRepository) GetPendingByOrg(_ context.Context, orgID string) ([]*models.StatusChangeRequest, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var requests []*models.StatusChangeRequest

	for _, request := range r.store.requests {
		if request.OrgID == orgID && request.Status == models.RequestStatusPending {
			copied := *request
			requests = append(requests, &copied)
		}
	}

	return requests, nil
}

type workflowRepository struct {
	store *Persistence
}

func (r *workflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	workflow, ok := r.store.workflows[id]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	copied := *workflow

	return &copied, nil
}

func (r *workflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	copied := *workflow
	r.store.workflows[workflow.ID] = &copied

	return nil
}

func (r *workflowRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.workflows[id]; !ok {
		return persistence.NewStoreError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	delete(r.store.workflows, id)

	return nil
}

func (r *workflowRepository) GetEnabledByTrigger(_ context.Context, orgID string, triggerType models.TriggerType) ([]*models.Workflow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var workflows []*models.Workflow

	for _, workflow := range r.store.workflows {
		if workflow.OrgID == orgID && workflow.Enabled && workflow.TriggerType == triggerType {
			copied := *workflow
			workflows = append(workflows, &copied)
		}
	}

	return workflows, nil
}

func (r *workflowRepository) GetRecurring(_ context.Context) ([]*models.Workflow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var workflows []*models.Workflow

	for _, workflow := range r.store.workflows {
		if workflow.Enabled && workflow.Recurrence != nil && *workflow.Recurrence != "" {
			copied := *workflow
			workflows = append(workflows, &copied)
		}
	}

	return workflows, nil
}

func (r *workflowRepository) RecordRun(_ context.Context, id string, lastRunAt time.Time, lastError string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	workflow, ok := r.store.workflows[id]
	if !ok {
		return persistence.NewStoreError("RecordRun", id, persistence.ErrWorkflowNotFound)
	}

	runAt := lastRunAt
	workflow.LastRunAt = &runAt

	if lastError != "" {
		workflow.LastError = lastError
	}

	return nil
}

type executionRepository struct {
	store *Persistence
}

func (r *executionRepository) Create(_ context.Context, execution *models.WorkflowExecution) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if execution.DedupeKey != "" {
		if _, exists := r.store.dedupeKeys[execution.DedupeKey]; exists {
			return persistence.NewStoreError("Create", execution.DedupeKey, persistence.ErrDuplicateExecution)
		}

		r.store.dedupeKeys[execution.DedupeKey] = execution.ID
	}

	r.store.executions[execution.ID] = copyExecution(execution)

	return nil
}

func (r *executionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	execution, ok := r.store.executions[id]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	return copyExecution(execution), nil
}

func (r *executionRepository) Update(_ context.Context, execution *models.WorkflowExecution) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.executions[execution.ID]; !ok {
		return persistence.NewStoreError("Update", execution.ID, persistence.ErrExecutionNotFound)
	}

	r.store.executions[execution.ID] = copyExecution(execution)

	return nil
}

func (r *executionRepository) CountSince(_ context.Context, workflowID, entityID string, cutoff time.Time) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	count := 0

	for _, execution := range r.store.executions {
		if execution.WorkflowID != workflowID || execution.StartedAt.Before(cutoff) {
			continue
		}

		if entityID != "" && execution.EntityID != entityID {
			continue
		}

		count++
	}

	return count, nil
}

func (r *executionRepository) HasCompleted(_ context.Context, workflowID, entityID string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, execution := range r.store.executions {
		if execution.WorkflowID == workflowID &&
			execution.EntityID == entityID &&
			execution.Status == models.ExecutionStatusCompleted {
			return true, nil
		}
	}

	return false, nil
}

type resumeJobRepository struct {
	store *Persistence
}

func resumePairKey(executionID, taskID string) string {
	return executionID + "/" + taskID
}

func (r *resumeJobRepository) Create(_ context.Context, job *models.WorkflowResumeJob) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	pair := resumePairKey(job.ExecutionID, job.TaskID)
	if _, exists := r.store.resumeByPair[pair]; exists {
		return persistence.NewStoreError("Create", pair, persistence.ErrDuplicateResumeJob)
	}

	copied := *job
	r.store.resumeJobs[job.ID] = &copied
	r.store.resumeByPair[pair] = job.ID

	return nil
}

func (r *resumeJobRepository) GetByExecutionAndTask(_ context.Context, executionID, taskID string) (*models.WorkflowResumeJob, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.resumeByPair[resumePairKey(executionID, taskID)]
	if !ok {
		return nil, persistence.NewStoreError("GetByExecutionAndTask", executionID, persistence.ErrResumeJobNotFound)
	}

	copied := *r.store.resumeJobs[id]

	return &copied, nil
}

func (r *resumeJobRepository) Claim(_ context.Context, id string, processedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	job, ok := r.store.resumeJobs[id]
	if !ok {
		return persistence.NewStoreError("Claim", id, persistence.ErrResumeJobNotFound)
	}

	if job.ProcessedAt != nil {
		return persistence.NewStoreError("Claim", id, persistence.ErrResumeJobAlreadyProcessed)
	}

	at := processedAt
	job.ProcessedAt = &at

	return nil
}

func copyExecution(execution *models.WorkflowExecution) *models.WorkflowExecution {
	copied := *execution

	if execution.ActionsExecuted != nil {
		copied.ActionsExecuted = make([]models.ActionRecord, len(execution.ActionsExecuted))
		copy(copied.ActionsExecuted, execution.ActionsExecuted)
	}

	if execution.PausedAtActionIndex != nil {
		idx := *execution.PausedAtActionIndex
		copied.PausedAtActionIndex = &idx
	}

	if execution.PausedTaskID != nil {
		taskID := *execution.PausedTaskID
		copied.PausedTaskID = &taskID
	}

	return &copied
}
