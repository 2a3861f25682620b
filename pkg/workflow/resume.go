package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/caseflowhq/caseflow/pkg/events"
	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
)

// ResumeWorkflow continues a paused execution after its approval task was
// completed. Idempotency rests on the resume job: the (execution, task) pair
// inserts under a unique constraint and is claimed atomically, so redelivered
// completion events and racing workers resume the remaining actions at most
// once.
func (e *Engine) ResumeWorkflow(ctx context.Context, executionID, taskID string) error {
	logger := e.logger.With("execution_id", executionID, "task_id", taskID)
	jobs := e.persistence.ResumeJobRepository()

	job := &models.WorkflowResumeJob{
		ID:          uuid.New().String(),
		ExecutionID: executionID,
		TaskID:      taskID,
		CreatedAt:   e.now(),
	}

	if err := jobs.Create(ctx, job); err != nil {
		if !errors.Is(err, persistence.ErrDuplicateResumeJob) {
			return fmt.Errorf("create resume job: %w", err)
		}

		existing, err := jobs.GetByExecutionAndTask(ctx, executionID, taskID)
		if err != nil {
			return fmt.Errorf("load existing resume job: %w", err)
		}

		job = existing
	}

	if err := jobs.Claim(ctx, job.ID, e.now()); err != nil {
		if errors.Is(err, persistence.ErrResumeJobAlreadyProcessed) {
			logger.Debug("Resume already processed, ignoring redelivery")

			return nil
		}

		return fmt.Errorf("claim resume job: %w", err)
	}

	execution, err := e.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return fmt.Errorf("load execution: %w", err)
	}

	if !execution.IsPaused() {
		logger.Warn("Execution is not paused, nothing to resume", "status", execution.Status)

		return nil
	}

	if *execution.PausedTaskID != taskID {
		return fmt.Errorf("task %s is not the approval task for execution %s", taskID, executionID)
	}

	wf, err := e.persistence.WorkflowRepository().GetByID(ctx, execution.WorkflowID)
	if err != nil {
		return fmt.Errorf("load workflow: %w", err)
	}

	entity, err := e.persistence.EntityRepository().GetByID(ctx, execution.EntityID)
	if err != nil {
		return fmt.Errorf("load entity: %w", err)
	}

	view, err := e.buildView(ctx, entity)
	if err != nil {
		return err
	}

	start := *execution.PausedAtActionIndex + 1
	execution.Status = models.ExecutionStatusRunning
	execution.PausedAtActionIndex = nil
	execution.PausedTaskID = nil

	logger.Info("Resuming workflow run", "workflow_id", wf.ID, "start_index", start)

	e.executeActions(ctx, execution, wf, entity, view, e.resumeEvent(execution, wf, entity), start, logger)
	e.finalizeRun(ctx, execution, wf, logger)

	return nil
}

// resumeEvent reconstructs a trigger event stand-in for actions executed
// after resumption. It carries the original event's identity, source, and
// cascade depth from the ledger row so emitted follow-ups stay loop-guarded.
func (e *Engine) resumeEvent(execution *models.WorkflowExecution, wf *models.Workflow, entity *models.Case) events.TriggerEvent {
	return resumedTrigger{
		base: events.BaseEvent{
			ID:        execution.EventID,
			Type:      events.EventType(string(wf.TriggerType)),
			Timestamp: e.now(),
			OrgID:     execution.OrgID,
			Source:    execution.EventSource,
			Depth:     execution.Depth,
		},
		triggerType: wf.TriggerType,
		entityID:    entity.ID,
	}
}

type resumedTrigger struct {
	base        events.BaseEvent
	triggerType models.TriggerType
	entityID    string
}

func (t resumedTrigger) GetType() events.EventType       { return t.base.Type }
func (t resumedTrigger) GetBase() events.BaseEvent       { return t.base }
func (t resumedTrigger) TriggerType() models.TriggerType { return t.triggerType }
func (t resumedTrigger) GetEntityID() string             { return t.entityID }
func (t resumedTrigger) Payload() map[string]any         { return map[string]any{} }
