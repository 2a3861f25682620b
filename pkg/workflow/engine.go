package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/caseflowhq/caseflow/pkg/events"
	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
	"github.com/caseflowhq/caseflow/pkg/protocol"
	"github.com/caseflowhq/caseflow/pkg/registry"
)

// Engine evaluates trigger events against the org's workflows and drives
// their executions through the ledger. One trigger evaluation against one
// workflow is one ledger row; a failure in one workflow's run never affects
// another workflow's run for the same event, and never propagates to the
// caller that produced the event.
type Engine struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	tasks       protocol.TaskService
	limiter     RateLimiter
	matcher     *Matcher
	logger      *slog.Logger
	now         func() time.Time
}

func NewEngine(
	p persistence.Persistence,
	reg *registry.Registry,
	tasks protocol.TaskService,
	limiter RateLimiter,
	logger *slog.Logger,
) *Engine {
	if limiter == nil {
		limiter = NewLedgerRateLimiter(p.ExecutionRepository())
	}

	return &Engine{
		persistence: p,
		registry:    reg,
		tasks:       tasks,
		limiter:     limiter,
		matcher:     NewMatcher(logger),
		logger:      logger.With("module", "workflow_engine"),
		now:         time.Now,
	}
}

// WithClock replaces the clock, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now

	return e
}

// TriggerEvent is the public entry point for external producers (the
// sweeper, event bus consumers). It is HandleEvent under a name that does
// not suggest an interface obligation.
func (e *Engine) TriggerEvent(ctx context.Context, evt events.TriggerEvent) error {
	return e.HandleEvent(ctx, evt)
}

// HandleEvent runs every matching workflow for the event. It satisfies the
// transition engine's event sink, so status changes dispatch synchronously.
// The returned error covers lookup failures only; per-workflow run failures
// are recorded on the ledger and the workflow, never returned.
func (e *Engine) HandleEvent(ctx context.Context, evt events.TriggerEvent) error {
	base := evt.GetBase()

	workflows, err := e.persistence.WorkflowRepository().GetEnabledByTrigger(ctx, base.OrgID, evt.TriggerType())
	if err != nil {
		return fmt.Errorf("load workflows for trigger %s: %w", evt.TriggerType(), err)
	}

	if len(workflows) == 0 {
		return nil
	}

	entity, err := e.persistence.EntityRepository().GetByID(ctx, evt.GetEntityID())
	if err != nil {
		return fmt.Errorf("load entity %s: %w", evt.GetEntityID(), err)
	}

	view, err := e.buildView(ctx, entity)
	if err != nil {
		return err
	}

	for _, wf := range e.matcher.Match(evt, workflows, entity) {
		e.run(ctx, wf, entity, view, evt)
	}

	return nil
}

// buildView flattens the entity and enriches it with the current stage's
// type and order so conditions can target pipeline position.
func (e *Engine) buildView(ctx context.Context, entity *models.Case) (map[string]any, error) {
	stage, err := e.persistence.StageRepository().GetByID(ctx, entity.StageID)
	if err != nil {
		return nil, fmt.Errorf("load stage %s: %w", entity.StageID, err)
	}

	view := entity.Flatten(e.now())
	view["stage_type"] = string(stage.Type)
	view["stage_order"] = stage.Order

	return view, nil
}

// run drives a single workflow's execution for the event. All outcomes are
// absorbed here: the ledger row and the workflow's LastError/LastRunAt carry
// the result.
func (e *Engine) run(ctx context.Context, wf *models.Workflow, entity *models.Case, view map[string]any, evt events.TriggerEvent) {
	base := evt.GetBase()
	logger := e.logger.With("workflow_id", wf.ID, "entity_id", entity.ID, "event_id", base.ID)
	now := e.now()

	execution := &models.WorkflowExecution{
		ID:          uuid.New().String(),
		OrgID:       wf.OrgID,
		WorkflowID:  wf.ID,
		EntityID:    entity.ID,
		EventID:     base.ID,
		Depth:       base.Depth,
		EventSource: base.Source,
		StartedAt:   now,
	}

	if window, _ := evt.Payload()["window"].(string); window != "" {
		execution.DedupeKey = DedupeKey(wf.ID, entity.ID, window)
	}

	if base.Depth >= MaxCascadeDepth {
		execution.Status = models.ExecutionStatusFailed
		execution.ErrorMessage = fmt.Sprintf("cascade depth ceiling reached (%d)", MaxCascadeDepth)
		execution.CompletedAt = &now

		logger.Warn("Refusing workflow run over cascade depth ceiling", "depth", base.Depth)
		e.insertLedgerRow(ctx, execution, logger)
		e.recordRun(ctx, wf.ID, now, execution.ErrorMessage, logger)

		return
	}

	allowed, reason, err := e.limiter.Allow(ctx, wf, entity.ID)
	if err != nil {
		logger.Warn("Rate limiter unavailable, allowing run", "error", err)
	} else if !allowed {
		logger.Warn("Workflow run denied by rate limit", "reason", reason)

		return
	}

	matched, err := e.matcher.EvaluateConditions(wf, view)
	if err != nil {
		execution.Status = models.ExecutionStatusFailed
		execution.ErrorMessage = err.Error()
		execution.CompletedAt = &now

		logger.Error("Condition evaluation failed", "error", err)
		e.insertLedgerRow(ctx, execution, logger)
		e.recordRun(ctx, wf.ID, now, execution.ErrorMessage, logger)

		return
	}

	execution.MatchedConditions = matched

	if !matched {
		execution.Status = models.ExecutionStatusCompleted
		execution.CompletedAt = &now

		logger.Debug("Conditions did not match, recording evaluation only")
		e.insertLedgerRow(ctx, execution, logger)

		return
	}

	// The ledger row goes in before any side effect. A dedupe key collision
	// means another pass already owns this firing.
	execution.Status = models.ExecutionStatusRunning
	if !e.insertLedgerRow(ctx, execution, logger) {
		return
	}

	gated, err := e.needsApproval(ctx, wf, entity)
	if err != nil {
		e.failRun(ctx, execution, wf, fmt.Sprintf("first-run check: %v", err), logger)

		return
	}

	if gated {
		e.pauseForApproval(ctx, execution, wf, entity, logger)

		return
	}

	e.executeActions(ctx, execution, wf, entity, view, evt, 0, logger)
	e.finalizeRun(ctx, execution, wf, logger)
}

// needsApproval implements the approval gate policy: a requires_review
// workflow pauses until it has one completed run for the entity. The
// completed run stands in for standing approval afterwards.
func (e *Engine) needsApproval(ctx context.Context, wf *models.Workflow, entity *models.Case) (bool, error) {
	if !wf.RequiresReview {
		return false, nil
	}

	completed, err := e.persistence.ExecutionRepository().HasCompleted(ctx, wf.ID, entity.ID)
	if err != nil {
		return false, err
	}

	return !completed, nil
}

// pauseForApproval creates exactly one approval task and parks the run
// before its first action. The paused index of -1 means no action has run;
// resumption enters at index zero.
func (e *Engine) pauseForApproval(ctx context.Context, execution *models.WorkflowExecution, wf *models.Workflow, entity *models.Case, logger *slog.Logger) {
	now := e.now()

	task, err := e.tasks.CreateTask(ctx, &models.Task{
		ID:          uuid.New().String(),
		OrgID:       wf.OrgID,
		EntityID:    entity.ID,
		ExecutionID: &execution.ID,
		Title:       fmt.Sprintf("Approve automation %q for case %s", wf.Name, entity.ID),
		Status:      models.TaskStatusOpen,
		AssigneeID:  entity.OwnerID,
		CreatedAt:   now,
	})
	if err != nil {
		e.failRun(ctx, execution, wf, fmt.Sprintf("create approval task: %v", err), logger)

		return
	}

	pausedIndex := -1
	execution.Status = models.ExecutionStatusPaused
	execution.PausedAtActionIndex = &pausedIndex
	execution.PausedTaskID = &task.ID

	if err := e.persistence.ExecutionRepository().Update(ctx, execution); err != nil {
		logger.Error("Failed to persist paused execution", "error", err)
	}

	e.recordRun(ctx, wf.ID, now, "", logger)
	logger.Info("Workflow run paused for approval", "execution_id", execution.ID, "task_id", task.ID)
}

// insertLedgerRow reports whether the row was written. A duplicate dedupe
// key is an expected race outcome and comes back false without noise.
func (e *Engine) insertLedgerRow(ctx context.Context, execution *models.WorkflowExecution, logger *slog.Logger) bool {
	err := e.persistence.ExecutionRepository().Create(ctx, execution)
	if err == nil {
		return true
	}

	if errors.Is(err, persistence.ErrDuplicateExecution) {
		logger.Debug("Window already executed, skipping duplicate firing", "dedupe_key", execution.DedupeKey)

		return false
	}

	logger.Error("Failed to write execution ledger row", "error", err)

	return false
}

func (e *Engine) failRun(ctx context.Context, execution *models.WorkflowExecution, wf *models.Workflow, message string, logger *slog.Logger) {
	now := e.now()
	execution.Status = models.ExecutionStatusFailed
	execution.ErrorMessage = message
	execution.CompletedAt = &now

	if err := e.persistence.ExecutionRepository().Update(ctx, execution); err != nil {
		logger.Error("Failed to persist failed execution", "error", err)
	}

	e.recordRun(ctx, wf.ID, now, message, logger)
	logger.Error("Workflow run failed", "execution_id", execution.ID, "error_message", message)
}

func (e *Engine) finalizeRun(ctx context.Context, execution *models.WorkflowExecution, wf *models.Workflow, logger *slog.Logger) {
	if err := e.persistence.ExecutionRepository().Update(ctx, execution); err != nil {
		logger.Error("Failed to persist execution result", "error", err)
	}

	e.recordRun(ctx, wf.ID, e.now(), execution.ErrorMessage, logger)

	logger.Info("Workflow run finished",
		"execution_id", execution.ID,
		"status", execution.Status,
		"actions_executed", len(execution.ActionsExecuted))
}

func (e *Engine) recordRun(ctx context.Context, workflowID string, at time.Time, lastError string, logger *slog.Logger) {
	if err := e.persistence.WorkflowRepository().RecordRun(ctx, workflowID, at, lastError); err != nil {
		logger.Error("Failed to record workflow run bookkeeping", "error", err)
	}
}
