package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/caseflowhq/caseflow/pkg/events"
	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/protocol"
)

// executeActions runs the workflow's actions in order starting at the given
// index, appending one ActionRecord per action. The first failure marks the
// execution failed and halts the remainder; full success marks it completed.
func (e *Engine) executeActions(
	ctx context.Context,
	execution *models.WorkflowExecution,
	wf *models.Workflow,
	entity *models.Case,
	view map[string]any,
	evt events.TriggerEvent,
	start int,
	logger *slog.Logger,
) {
	actionCtx := protocol.ActionContext{
		Execution:    execution,
		Workflow:     wf,
		Entity:       entity,
		View:         view,
		Event:        evt,
		EventPayload: evt.Payload(),
		Emit: func(ctx context.Context, child events.TriggerEvent) error {
			return e.HandleEvent(ctx, child)
		},
	}

	for i := start; i < len(wf.Actions); i++ {
		item := wf.Actions[i]
		record := models.ActionRecord{
			ActionID:   item.ID,
			Type:       item.Type,
			ExecutedAt: e.now(),
		}

		result, err := e.executeAction(ctx, item, actionCtx, logger)
		if err != nil {
			record.Status = "failed"
			record.Error = err.Error()
			execution.ActionsExecuted = append(execution.ActionsExecuted, record)
			execution.Status = models.ExecutionStatusFailed
			execution.ErrorMessage = fmt.Sprintf("action %s (%s): %v", item.ID, item.Type, err)

			return
		}

		record.Status = "executed"
		execution.ActionsExecuted = append(execution.ActionsExecuted, record)

		logger.Debug("Action executed", "action_id", item.ID, "action_type", item.Type, "result", result)
	}

	now := e.now()
	execution.Status = models.ExecutionStatusCompleted
	execution.CompletedAt = &now
}

func (e *Engine) executeAction(ctx context.Context, item models.ActionItem, actionCtx protocol.ActionContext, logger *slog.Logger) (any, error) {
	action, err := e.registry.CreateAction(item.Type, item.Config)
	if err != nil {
		return nil, err
	}

	return action.Execute(ctx, actionCtx, logger)
}
