// Package createtask implements the create_task workflow action. Tasks
// created already due emit a follow-up due event, which re-enters the
// trigger pipeline as a workflow-sourced cascade.
package createtask

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/caseflowhq/caseflow/pkg/events"
	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/protocol"
	"github.com/caseflowhq/caseflow/pkg/template"
)

type Action struct {
	tasks         protocol.TaskService
	title         string
	assigneeField string
	dueInDays     *int
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) (any, error) {
	logger = logger.With("action_type", "create_task")

	title, err := template.RenderWithContext(a.title, actionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render task title: %w", err)
	}

	assignee, _ := actionCtx.View[a.assigneeField].(string)

	task := &models.Task{
		ID:         uuid.New().String(),
		OrgID:      actionCtx.Entity.OrgID,
		EntityID:   actionCtx.Entity.ID,
		Title:      title,
		Status:     models.TaskStatusOpen,
		AssigneeID: assignee,
		CreatedAt:  time.Now().UTC(),
	}

	if a.dueInDays != nil {
		dueAt := time.Now().UTC().AddDate(0, 0, *a.dueInDays)
		task.DueAt = &dueAt
	}

	created, err := a.tasks.CreateTask(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	logger.Debug("Task created", "task_id", created.ID, "title", created.Title)

	// A task due on arrival fires its due event immediately instead of
	// waiting for the sweeper.
	if created.DueAt != nil && !created.DueAt.After(time.Now().UTC()) && actionCtx.Emit != nil {
		due := events.TaskDue{
			BaseEvent: events.NewChildEvent(events.TaskDueEvent, actionCtx.Event.GetBase()),
			EntityID:  created.EntityID,
			TaskID:    created.ID,
			TaskTitle: created.Title,
			DueAt:     *created.DueAt,
		}

		err = actionCtx.Emit(ctx, due)
		if err != nil {
			return nil, fmt.Errorf("failed to emit due event: %w", err)
		}
	}

	return map[string]any{"task_id": created.ID, "title": created.Title}, nil
}
