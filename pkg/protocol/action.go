// Package protocol defines the contracts between the workflow engine, the
// built-in actions, and the external services they call into.
package protocol

import (
	"context"
	"log/slog"

	"github.com/caseflowhq/caseflow/pkg/events"
	"github.com/caseflowhq/caseflow/pkg/models"
)

// ActionContext carries everything an action needs at execution time: the
// entity the workflow fired for, its flattened view, and the payload of the
// triggering event.
type ActionContext struct {
	Execution *models.WorkflowExecution
	Workflow  *models.Workflow
	Entity    *models.Case

	// View is the flattened entity snapshot conditions were evaluated on.
	View map[string]any

	// Event is the trigger event the workflow fired for.
	Event events.TriggerEvent

	// EventPayload is the trigger event's payload, available to actions for
	// templating and routing.
	EventPayload map[string]any

	// Emit re-enters the trigger pipeline with a follow-up event. The
	// executor threads the cascade depth; the loop guard bounds it.
	Emit func(ctx context.Context, event events.TriggerEvent) error
}

type Action interface {
	Execute(ctx context.Context, actionCtx ActionContext, logger *slog.Logger) (any, error)
}

// ActionFactory builds an action kind from its stored configuration.
// Construction fails on invalid config; execution never sees a bad one.
type ActionFactory interface {
	Create(config map[string]any) (Action, error)
	ID() string
	Name() string
	Description() string

	// Schema returns the JSON schema the registry validates config against.
	Schema() map[string]any
}
