// Package addnote implements the add_note workflow action.
package addnote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/caseflowhq/caseflow/pkg/protocol"
	"github.com/caseflowhq/caseflow/pkg/template"
)

const systemAuthor = "system"

func NewFactory(notes protocol.NoteWriter) *Factory {
	return &Factory{notes: notes}
}

type Factory struct {
	notes protocol.NoteWriter
}

func (*Factory) ID() string {
	return "add_note"
}

func (*Factory) Name() string {
	return "Add Note"
}

func (*Factory) Description() string {
	return "Appends a note to the entity's activity feed, attributed to the automation system."
}

func (f *Factory) Create(config map[string]any) (protocol.Action, error) {
	if config == nil {
		config = map[string]any{}
	}

	body, _ := config["body"].(string)
	if body == "" {
		return nil, errors.New("add_note requires a body")
	}

	return &Action{notes: f.notes, body: body}, nil
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"body": map[string]any{
				"type":        "string",
				"description": "Note body. Supports templating over the entity view and event payload.",
			},
		},
		"required": []string{"body"},
	}
}

type Action struct {
	notes protocol.NoteWriter
	body  string
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) (any, error) {
	logger = logger.With("action_type", "add_note")

	body, err := template.RenderWithContext(a.body, actionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render note body: %w", err)
	}

	err = a.notes.AddNote(ctx, actionCtx.Entity.OrgID, actionCtx.Entity.ID, systemAuthor, body)
	if err != nil {
		return nil, fmt.Errorf("failed to add note: %w", err)
	}

	logger.Debug("Note appended", "entity_id", actionCtx.Entity.ID)

	return map[string]any{"body": body}, nil
}
