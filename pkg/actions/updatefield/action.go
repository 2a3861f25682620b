// Package updatefield implements the update_field workflow action. It writes
// custom entity fields only; built-in attributes (stage, owner, org) are
// never reachable through it.
package updatefield

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caseflowhq/caseflow/pkg/persistence"
	"github.com/caseflowhq/caseflow/pkg/protocol"
)

var protectedFields = map[string]bool{
	"entity_id":    true,
	"org_id":       true,
	"pipeline_id":  true,
	"stage_id":     true,
	"status_label": true,
	"owner_id":     true,
}

func NewFactory(entities persistence.EntityRepository) *Factory {
	return &Factory{entities: entities}
}

type Factory struct {
	entities persistence.EntityRepository
}

func (*Factory) ID() string {
	return "update_field"
}

func (*Factory) Name() string {
	return "Update Field"
}

func (*Factory) Description() string {
	return "Sets a custom field on the entity."
}

func (f *Factory) Create(config map[string]any) (protocol.Action, error) {
	if config == nil {
		config = map[string]any{}
	}

	field, _ := config["field"].(string)
	if field == "" {
		return nil, errors.New("update_field requires a field")
	}

	if protectedFields[field] {
		return nil, fmt.Errorf("field %q is built-in and cannot be updated by workflows", field)
	}

	value, exists := config["value"]
	if !exists {
		return nil, errors.New("update_field requires a value")
	}

	return &Action{entities: f.entities, field: field, value: value}, nil
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"field": map[string]any{
				"type":        "string",
				"description": "Custom field name to set",
			},
			"value": map[string]any{
				"description": "Value to assign",
			},
		},
		"required": []string{"field", "value"},
	}
}

type Action struct {
	entities persistence.EntityRepository
	field    string
	value    any
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) (any, error) {
	logger = logger.With("action_type", "update_field", "field", a.field)

	entity, err := a.entities.GetByID(ctx, actionCtx.Entity.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entity: %w", err)
	}

	if entity.Fields == nil {
		entity.Fields = make(map[string]any)
	}

	entity.Fields[a.field] = a.value
	entity.UpdatedAt = time.Now().UTC()

	err = a.entities.Save(ctx, entity)
	if err != nil {
		return nil, fmt.Errorf("failed to save entity: %w", err)
	}

	logger.Debug("Field updated", "entity_id", entity.ID)

	return map[string]any{"field": a.field, "value": a.value}, nil
}
