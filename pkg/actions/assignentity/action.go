// Package assignentity implements the assign_entity workflow action.
package assignentity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caseflowhq/caseflow/pkg/persistence"
	"github.com/caseflowhq/caseflow/pkg/protocol"
)

func NewFactory(entities persistence.EntityRepository) *Factory {
	return &Factory{entities: entities}
}

type Factory struct {
	entities persistence.EntityRepository
}

func (*Factory) ID() string {
	return "assign_entity"
}

func (*Factory) Name() string {
	return "Assign Entity"
}

func (*Factory) Description() string {
	return "Reassigns the entity to a different owner."
}

func (f *Factory) Create(config map[string]any) (protocol.Action, error) {
	if config == nil {
		config = map[string]any{}
	}

	ownerID, _ := config["owner_id"].(string)
	if ownerID == "" {
		return nil, errors.New("assign_entity requires an owner_id")
	}

	return &Action{entities: f.entities, ownerID: ownerID}, nil
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"owner_id": map[string]any{
				"type":        "string",
				"description": "User ID to assign the entity to",
			},
		},
		"required": []string{"owner_id"},
	}
}

type Action struct {
	entities persistence.EntityRepository
	ownerID  string
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) (any, error) {
	logger = logger.With("action_type", "assign_entity")

	entity, err := a.entities.GetByID(ctx, actionCtx.Entity.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entity: %w", err)
	}

	previous := entity.OwnerID
	entity.OwnerID = a.ownerID
	entity.UpdatedAt = time.Now().UTC()

	err = a.entities.Save(ctx, entity)
	if err != nil {
		return nil, fmt.Errorf("failed to save entity: %w", err)
	}

	logger.Debug("Entity reassigned", "entity_id", entity.ID, "owner_id", a.ownerID)

	return map[string]any{"owner_id": a.ownerID, "previous_owner_id": previous}, nil
}
