// Package services holds the application-facing service layer: validating
// workflow CRUD and the event-bus backed implementations of the external
// collaborator interfaces.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
	"github.com/caseflowhq/caseflow/pkg/registry"
)

var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

// WorkflowService validates and persists workflow definitions. Validation is
// front-loaded here so the engine never evaluates a malformed workflow:
// unknown trigger types, operators, action kinds, and bad recurrence
// expressions are all rejected at save time.
type WorkflowService struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	validator   *validator.Validate
}

func NewWorkflowService(p persistence.Persistence, reg *registry.Registry) *WorkflowService {
	return &WorkflowService{
		persistence: p,
		registry:    reg,
		validator:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// HealthCheck reports the persistence layer's health.
func (s *WorkflowService) HealthCheck(ctx context.Context) (string, bool) {
	if err := s.persistence.HealthCheck(ctx); err != nil {
		return "persistence layer is unhealthy: " + err.Error(), false
	}

	return "persistence layer is healthy", true
}

// Create validates and persists a new workflow.
func (s *WorkflowService) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if err := s.validate(workflow); err != nil {
		return nil, err
	}

	if err := s.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("save workflow: %w", err)
	}

	return workflow, nil
}

// Update validates and persists changes to an existing workflow.
func (s *WorkflowService) Update(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	existing, err := s.persistence.WorkflowRepository().GetByID(ctx, workflow.ID)
	if err != nil {
		return nil, err
	}

	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()

	if err := s.validate(workflow); err != nil {
		return nil, err
	}

	if err := s.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("save workflow: %w", err)
	}

	return workflow, nil
}

func (s *WorkflowService) Get(ctx context.Context, id string) (*models.Workflow, error) {
	return s.persistence.WorkflowRepository().GetByID(ctx, id)
}

func (s *WorkflowService) Delete(ctx context.Context, id string) error {
	return s.persistence.WorkflowRepository().Delete(ctx, id)
}

func (s *WorkflowService) validate(workflow *models.Workflow) error {
	if err := s.validator.Struct(workflow); err != nil {
		return fmt.Errorf("workflow definition invalid: %w", err)
	}

	switch workflow.TriggerType {
	case models.TriggerStatusChanged, models.TriggerEntityCreated, models.TriggerTaskDue,
		models.TriggerScheduledSweep, models.TriggerInactivitySweep:
	default:
		return fmt.Errorf("unknown trigger type %q", workflow.TriggerType)
	}

	if workflow.Scope == models.ScopePersonal && workflow.OwnerID == "" {
		return errors.New("personal workflows require an owner")
	}

	if workflow.Recurrence != nil {
		if workflow.TriggerType != models.TriggerScheduledSweep {
			return errors.New("recurrence is only valid on scheduled sweep workflows")
		}

		if _, err := cron.ParseStandard(*workflow.Recurrence); err != nil {
			return fmt.Errorf("invalid recurrence expression %q: %w", *workflow.Recurrence, err)
		}
	}

	for _, cond := range workflow.Conditions {
		if _, err := models.ParseOperator(string(cond.Operator)); err != nil {
			return err
		}
	}

	for _, item := range workflow.Actions {
		if _, err := s.registry.CreateAction(item.Type, item.Config); err != nil {
			return fmt.Errorf("action %s: %w", item.ID, err)
		}
	}

	return nil
}
