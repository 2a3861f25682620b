package models

import "time"

// TriggerType names the domain event class a workflow listens for.
type TriggerType string

const (
	TriggerStatusChanged   TriggerType = "status_changed"
	TriggerEntityCreated   TriggerType = "entity_created"
	TriggerTaskDue         TriggerType = "task_due"
	TriggerScheduledSweep  TriggerType = "scheduled_sweep"
	TriggerInactivitySweep TriggerType = "inactivity_sweep"
)

// WorkflowScope controls visibility: org workflows fire for every entity in
// the organization, personal workflows only for entities owned by (or events
// acted on by) the workflow owner.
type WorkflowScope string

const (
	ScopeOrg      WorkflowScope = "org"
	ScopePersonal WorkflowScope = "personal"
)

// Workflow is an automation rule: a trigger, an ordered condition list, and
// an ordered action list.
type Workflow struct {
	ID             string         `json:"id"              validate:"required"`
	OrgID          string         `json:"org_id"          validate:"required"`
	Name           string         `json:"name"            validate:"required,min=3"`
	Description    string         `json:"description"`
	TriggerType    TriggerType    `json:"trigger_type"    validate:"required"`
	TriggerConfig  map[string]any `json:"trigger_config,omitempty"`
	ConditionLogic ConditionLogic `json:"condition_logic" validate:"omitempty,oneof=and or"`
	Conditions     []Condition    `json:"conditions,omitempty"`
	Actions        []ActionItem   `json:"actions"         validate:"required,min=1,dive"`
	Scope          WorkflowScope  `json:"scope"           validate:"required,oneof=org personal"`
	OwnerID        string         `json:"owner_id"`

	// Recurrence is a cron expression for scheduled_sweep workflows. The
	// sweeper derives the dedupe window from it.
	Recurrence *string `json:"recurrence,omitempty"`

	RateLimitPerHour         int  `json:"rate_limit_per_hour"`
	RateLimitPerEntityPerDay int  `json:"rate_limit_per_entity_per_day"`
	RequiresReview           bool `json:"requires_review"`
	Enabled                  bool `json:"enabled"`

	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppliesTo reports whether the workflow's scope covers the given entity
// owner and acting user.
func (w *Workflow) AppliesTo(entityOwnerID, actorID string) bool {
	if w.Scope == ScopeOrg {
		return true
	}

	return w.OwnerID != "" && (w.OwnerID == entityOwnerID || w.OwnerID == actorID)
}

// Logic returns the effective condition logic, defaulting to "and".
func (w *Workflow) Logic() ConditionLogic {
	if w.ConditionLogic == "" {
		return ConditionLogicAnd
	}

	return w.ConditionLogic
}
