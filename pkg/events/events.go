// Package events defines the typed domain events flowing between the
// transition engine, the workflow engine, and external consumers.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/caseflowhq/caseflow/pkg/models"
)

type EventType string

// Kafka topic for integration events.
const Topic = "caseflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	EntityStatusChangedEvent EventType = "entity.status_changed"
	EntityCreatedEvent       EventType = "entity.created"

	TaskCreatedEvent   EventType = "task.created"
	TaskDueEvent       EventType = "task.due"
	TaskCompletedEvent EventType = "task.completed"

	NoteAddedEvent EventType = "note.added"

	ScheduledSweepEvent  EventType = "sweep.scheduled"
	InactivitySweepEvent EventType = "sweep.inactivity"

	ApprovalRequestedEvent EventType = "approval.requested"
	ApprovalResolvedEvent  EventType = "approval.resolved"

	NotificationRequestedEvent EventType = "notification.requested"
)

type BaseEvent struct {
	ID        string             `json:"id"`
	Type      EventType          `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	OrgID     string             `json:"org_id"`
	Source    models.EventSource `json:"source"`

	// Depth counts how many workflow-triggered hops produced this event.
	// User- and system-sourced events start at zero; every event emitted by
	// a workflow action carries its parent's depth plus one.
	Depth int `json:"depth"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

func (b BaseEvent) GetBase() BaseEvent { return b }

// TriggerEvent is a domain event that workflow triggers can match against.
type TriggerEvent interface {
	GetType() EventType
	GetBase() BaseEvent
	TriggerType() models.TriggerType
	GetEntityID() string
	Payload() map[string]any
}

func NewBaseEvent(eventType EventType, orgID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		OrgID:     orgID,
		Source:    models.EventSourceUser,
		Metadata:  make(map[string]any),
	}
}

// NewChildEvent derives the base for an event emitted by a workflow action,
// threading the incremented cascade depth through for the loop guard.
func NewChildEvent(eventType EventType, parent BaseEvent) BaseEvent {
	base := NewBaseEvent(eventType, parent.OrgID)
	base.Source = models.EventSourceWorkflow
	base.Depth = parent.Depth + 1

	return base
}

type StatusChanged struct {
	BaseEvent

	EntityID    string    `json:"entity_id"`
	FromStageID string    `json:"from_stage_id"`
	FromLabel   string    `json:"from_label"`
	ToStageID   string    `json:"to_stage_id"`
	ToLabel     string    `json:"to_label"`
	ActorID     string    `json:"actor_id"`
	Reason      string    `json:"reason,omitempty"`
	IsUndo      bool      `json:"is_undo"`
	EffectiveAt time.Time `json:"effective_at"`
}

func (e StatusChanged) GetType() EventType               { return EntityStatusChangedEvent }
func (e StatusChanged) TriggerType() models.TriggerType  { return models.TriggerStatusChanged }
func (e StatusChanged) GetEntityID() string              { return e.EntityID }

func (e StatusChanged) Payload() map[string]any {
	return map[string]any{
		"from_stage_id": e.FromStageID,
		"from_label":    e.FromLabel,
		"to_stage_id":   e.ToStageID,
		"to_label":      e.ToLabel,
		"actor_id":      e.ActorID,
		"is_undo":       e.IsUndo,
	}
}

type EntityCreated struct {
	BaseEvent

	EntityID string `json:"entity_id"`
	OwnerID  string `json:"owner_id"`
}

func (e EntityCreated) GetType() EventType              { return EntityCreatedEvent }
func (e EntityCreated) TriggerType() models.TriggerType { return models.TriggerEntityCreated }
func (e EntityCreated) GetEntityID() string             { return e.EntityID }

func (e EntityCreated) Payload() map[string]any {
	return map[string]any{"owner_id": e.OwnerID}
}

// TaskCreated asks the external task service to materialize a task. The
// engine's own record of the task (approval gating, due events) lives in the
// execution ledger, not here.
type TaskCreated struct {
	BaseEvent

	Task models.Task `json:"task"`
}

func (e TaskCreated) GetType() EventType { return TaskCreatedEvent }

// NoteAdded asks the external activity feed to append a note to an entity.
type NoteAdded struct {
	BaseEvent

	EntityID string `json:"entity_id"`
	AuthorID string `json:"author_id"`
	Body     string `json:"body"`
}

func (e NoteAdded) GetType() EventType { return NoteAddedEvent }

type TaskDue struct {
	BaseEvent

	EntityID  string    `json:"entity_id"`
	TaskID    string    `json:"task_id"`
	TaskTitle string    `json:"task_title"`
	DueAt     time.Time `json:"due_at"`
}

func (e TaskDue) GetType() EventType              { return TaskDueEvent }
func (e TaskDue) TriggerType() models.TriggerType { return models.TriggerTaskDue }
func (e TaskDue) GetEntityID() string             { return e.EntityID }

func (e TaskDue) Payload() map[string]any {
	return map[string]any{"task_id": e.TaskID, "task_title": e.TaskTitle}
}

// TaskCompleted signals completion of a task. For approval-gate tasks this is
// what drives workflow resumption across processes.
type TaskCompleted struct {
	BaseEvent

	TaskID      string `json:"task_id"`
	EntityID    string `json:"entity_id"`
	ExecutionID string `json:"execution_id,omitempty"`
	CompletedBy string `json:"completed_by"`
}

func (e TaskCompleted) GetType() EventType { return TaskCompletedEvent }

type ScheduledSweep struct {
	BaseEvent

	WorkflowID string `json:"workflow_id"`
	EntityID   string `json:"entity_id"`

	// Window identifies the recurrence period this firing belongs to; it is
	// folded into the execution dedupe key.
	Window string `json:"window"`
}

func (e ScheduledSweep) GetType() EventType              { return ScheduledSweepEvent }
func (e ScheduledSweep) TriggerType() models.TriggerType { return models.TriggerScheduledSweep }
func (e ScheduledSweep) GetEntityID() string             { return e.EntityID }

func (e ScheduledSweep) Payload() map[string]any {
	return map[string]any{"workflow_id": e.WorkflowID, "window": e.Window}
}

type InactivitySweep struct {
	BaseEvent

	WorkflowID string `json:"workflow_id"`
	EntityID   string `json:"entity_id"`
	IdleDays   int    `json:"idle_days"`
	Window     string `json:"window"`
}

func (e InactivitySweep) GetType() EventType              { return InactivitySweepEvent }
func (e InactivitySweep) TriggerType() models.TriggerType { return models.TriggerInactivitySweep }
func (e InactivitySweep) GetEntityID() string             { return e.EntityID }

func (e InactivitySweep) Payload() map[string]any {
	return map[string]any{"workflow_id": e.WorkflowID, "idle_days": e.IdleDays, "window": e.Window}
}

type ApprovalRequested struct {
	BaseEvent

	RequestID     string `json:"request_id"`
	EntityID      string `json:"entity_id"`
	TargetStageID string `json:"target_stage_id"`
	RequesterID   string `json:"requester_id"`
	Reason        string `json:"reason"`
}

func (e ApprovalRequested) GetType() EventType { return ApprovalRequestedEvent }

type ApprovalResolved struct {
	BaseEvent

	RequestID  string               `json:"request_id"`
	EntityID   string               `json:"entity_id"`
	Status     models.RequestStatus `json:"status"`
	ResolverID string               `json:"resolver_id"`
}

func (e ApprovalResolved) GetType() EventType { return ApprovalResolvedEvent }

// NotificationRequested asks the external notification service to deliver a
// message. The engine never renders or sends anything itself.
type NotificationRequested struct {
	BaseEvent

	RecipientID string         `json:"recipient_id"`
	Subject     string         `json:"subject"`
	Body        string         `json:"body,omitempty"`
	Ref         map[string]any `json:"ref,omitempty"`
}

func (e NotificationRequested) GetType() EventType { return NotificationRequestedEvent }
