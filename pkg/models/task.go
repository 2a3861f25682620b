package models

import "time"

// TaskStatus mirrors the lifecycle the external task service reports back.
type TaskStatus string

const (
	TaskStatusOpen      TaskStatus = "open"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Task is the minimal shape of a record in the external task service. The
// engine only creates approval tasks and reacts to their completion; task
// content and UI are outside this subsystem.
type Task struct {
	ID          string     `json:"id"`
	OrgID       string     `json:"org_id"`
	EntityID    string     `json:"entity_id"`
	ExecutionID *string    `json:"execution_id,omitempty"`
	Title       string     `json:"title"`
	Status      TaskStatus `json:"status"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
