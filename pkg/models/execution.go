package models

import "time"

// ExecutionStatus is the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// ActionRecord captures one action of an execution, in order.
type ActionRecord struct {
	ActionID   string    `json:"action_id"`
	Type       string    `json:"type"`
	Status     string    `json:"status"` // executed | failed
	Error      string    `json:"error,omitempty"`
	ExecutedAt time.Time `json:"executed_at"`
}

// WorkflowExecution is one row of the execution ledger: a record of a single
// trigger evaluation against a single workflow. It doubles as the loop-guard
// and dedup primitive: the row is written before any side effect, and
// DedupeKey carries a unique constraint so concurrent sweep passes race on
// the insert instead of double-firing.
type WorkflowExecution struct {
	ID                string          `json:"id"`
	OrgID             string          `json:"org_id"`
	WorkflowID        string          `json:"workflow_id"`
	EntityID          string          `json:"entity_id"`
	EventID           string          `json:"event_id"`
	Depth             int             `json:"depth"`
	EventSource       EventSource     `json:"event_source"`
	DedupeKey         string          `json:"dedupe_key,omitempty"`
	MatchedConditions bool            `json:"matched_conditions"`
	ActionsExecuted   []ActionRecord  `json:"actions_executed"`
	Status            ExecutionStatus `json:"status"`

	PausedAtActionIndex *int    `json:"paused_at_action_index,omitempty"`
	PausedTaskID        *string `json:"paused_task_id,omitempty"`

	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// IsPaused reports whether the execution is waiting on an approval task.
// Invariant: a paused execution references exactly one outstanding task.
func (e *WorkflowExecution) IsPaused() bool {
	return e.Status == ExecutionStatusPaused && e.PausedAtActionIndex != nil && e.PausedTaskID != nil
}

// WorkflowResumeJob is the durable idempotency record for resuming a paused
// execution. The (ExecutionID, TaskID) pair is unique, and ProcessedAt flips
// exactly once, guaranteeing at-most-once execution of the remaining actions
// per approval event.
type WorkflowResumeJob struct {
	ID          string     `json:"id"`
	ExecutionID string     `json:"execution_id"`
	TaskID      string     `json:"task_id"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}
