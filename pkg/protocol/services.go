package protocol

import (
	"context"

	"github.com/caseflowhq/caseflow/pkg/models"
)

// EmailSender delivers templated email through the external mail service.
type EmailSender interface {
	Send(ctx context.Context, orgID, recipientID, template string, data map[string]any) error
}

// TaskService is the external task system. The engine creates ordinary tasks
// from workflow actions and approval tasks for paused executions.
type TaskService interface {
	CreateTask(ctx context.Context, task *models.Task) (*models.Task, error)
	CompleteTask(ctx context.Context, taskID, completedBy string) error
	GetTask(ctx context.Context, taskID string) (*models.Task, error)
}

// NoteWriter appends a note to an entity's activity feed.
type NoteWriter interface {
	AddNote(ctx context.Context, orgID, entityID, authorID, body string) error
}

// Notifier fans a notification out to a user. Implementations decide the
// channel; the engine only supplies content.
type Notifier interface {
	Notify(ctx context.Context, orgID, recipientID, subject, body string, ref map[string]any) error
}
