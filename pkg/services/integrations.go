package services

import (
	"context"
	"errors"

	"github.com/caseflowhq/caseflow/pkg/eventbus"
	"github.com/caseflowhq/caseflow/pkg/events"
	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/protocol"
)

// Integrations implements the external collaborator interfaces over the
// event bus. Email, tasks, notes, and notifications are owned by other
// services; the engine's contract with them is one outbound event each.
type Integrations struct {
	publisher eventbus.EventPublisher
}

func NewIntegrations(publisher eventbus.EventPublisher) *Integrations {
	return &Integrations{publisher: publisher}
}

var (
	_ protocol.EmailSender = (*Integrations)(nil)
	_ protocol.TaskService = (*Integrations)(nil)
	_ protocol.NoteWriter  = (*Integrations)(nil)
	_ protocol.Notifier    = (*Integrations)(nil)
)

func (i *Integrations) Send(ctx context.Context, orgID, recipientID, template string, data map[string]any) error {
	evt := events.NotificationRequested{
		BaseEvent:   events.NewBaseEvent(events.NotificationRequestedEvent, orgID),
		RecipientID: recipientID,
		Subject:     template,
		Ref:         map[string]any{"template": template, "data": data},
	}
	evt.Source = models.EventSourceSystem

	return i.publisher.Publish(ctx, recipientID, evt)
}

func (i *Integrations) CreateTask(ctx context.Context, task *models.Task) (*models.Task, error) {
	evt := events.TaskCreated{
		BaseEvent: events.NewBaseEvent(events.TaskCreatedEvent, task.OrgID),
		Task:      *task,
	}
	evt.Source = models.EventSourceSystem

	if err := i.publisher.Publish(ctx, task.EntityID, evt); err != nil {
		return nil, err
	}

	return task, nil
}

func (i *Integrations) CompleteTask(ctx context.Context, taskID, completedBy string) error {
	evt := events.TaskCompleted{
		BaseEvent:   events.NewBaseEvent(events.TaskCompletedEvent, ""),
		TaskID:      taskID,
		CompletedBy: completedBy,
	}
	evt.Source = models.EventSourceSystem

	return i.publisher.Publish(ctx, taskID, evt)
}

// GetTask is not served over the bus; task reads belong to the task service.
func (i *Integrations) GetTask(_ context.Context, _ string) (*models.Task, error) {
	return nil, errors.New("task lookup is not available over the event bus")
}

func (i *Integrations) AddNote(ctx context.Context, orgID, entityID, authorID, body string) error {
	evt := events.NoteAdded{
		BaseEvent: events.NewBaseEvent(events.NoteAddedEvent, orgID),
		EntityID:  entityID,
		AuthorID:  authorID,
		Body:      body,
	}
	evt.Source = models.EventSourceSystem

	return i.publisher.Publish(ctx, entityID, evt)
}

func (i *Integrations) Notify(ctx context.Context, orgID, recipientID, subject, body string, ref map[string]any) error {
	evt := events.NotificationRequested{
		BaseEvent:   events.NewBaseEvent(events.NotificationRequestedEvent, orgID),
		RecipientID: recipientID,
		Subject:     subject,
		Body:        body,
		Ref:         ref,
	}
	evt.Source = models.EventSourceSystem

	return i.publisher.Publish(ctx, recipientID, evt)
}
