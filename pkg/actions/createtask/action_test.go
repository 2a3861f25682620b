package createtask

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflowhq/caseflow/pkg/events"
	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/protocol"
)

type fakeTaskService struct {
	created []*models.Task
}

func (f *fakeTaskService) CreateTask(_ context.Context, task *models.Task) (*models.Task, error) {
	f.created = append(f.created, task)

	return task, nil
}

func (f *fakeTaskService) CompleteTask(_ context.Context, _, _ string) error {
	return nil
}

func (f *fakeTaskService) GetTask(_ context.Context, _ string) (*models.Task, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testContext(emit func(context.Context, events.TriggerEvent) error) protocol.ActionContext {
	base := events.NewBaseEvent(events.EntityStatusChangedEvent, "org-1")

	return protocol.ActionContext{
		Entity:   &models.Case{ID: "entity-1", OrgID: "org-1", OwnerID: "user-7"},
		Workflow: &models.Workflow{ID: "wf-1", Name: "Follow up"},
		View:     map[string]any{"owner_id": "user-7", "status_label": "Qualified"},
		Event: events.StatusChanged{
			BaseEvent: base,
			EntityID:  "entity-1",
			ToLabel:   "Qualified",
		},
		EventPayload: map[string]any{"to_label": "Qualified"},
		Emit:         emit,
	}
}

func TestFactoryCreateValidation(t *testing.T) {
	factory := NewFactory(&fakeTaskService{})

	_, err := factory.Create(nil)
	assert.Error(t, err)

	_, err = factory.Create(map[string]any{"title": "t", "due_in_days": "three"})
	assert.Error(t, err)

	action, err := factory.Create(map[string]any{"title": "t", "due_in_days": float64(3)})
	require.NoError(t, err)
	assert.NotNil(t, action)
}

func TestExecuteCreatesTaskWithTemplatedTitle(t *testing.T) {
	service := &fakeTaskService{}
	factory := NewFactory(service)

	action, err := factory.Create(map[string]any{
		"title":       "Review move to {{.event.to_label}}",
		"due_in_days": float64(3),
	})
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), testContext(nil), testLogger())
	require.NoError(t, err)

	require.Len(t, service.created, 1)
	task := service.created[0]
	assert.Equal(t, "Review move to Qualified", task.Title)
	assert.Equal(t, "user-7", task.AssigneeID)
	assert.Equal(t, models.TaskStatusOpen, task.Status)
	require.NotNil(t, task.DueAt)
}

func TestExecuteEmitsDueEventForImmediateTask(t *testing.T) {
	service := &fakeTaskService{}
	factory := NewFactory(service)

	action, err := factory.Create(map[string]any{
		"title":       "Call back today",
		"due_in_days": float64(0),
	})
	require.NoError(t, err)

	var emitted []events.TriggerEvent

	emit := func(_ context.Context, evt events.TriggerEvent) error {
		emitted = append(emitted, evt)

		return nil
	}

	_, err = action.Execute(context.Background(), testContext(emit), testLogger())
	require.NoError(t, err)

	require.Len(t, emitted, 1)
	due, ok := emitted[0].(events.TaskDue)
	require.True(t, ok)
	assert.Equal(t, "entity-1", due.EntityID)
	assert.Equal(t, models.EventSourceWorkflow, due.Source)
	assert.Equal(t, 1, due.Depth)
}

func TestExecuteDoesNotEmitForFutureTask(t *testing.T) {
	service := &fakeTaskService{}
	factory := NewFactory(service)

	action, err := factory.Create(map[string]any{
		"title":       "Check in next week",
		"due_in_days": float64(7),
	})
	require.NoError(t, err)

	emit := func(_ context.Context, _ events.TriggerEvent) error {
		t.Fatal("no event should be emitted for a future due date")

		return nil
	}

	_, err = action.Execute(context.Background(), testContext(emit), testLogger())
	require.NoError(t, err)
	require.Len(t, service.created, 1)
}
