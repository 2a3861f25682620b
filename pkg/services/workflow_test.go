package services_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflowhq/caseflow/pkg/actions/sendemail"
	"github.com/caseflowhq/caseflow/pkg/eventbus"
	"github.com/caseflowhq/caseflow/pkg/events"
	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence/memory"
	"github.com/caseflowhq/caseflow/pkg/registry"
	"github.com/caseflowhq/caseflow/pkg/services"
)

type recordingPublisher struct {
	published []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.published = append(p.published, event)

	return nil
}

func newService(t *testing.T) (*services.WorkflowService, *memory.Persistence) {
	t.Helper()

	store := memory.NewPersistence()
	logger := slog.New(slog.DiscardHandler)

	reg := registry.NewRegistry(logger)
	reg.RegisterAction(sendemail.NewFactory(services.NewIntegrations(&recordingPublisher{})))

	return services.NewWorkflowService(store, reg), store
}

func validWorkflow() *models.Workflow {
	return &models.Workflow{
		OrgID:       "org-1",
		Name:        "welcome email",
		TriggerType: models.TriggerStatusChanged,
		Conditions: []models.Condition{
			{Field: "status_label", Operator: models.OperatorEquals, Value: "Qualified"},
		},
		Actions: []models.ActionItem{
			{ID: "a1", Type: "send_email", Config: map[string]any{"template": "welcome"}},
		},
		Scope:   models.ScopeOrg,
		Enabled: true,
	}
}

func TestCreatePersistsValidWorkflow(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	created, err := svc.Create(ctx, validWorkflow())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	stored, err := store.WorkflowRepository().GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "welcome email", stored.Name)
}

func TestCreateRejectsInvalidDefinitions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	tests := []struct {
		name    string
		mutate  func(wf *models.Workflow)
		wantErr string
	}{
		{
			name:    "missing name",
			mutate:  func(wf *models.Workflow) { wf.Name = "" },
			wantErr: "invalid",
		},
		{
			name:    "unknown trigger type",
			mutate:  func(wf *models.Workflow) { wf.TriggerType = "phase_of_moon" },
			wantErr: "unknown trigger type",
		},
		{
			name: "unknown operator",
			mutate: func(wf *models.Workflow) {
				wf.Conditions = []models.Condition{{Field: "x", Operator: "resembles"}}
			},
			wantErr: "unknown condition operator",
		},
		{
			name: "unregistered action kind",
			mutate: func(wf *models.Workflow) {
				wf.Actions = []models.ActionItem{{ID: "a1", Type: "launch_rocket", Config: map[string]any{}}}
			},
			wantErr: "not registered",
		},
		{
			name: "action config fails its schema",
			mutate: func(wf *models.Workflow) {
				wf.Actions = []models.ActionItem{{ID: "a1", Type: "send_email", Config: map[string]any{"template": 42}}}
			},
			wantErr: "invalid config",
		},
		{
			name: "personal scope without owner",
			mutate: func(wf *models.Workflow) {
				wf.Scope = models.ScopePersonal
				wf.OwnerID = ""
			},
			wantErr: "owner",
		},
		{
			name: "recurrence on a non-sweep trigger",
			mutate: func(wf *models.Workflow) {
				expr := "0 9 * * *"
				wf.Recurrence = &expr
			},
			wantErr: "recurrence",
		},
		{
			name: "invalid recurrence expression",
			mutate: func(wf *models.Workflow) {
				expr := "every tuesday-ish"
				wf.TriggerType = models.TriggerScheduledSweep
				wf.Recurrence = &expr
			},
			wantErr: "recurrence",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := validWorkflow()
			tt.mutate(wf)

			_, err := svc.Create(ctx, wf)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestUpdatePreservesCreationTime(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	created, err := svc.Create(ctx, validWorkflow())
	require.NoError(t, err)

	created.Name = "renamed welcome email"
	updated, err := svc.Update(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "renamed welcome email", updated.Name)
}

func TestIntegrationsPublishOutboundEvents(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	integrations := services.NewIntegrations(pub)

	require.NoError(t, integrations.Notify(ctx, "org-1", "user-1", "subject", "body", nil))
	require.NoError(t, integrations.AddNote(ctx, "org-1", "entity-1", "system", "note body"))

	task, err := integrations.CreateTask(ctx, &models.Task{ID: "task-1", OrgID: "org-1", EntityID: "entity-1", Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, "task-1", task.ID)

	require.Len(t, pub.published, 3)
	assert.Equal(t, events.NotificationRequestedEvent, pub.published[0].GetType())
	assert.Equal(t, events.NoteAddedEvent, pub.published[1].GetType())
	assert.Equal(t, events.TaskCreatedEvent, pub.published[2].GetType())

	_, err = integrations.GetTask(ctx, "task-1")
	require.Error(t, err)
}
