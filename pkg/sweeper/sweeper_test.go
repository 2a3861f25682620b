package sweeper_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflowhq/caseflow/pkg/events"
	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence/memory"
	"github.com/caseflowhq/caseflow/pkg/sweeper"
)

var fixedNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

type collectingSink struct {
	events []events.TriggerEvent
}

func (s *collectingSink) TriggerEvent(_ context.Context, evt events.TriggerEvent) error {
	s.events = append(s.events, evt)

	return nil
}

func (s *collectingSink) scheduled() []events.ScheduledSweep {
	var out []events.ScheduledSweep

	for _, evt := range s.events {
		if sweep, ok := evt.(events.ScheduledSweep); ok {
			out = append(out, sweep)
		}
	}

	return out
}

func (s *collectingSink) inactivity() []events.InactivitySweep {
	var out []events.InactivitySweep

	for _, evt := range s.events {
		if sweep, ok := evt.(events.InactivitySweep); ok {
			out = append(out, sweep)
		}
	}

	return out
}

func fixture(t *testing.T) (*memory.Persistence, *collectingSink, *sweeper.Sweeper) {
	t.Helper()

	store := memory.NewPersistence()
	sink := &collectingSink{}
	logger := slog.New(slog.DiscardHandler)

	s := sweeper.NewSweeper(store, sink, logger).
		WithClock(func() time.Time { return fixedNow })

	require.NoError(t, store.OrganizationRepository().Save(context.Background(), &models.Organization{
		ID:       "org-1",
		Name:     "Bright Path Surrogacy",
		Timezone: "UTC",
	}))

	return store, sink, s
}

func seedEntity(t *testing.T, store *memory.Persistence, id string, lastActivity time.Time) {
	t.Helper()

	require.NoError(t, store.EntityRepository().Save(context.Background(), &models.Case{
		ID:             id,
		OrgID:          "org-1",
		PipelineID:     "pipeline-1",
		StageID:        "stage-1",
		LastActivityAt: lastActivity,
		CreatedAt:      lastActivity,
	}))
}

func TestScheduledPassEmitsCurrentWindowPerEntity(t *testing.T) {
	ctx := context.Background()
	store, sink, s := fixture(t)

	seedEntity(t, store, "entity-1", fixedNow)
	seedEntity(t, store, "entity-2", fixedNow)

	daily := "0 9 * * *"
	require.NoError(t, store.WorkflowRepository().Save(ctx, &models.Workflow{
		ID:          "wf-daily",
		OrgID:       "org-1",
		Name:        "daily check-in chase",
		TriggerType: models.TriggerScheduledSweep,
		Actions:     []models.ActionItem{{ID: "a1", Type: "send_email"}},
		Scope:       models.ScopeOrg,
		Recurrence:  &daily,
		Enabled:     true,
	}))

	require.NoError(t, s.RunOnce(ctx))

	scheduled := sink.scheduled()
	require.Len(t, scheduled, 2)

	// 09:00 today is the most recent fire at 09:30.
	want := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC).Format(time.RFC3339)
	for _, evt := range scheduled {
		assert.Equal(t, "wf-daily", evt.WorkflowID)
		assert.Equal(t, want, evt.Window)
		assert.Equal(t, models.EventSourceSystem, evt.Source)
	}

	// A second pass inside the same window emits the same window label, so
	// the engine's dedupe key collapses it.
	require.NoError(t, s.RunOnce(ctx))
	for _, evt := range sink.scheduled()[2:] {
		assert.Equal(t, want, evt.Window)
	}
}

func TestScheduledPassSkipsDisabledAndInvalidRecurrence(t *testing.T) {
	ctx := context.Background()
	store, sink, s := fixture(t)

	seedEntity(t, store, "entity-1", fixedNow)

	daily := "0 9 * * *"
	garbage := "not a cron line"

	require.NoError(t, store.WorkflowRepository().Save(ctx, &models.Workflow{
		ID: "wf-disabled", OrgID: "org-1", Name: "disabled sweep",
		TriggerType: models.TriggerScheduledSweep,
		Actions:     []models.ActionItem{{ID: "a1", Type: "send_email"}},
		Scope:       models.ScopeOrg, Recurrence: &daily, Enabled: false,
	}))
	require.NoError(t, store.WorkflowRepository().Save(ctx, &models.Workflow{
		ID: "wf-garbage", OrgID: "org-1", Name: "broken sweep",
		TriggerType: models.TriggerScheduledSweep,
		Actions:     []models.ActionItem{{ID: "a1", Type: "send_email"}},
		Scope:       models.ScopeOrg, Recurrence: &garbage, Enabled: true,
	}))

	require.NoError(t, s.RunOnce(ctx))
	assert.Empty(t, sink.scheduled())
}

func TestInactivityPassHonorsThreshold(t *testing.T) {
	ctx := context.Background()
	store, sink, s := fixture(t)

	seedEntity(t, store, "entity-idle", fixedNow.AddDate(0, 0, -45))
	seedEntity(t, store, "entity-active", fixedNow.AddDate(0, 0, -2))

	require.NoError(t, store.WorkflowRepository().Save(ctx, &models.Workflow{
		ID:            "wf-idle",
		OrgID:         "org-1",
		Name:          "chase idle cases",
		TriggerType:   models.TriggerInactivitySweep,
		TriggerConfig: map[string]any{"idle_days": float64(30)},
		Actions:       []models.ActionItem{{ID: "a1", Type: "send_email"}},
		Scope:         models.ScopeOrg,
		Enabled:       true,
	}))

	require.NoError(t, s.RunOnce(ctx))

	idle := sink.inactivity()
	require.Len(t, idle, 1)
	assert.Equal(t, "entity-idle", idle[0].EntityID)
	assert.Equal(t, 30, idle[0].IdleDays)
	assert.Equal(t, "2026-03-10", idle[0].Window)
}

func TestInactivityPassTargetsEmittingWorkflow(t *testing.T) {
	ctx := context.Background()
	store, sink, s := fixture(t)

	seedEntity(t, store, "entity-idle", fixedNow.AddDate(0, 0, -15))

	require.NoError(t, store.WorkflowRepository().Save(ctx, &models.Workflow{
		ID:            "wf-eager",
		OrgID:         "org-1",
		Name:          "nudge after ten days",
		TriggerType:   models.TriggerInactivitySweep,
		TriggerConfig: map[string]any{"idle_days": float64(10)},
		Actions:       []models.ActionItem{{ID: "a1", Type: "send_email"}},
		Scope:         models.ScopeOrg,
		Enabled:       true,
	}))
	require.NoError(t, store.WorkflowRepository().Save(ctx, &models.Workflow{
		ID:          "wf-patient",
		OrgID:       "org-1",
		Name:        "escalate after thirty days",
		TriggerType: models.TriggerInactivitySweep,
		Actions:     []models.ActionItem{{ID: "a1", Type: "send_email"}},
		Scope:       models.ScopeOrg,
		Enabled:     true,
	}))

	require.NoError(t, s.RunOnce(ctx))

	// Fifteen days idle crosses only the eager workflow's threshold, and the
	// emitted event names that workflow so siblings cannot match it.
	idle := sink.inactivity()
	require.Len(t, idle, 1)
	assert.Equal(t, "wf-eager", idle[0].WorkflowID)
	assert.Equal(t, "wf-eager", idle[0].Payload()["workflow_id"])
	assert.Equal(t, "entity-idle", idle[0].EntityID)
}

func TestInactivityPassDefaultsIdleDays(t *testing.T) {
	ctx := context.Background()
	store, sink, s := fixture(t)

	// 31 days idle crosses the 30-day default; 10 days does not.
	seedEntity(t, store, "entity-idle", fixedNow.AddDate(0, 0, -31))
	seedEntity(t, store, "entity-recent", fixedNow.AddDate(0, 0, -10))

	require.NoError(t, store.WorkflowRepository().Save(ctx, &models.Workflow{
		ID:          "wf-idle",
		OrgID:       "org-1",
		Name:        "chase idle cases",
		TriggerType: models.TriggerInactivitySweep,
		Actions:     []models.ActionItem{{ID: "a1", Type: "send_email"}},
		Scope:       models.ScopeOrg,
		Enabled:     true,
	}))

	require.NoError(t, s.RunOnce(ctx))

	idle := sink.inactivity()
	require.Len(t, idle, 1)
	assert.Equal(t, "entity-idle", idle[0].EntityID)
	assert.Equal(t, sweeper.DefaultIdleDays, idle[0].IdleDays)
}
