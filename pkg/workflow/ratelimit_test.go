package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence/memory"
	"github.com/caseflowhq/caseflow/pkg/workflow"
)

func seedExecution(t *testing.T, store *memory.Persistence, workflowID, entityID string, startedAt time.Time) {
	t.Helper()

	err := store.ExecutionRepository().Create(context.Background(), &models.WorkflowExecution{
		ID:         uuid.New().String(),
		OrgID:      "org-1",
		WorkflowID: workflowID,
		EntityID:   entityID,
		Status:     models.ExecutionStatusCompleted,
		StartedAt:  startedAt,
	})
	require.NoError(t, err)
}

func TestLedgerRateLimiterHourly(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	limiter := workflow.NewLedgerRateLimiter(store.ExecutionRepository()).
		WithClock(func() time.Time { return now })

	wf := &models.Workflow{ID: "wf-1", RateLimitPerHour: 2}

	seedExecution(t, store, "wf-1", "entity-1", now.Add(-30*time.Minute))
	seedExecution(t, store, "wf-1", "entity-2", now.Add(-10*time.Minute))

	allowed, reason, err := limiter.Allow(ctx, wf, "entity-3")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Contains(t, reason, "hourly")

	// Runs older than the window do not count.
	store = memory.NewPersistence()
	limiter = workflow.NewLedgerRateLimiter(store.ExecutionRepository()).
		WithClock(func() time.Time { return now })
	seedExecution(t, store, "wf-1", "entity-1", now.Add(-2*time.Hour))

	allowed, _, err = limiter.Allow(ctx, wf, "entity-3")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLedgerRateLimiterPerEntityPerDay(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	limiter := workflow.NewLedgerRateLimiter(store.ExecutionRepository()).
		WithClock(func() time.Time { return now })

	wf := &models.Workflow{ID: "wf-1", RateLimitPerEntityPerDay: 1}

	seedExecution(t, store, "wf-1", "entity-1", now.Add(-3*time.Hour))

	allowed, reason, err := limiter.Allow(ctx, wf, "entity-1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Contains(t, reason, "per-entity")

	// Other entities are unaffected.
	allowed, _, err = limiter.Allow(ctx, wf, "entity-2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLedgerRateLimiterZeroMeansUnlimited(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()

	limiter := workflow.NewLedgerRateLimiter(store.ExecutionRepository())
	wf := &models.Workflow{ID: "wf-1"}

	for range 10 {
		seedExecution(t, store, "wf-1", "entity-1", time.Now())
	}

	allowed, _, err := limiter.Allow(ctx, wf, "entity-1")
	require.NoError(t, err)
	assert.True(t, allowed)
}
