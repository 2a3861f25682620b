package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
)

func TestRequestRepository_DuplicatePendingRejected(t *testing.T) {
	store := NewPersistence()
	ctx := context.Background()
	repo := store.RequestRepository()

	first := &models.StatusChangeRequest{
		ID:            "req-1",
		OrgID:         "org-1",
		EntityID:      "case-1",
		TargetStageID: "stage-0",
		Status:        models.RequestStatusPending,
	}
	require.NoError(t, repo.Create(ctx, first))

	duplicate := &models.StatusChangeRequest{
		ID:            "req-2",
		OrgID:         "org-1",
		EntityID:      "case-1",
		TargetStageID: "stage-0",
		Status:        models.RequestStatusPending,
	}
	err := repo.Create(ctx, duplicate)
	require.ErrorIs(t, err, persistence.ErrDuplicatePendingRequest)
	assert.True(t, persistence.IsConflict(err))

	// A resolved request for the same pair does not block a new pending one.
	first.Status = models.RequestStatusRejected
	require.NoError(t, repo.Update(ctx, first))
	require.NoError(t, repo.Create(ctx, duplicate))
}

func TestRequestRepository_DifferentTargetAllowed(t *testing.T) {
	store := NewPersistence()
	ctx := context.Background()
	repo := store.RequestRepository()

	require.NoError(t, repo.Create(ctx, &models.StatusChangeRequest{
		ID: "req-1", EntityID: "case-1", TargetStageID: "stage-0",
		Status: models.RequestStatusPending,
	}))
	require.NoError(t, repo.Create(ctx, &models.StatusChangeRequest{
		ID: "req-2", EntityID: "case-1", TargetStageID: "stage-1",
		Status: models.RequestStatusPending,
	}))
}

func TestExecutionRepository_DedupeKeyUnique(t *testing.T) {
	store := NewPersistence()
	ctx := context.Background()
	repo := store.ExecutionRepository()

	first := &models.WorkflowExecution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		EntityID:   "case-1",
		DedupeKey:  "wf:wf-1:entity:case-1:2025-06-10",
		Status:     models.ExecutionStatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, first))

	second := &models.WorkflowExecution{
		ID:        "exec-2",
		DedupeKey: first.DedupeKey,
		StartedAt: time.Now().UTC(),
	}
	require.ErrorIs(t, repo.Create(ctx, second), persistence.ErrDuplicateExecution)

	// Executions without a dedupe key never conflict.
	require.NoError(t, repo.Create(ctx, &models.WorkflowExecution{ID: "exec-3"}))
	require.NoError(t, repo.Create(ctx, &models.WorkflowExecution{ID: "exec-4"}))
}

func TestExecutionRepository_CountSince(t *testing.T) {
	store := NewPersistence()
	ctx := context.Background()
	repo := store.ExecutionRepository()
	now := time.Now().UTC()

	executions := []*models.WorkflowExecution{
		{ID: "e1", WorkflowID: "wf-1", EntityID: "case-1", StartedAt: now.Add(-30 * time.Minute)},
		{ID: "e2", WorkflowID: "wf-1", EntityID: "case-2", StartedAt: now.Add(-10 * time.Minute)},
		{ID: "e3", WorkflowID: "wf-1", EntityID: "case-1", StartedAt: now.Add(-2 * time.Hour)},
		{ID: "e4", WorkflowID: "wf-2", EntityID: "case-1", StartedAt: now.Add(-5 * time.Minute)},
	}
	for _, execution := range executions {
		require.NoError(t, repo.Create(ctx, execution))
	}

	count, err := repo.CountSince(ctx, "wf-1", "", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = repo.CountSince(ctx, "wf-1", "case-1", now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestResumeJobRepository_AtMostOnceClaim(t *testing.T) {
	store := NewPersistence()
	ctx := context.Background()
	repo := store.ResumeJobRepository()
	now := time.Now().UTC()

	job := &models.WorkflowResumeJob{ID: "job-1", ExecutionID: "exec-1", TaskID: "task-1", CreatedAt: now}
	require.NoError(t, repo.Create(ctx, job))

	duplicate := &models.WorkflowResumeJob{ID: "job-2", ExecutionID: "exec-1", TaskID: "task-1", CreatedAt: now}
	require.ErrorIs(t, repo.Create(ctx, duplicate), persistence.ErrDuplicateResumeJob)

	require.NoError(t, repo.Claim(ctx, "job-1", now))
	require.ErrorIs(t, repo.Claim(ctx, "job-1", now), persistence.ErrResumeJobAlreadyProcessed)

	stored, err := repo.GetByExecutionAndTask(ctx, "exec-1", "task-1")
	require.NoError(t, err)
	require.NotNil(t, stored.ProcessedAt)
}

func TestHistoryRepository_Latest(t *testing.T) {
	store := NewPersistence()
	ctx := context.Background()
	repo := store.HistoryRepository()
	now := time.Now().UTC()

	require.NoError(t, repo.Append(ctx, &models.StatusHistoryEntry{
		ID: "h1", EntityID: "case-1", RecordedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, repo.Append(ctx, &models.StatusHistoryEntry{
		ID: "h2", EntityID: "case-1", RecordedAt: now,
	}))
	require.NoError(t, repo.Append(ctx, &models.StatusHistoryEntry{
		ID: "h3", EntityID: "case-2", RecordedAt: now,
	}))

	latest, err := repo.Latest(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, "h2", latest.ID)

	none, err := repo.Latest(ctx, "case-3")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestStageRepository_GetByPipelineOrdered(t *testing.T) {
	store := NewPersistence()
	ctx := context.Background()
	repo := store.StageRepository()

	stages := []*models.Stage{
		{ID: "s3", PipelineID: "p1", Label: "Qualified", Order: 3},
		{ID: "s0", PipelineID: "p1", Label: "New", Order: 0},
		{ID: "s1", PipelineID: "p1", Label: "Contacted", Order: 1},
		{ID: "x1", PipelineID: "p2", Label: "Other", Order: 0},
	}
	for _, stage := range stages {
		require.NoError(t, repo.Save(ctx, stage))
	}

	pipeline, err := repo.GetByPipeline(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, pipeline, 3)
	assert.Equal(t, []string{"s0", "s1", "s3"}, []string{pipeline[0].ID, pipeline[1].ID, pipeline[2].ID})
}

func TestWorkflowRepository_GetEnabledByTrigger(t *testing.T) {
	store := NewPersistence()
	ctx := context.Background()
	repo := store.WorkflowRepository()

	workflows := []*models.Workflow{
		{ID: "wf-1", OrgID: "org-1", Enabled: true, TriggerType: models.TriggerStatusChanged},
		{ID: "wf-2", OrgID: "org-1", Enabled: false, TriggerType: models.TriggerStatusChanged},
		{ID: "wf-3", OrgID: "org-2", Enabled: true, TriggerType: models.TriggerStatusChanged},
		{ID: "wf-4", OrgID: "org-1", Enabled: true, TriggerType: models.TriggerEntityCreated},
	}
	for _, workflow := range workflows {
		require.NoError(t, repo.Save(ctx, workflow))
	}

	matched, err := repo.GetEnabledByTrigger(ctx, "org-1", models.TriggerStatusChanged)
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "wf-1", matched[0].ID)
}

func TestWorkflowRepository_RecordRunKeepsLastError(t *testing.T) {
	store := NewPersistence()
	ctx := context.Background()
	repo := store.WorkflowRepository()

	require.NoError(t, repo.Save(ctx, &models.Workflow{
		ID: "wf-1", OrgID: "org-1", Enabled: true, TriggerType: models.TriggerStatusChanged,
	}))

	failedAt := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordRun(ctx, "wf-1", failedAt, "cascade depth ceiling reached (5)"))
	require.NoError(t, repo.RecordRun(ctx, "wf-1", failedAt.Add(time.Second), ""))

	workflow, err := repo.GetByID(ctx, "wf-1")
	require.NoError(t, err)
	require.NotNil(t, workflow.LastRunAt)
	assert.Equal(t, failedAt.Add(time.Second), *workflow.LastRunAt)
	assert.Equal(t, "cascade depth ceiling reached (5)", workflow.LastError)

	require.NoError(t, repo.RecordRun(ctx, "wf-1", failedAt.Add(2*time.Second), "action a1 failed"))

	workflow, err = repo.GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "action a1 failed", workflow.LastError)
}

func TestEntityRepository_CopiesAreIsolated(t *testing.T) {
	store := NewPersistence()
	ctx := context.Background()
	repo := store.EntityRepository()

	entity := &models.Case{ID: "case-1", OrgID: "org-1", Fields: map[string]any{"source": "web"}}
	require.NoError(t, repo.Save(ctx, entity))

	loaded, err := repo.GetByID(ctx, "case-1")
	require.NoError(t, err)

	loaded.Fields["source"] = "mutated"

	again, err := repo.GetByID(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, "web", again.Fields["source"])
}
