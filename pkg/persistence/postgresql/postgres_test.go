package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
	"github.com/caseflowhq/caseflow/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{
		"workflow_resume_jobs", "workflow_executions", "workflows",
		"status_change_requests", "status_history", "entities", "stages",
		"organizations", "schema_migrations",
	} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context) {
	t.Helper()

	if os.Getenv("CASEFLOW_POSTGRES_TESTS") == "" {
		t.Skip("set CASEFLOW_POSTGRES_TESTS to run postgres integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("caseflow_test"),
			postgres.WithUsername("caseflow"),
			postgres.WithPassword("caseflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx
}

func seedEntity(ctx context.Context, t *testing.T, p *postgresql.Persistence) *models.Case {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)

	entity := &models.Case{
		ID:             uuid.New().String(),
		OrgID:          uuid.New().String(),
		PipelineID:     uuid.New().String(),
		StageID:        uuid.New().String(),
		StageLabel:     "Initial Intake",
		OwnerID:        "user-1",
		Fields:         map[string]any{"budget": float64(45000), "country": "US"},
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	require.NoError(t, p.EntityRepository().Save(ctx, entity))

	return entity
}

func TestPendingRequestUniqueness(t *testing.T) {
	p, ctx := setupTestDB(t)
	entity := seedEntity(ctx, t, p)

	targetStage := uuid.New().String()

	first := &models.StatusChangeRequest{
		ID:            uuid.New().String(),
		OrgID:         entity.OrgID,
		EntityID:      entity.ID,
		TargetStageID: targetStage,
		Reason:        "duplicate screening result",
		RequesterID:   "user-1",
		Status:        models.RequestStatusPending,
		RequestedAt:   time.Now().UTC(),
	}
	require.NoError(t, p.RequestRepository().Create(ctx, first))

	second := *first
	second.ID = uuid.New().String()
	second.RequesterID = "user-2"

	err := p.RequestRepository().Create(ctx, &second)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrDuplicatePendingRequest)
	assert.True(t, persistence.IsConflict(err))

	// Resolving the first request frees the slot for a new pending one.
	now := time.Now().UTC()
	resolver := "admin-1"
	first.Status = models.RequestStatusApproved
	first.ResolvedAt = &now
	first.ResolverID = &resolver
	require.NoError(t, p.RequestRepository().Update(ctx, first))

	third := *first
	third.ID = uuid.New().String()
	third.Status = models.RequestStatusPending
	third.ResolvedAt = nil
	third.ResolverID = nil
	require.NoError(t, p.RequestRepository().Create(ctx, &third))

	pending, err := p.RequestRepository().GetPendingByOrg(ctx, entity.OrgID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, third.ID, pending[0].ID)
}

func TestExecutionDedupeKeyUniqueness(t *testing.T) {
	p, ctx := setupTestDB(t)
	entity := seedEntity(ctx, t, p)

	workflowID := uuid.New().String()

	execution := &models.WorkflowExecution{
		ID:          uuid.New().String(),
		OrgID:       entity.OrgID,
		WorkflowID:  workflowID,
		EntityID:    entity.ID,
		EventID:     uuid.New().String(),
		EventSource: models.EventSourceSystem,
		DedupeKey:   "wf:" + workflowID + ":entity:" + entity.ID + ":2026-08-30T09:00",
		Status:      models.ExecutionStatusRunning,
		StartedAt:   time.Now().UTC(),
	}
	require.NoError(t, p.ExecutionRepository().Create(ctx, execution))

	duplicate := *execution
	duplicate.ID = uuid.New().String()
	duplicate.EventID = uuid.New().String()

	err := p.ExecutionRepository().Create(ctx, &duplicate)
	assert.ErrorIs(t, err, persistence.ErrDuplicateExecution)

	// Empty dedupe keys are stored as NULL and never collide.
	blank1 := *execution
	blank1.ID = uuid.New().String()
	blank1.DedupeKey = ""
	require.NoError(t, p.ExecutionRepository().Create(ctx, &blank1))

	blank2 := *execution
	blank2.ID = uuid.New().String()
	blank2.DedupeKey = ""
	require.NoError(t, p.ExecutionRepository().Create(ctx, &blank2))
}

func TestExecutionLifecycleAndCounts(t *testing.T) {
	p, ctx := setupTestDB(t)
	entity := seedEntity(ctx, t, p)

	workflowID := uuid.New().String()
	repo := p.ExecutionRepository()

	execution := &models.WorkflowExecution{
		ID:                uuid.New().String(),
		OrgID:             entity.OrgID,
		WorkflowID:        workflowID,
		EntityID:          entity.ID,
		EventID:           uuid.New().String(),
		Depth:             2,
		EventSource:       models.EventSourceWorkflow,
		MatchedConditions: true,
		Status:            models.ExecutionStatusRunning,
		StartedAt:         time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Create(ctx, execution))

	completed, err := repo.HasCompleted(ctx, workflowID, entity.ID)
	require.NoError(t, err)
	assert.False(t, completed)

	doneAt := time.Now().UTC().Truncate(time.Microsecond)
	execution.Status = models.ExecutionStatusCompleted
	execution.CompletedAt = &doneAt
	execution.ActionsExecuted = []models.ActionRecord{
		{ActionID: "a1", Type: "send_email", Status: "executed", ExecutedAt: doneAt},
	}
	require.NoError(t, repo.Update(ctx, execution))

	loaded, err := repo.GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
	assert.Equal(t, 2, loaded.Depth)
	require.Len(t, loaded.ActionsExecuted, 1)
	assert.Equal(t, "send_email", loaded.ActionsExecuted[0].Type)

	completed, err = repo.HasCompleted(ctx, workflowID, entity.ID)
	require.NoError(t, err)
	assert.True(t, completed)

	count, err := repo.CountSince(ctx, workflowID, "", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = repo.CountSince(ctx, workflowID, entity.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestResumeJobClaimIsAtMostOnce(t *testing.T) {
	p, ctx := setupTestDB(t)
	repo := p.ResumeJobRepository()

	job := &models.WorkflowResumeJob{
		ID:          uuid.New().String(),
		ExecutionID: uuid.New().String(),
		TaskID:      "task-42",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, job))

	duplicate := &models.WorkflowResumeJob{
		ID:          uuid.New().String(),
		ExecutionID: job.ExecutionID,
		TaskID:      job.TaskID,
		CreatedAt:   time.Now().UTC(),
	}
	err := repo.Create(ctx, duplicate)
	assert.ErrorIs(t, err, persistence.ErrDuplicateResumeJob)

	require.NoError(t, repo.Claim(ctx, job.ID, time.Now().UTC()))

	err = repo.Claim(ctx, job.ID, time.Now().UTC())
	assert.ErrorIs(t, err, persistence.ErrResumeJobAlreadyProcessed)

	loaded, err := repo.GetByExecutionAndTask(ctx, job.ExecutionID, job.TaskID)
	require.NoError(t, err)
	require.NotNil(t, loaded.ProcessedAt)
}

func TestWorkflowDocumentRoundTrip(t *testing.T) {
	p, ctx := setupTestDB(t)
	repo := p.WorkflowRepository()

	orgID := uuid.New().String()
	now := time.Now().UTC().Truncate(time.Microsecond)
	recurrence := "0 9 * * 1"

	workflow := &models.Workflow{
		ID:            uuid.New().String(),
		OrgID:         orgID,
		Name:          "Weekly stale check",
		TriggerType:   models.TriggerScheduledSweep,
		TriggerConfig: map[string]any{"pipeline_id": uuid.New().String()},
		Conditions: []models.Condition{
			{Field: "days_inactive", Operator: models.OperatorGreaterThan, Value: float64(14)},
			{Field: "status_label", Operator: models.OperatorNotEquals, Value: "Archived"},
		},
		Actions: []models.ActionItem{
			{ID: "a1", Type: "send_email", Name: "Nudge owner", Config: map[string]any{"template": "stale"}},
		},
		Scope:                    models.ScopeOrg,
		Recurrence:               &recurrence,
		RateLimitPerHour:         100,
		RateLimitPerEntityPerDay: 1,
		Enabled:                  true,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	require.NoError(t, repo.Save(ctx, workflow))

	loaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConditionLogicAnd, loaded.ConditionLogic)
	require.Len(t, loaded.Conditions, 2)
	assert.Equal(t, models.OperatorGreaterThan, loaded.Conditions[0].Operator)
	require.Len(t, loaded.Actions, 1)
	assert.Equal(t, "send_email", loaded.Actions[0].Type)
	require.NotNil(t, loaded.Recurrence)
	assert.Equal(t, recurrence, *loaded.Recurrence)

	byTrigger, err := repo.GetEnabledByTrigger(ctx, orgID, models.TriggerScheduledSweep)
	require.NoError(t, err)
	require.Len(t, byTrigger, 1)

	recurring, err := repo.GetRecurring(ctx)
	require.NoError(t, err)
	require.Len(t, recurring, 1)

	runAt := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.RecordRun(ctx, workflow.ID, runAt, "rate limited"))

	loaded, err = repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.LastRunAt)
	assert.Equal(t, "rate limited", loaded.LastError)

	// A clean run keeps the recorded failure until the next one overwrites it.
	require.NoError(t, repo.RecordRun(ctx, workflow.ID, runAt.Add(time.Second), ""))

	loaded, err = repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "rate limited", loaded.LastError)

	workflow.Enabled = false
	workflow.UpdatedAt = time.Now().UTC()
	require.NoError(t, repo.Save(ctx, workflow))

	byTrigger, err = repo.GetEnabledByTrigger(ctx, orgID, models.TriggerScheduledSweep)
	require.NoError(t, err)
	assert.Empty(t, byTrigger)
}

func TestHistoryLedger(t *testing.T) {
	p, ctx := setupTestDB(t)
	entity := seedEntity(ctx, t, p)
	repo := p.HistoryRepository()

	latest, err := repo.Latest(ctx, entity.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	stageA := uuid.New().String()
	stageB := uuid.New().String()
	base := time.Now().UTC().Truncate(time.Microsecond)

	first := &models.StatusHistoryEntry{
		ID:          uuid.New().String(),
		OrgID:       entity.OrgID,
		EntityID:    entity.ID,
		ToStageID:   stageA,
		ToLabel:     "Screening",
		ActorID:     "user-1",
		EffectiveAt: base.Add(-time.Hour),
		RecordedAt:  base.Add(-time.Minute),
	}
	require.NoError(t, repo.Append(ctx, first))

	second := &models.StatusHistoryEntry{
		ID:          uuid.New().String(),
		OrgID:       entity.OrgID,
		EntityID:    entity.ID,
		FromStageID: stageA,
		FromLabel:   "Screening",
		ToStageID:   stageB,
		ToLabel:     "Matching",
		ActorID:     "user-1",
		Reason:      "profile complete",
		EffectiveAt: base,
		RecordedAt:  base,
	}
	require.NoError(t, repo.Append(ctx, second))

	latest, err = repo.Latest(ctx, entity.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, stageA, latest.FromStageID)

	entries, err := repo.GetByEntity(ctx, entity.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Empty(t, entries[1].FromStageID)
}

func TestEntityInactivityQuery(t *testing.T) {
	p, ctx := setupTestDB(t)
	entity := seedEntity(ctx, t, p)
	repo := p.EntityRepository()

	stale := &models.Case{
		ID:             uuid.New().String(),
		OrgID:          entity.OrgID,
		PipelineID:     entity.PipelineID,
		StageID:        entity.StageID,
		StageLabel:     "Initial Intake",
		LastActivityAt: time.Now().UTC().Add(-30 * 24 * time.Hour),
		CreatedAt:      time.Now().UTC().Add(-60 * 24 * time.Hour),
		UpdatedAt:      time.Now().UTC(),
	}
	require.NoError(t, repo.Save(ctx, stale))

	inactive, err := repo.GetInactiveSince(ctx, entity.OrgID, time.Now().UTC().Add(-14*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, stale.ID, inactive[0].ID)

	all, err := repo.GetByOrg(ctx, entity.OrgID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	loaded, err := repo.GetByID(ctx, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, "US", loaded.Fields["country"])

	_, err = repo.GetByID(ctx, uuid.New().String())
	assert.ErrorIs(t, err, persistence.ErrEntityNotFound)
}

func TestNewPersistenceMigrations(t *testing.T) {
	p, ctx := setupTestDB(t)

	require.NoError(t, p.HealthCheck(ctx))

	org := &models.Organization{
		ID:        uuid.New().String(),
		Name:      "Bright Paths Agency",
		Timezone:  "America/Chicago",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, p.OrganizationRepository().Save(ctx, org))

	loaded, err := p.OrganizationRepository().GetByID(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", loaded.Timezone)

	stage := &models.Stage{
		ID:         uuid.New().String(),
		PipelineID: uuid.New().String(),
		Label:      "Screening",
		Type:       models.StageTypeScreening,
		Order:      2,
	}
	require.NoError(t, p.StageRepository().Save(ctx, stage))

	stages, err := p.StageRepository().GetByPipeline(ctx, stage.PipelineID)
	require.NoError(t, err)
	require.Len(t, stages, 1)
	assert.Equal(t, models.StageTypeScreening, stages[0].Type)
}
