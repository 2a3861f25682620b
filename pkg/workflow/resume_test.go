package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflowhq/caseflow/pkg/models"
)

func pauseFirstRun(t *testing.T, h *engineHarness, wf *models.Workflow) *models.WorkflowExecution {
	t.Helper()
	ctx := context.Background()

	h.saveWorkflow(t, wf)
	require.NoError(t, h.engine.TriggerEvent(ctx, h.statusChanged()))

	require.Equal(t, 1, h.tasks.count(), "gate creates exactly one approval task")
	assert.Empty(t, h.capture.ids(), "no action runs before approval")

	task := h.tasks.created[0]
	require.NotNil(t, task.ExecutionID)

	execution, err := h.store.ExecutionRepository().GetByID(ctx, *task.ExecutionID)
	require.NoError(t, err)
	require.True(t, execution.IsPaused())
	assert.Equal(t, task.ID, *execution.PausedTaskID)
	assert.Equal(t, -1, *execution.PausedAtActionIndex)

	return execution
}

func TestReviewedWorkflowPausesAndResumes(t *testing.T) {
	ctx := context.Background()
	h := newEngineHarness(t)

	wf := captureWorkflow("wf-reviewed", models.TriggerStatusChanged)
	wf.Actions = append(wf.Actions, models.ActionItem{ID: "a2", Type: "capture", Config: map[string]any{}})
	wf.RequiresReview = true

	execution := pauseFirstRun(t, h, wf)
	taskID := *execution.PausedTaskID

	require.NoError(t, h.engine.ResumeWorkflow(ctx, execution.ID, taskID))

	assert.Len(t, h.capture.ids(), 2, "both actions run after approval")

	resumed, err := h.store.ExecutionRepository().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)
	assert.False(t, resumed.IsPaused())
	require.NotNil(t, resumed.CompletedAt)
}

func TestResumeIsAtMostOncePerApproval(t *testing.T) {
	ctx := context.Background()
	h := newEngineHarness(t)

	wf := captureWorkflow("wf-reviewed", models.TriggerStatusChanged)
	wf.RequiresReview = true

	execution := pauseFirstRun(t, h, wf)
	taskID := *execution.PausedTaskID

	require.NoError(t, h.engine.ResumeWorkflow(ctx, execution.ID, taskID))
	require.NoError(t, h.engine.ResumeWorkflow(ctx, execution.ID, taskID))
	require.NoError(t, h.engine.ResumeWorkflow(ctx, execution.ID, taskID))

	assert.Len(t, h.capture.ids(), 1, "redelivered approvals must not re-run actions")
}

func TestResumeRejectsForeignTask(t *testing.T) {
	ctx := context.Background()
	h := newEngineHarness(t)

	wf := captureWorkflow("wf-reviewed", models.TriggerStatusChanged)
	wf.RequiresReview = true

	execution := pauseFirstRun(t, h, wf)

	err := h.engine.ResumeWorkflow(ctx, execution.ID, "task-unrelated")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not the approval task")

	assert.Empty(t, h.capture.ids())
}

func TestCompletedRunLiftsApprovalGate(t *testing.T) {
	ctx := context.Background()
	h := newEngineHarness(t)

	wf := captureWorkflow("wf-reviewed", models.TriggerStatusChanged)
	wf.RequiresReview = true

	execution := pauseFirstRun(t, h, wf)
	require.NoError(t, h.engine.ResumeWorkflow(ctx, execution.ID, *execution.PausedTaskID))
	require.Len(t, h.capture.ids(), 1)

	// The entity now has a completed reviewed run, so the next firing goes
	// straight through.
	require.NoError(t, h.engine.TriggerEvent(ctx, h.statusChanged()))

	assert.Len(t, h.capture.ids(), 2)
	assert.Equal(t, 1, h.tasks.count(), "no second approval task")
}

func TestResumeOfUnpausedExecutionIsNoOp(t *testing.T) {
	ctx := context.Background()
	h := newEngineHarness(t)

	h.saveWorkflow(t, captureWorkflow("wf-plain", models.TriggerStatusChanged))
	require.NoError(t, h.engine.TriggerEvent(ctx, h.statusChanged()))

	ids := h.capture.ids()
	require.Len(t, ids, 1)

	require.NoError(t, h.engine.ResumeWorkflow(ctx, ids[0], "task-x"))
	assert.Len(t, h.capture.ids(), 1)

	execution, err := h.store.ExecutionRepository().GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.WithinDuration(t, time.Now(), execution.StartedAt, time.Minute)
}
