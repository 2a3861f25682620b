// Package transition implements the status transition engine: validation,
// role checks, undo detection, regression approval routing, and the
// append-only history ledger behind every stage change.
package transition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/caseflowhq/caseflow/pkg/eventbus"
	"github.com/caseflowhq/caseflow/pkg/events"
	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/permissions"
	"github.com/caseflowhq/caseflow/pkg/persistence"
	"github.com/caseflowhq/caseflow/pkg/protocol"
	"github.com/caseflowhq/caseflow/pkg/timeutil"
)

// DefaultUndoGrace is how long an actor can reverse their own most recent
// change without going through approval.
const DefaultUndoGrace = 5 * time.Minute

type Outcome string

const (
	OutcomeApplied         Outcome = "applied"
	OutcomePendingApproval Outcome = "pending_approval"
)

type ChangeStatusInput struct {
	EntityID      string
	TargetStageID string
	ActorID       string
	Role          models.Role
	Reason        string

	// EffectiveAt is the caller-supplied semantic time of the change; nil
	// means now. DateOnly marks it as a bare date to be normalized under
	// the org timezone.
	EffectiveAt *time.Time
	DateOnly    bool
}

type Result struct {
	Outcome Outcome
	Entry   *models.StatusHistoryEntry
	Request *models.StatusChangeRequest
}

// EventSink receives the status-changed event synchronously, within the same
// logical transaction as the entity mutation. The workflow engine implements
// it.
type EventSink interface {
	HandleEvent(ctx context.Context, event events.TriggerEvent) error
}

type Engine struct {
	persistence persistence.Persistence
	sink        EventSink
	publisher   eventbus.EventPublisher
	notifier    protocol.Notifier
	logger      *slog.Logger
	undoGrace   time.Duration
	now         func() time.Time
}

func NewEngine(
	p persistence.Persistence,
	sink EventSink,
	publisher eventbus.EventPublisher,
	notifier protocol.Notifier,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		persistence: p,
		sink:        sink,
		publisher:   publisher,
		notifier:    notifier,
		logger:      logger.With("module", "transition_engine"),
		undoGrace:   DefaultUndoGrace,
		now:         time.Now,
	}
}

// WithUndoGrace overrides the undo grace window.
func (e *Engine) WithUndoGrace(grace time.Duration) *Engine {
	e.undoGrace = grace

	return e
}

// WithClock replaces the clock, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now

	return e
}

// ChangeStatus validates and either applies a stage change or parks it as a
// pending approval request. Every applied change appends exactly one history
// entry; a request creation mutates nothing on the entity.
func (e *Engine) ChangeStatus(ctx context.Context, input ChangeStatusInput) (*Result, error) {
	entity, err := e.persistence.EntityRepository().GetByID(ctx, input.EntityID)
	if err != nil {
		return nil, err
	}

	org, err := e.persistence.OrganizationRepository().GetByID(ctx, entity.OrgID)
	if err != nil {
		return nil, err
	}

	target, err := e.persistence.StageRepository().GetByID(ctx, input.TargetStageID)
	if err != nil {
		return nil, err
	}

	if target.PipelineID != entity.PipelineID {
		return nil, newValidationError("stage_in_pipeline",
			"stage %s belongs to pipeline %s, not %s", target.ID, target.PipelineID, entity.PipelineID)
	}

	if target.ID == entity.StageID {
		return nil, newValidationError("no_op_move", "entity is already in stage %s", target.Label)
	}

	current, err := e.persistence.StageRepository().GetByID(ctx, entity.StageID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()

	normalizer := timeutil.NewNormalizer(org.Location()).WithClock(e.now)

	effective, err := normalizer.Normalize(input.EffectiveAt, input.DateOnly, entity.CreatedAt)
	if err != nil {
		if errors.Is(err, timeutil.ErrFutureTimestamp) || errors.Is(err, timeutil.ErrBeforeEntityCreation) {
			return nil, newValidationError("effective_time", "%s", err.Error())
		}

		return nil, err
	}

	isBackdated := timeutil.IsBackdated(effective, now)
	isRegression := target.IsRegressionFrom(current)

	if !permissions.Can(input.Role, target.Type, isRegression) {
		return nil, newAuthorizationError("role_stage_access",
			"role %s may not move entities into %s stages", input.Role, target.Type)
	}

	if permissions.RequiresOwnership(input.Role) && entity.OwnerID != input.ActorID {
		return nil, newAuthorizationError("entity_ownership",
			"role %s may only change entities it owns", input.Role)
	}

	if (isBackdated || isRegression) && input.Reason == "" {
		return nil, newValidationError("reason_required",
			"backdated or regressing changes require a reason")
	}

	if isRegression {
		undo, err := e.isUndo(ctx, entity, current, target, input.ActorID, now)
		if err != nil {
			return nil, err
		}

		if !undo {
			return e.createRequest(ctx, entity, target, input, now)
		}

		entry, err := e.apply(ctx, applyInput{
			entity:      entity,
			from:        current,
			to:          target,
			actorID:     input.ActorID,
			reason:      input.Reason,
			effectiveAt: effective,
			isUndo:      true,
		})
		if err != nil {
			return nil, err
		}

		return &Result{Outcome: OutcomeApplied, Entry: entry}, nil
	}

	entry, err := e.apply(ctx, applyInput{
		entity:      entity,
		from:        current,
		to:          target,
		actorID:     input.ActorID,
		reason:      input.Reason,
		effectiveAt: effective,
	})
	if err != nil {
		return nil, err
	}

	return &Result{Outcome: OutcomeApplied, Entry: entry}, nil
}

// isUndo reports whether this regression exactly reverses the actor's own
// most recent change inside the grace window.
func (e *Engine) isUndo(ctx context.Context, entity *models.Case, current, target *models.Stage, actorID string, now time.Time) (bool, error) {
	latest, err := e.persistence.HistoryRepository().Latest(ctx, entity.ID)
	if err != nil {
		return false, err
	}

	if latest == nil {
		return false, nil
	}

	if latest.ActorID != actorID {
		return false, nil
	}

	if now.Sub(latest.RecordedAt) > e.undoGrace {
		return false, nil
	}

	return latest.Reverses(current.ID, target.ID), nil
}

func (e *Engine) createRequest(ctx context.Context, entity *models.Case, target *models.Stage, input ChangeStatusInput, now time.Time) (*Result, error) {
	request := &models.StatusChangeRequest{
		ID:            uuid.New().String(),
		OrgID:         entity.OrgID,
		EntityID:      entity.ID,
		TargetStageID: target.ID,
		Reason:        input.Reason,
		RequesterID:   input.ActorID,
		Status:        models.RequestStatusPending,
		RequestedAt:   now,
	}

	err := e.persistence.RequestRepository().Create(ctx, request)
	if err != nil {
		if persistence.IsConflict(err) {
			return nil, &ConflictError{
				Rule:    "duplicate_pending_request",
				Message: fmt.Sprintf("a pending request to move entity %s into stage %s already exists", entity.ID, target.Label),
				Err:     err,
			}
		}

		return nil, err
	}

	e.logger.Info("Regression parked for approval",
		"entity_id", entity.ID, "target_stage_id", target.ID, "request_id", request.ID)

	requested := events.ApprovalRequested{
		BaseEvent:     events.NewBaseEvent(events.ApprovalRequestedEvent, entity.OrgID),
		RequestID:     request.ID,
		EntityID:      entity.ID,
		TargetStageID: target.ID,
		RequesterID:   input.ActorID,
		Reason:        input.Reason,
	}
	e.publish(ctx, entity.ID, requested)

	e.notify(ctx, entity.OrgID, input.ActorID,
		"Status change pending approval",
		fmt.Sprintf("Your request to move the case back to %s is waiting for review.", target.Label),
		map[string]any{"entity_id": entity.ID, "request_id": request.ID})

	return &Result{Outcome: OutcomePendingApproval, Request: request}, nil
}

// ApplyApproved executes an approved regression: the original requester stays
// the actor of record, the approver is recorded alongside, and the original
// request time is preserved as the effective time.
func (e *Engine) ApplyApproved(ctx context.Context, request *models.StatusChangeRequest, approverID string) (*models.StatusHistoryEntry, error) {
	entity, err := e.persistence.EntityRepository().GetByID(ctx, request.EntityID)
	if err != nil {
		return nil, err
	}

	target, err := e.persistence.StageRepository().GetByID(ctx, request.TargetStageID)
	if err != nil {
		return nil, err
	}

	if target.ID == entity.StageID {
		return nil, newValidationError("no_op_move", "entity is already in stage %s", target.Label)
	}

	current, err := e.persistence.StageRepository().GetByID(ctx, entity.StageID)
	if err != nil {
		return nil, err
	}

	return e.apply(ctx, applyInput{
		entity:      entity,
		from:        current,
		to:          target,
		actorID:     request.RequesterID,
		approverID:  &approverID,
		requestID:   &request.ID,
		reason:      request.Reason,
		effectiveAt: request.RequestedAt,
	})
}

type applyInput struct {
	entity      *models.Case
	from        *models.Stage
	to          *models.Stage
	actorID     string
	approverID  *string
	requestID   *string
	reason      string
	effectiveAt time.Time
	isUndo      bool
}

func (e *Engine) apply(ctx context.Context, in applyInput) (*models.StatusHistoryEntry, error) {
	now := e.now().UTC()
	entity := in.entity

	entity.StageID = in.to.ID
	entity.StageLabel = in.to.Label
	entity.LastActivityAt = now
	entity.UpdatedAt = now

	if entity.FirstContactedAt == nil && in.to.Type != models.StageTypeIntake {
		first := in.effectiveAt
		entity.FirstContactedAt = &first
	}

	err := e.persistence.EntityRepository().Save(ctx, entity)
	if err != nil {
		return nil, err
	}

	entry := &models.StatusHistoryEntry{
		ID:          uuid.New().String(),
		OrgID:       entity.OrgID,
		EntityID:    entity.ID,
		FromStageID: in.from.ID,
		FromLabel:   in.from.Label,
		ToStageID:   in.to.ID,
		ToLabel:     in.to.Label,
		ActorID:     in.actorID,
		ApproverID:  in.approverID,
		Reason:      in.reason,
		EffectiveAt: in.effectiveAt,
		RecordedAt:  now,
		IsUndo:      in.isUndo,
		RequestID:   in.requestID,
	}

	err = e.persistence.HistoryRepository().Append(ctx, entry)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Status changed",
		"entity_id", entity.ID,
		"from", in.from.Label, "to", in.to.Label,
		"actor_id", in.actorID, "is_undo", in.isUndo)

	changed := events.StatusChanged{
		BaseEvent:   events.NewBaseEvent(events.EntityStatusChangedEvent, entity.OrgID),
		EntityID:    entity.ID,
		FromStageID: in.from.ID,
		FromLabel:   in.from.Label,
		ToStageID:   in.to.ID,
		ToLabel:     in.to.Label,
		ActorID:     in.actorID,
		Reason:      in.reason,
		IsUndo:      in.isUndo,
		EffectiveAt: in.effectiveAt,
	}

	if in.approverID != nil {
		changed.Source = models.EventSourceSystem
	}

	// Workflow evaluation happens synchronously, inside the same logical
	// transaction as the mutation. A workflow failure never unwinds an
	// applied change.
	if e.sink != nil {
		err = e.sink.HandleEvent(ctx, changed)
		if err != nil {
			e.logger.Error("Workflow dispatch failed", "error", err, "entity_id", entity.ID)
		}
	}

	e.publish(ctx, entity.ID, changed)

	if entity.OwnerID != "" && entity.OwnerID != in.actorID {
		e.notify(ctx, entity.OrgID, entity.OwnerID,
			"Case status changed",
			fmt.Sprintf("The case moved from %s to %s.", in.from.Label, in.to.Label),
			map[string]any{"entity_id": entity.ID, "entry_id": entry.ID})
	}

	return entry, nil
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	err := e.publisher.Publish(ctx, key, event)
	if err != nil {
		e.logger.Error("Failed to publish event", "error", err, "event_type", event.GetType())
	}
}

func (e *Engine) notify(ctx context.Context, orgID, recipientID, subject, body string, ref map[string]any) {
	if e.notifier == nil || recipientID == "" {
		return
	}

	err := e.notifier.Notify(ctx, orgID, recipientID, subject, body, ref)
	if err != nil {
		e.logger.Error("Failed to send notification", "error", err, "recipient_id", recipientID)
	}
}
