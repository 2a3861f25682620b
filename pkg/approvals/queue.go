// Package approvals resolves pending status change requests: approve, reject,
// and requester-side cancel.
package approvals

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caseflowhq/caseflow/pkg/eventbus"
	"github.com/caseflowhq/caseflow/pkg/events"
	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/permissions"
	"github.com/caseflowhq/caseflow/pkg/persistence"
	"github.com/caseflowhq/caseflow/pkg/protocol"
	"github.com/caseflowhq/caseflow/pkg/transition"
)

type Queue struct {
	persistence persistence.Persistence
	engine      *transition.Engine
	publisher   eventbus.EventPublisher
	notifier    protocol.Notifier
	logger      *slog.Logger
	now         func() time.Time
}

func NewQueue(
	p persistence.Persistence,
	engine *transition.Engine,
	publisher eventbus.EventPublisher,
	notifier protocol.Notifier,
	logger *slog.Logger,
) *Queue {
	return &Queue{
		persistence: p,
		engine:      engine,
		publisher:   publisher,
		notifier:    notifier,
		logger:      logger.With("module", "approval_queue"),
		now:         time.Now,
	}
}

// WithClock replaces the clock, for tests.
func (q *Queue) WithClock(now func() time.Time) *Queue {
	q.now = now

	return q
}

// Pending lists the org's unresolved requests.
func (q *Queue) Pending(ctx context.Context, orgID string) ([]*models.StatusChangeRequest, error) {
	return q.persistence.RequestRepository().GetPendingByOrg(ctx, orgID)
}

// Approve applies the requested regression. The original requester stays the
// actor of record; the approver is recorded on the history entry.
func (q *Queue) Approve(ctx context.Context, requestID, resolverID string, role models.Role, note string) (*models.StatusHistoryEntry, error) {
	request, err := q.loadResolvable(ctx, requestID, role)
	if err != nil {
		return nil, err
	}

	entry, err := q.engine.ApplyApproved(ctx, request, resolverID)
	if err != nil {
		return nil, err
	}

	err = q.resolve(ctx, request, models.RequestStatusApproved, resolverID, note)
	if err != nil {
		return nil, err
	}

	q.notifyRequester(ctx, request, "Status change approved",
		fmt.Sprintf("Your request was approved and the case moved to %s.", entry.ToLabel))

	return entry, nil
}

// Reject closes the request without touching the entity.
func (q *Queue) Reject(ctx context.Context, requestID, resolverID string, role models.Role, note string) error {
	request, err := q.loadResolvable(ctx, requestID, role)
	if err != nil {
		return err
	}

	err = q.resolve(ctx, request, models.RequestStatusRejected, resolverID, note)
	if err != nil {
		return err
	}

	q.notifyRequester(ctx, request, "Status change rejected",
		"Your status change request was rejected.")

	return nil
}

// Cancel withdraws a pending request. Only the requester may cancel.
func (q *Queue) Cancel(ctx context.Context, requestID, actorID string) error {
	request, err := q.persistence.RequestRepository().GetByID(ctx, requestID)
	if err != nil {
		return err
	}

	if request.RequesterID != actorID {
		return &transition.AuthorizationError{
			Rule:    "request_cancel_requester_only",
			Message: "only the requester may cancel a pending request",
		}
	}

	if request.IsResolved() {
		return &transition.ValidationError{
			Rule:    "request_already_resolved",
			Message: fmt.Sprintf("request %s is already %s", request.ID, request.Status),
		}
	}

	return q.resolve(ctx, request, models.RequestStatusCancelled, actorID, "")
}

func (q *Queue) loadResolvable(ctx context.Context, requestID string, role models.Role) (*models.StatusChangeRequest, error) {
	if !permissions.CanResolveRequests(role) {
		return nil, &transition.AuthorizationError{
			Rule:    "request_resolution_role",
			Message: fmt.Sprintf("role %s may not resolve approval requests", role),
		}
	}

	request, err := q.persistence.RequestRepository().GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if request.IsResolved() {
		return nil, &transition.ValidationError{
			Rule:    "request_already_resolved",
			Message: fmt.Sprintf("request %s is already %s", request.ID, request.Status),
		}
	}

	return request, nil
}

func (q *Queue) resolve(ctx context.Context, request *models.StatusChangeRequest, status models.RequestStatus, resolverID, note string) error {
	now := q.now().UTC()
	request.Status = status
	request.ResolvedAt = &now
	request.ResolverID = &resolverID
	request.ResolveNote = note

	err := q.persistence.RequestRepository().Update(ctx, request)
	if err != nil {
		return err
	}

	q.logger.Info("Request resolved",
		"request_id", request.ID, "status", status, "resolver_id", resolverID)

	if q.publisher != nil {
		resolved := events.ApprovalResolved{
			BaseEvent:  events.NewBaseEvent(events.ApprovalResolvedEvent, request.OrgID),
			RequestID:  request.ID,
			EntityID:   request.EntityID,
			Status:     status,
			ResolverID: resolverID,
		}
		resolved.Source = models.EventSourceSystem

		err = q.publisher.Publish(ctx, request.EntityID, resolved)
		if err != nil {
			q.logger.Error("Failed to publish resolution event", "error", err, "request_id", request.ID)
		}
	}

	return nil
}

func (q *Queue) notifyRequester(ctx context.Context, request *models.StatusChangeRequest, subject, body string) {
	if q.notifier == nil {
		return
	}

	err := q.notifier.Notify(ctx, request.OrgID, request.RequesterID, subject, body,
		map[string]any{"entity_id": request.EntityID, "request_id": request.ID})
	if err != nil {
		q.logger.Error("Failed to notify requester", "error", err, "request_id", request.ID)
	}
}
