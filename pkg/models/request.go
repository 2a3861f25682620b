package models

import "time"

// RequestStatus is the lifecycle state of a StatusChangeRequest. Pending is
// the only non-terminal state.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// StatusChangeRequest is a regression held for approval. At most one pending
// request may exist per (entity, target stage); the storage layer enforces
// this with a unique constraint.
type StatusChangeRequest struct {
	ID            string        `json:"id"              validate:"required"`
	OrgID         string        `json:"org_id"          validate:"required"`
	EntityID      string        `json:"entity_id"       validate:"required"`
	TargetStageID string        `json:"target_stage_id" validate:"required"`
	Reason        string        `json:"reason"          validate:"required"`
	RequesterID   string        `json:"requester_id"    validate:"required"`
	Status        RequestStatus `json:"status"`
	RequestedAt   time.Time     `json:"requested_at"`
	ResolvedAt    *time.Time    `json:"resolved_at,omitempty"`
	ResolverID    *string       `json:"resolver_id,omitempty"`
	ResolveNote   string        `json:"resolve_note,omitempty"`
}

// IsResolved reports whether the request reached a terminal state.
func (r *StatusChangeRequest) IsResolved() bool {
	return r.Status != RequestStatusPending
}
