package models

import "time"

// StatusHistoryEntry is one row of the append-only audit ledger. Stage labels
// are frozen at the time of the change so later pipeline edits never rewrite
// history. EffectiveAt is the semantic time of the change; RecordedAt is the
// wall clock of the write. Entries are never updated or deleted.
type StatusHistoryEntry struct {
	ID          string     `json:"id"           validate:"required"`
	OrgID       string     `json:"org_id"       validate:"required"`
	EntityID    string     `json:"entity_id"    validate:"required"`
	FromStageID string     `json:"from_stage_id"`
	FromLabel   string     `json:"from_label"`
	ToStageID   string     `json:"to_stage_id"  validate:"required"`
	ToLabel     string     `json:"to_label"`
	ActorID     string     `json:"actor_id"     validate:"required"`
	ApproverID  *string    `json:"approver_id,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	EffectiveAt time.Time  `json:"effective_at"`
	RecordedAt  time.Time  `json:"recorded_at"`
	IsUndo      bool       `json:"is_undo"`
	RequestID   *string    `json:"request_id,omitempty"`
}

// Reverses reports whether a change from fromStage to toStage exactly
// reverses this entry.
func (e *StatusHistoryEntry) Reverses(fromStageID, toStageID string) bool {
	return e.ToStageID == fromStageID && e.FromStageID == toStageID
}
