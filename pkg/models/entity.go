package models

import "time"

// Case is the tracked entity whose stage is mutated exclusively through the
// transition engine. Fields holds the org-specific custom attributes that
// workflow conditions evaluate against.
type Case struct {
	ID               string         `json:"id"          validate:"required"`
	OrgID            string         `json:"org_id"      validate:"required"`
	PipelineID       string         `json:"pipeline_id" validate:"required"`
	StageID          string         `json:"stage_id"    validate:"required"`
	StageLabel       string         `json:"stage_label"`
	OwnerID          string         `json:"owner_id"`
	Fields           map[string]any `json:"fields,omitempty"`
	FirstContactedAt *time.Time     `json:"first_contacted_at,omitempty"`
	LastActivityAt   time.Time      `json:"last_activity_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Flatten produces the view workflow conditions are evaluated against.
// Built-in attributes take precedence over custom fields of the same name.
func (c *Case) Flatten(now time.Time) map[string]any {
	view := make(map[string]any, len(c.Fields)+8)

	for k, v := range c.Fields {
		view[k] = v
	}

	view["entity_id"] = c.ID
	view["org_id"] = c.OrgID
	view["pipeline_id"] = c.PipelineID
	view["stage_id"] = c.StageID
	view["status_label"] = c.StageLabel
	view["owner_id"] = c.OwnerID
	view["first_contacted"] = c.FirstContactedAt != nil
	view["days_inactive"] = int(now.Sub(c.LastActivityAt).Hours() / 24)

	return view
}
