package models

// ActionItem is one entry of a workflow's ordered action list. Type selects
// a registered action kind; Config is validated against that kind's schema
// when the workflow is saved.
type ActionItem struct {
	ID     string         `json:"id"     validate:"required"`
	Type   string         `json:"type"   validate:"required"`
	Name   string         `json:"name"`
	Config map[string]any `json:"config"`
}
