// Package models defines the core domain models for the status transition
// engine and the workflow automation rule engine.
package models

// StageType classifies a stage within a pipeline. The permission matrix is
// expressed in terms of stage types, not individual stages.
type StageType string

const (
	StageTypeIntake       StageType = "intake"
	StageTypeScreening    StageType = "screening"
	StageTypeMatching     StageType = "matching"
	StageTypePostApproval StageType = "post_approval"
	StageTypeArchive      StageType = "archive"
)

// Stage is an ordered, pipeline-scoped status value. Order determines
// regression direction: moving to a stage with a lower order is a regression.
type Stage struct {
	ID         string    `json:"id"          validate:"required"`
	PipelineID string    `json:"pipeline_id" validate:"required"`
	Label      string    `json:"label"       validate:"required,min=1"`
	Type       StageType `json:"type"        validate:"required"`
	Order      int       `json:"order"`
}

// IsRegressionFrom reports whether moving from the given stage to s goes
// backwards in the pipeline.
func (s *Stage) IsRegressionFrom(from *Stage) bool {
	return s.Order < from.Order
}
