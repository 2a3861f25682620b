package models

// Role identifies the authorization level of an actor performing a status
// change or resolving an approval request.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleDeveloper   Role = "developer"
	RoleCaseManager Role = "case_manager"
	RoleCoordinator Role = "coordinator"
	RoleViewer      Role = "viewer"
)

// EventSource identifies what kind of actor produced a domain event. Workflow
// provenance matters for the loop guard: only workflow-sourced events carry a
// non-zero cascade depth.
type EventSource string

const (
	EventSourceUser     EventSource = "user"
	EventSourceSystem   EventSource = "system"
	EventSourceWorkflow EventSource = "workflow"
)
