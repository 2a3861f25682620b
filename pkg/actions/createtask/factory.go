package createtask

import (
	"errors"

	"github.com/caseflowhq/caseflow/pkg/protocol"
)

func NewFactory(tasks protocol.TaskService) *Factory {
	return &Factory{tasks: tasks}
}

type Factory struct {
	tasks protocol.TaskService
}

func (*Factory) ID() string {
	return "create_task"
}

func (*Factory) Name() string {
	return "Create Task"
}

func (*Factory) Description() string {
	return "Creates a task in the task service for the entity, optionally assigned and with a due date."
}

func (f *Factory) Create(config map[string]any) (protocol.Action, error) {
	if config == nil {
		config = map[string]any{}
	}

	title, _ := config["title"].(string)
	if title == "" {
		return nil, errors.New("create_task requires a title")
	}

	assigneeField, _ := config["assignee_field"].(string)
	if assigneeField == "" {
		assigneeField = "owner_id"
	}

	action := &Action{
		tasks:         f.tasks,
		title:         title,
		assigneeField: assigneeField,
	}

	if raw, exists := config["due_in_days"]; exists {
		days, ok := raw.(float64)
		if !ok {
			return nil, errors.New("create_task due_in_days must be a number")
		}

		d := int(days)
		action.dueInDays = &d
	}

	return action, nil
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "Task title. Supports templating over the entity view and event payload.",
				"examples": []string{
					"Follow up with {{.entity.owner_id}}",
					"Review move to {{.event.to_label}}",
				},
			},
			"assignee_field": map[string]any{
				"type":        "string",
				"description": "Entity view field holding the assignee user ID",
				"default":     "owner_id",
			},
			"due_in_days": map[string]any{
				"type":        "number",
				"description": "Days from now until the task is due. Zero or negative creates an already-due task.",
			},
		},
		"required": []string{"title"},
	}
}
