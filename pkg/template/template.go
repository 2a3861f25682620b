// Package template renders the dynamic strings of workflow action configs
// (email subjects, note bodies, task titles) against the execution context.
package template

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/caseflowhq/caseflow/pkg/protocol"
)

// RenderWithContext renders input with the entity view, trigger payload, and
// execution identifiers available as template data.
func RenderWithContext(input string, actionCtx protocol.ActionContext) (string, error) {
	data := map[string]any{
		"entity": actionCtx.View,
		"event":  actionCtx.EventPayload,
	}

	if actionCtx.Workflow != nil {
		data["workflow"] = map[string]any{
			"id":   actionCtx.Workflow.ID,
			"name": actionCtx.Workflow.Name,
		}
	}

	if actionCtx.Execution != nil {
		data["execution"] = map[string]any{
			"id":          actionCtx.Execution.ID,
			"workflow_id": actionCtx.Execution.WorkflowID,
		}
	}

	return Render(input, data)
}

func Render(templateStr string, data any) (string, error) {
	tmpl, err := template.
		New("action").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
		}).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return buf.String(), nil
}
