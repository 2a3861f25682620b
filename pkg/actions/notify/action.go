// Package notify implements the send_notification workflow action.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/caseflowhq/caseflow/pkg/protocol"
	"github.com/caseflowhq/caseflow/pkg/template"
)

func NewFactory(notifier protocol.Notifier) *Factory {
	return &Factory{notifier: notifier}
}

type Factory struct {
	notifier protocol.Notifier
}

func (*Factory) ID() string {
	return "send_notification"
}

func (*Factory) Name() string {
	return "Send Notification"
}

func (*Factory) Description() string {
	return "Sends an in-app notification to a user resolved from the entity view."
}

func (f *Factory) Create(config map[string]any) (protocol.Action, error) {
	if config == nil {
		config = map[string]any{}
	}

	subject, _ := config["subject"].(string)
	if subject == "" {
		return nil, errors.New("send_notification requires a subject")
	}

	body, _ := config["body"].(string)

	recipientField, _ := config["recipient_field"].(string)
	if recipientField == "" {
		recipientField = "owner_id"
	}

	return &Action{
		notifier:       f.notifier,
		subject:        subject,
		body:           body,
		recipientField: recipientField,
	}, nil
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"subject": map[string]any{
				"type":        "string",
				"description": "Notification subject. Supports templating.",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Notification body. Supports templating.",
			},
			"recipient_field": map[string]any{
				"type":        "string",
				"description": "Entity view field holding the recipient user ID",
				"default":     "owner_id",
			},
		},
		"required": []string{"subject"},
	}
}

type Action struct {
	notifier       protocol.Notifier
	subject        string
	body           string
	recipientField string
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) (any, error) {
	logger = logger.With("action_type", "send_notification")

	recipient, _ := actionCtx.View[a.recipientField].(string)
	if recipient == "" {
		return nil, fmt.Errorf("recipient field %q is empty", a.recipientField)
	}

	subject, err := template.RenderWithContext(a.subject, actionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render subject: %w", err)
	}

	body := a.body
	if body != "" {
		body, err = template.RenderWithContext(body, actionCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to render body: %w", err)
		}
	}

	ref := map[string]any{
		"entity_id":   actionCtx.Entity.ID,
		"workflow_id": actionCtx.Workflow.ID,
	}

	err = a.notifier.Notify(ctx, actionCtx.Entity.OrgID, recipient, subject, body, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to notify: %w", err)
	}

	logger.Debug("Notification sent", "recipient", recipient)

	return map[string]any{"recipient": recipient, "subject": subject}, nil
}
