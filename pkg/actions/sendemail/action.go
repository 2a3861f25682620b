// Package sendemail implements the send_email workflow action.
package sendemail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/caseflowhq/caseflow/pkg/protocol"
)

type Action struct {
	sender         protocol.EmailSender
	template       string
	recipientField string
	data           map[string]any
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) (any, error) {
	logger = logger.With("action_type", "send_email", "template", a.template)

	recipient, _ := actionCtx.View[a.recipientField].(string)
	if recipient == "" {
		return nil, fmt.Errorf("recipient field %q is empty", a.recipientField)
	}

	data := make(map[string]any, len(actionCtx.View)+len(a.data))
	for k, v := range actionCtx.View {
		data[k] = v
	}

	for k, v := range a.data {
		data[k] = v
	}

	err := a.sender.Send(ctx, actionCtx.Entity.OrgID, recipient, a.template, data)
	if err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	logger.Debug("Email dispatched", "recipient", recipient)

	return map[string]any{"template": a.template, "recipient": recipient}, nil
}
