package sendemail

import (
	"errors"

	"github.com/caseflowhq/caseflow/pkg/protocol"
)

func NewFactory(sender protocol.EmailSender) *Factory {
	return &Factory{sender: sender}
}

type Factory struct {
	sender protocol.EmailSender
}

func (*Factory) ID() string {
	return "send_email"
}

func (*Factory) Name() string {
	return "Send Email"
}

func (*Factory) Description() string {
	return "Sends a templated email through the mail service. The recipient is resolved from an entity field, defaulting to the owner."
}

func (f *Factory) Create(config map[string]any) (protocol.Action, error) {
	if config == nil {
		config = map[string]any{}
	}

	templateName, _ := config["template"].(string)
	if templateName == "" {
		return nil, errors.New("send_email requires a template")
	}

	recipientField, _ := config["recipient_field"].(string)
	if recipientField == "" {
		recipientField = "owner_id"
	}

	data, _ := config["data"].(map[string]any)

	return &Action{
		sender:         f.sender,
		template:       templateName,
		recipientField: recipientField,
		data:           data,
	}, nil
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"template": map[string]any{
				"type":        "string",
				"description": "Identifier of the email template the mail service should render",
			},
			"recipient_field": map[string]any{
				"type":        "string",
				"description": "Entity view field holding the recipient user ID",
				"default":     "owner_id",
			},
			"data": map[string]any{
				"type":        "object",
				"description": "Extra template data merged over the entity view",
			},
		},
		"required": []string{"template"},
	}
}
