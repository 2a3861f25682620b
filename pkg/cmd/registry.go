// Package cmd provides common initialization for the command-line entry
// points: persistence selection, event bus construction, and the action
// registry with the built-in action kinds.
package cmd

import (
	"log/slog"

	"github.com/caseflowhq/caseflow/pkg/actions/addnote"
	"github.com/caseflowhq/caseflow/pkg/actions/assignentity"
	"github.com/caseflowhq/caseflow/pkg/actions/createtask"
	"github.com/caseflowhq/caseflow/pkg/actions/notify"
	"github.com/caseflowhq/caseflow/pkg/actions/sendemail"
	"github.com/caseflowhq/caseflow/pkg/actions/updatefield"
	"github.com/caseflowhq/caseflow/pkg/persistence"
	"github.com/caseflowhq/caseflow/pkg/registry"
	"github.com/caseflowhq/caseflow/pkg/services"
)

// NewRegistry wires the built-in action kinds against the external service
// integrations and the entity store.
func NewRegistry(logger *slog.Logger, p persistence.Persistence, integrations *services.Integrations) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.RegisterAction(sendemail.NewFactory(integrations))
	reg.RegisterAction(createtask.NewFactory(integrations))
	reg.RegisterAction(addnote.NewFactory(integrations))
	reg.RegisterAction(notify.NewFactory(integrations))
	reg.RegisterAction(updatefield.NewFactory(p.EntityRepository()))
	reg.RegisterAction(assignentity.NewFactory(p.EntityRepository()))

	return reg
}
