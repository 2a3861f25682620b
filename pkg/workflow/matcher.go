// Package workflow implements the automation engine: trigger matching,
// condition evaluation, the execution ledger with its loop guard and dedup
// semantics, rate limiting, ordered action execution with approval gates,
// and idempotent resumption of paused runs.
package workflow

import (
	"fmt"
	"log/slog"

	"github.com/caseflowhq/caseflow/pkg/events"
	"github.com/caseflowhq/caseflow/pkg/models"
)

// Matcher decides which workflows fire for a trigger event.
type Matcher struct {
	logger *slog.Logger
}

func NewMatcher(logger *slog.Logger) *Matcher {
	return &Matcher{logger: logger.With("module", "trigger_matcher")}
}

// Match filters the candidate workflows down to the ones the event should
// run: enabled, trigger type matched, scope covering the entity owner or the
// acting user, and every trigger config key equal to the event payload.
func (m *Matcher) Match(evt events.TriggerEvent, workflows []*models.Workflow, entity *models.Case) []*models.Workflow {
	payload := evt.Payload()
	actorID, _ := payload["actor_id"].(string)
	targetWorkflowID, _ := payload["workflow_id"].(string)

	matched := make([]*models.Workflow, 0, len(workflows))

	for _, wf := range workflows {
		if !wf.Enabled || wf.TriggerType != evt.TriggerType() {
			continue
		}

		// Sweep events are emitted per workflow and must not fan out to
		// sibling workflows on the same trigger type.
		if targetWorkflowID != "" && targetWorkflowID != wf.ID {
			continue
		}

		if !wf.AppliesTo(entity.OwnerID, actorID) {
			m.logger.Debug("Workflow scope does not cover entity",
				"workflow_id", wf.ID, "entity_id", entity.ID)

			continue
		}

		if !matchesTriggerConfig(wf.TriggerConfig, payload) {
			continue
		}

		matched = append(matched, wf)
	}

	return matched
}

// EvaluateConditions applies the workflow's condition list to the flattened
// entity view under the workflow's and/or logic. No conditions means match.
func (m *Matcher) EvaluateConditions(wf *models.Workflow, view map[string]any) (bool, error) {
	if len(wf.Conditions) == 0 {
		return true, nil
	}

	for _, cond := range wf.Conditions {
		ok, err := cond.Evaluate(view)
		if err != nil {
			return false, fmt.Errorf("condition on %q: %w", cond.Field, err)
		}

		switch wf.Logic() {
		case models.ConditionLogicOr:
			if ok {
				return true, nil
			}
		default:
			if !ok {
				return false, nil
			}
		}
	}

	return wf.Logic() != models.ConditionLogicOr, nil
}

// matchesTriggerConfig requires every config key to equal the payload value.
// Comparison is loose so that "3" in stored JSON matches a numeric payload.
func matchesTriggerConfig(config, payload map[string]any) bool {
	for key, want := range config {
		got, ok := payload[key]
		if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}

	return true
}
