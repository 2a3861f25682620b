package workflow

import "fmt"

// MaxCascadeDepth bounds workflow-to-workflow cascades. Events carry the
// number of workflow hops that produced them; an event at this depth is
// refused instead of evaluated, breaking infinite trigger loops.
const MaxCascadeDepth = 5

// DedupeKey builds the ledger dedupe key for window-scoped firings. The key
// carries a unique constraint in storage, so concurrent sweep passes race on
// the insert and exactly one wins.
func DedupeKey(workflowID, entityID, window string) string {
	return fmt.Sprintf("wf:%s:entity:%s:%s", workflowID, entityID, window)
}
