package extension

import "github.com/roach88/reqlog/internal/ir"

// NewEvent records an applied extension action on the sub-state's event log.
func NewEvent(action ir.ExtensionAction, signer ir.Identity, timestamp int64) ir.ExtensionEvent {
	from := signer
	return ir.ExtensionEvent{
		Name:       action.Action,
		Parameters: action.Parameters.Clone(),
		Timestamp:  timestamp,
		From:       &from,
	}
}

// RequireState rejects non-create actions on an extension that does not
// exist yet.
func RequireState(state *ir.ExtensionState, action ir.ExtensionAction) error {
	if state == nil {
		return ir.Reject(ir.ReasonInvalidTransition, "extension %s has not been created", action.ID)
	}
	return nil
}
