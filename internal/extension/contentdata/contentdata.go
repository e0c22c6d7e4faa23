// Package contentdata attaches opaque metadata to a request.
//
// The extension has a single action, create, whose content object is stored
// as-is under values.content. Content is only checked for shape.
package contentdata

import (
	"github.com/roach88/reqlog/internal/extension"
	"github.com/roach88/reqlog/internal/ir"
)

// ID is the extension id.
const ID = "content-data"

// ActionCreate is the only action of the extension.
const ActionCreate = "create"

// SupportedVersions lists the versions this module applies.
var SupportedVersions = []string{"0.1.0"}

var createSchema = extension.MustCompileSchema(`content: {...}`)

// Extension is the content-data module.
type Extension struct{}

// New creates the content-data module.
func New() *Extension {
	return &Extension{}
}

// ID implements extension.Extension.
func (*Extension) ID() string { return ID }

// Type implements extension.Extension.
func (*Extension) Type() ir.ExtensionType { return ir.ExtensionTypeContentData }

// ApplyAction implements extension.Extension.
func (e *Extension) ApplyAction(state *ir.ExtensionState, action ir.ExtensionAction, _ *ir.Request, signer ir.Identity, timestamp int64) (ir.ExtensionState, error) {
	if action.Action != ActionCreate {
		return ir.ExtensionState{}, ir.Reject(ir.ReasonInvalidParameters, "%s: unknown action %q", ID, action.Action)
	}
	if state != nil {
		return ir.ExtensionState{}, ir.Reject(ir.ReasonInvalidTransition, "%s already created", ID)
	}
	version, err := extension.CheckVersion(SupportedVersions, "", action.Version)
	if err != nil {
		return ir.ExtensionState{}, err
	}
	content, ok := action.Parameters.Object("content")
	if !ok {
		return ir.ExtensionState{}, ir.Reject(ir.ReasonInvalidParameters, "%s: content must be an object", ID)
	}
	if err := createSchema.Validate(action.Parameters); err != nil {
		return ir.ExtensionState{}, err
	}

	return ir.ExtensionState{
		ID:      ID,
		Type:    ir.ExtensionTypeContentData,
		Version: version,
		Events:  []ir.ExtensionEvent{extension.NewEvent(action, signer, timestamp)},
		Values:  ir.IRObject{"content": content.Clone()},
	}, nil
}

// CreateAction builds the extension action that attaches content.
func CreateAction(content ir.IRObject) ir.ExtensionAction {
	return ir.ExtensionAction{
		ID:         ID,
		Action:     ActionCreate,
		Parameters: ir.IRObject{"content": content.Clone()},
		Version:    SupportedVersions[len(SupportedVersions)-1],
	}
}
