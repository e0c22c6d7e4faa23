package contentdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reqlog/internal/ir"
)

var payee = ir.Identity{Type: ir.IdentityTypeEthereumAddress, Value: "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1"}

func TestCreate(t *testing.T) {
	content := ir.IRObject{"what": ir.IRString("invoice 42"), "lines": ir.IRArray{ir.IRInt(1)}}
	action := CreateAction(content)

	st, err := New().ApplyAction(nil, action, &ir.Request{}, payee, 7)
	require.NoError(t, err)

	assert.Equal(t, ID, st.ID)
	assert.Equal(t, ir.ExtensionTypeContentData, st.Type)
	assert.Equal(t, "0.1.0", st.Version)
	assert.Equal(t, ir.IRObject{"content": content}, st.Values)
	require.Len(t, st.Events, 1)
	assert.Equal(t, "create", st.Events[0].Name)
	assert.Equal(t, int64(7), st.Events[0].Timestamp)
	assert.Equal(t, &payee, st.Events[0].From)

	// Stored content is a copy.
	content["what"] = ir.IRString("changed")
	stored, _ := st.Values.Object("content")
	assert.Equal(t, ir.IRString("invoice 42"), stored["what"])
}

func TestCreateRejections(t *testing.T) {
	ext := New()
	valid := CreateAction(ir.IRObject{"a": ir.IRInt(1)})

	existing, err := ext.ApplyAction(nil, valid, nil, payee, 1)
	require.NoError(t, err)
	_, err = ext.ApplyAction(&existing, valid, nil, payee, 2)
	assert.True(t, ir.IsReject(err, ir.ReasonInvalidTransition), "created twice")

	tests := map[string]ir.ExtensionAction{
		"unknown action":  {ID: ID, Action: "update", Parameters: valid.Parameters, Version: "0.1.0"},
		"missing content": {ID: ID, Action: ActionCreate, Parameters: ir.IRObject{}, Version: "0.1.0"},
		"content not obj": {ID: ID, Action: ActionCreate, Parameters: ir.IRObject{"content": ir.IRString("x")}, Version: "0.1.0"},
		"extra key":       {ID: ID, Action: ActionCreate, Parameters: ir.IRObject{"content": ir.IRObject{}, "x": ir.IRInt(1)}, Version: "0.1.0"},
		"unknown version": {ID: ID, Action: ActionCreate, Parameters: valid.Parameters, Version: "0.3.0"},
	}
	for name, action := range tests {
		_, err := ext.ApplyAction(nil, action, nil, payee, 1)
		assert.True(t, ir.IsReject(err, ir.ReasonInvalidParameters), "%s: %v", name, err)
	}
}
