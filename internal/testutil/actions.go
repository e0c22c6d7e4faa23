package testutil

import (
	"testing"

	"github.com/roach88/reqlog/internal/codec"
	"github.com/roach88/reqlog/internal/ir"
	"github.com/roach88/reqlog/internal/signature"
)

// Sign builds and signs a core action at the current protocol version.
func Sign(t testing.TB, s signature.Signer, name ir.ActionName, params ir.IRObject) ir.Action {
	t.Helper()
	action := ir.Action{
		Name:       name,
		Parameters: params,
		Version:    ir.ProtocolVersion,
		Signer:     s.Identity(),
	}
	payload, err := codec.SignedPayload(action)
	if err != nil {
		t.Fatalf("signed payload: %v", err)
	}
	sig, err := s.Sign(payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	action.Signature = sig
	return action
}

// Encode returns the wire bytes of an action.
func Encode(t testing.TB, action ir.Action) []byte {
	t.Helper()
	data, err := codec.Encode(action)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data
}

// RequestID returns the request id a create action yields.
func RequestID(t testing.TB, create ir.Action) string {
	t.Helper()
	payload, err := codec.SignedPayload(create)
	if err != nil {
		t.Fatalf("signed payload: %v", err)
	}
	return ir.RequestID(payload)
}

// CreateParams builds create parameters with both parties set.
func CreateParams(payee, payer ir.Identity, currency, amount string) ir.IRObject {
	return ir.IRObject{
		"currency":       ir.IRString(currency),
		"expectedAmount": ir.IRString(amount),
		"payee":          payee.ToIR(),
		"payer":          payer.ToIR(),
	}
}

// RefParams builds {requestId} parameters.
func RefParams(requestID string) ir.IRObject {
	return ir.IRObject{"requestId": ir.IRString(requestID)}
}

// DeltaParams builds {requestId, deltaAmount} parameters.
func DeltaParams(requestID, delta string) ir.IRObject {
	return ir.IRObject{"requestId": ir.IRString(requestID), "deltaAmount": ir.IRString(delta)}
}

// ExtensionsDataParams builds {requestId, extensionsData} parameters.
func ExtensionsDataParams(requestID string, actions ...ir.ExtensionAction) ir.IRObject {
	list := make(ir.IRArray, len(actions))
	for i, ea := range actions {
		list[i] = ea.ToIR()
	}
	return ir.IRObject{"requestId": ir.IRString(requestID), "extensionsData": list}
}

// ApplyExtensionParams builds {requestId, extensionAction} parameters.
func ApplyExtensionParams(requestID string, ea ir.ExtensionAction) ir.IRObject {
	return ir.IRObject{"requestId": ir.IRString(requestID), "extensionAction": ea.ToIR()}
}
