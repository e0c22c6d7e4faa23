// Package codec converts signed actions between wire bytes and ir.Action.
//
// The wire form is a JSON object:
//
//	{"data":{"name":...,"parameters":{...},"version":...},
//	 "signer":{"type":...,"value":...},
//	 "signature":{"method":...,"value":...}}
//
// Decoding is strict: floats, nulls, unknown envelope keys and unknown core
// action names are all errors. Unknown extension ids are not; whether an
// extension is recognized is decided at apply time.
package codec

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/reqlog/internal/ir"
)

// DecodeError reports bytes that cannot be read as an action.
type DecodeError struct {
	Field string
	Err   error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode action: %v", e.Err)
	}
	return fmt.Sprintf("decode action: %s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is, or wraps, a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func decodeErr(field, format string, args ...any) *DecodeError {
	return &DecodeError{Field: field, Err: fmt.Errorf(format, args...)}
}

// Decode parses wire bytes into an action and validates the parameters of
// its core action name.
func Decode(data []byte) (ir.Action, error) {
	val, err := ir.UnmarshalIRValue(data)
	if err != nil {
		return ir.Action{}, &DecodeError{Err: err}
	}
	envelope, ok := val.(ir.IRObject)
	if !ok {
		return ir.Action{}, decodeErr("", "expected object, got %T", val)
	}
	if err := onlyKeys(envelope, "data", "signer", "signature"); err != nil {
		return ir.Action{}, &DecodeError{Err: err}
	}

	body, ok := envelope.Object("data")
	if !ok {
		return ir.Action{}, decodeErr("data", "missing or not an object")
	}
	if err := onlyKeys(body, "name", "parameters", "version"); err != nil {
		return ir.Action{}, &DecodeError{Field: "data", Err: err}
	}

	name, ok := body.String("name")
	if !ok || name == "" {
		return ir.Action{}, decodeErr("data.name", "missing or not a string")
	}
	if !ir.ValidActionNames[ir.ActionName(name)] {
		return ir.Action{}, decodeErr("data.name", "unknown action %q", name)
	}
	params, ok := body.Object("parameters")
	if !ok {
		return ir.Action{}, decodeErr("data.parameters", "missing or not an object")
	}
	version, ok := body.String("version")
	if !ok || version == "" {
		return ir.Action{}, decodeErr("data.version", "missing or not a string")
	}

	signer, err := ParseIdentity(envelope["signer"])
	if err != nil {
		return ir.Action{}, &DecodeError{Field: "signer", Err: err}
	}

	sigObj, ok := envelope.Object("signature")
	if !ok {
		return ir.Action{}, decodeErr("signature", "missing or not an object")
	}
	if err := onlyKeys(sigObj, "method", "value"); err != nil {
		return ir.Action{}, &DecodeError{Field: "signature", Err: err}
	}
	method, ok := sigObj.String("method")
	if !ok || method == "" {
		return ir.Action{}, decodeErr("signature.method", "missing or not a string")
	}
	sigValue, ok := sigObj.String("value")
	if !ok || sigValue == "" {
		return ir.Action{}, decodeErr("signature.value", "missing or not a string")
	}

	action := ir.Action{
		Name:       ir.ActionName(name),
		Parameters: params,
		Version:    version,
		Signer:     signer,
		Signature:  ir.Signature{Method: ir.SignatureMethod(method), Value: sigValue},
	}
	if err := ValidateParameters(action); err != nil {
		return ir.Action{}, &DecodeError{Field: "data.parameters", Err: err}
	}
	return action, nil
}

// Encode returns the canonical wire bytes of an action. For any bytes b that
// decode, Encode(Decode(b)) is the canonical form of b.
func Encode(action ir.Action) ([]byte, error) {
	data, err := ir.MarshalCanonical(action.ToIR())
	if err != nil {
		return nil, fmt.Errorf("encode action %s: %w", action.Name, err)
	}
	return data, nil
}

// SignedPayload returns the bytes a signer signs: the canonical encoding of
// {name, parameters, version}.
func SignedPayload(action ir.Action) ([]byte, error) {
	data, err := ir.MarshalCanonical(action.Data())
	if err != nil {
		return nil, fmt.Errorf("signed payload %s: %w", action.Name, err)
	}
	return data, nil
}

// ContentHash returns the hash of the full canonical action. Replay uses it
// to break timestamp ties.
func ContentHash(action ir.Action) (string, error) {
	data, err := Encode(action)
	if err != nil {
		return "", err
	}
	return ir.ActionHash(data), nil
}

// ValidateParameters checks the parameters of a core action against the
// shape its name requires.
func ValidateParameters(action ir.Action) error {
	var err error
	switch action.Name {
	case ir.ActionCreate:
		_, err = ParseCreateParams(action.Parameters)
	case ir.ActionAccept, ir.ActionCancel:
		_, err = ParseRequestRef(action.Parameters)
	case ir.ActionIncreaseExpectedAmount, ir.ActionReduceExpectedAmount:
		_, err = ParseAmountDelta(action.Parameters)
	case ir.ActionAddExtensionsData:
		_, err = ParseExtensionsDataParams(action.Parameters)
	case ir.ActionApplyExtension:
		_, err = ParseApplyExtensionParams(action.Parameters)
	default:
		err = fmt.Errorf("unknown action %q", action.Name)
	}
	return err
}

// ParseIdentity reads an {type, value} object. Ethereum addresses must be
// 20-byte hex.
func ParseIdentity(v ir.IRValue) (ir.Identity, error) {
	obj, ok := v.(ir.IRObject)
	if !ok {
		return ir.Identity{}, fmt.Errorf("identity: expected object, got %T", v)
	}
	if err := onlyKeys(obj, "type", "value"); err != nil {
		return ir.Identity{}, fmt.Errorf("identity: %w", err)
	}
	typ, ok := obj.String("type")
	if !ok || typ == "" {
		return ir.Identity{}, fmt.Errorf("identity: missing type")
	}
	value, ok := obj.String("value")
	if !ok || value == "" {
		return ir.Identity{}, fmt.Errorf("identity: missing value")
	}
	id := ir.Identity{Type: ir.IdentityType(typ), Value: value}
	if id.Type == ir.IdentityTypeEthereumAddress && !common.IsHexAddress(value) {
		return ir.Identity{}, fmt.Errorf("identity: invalid ethereum address %q", value)
	}
	return id, nil
}

func onlyKeys(obj ir.IRObject, allowed ...string) error {
	for _, key := range obj.SortedKeys() {
		if !slices.Contains(allowed, key) {
			return fmt.Errorf("unexpected key %q", key)
		}
	}
	return nil
}
