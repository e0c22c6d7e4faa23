package codec

import (
	"errors"
	"math/big"
	"regexp"

	"github.com/roach88/reqlog/internal/ir"
)

// Parameter parsers return *ir.RejectError so that the reducer can surface
// them directly. Decode wraps the same errors in a DecodeError.

var decimalPattern = regexp.MustCompile(`^[0-9]+$`)

// ParseAmount reads a non-negative integer amount from a decimal string or a
// non-negative int. Anything else is rejected with ReasonInvalidAmount.
func ParseAmount(v ir.IRValue) (*big.Int, error) {
	switch val := v.(type) {
	case ir.IRString:
		s := string(val)
		if !decimalPattern.MatchString(s) {
			return nil, ir.Reject(ir.ReasonInvalidAmount, "amount %q is not a non-negative decimal integer", s)
		}
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, ir.Reject(ir.ReasonInvalidAmount, "amount %q is not a non-negative decimal integer", s)
		}
		return n, nil
	case ir.IRInt:
		if val < 0 {
			return nil, ir.Reject(ir.ReasonInvalidAmount, "amount %d is negative", int64(val))
		}
		return big.NewInt(int64(val)), nil
	case nil:
		return nil, ir.Reject(ir.ReasonInvalidAmount, "amount is missing")
	default:
		return nil, ir.Reject(ir.ReasonInvalidAmount, "amount must be a decimal string, got %T", v)
	}
}

// FormatAmount renders an amount as the decimal string stored on requests.
func FormatAmount(n *big.Int) string {
	return n.String()
}

// CreateParams are the parameters of a create action.
type CreateParams struct {
	Currency       string
	ExpectedAmount *big.Int
	Payee          *ir.Identity
	Payer          *ir.Identity
	Nonce          ir.IRValue
	ExtensionsData []ir.ExtensionAction
}

// ParseCreateParams reads and validates create parameters.
func ParseCreateParams(p ir.IRObject) (CreateParams, error) {
	var out CreateParams

	currency, ok := p.String("currency")
	if !ok || currency == "" {
		return out, ir.Reject(ir.ReasonInvalidParameters, "currency is required")
	}
	out.Currency = currency

	amount, err := ParseAmount(p["expectedAmount"])
	if err != nil {
		return out, err
	}
	out.ExpectedAmount = amount

	if v, ok := p["payee"]; ok {
		id, err := ParseIdentity(v)
		if err != nil {
			return out, ir.Reject(ir.ReasonInvalidParameters, "payee: %v", err)
		}
		out.Payee = &id
	}
	if v, ok := p["payer"]; ok {
		id, err := ParseIdentity(v)
		if err != nil {
			return out, ir.Reject(ir.ReasonInvalidParameters, "payer: %v", err)
		}
		out.Payer = &id
	}
	if out.Payee == nil && out.Payer == nil {
		return out, ir.Reject(ir.ReasonInvalidParameters, "payee or payer is required")
	}

	if v, ok := p["nonce"]; ok {
		switch v.(type) {
		case ir.IRString, ir.IRInt:
			out.Nonce = v
		default:
			return out, ir.Reject(ir.ReasonInvalidParameters, "nonce must be a string or int, got %T", v)
		}
	}

	if v, ok := p["extensionsData"]; ok {
		list, err := parseExtensionActions(v)
		if err != nil {
			return out, err
		}
		out.ExtensionsData = list
	}
	return out, nil
}

// ParseRequestRef reads the requestId carried by every non-create action.
func ParseRequestRef(p ir.IRObject) (string, error) {
	id, ok := p.String("requestId")
	if !ok {
		return "", ir.Reject(ir.ReasonInvalidParameters, "requestId is required")
	}
	if !ir.IsRequestID(id) {
		return "", ir.Reject(ir.ReasonInvalidParameters, "requestId %q is malformed", id)
	}
	return id, nil
}

// AmountDelta are the parameters of increaseExpectedAmount and
// reduceExpectedAmount.
type AmountDelta struct {
	RequestID string
	Delta     *big.Int
}

// ParseAmountDelta reads requestId and deltaAmount.
func ParseAmountDelta(p ir.IRObject) (AmountDelta, error) {
	id, err := ParseRequestRef(p)
	if err != nil {
		return AmountDelta{}, err
	}
	delta, err := ParseAmount(p["deltaAmount"])
	if err != nil {
		return AmountDelta{}, err
	}
	return AmountDelta{RequestID: id, Delta: delta}, nil
}

// ExtensionsDataParams are the parameters of addExtensionsData.
type ExtensionsDataParams struct {
	RequestID      string
	ExtensionsData []ir.ExtensionAction
}

// ParseExtensionsDataParams reads requestId and a non-empty extensionsData.
func ParseExtensionsDataParams(p ir.IRObject) (ExtensionsDataParams, error) {
	id, err := ParseRequestRef(p)
	if err != nil {
		return ExtensionsDataParams{}, err
	}
	list, err := parseExtensionActions(p["extensionsData"])
	if err != nil {
		return ExtensionsDataParams{}, err
	}
	if len(list) == 0 {
		return ExtensionsDataParams{}, ir.Reject(ir.ReasonInvalidParameters, "extensionsData is empty")
	}
	return ExtensionsDataParams{RequestID: id, ExtensionsData: list}, nil
}

// ApplyExtensionParams are the parameters of applyExtension.
type ApplyExtensionParams struct {
	RequestID       string
	ExtensionAction ir.ExtensionAction
}

// ParseApplyExtensionParams reads requestId and one extensionAction.
func ParseApplyExtensionParams(p ir.IRObject) (ApplyExtensionParams, error) {
	id, err := ParseRequestRef(p)
	if err != nil {
		return ApplyExtensionParams{}, err
	}
	ea, err := ParseExtensionAction(p["extensionAction"])
	if err != nil {
		return ApplyExtensionParams{}, err
	}
	return ApplyExtensionParams{RequestID: id, ExtensionAction: ea}, nil
}

// ParseExtensionAction reads an {id, action, parameters, version} object.
// No other keys are allowed, so the parsed value re-encodes to the same
// bytes it was read from.
func ParseExtensionAction(v ir.IRValue) (ir.ExtensionAction, error) {
	obj, ok := v.(ir.IRObject)
	if !ok {
		return ir.ExtensionAction{}, ir.Reject(ir.ReasonInvalidParameters, "extension action must be an object, got %T", v)
	}
	if err := onlyKeys(obj, "id", "action", "parameters", "version"); err != nil {
		return ir.ExtensionAction{}, ir.Reject(ir.ReasonInvalidParameters, "extension action: %v", err)
	}
	id, ok := obj.String("id")
	if !ok || id == "" {
		return ir.ExtensionAction{}, ir.Reject(ir.ReasonInvalidParameters, "extension action: id is required")
	}
	action, ok := obj.String("action")
	if !ok || action == "" {
		return ir.ExtensionAction{}, ir.Reject(ir.ReasonInvalidParameters, "extension action %s: action is required", id)
	}
	params, ok := obj.Object("parameters")
	if !ok {
		return ir.ExtensionAction{}, ir.Reject(ir.ReasonInvalidParameters, "extension action %s: parameters must be an object", id)
	}
	version, ok := obj.String("version")
	if !ok || version == "" {
		return ir.ExtensionAction{}, ir.Reject(ir.ReasonInvalidParameters, "extension action %s: version is required", id)
	}
	return ir.ExtensionAction{ID: id, Action: action, Parameters: params, Version: version}, nil
}

func parseExtensionActions(v ir.IRValue) ([]ir.ExtensionAction, error) {
	arr, ok := v.(ir.IRArray)
	if !ok {
		return nil, ir.Reject(ir.ReasonInvalidParameters, "extensionsData must be an array, got %T", v)
	}
	out := make([]ir.ExtensionAction, 0, len(arr))
	for i, elem := range arr {
		ea, err := ParseExtensionAction(elem)
		if err != nil {
			var re *ir.RejectError
			if errors.As(err, &re) {
				return nil, ir.Reject(re.Reason, "extensionsData[%d]: %s", i, re.Message)
			}
			return nil, err
		}
		out = append(out, ea)
	}
	return out, nil
}
