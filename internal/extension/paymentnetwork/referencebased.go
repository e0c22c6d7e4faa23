// Package paymentnetwork implements reference-based payment network
// extensions.
//
// A reference-based network stores a salt and derives a payment reference
// from the request id and that salt. Chain detectors look for the reference
// in transfers to the payment address (payments) and the refund address
// (refunds). The variants differ only in which currencies and address
// formats they accept.
package paymentnetwork

import (
	"regexp"
	"slices"

	"github.com/roach88/reqlog/internal/extension"
	"github.com/roach88/reqlog/internal/ir"
)

// Extension actions.
const (
	ActionCreate            = "create"
	ActionAddPaymentAddress = "addPaymentAddress"
	ActionAddRefundAddress  = "addRefundAddress"
)

// Value keys stored in the extension state.
const (
	KeySalt               = "salt"
	KeyPaymentAddress     = "paymentAddress"
	KeyRefundAddress      = "refundAddress"
	KeyPaymentNetworkName = "paymentNetworkName"
	KeyPaymentReference   = "paymentReference"
)

// SupportedVersions are the versions of every reference-based network.
var SupportedVersions = []string{"0.1.0", "0.2.0"}

var saltPattern = regexp.MustCompile(`^[0-9a-fA-F]{16,}$`)

var (
	createSchema = extension.MustCompileSchema(`
salt:                =~"^[0-9a-fA-F]{16,}$"
paymentAddress?:     string
refundAddress?:      string
paymentNetworkName?: string
`)
	addPaymentAddressSchema = extension.MustCompileSchema(`paymentAddress: string`)
	addRefundAddressSchema  = extension.MustCompileSchema(`refundAddress: string`)
)

// Config describes one reference-based network variant.
type Config struct {
	ID string

	// ValidAddress reports whether s is an address on the network.
	ValidAddress func(s string) bool

	// SupportsCurrency reports whether requests in currency may use the
	// network.
	SupportsCurrency func(currency string) bool

	// NetworkNames, when set, makes paymentNetworkName required on create
	// and restricts it to these values.
	NetworkNames []string
}

// ReferenceBased is a reference-based payment network module.
type ReferenceBased struct {
	cfg Config
}

// New creates a module from cfg.
func New(cfg Config) *ReferenceBased {
	return &ReferenceBased{cfg: cfg}
}

// ID implements extension.Extension.
func (r *ReferenceBased) ID() string { return r.cfg.ID }

// Type implements extension.Extension.
func (*ReferenceBased) Type() ir.ExtensionType { return ir.ExtensionTypePaymentNetwork }

// ApplyAction implements extension.Extension.
func (r *ReferenceBased) ApplyAction(state *ir.ExtensionState, action ir.ExtensionAction, req *ir.Request, signer ir.Identity, timestamp int64) (ir.ExtensionState, error) {
	switch action.Action {
	case ActionCreate:
		return r.applyCreate(state, action, req, signer, timestamp)
	case ActionAddPaymentAddress:
		if err := r.checkAddressSigner(KeyPaymentAddress, req, signer); err != nil {
			return ir.ExtensionState{}, err
		}
		return r.applyAddAddress(state, action, KeyPaymentAddress, addPaymentAddressSchema, signer, timestamp)
	case ActionAddRefundAddress:
		if err := r.checkAddressSigner(KeyRefundAddress, req, signer); err != nil {
			return ir.ExtensionState{}, err
		}
		return r.applyAddAddress(state, action, KeyRefundAddress, addRefundAddressSchema, signer, timestamp)
	default:
		return ir.ExtensionState{}, ir.Reject(ir.ReasonInvalidParameters, "%s: unknown action %q", r.cfg.ID, action.Action)
	}
}

func (r *ReferenceBased) applyCreate(state *ir.ExtensionState, action ir.ExtensionAction, req *ir.Request, signer ir.Identity, timestamp int64) (ir.ExtensionState, error) {
	if state != nil {
		return ir.ExtensionState{}, ir.Reject(ir.ReasonInvalidTransition, "%s already created", r.cfg.ID)
	}
	if req == nil || req.RequestID == "" {
		return ir.ExtensionState{}, ir.Reject(ir.ReasonInvalidTransition, "%s: request has no id", r.cfg.ID)
	}
	version, err := extension.CheckVersion(SupportedVersions, "", action.Version)
	if err != nil {
		return ir.ExtensionState{}, err
	}
	if r.cfg.SupportsCurrency != nil && !r.cfg.SupportsCurrency(req.Currency) {
		return ir.ExtensionState{}, ir.Reject(ir.ReasonInvalidParameters, "%s: currency %s not supported", r.cfg.ID, req.Currency)
	}
	if err := createSchema.Validate(action.Parameters); err != nil {
		return ir.ExtensionState{}, err
	}

	salt, _ := action.Parameters.String(KeySalt)
	if !saltPattern.MatchString(salt) {
		return ir.ExtensionState{}, ir.Reject(ir.ReasonInvalidParameters, "%s: salt must be at least 16 hex characters", r.cfg.ID)
	}

	values := ir.IRObject{
		KeySalt:             ir.IRString(salt),
		KeyPaymentReference: ir.IRString(ir.PaymentReference(req.RequestID, salt, "")),
	}
	for _, key := range []string{KeyPaymentAddress, KeyRefundAddress} {
		addr, ok := action.Parameters.String(key)
		if !ok {
			continue
		}
		if err := r.checkAddressSigner(key, req, signer); err != nil {
			return ir.ExtensionState{}, err
		}
		if !r.validAddress(addr) {
			return ir.ExtensionState{}, ir.Reject(ir.ReasonInvalidParameters, "%s: %s %q is not a valid address", r.cfg.ID, key, addr)
		}
		values[key] = ir.IRString(addr)
	}

	name, hasName := action.Parameters.String(KeyPaymentNetworkName)
	if len(r.cfg.NetworkNames) > 0 {
		if !hasName || !slices.Contains(r.cfg.NetworkNames, name) {
			return ir.ExtensionState{}, ir.Reject(ir.ReasonInvalidParameters, "%s: paymentNetworkName must be one of %v", r.cfg.ID, r.cfg.NetworkNames)
		}
	}
	if hasName {
		values[KeyPaymentNetworkName] = ir.IRString(name)
	}

	return ir.ExtensionState{
		ID:      r.cfg.ID,
		Type:    ir.ExtensionTypePaymentNetwork,
		Version: version,
		Events:  []ir.ExtensionEvent{extension.NewEvent(action, signer, timestamp)},
		Values:  values,
	}, nil
}

func (r *ReferenceBased) applyAddAddress(state *ir.ExtensionState, action ir.ExtensionAction, key string, schema *extension.Schema, signer ir.Identity, timestamp int64) (ir.ExtensionState, error) {
	if err := extension.RequireState(state, action); err != nil {
		return ir.ExtensionState{}, err
	}
	version, err := extension.CheckVersion(SupportedVersions, state.Version, action.Version)
	if err != nil {
		return ir.ExtensionState{}, err
	}
	if state.Values.Has(key) {
		return ir.ExtensionState{}, ir.Reject(ir.ReasonInvalidTransition, "%s: %s already given", r.cfg.ID, key)
	}
	if err := schema.Validate(action.Parameters); err != nil {
		return ir.ExtensionState{}, err
	}
	addr, _ := action.Parameters.String(key)
	if !r.validAddress(addr) {
		return ir.ExtensionState{}, ir.Reject(ir.ReasonInvalidParameters, "%s: %s %q is not a valid address", r.cfg.ID, key, addr)
	}

	next := state.Clone()
	next.Version = version
	if next.Values == nil {
		next.Values = ir.IRObject{}
	}
	next.Values[key] = ir.IRString(addr)
	next.Events = append(next.Events, extension.NewEvent(action, signer, timestamp))
	return next, nil
}

// checkAddressSigner rejects a signer who may not set key, whether on
// create or through an add action: the payment address belongs to the
// payee and the refund address to the payer.
func (r *ReferenceBased) checkAddressSigner(key string, req *ir.Request, signer ir.Identity) error {
	switch key {
	case KeyPaymentAddress:
		if req == nil || !req.IsPayee(signer) {
			return ir.Reject(ir.ReasonUnauthorized, "%s: only the payee can add a payment address", r.cfg.ID)
		}
	case KeyRefundAddress:
		if req == nil || !req.IsPayer(signer) {
			return ir.Reject(ir.ReasonUnauthorized, "%s: only the payer can add a refund address", r.cfg.ID)
		}
	}
	return nil
}

func (r *ReferenceBased) validAddress(addr string) bool {
	if r.cfg.ValidAddress == nil {
		return addr != ""
	}
	return r.cfg.ValidAddress(addr)
}
