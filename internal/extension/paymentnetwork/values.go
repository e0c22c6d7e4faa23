package paymentnetwork

import "github.com/roach88/reqlog/internal/ir"

// Values is the typed view of a reference-based network's state values.
type Values struct {
	Salt               string
	PaymentReference   string
	PaymentAddress     string
	RefundAddress      string
	PaymentNetworkName string
}

// ReadValues extracts Values from an extension state.
func ReadValues(state ir.ExtensionState) Values {
	get := func(key string) string {
		s, _ := state.Values.String(key)
		return s
	}
	return Values{
		Salt:               get(KeySalt),
		PaymentReference:   get(KeyPaymentReference),
		PaymentAddress:     get(KeyPaymentAddress),
		RefundAddress:      get(KeyRefundAddress),
		PaymentNetworkName: get(KeyPaymentNetworkName),
	}
}

// CreateParams are the parameters of a create action.
type CreateParams struct {
	Salt               string
	PaymentAddress     string
	RefundAddress      string
	PaymentNetworkName string
}

// CreateAction builds the create action for network id at the latest
// version.
func CreateAction(id string, p CreateParams) ir.ExtensionAction {
	params := ir.IRObject{KeySalt: ir.IRString(p.Salt)}
	if p.PaymentAddress != "" {
		params[KeyPaymentAddress] = ir.IRString(p.PaymentAddress)
	}
	if p.RefundAddress != "" {
		params[KeyRefundAddress] = ir.IRString(p.RefundAddress)
	}
	if p.PaymentNetworkName != "" {
		params[KeyPaymentNetworkName] = ir.IRString(p.PaymentNetworkName)
	}
	return ir.ExtensionAction{ID: id, Action: ActionCreate, Parameters: params, Version: latestVersion()}
}

// AddPaymentAddressAction builds an addPaymentAddress action.
func AddPaymentAddressAction(id, address string) ir.ExtensionAction {
	return ir.ExtensionAction{
		ID:         id,
		Action:     ActionAddPaymentAddress,
		Parameters: ir.IRObject{KeyPaymentAddress: ir.IRString(address)},
		Version:    latestVersion(),
	}
}

// AddRefundAddressAction builds an addRefundAddress action.
func AddRefundAddressAction(id, address string) ir.ExtensionAction {
	return ir.ExtensionAction{
		ID:         id,
		Action:     ActionAddRefundAddress,
		Parameters: ir.IRObject{KeyRefundAddress: ir.IRString(address)},
		Version:    latestVersion(),
	}
}

func latestVersion() string {
	return SupportedVersions[len(SupportedVersions)-1]
}
