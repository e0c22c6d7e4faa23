package client

import (
	"context"
	"fmt"

	"github.com/roach88/reqlog/internal/extension/contentdata"
	"github.com/roach88/reqlog/internal/extension/paymentnetwork"
	"github.com/roach88/reqlog/internal/ir"
	"github.com/roach88/reqlog/internal/signature"
)

// PaymentNetwork selects a reference-based payment network for a new
// request. The salt is generated.
type PaymentNetwork struct {
	ID                 string
	PaymentAddress     string
	RefundAddress      string
	PaymentNetworkName string
}

// CreateParams describe a new request.
type CreateParams struct {
	Currency       string
	ExpectedAmount string
	Payee          *ir.Identity
	Payer          *ir.Identity

	// ContentData, when set, is attached through the content-data extension.
	ContentData ir.IRObject

	// PaymentNetwork, when set, creates the network's extension state.
	PaymentNetwork *PaymentNetwork

	// ExtensionsData is appended after the built-in extensions above.
	ExtensionsData []ir.ExtensionAction

	// Topics are extra index entries for the request's channel.
	Topics []string
}

// CreateRequest signs and appends a create action. The request id is
// derived from the signed payload, which includes a generated nonce so two
// otherwise identical requests get distinct ids.
func (c *Client) CreateRequest(ctx context.Context, signer signature.Signer, p CreateParams) (*ir.Request, error) {
	params := ir.IRObject{
		"currency":       ir.IRString(p.Currency),
		"expectedAmount": ir.IRString(p.ExpectedAmount),
		"nonce":          ir.IRString(c.gen.Generate()),
	}
	topics := append([]string(nil), p.Topics...)
	for _, party := range []struct {
		key string
		id  *ir.Identity
	}{{"payee", p.Payee}, {"payer", p.Payer}} {
		if party.id == nil {
			continue
		}
		params[party.key] = party.id.ToIR()
		topic, err := ir.IdentityTopic(*party.id)
		if err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}

	var exts ir.IRArray
	if p.ContentData != nil {
		exts = append(exts, contentdata.CreateAction(p.ContentData).ToIR())
	}
	if pn := p.PaymentNetwork; pn != nil {
		exts = append(exts, paymentnetwork.CreateAction(pn.ID, paymentnetwork.CreateParams{
			Salt:               c.gen.Generate(),
			PaymentAddress:     pn.PaymentAddress,
			RefundAddress:      pn.RefundAddress,
			PaymentNetworkName: pn.PaymentNetworkName,
		}).ToIR())
	}
	for _, ea := range p.ExtensionsData {
		exts = append(exts, ea.ToIR())
	}
	if len(exts) > 0 {
		params["extensionsData"] = exts
	}

	req, err := c.submit(ctx, signer, "", ir.ActionCreate, params, topics...)
	if err != nil {
		return req, err
	}
	c.logger.Info("request created", "request_id", req.RequestID, "currency", req.Currency, "amount", req.ExpectedAmount)
	return req, nil
}

// Accept appends an accept signed by signer.
func (c *Client) Accept(ctx context.Context, signer signature.Signer, requestID string) (*ir.Request, error) {
	return c.submitRef(ctx, signer, requestID, ir.ActionAccept, nil)
}

// Cancel appends a cancel signed by signer.
func (c *Client) Cancel(ctx context.Context, signer signature.Signer, requestID string) (*ir.Request, error) {
	return c.submitRef(ctx, signer, requestID, ir.ActionCancel, nil)
}

// IncreaseExpectedAmount appends an increase of delta (a decimal string).
func (c *Client) IncreaseExpectedAmount(ctx context.Context, signer signature.Signer, requestID, delta string) (*ir.Request, error) {
	return c.submitRef(ctx, signer, requestID, ir.ActionIncreaseExpectedAmount, ir.IRObject{"deltaAmount": ir.IRString(delta)})
}

// ReduceExpectedAmount appends a reduction of delta (a decimal string).
func (c *Client) ReduceExpectedAmount(ctx context.Context, signer signature.Signer, requestID, delta string) (*ir.Request, error) {
	return c.submitRef(ctx, signer, requestID, ir.ActionReduceExpectedAmount, ir.IRObject{"deltaAmount": ir.IRString(delta)})
}

// AddExtensionsData appends extension actions to an existing request.
func (c *Client) AddExtensionsData(ctx context.Context, signer signature.Signer, requestID string, actions ...ir.ExtensionAction) (*ir.Request, error) {
	if len(actions) == 0 {
		return nil, fmt.Errorf("add extensions data: no extension actions")
	}
	list := make(ir.IRArray, len(actions))
	for i, ea := range actions {
		list[i] = ea.ToIR()
	}
	return c.submitRef(ctx, signer, requestID, ir.ActionAddExtensionsData, ir.IRObject{"extensionsData": list})
}

// ApplyExtension appends a single extension action.
func (c *Client) ApplyExtension(ctx context.Context, signer signature.Signer, requestID string, action ir.ExtensionAction) (*ir.Request, error) {
	return c.submitRef(ctx, signer, requestID, ir.ActionApplyExtension, ir.IRObject{"extensionAction": action.ToIR()})
}

// AddPaymentAddress declares the payee's payment address on a payment
// network extension.
func (c *Client) AddPaymentAddress(ctx context.Context, signer signature.Signer, requestID, networkID, address string) (*ir.Request, error) {
	return c.ApplyExtension(ctx, signer, requestID, paymentnetwork.AddPaymentAddressAction(networkID, address))
}

// AddRefundAddress declares the payer's refund address on a payment network
// extension.
func (c *Client) AddRefundAddress(ctx context.Context, signer signature.Signer, requestID, networkID, address string) (*ir.Request, error) {
	return c.ApplyExtension(ctx, signer, requestID, paymentnetwork.AddRefundAddressAction(networkID, address))
}

func (c *Client) submitRef(ctx context.Context, signer signature.Signer, requestID string, name ir.ActionName, params ir.IRObject) (*ir.Request, error) {
	if !ir.IsRequestID(requestID) {
		return nil, fmt.Errorf("%s: invalid request id %q", name, requestID)
	}
	if params == nil {
		params = ir.IRObject{}
	}
	params["requestId"] = ir.IRString(requestID)
	return c.submit(ctx, signer, requestID, name, params)
}
