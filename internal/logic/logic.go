// Package logic is the request reducer: it applies one signed action to a
// request snapshot.
//
// Apply never modifies its inputs. Every successful call returns a fresh
// Request whose event log ends with an applied event for the action.
// Refused actions return *ir.RejectError (or *ir.ExtensionNotRecognizedError
// for applyExtension on an unknown id) and no request.
package logic

import (
	"fmt"
	"math/big"

	"github.com/roach88/reqlog/internal/codec"
	"github.com/roach88/reqlog/internal/extension"
	"github.com/roach88/reqlog/internal/ir"
	"github.com/roach88/reqlog/internal/signature"
)

// Logic applies core actions.
type Logic struct {
	verifier   signature.Verifier
	dispatcher *extension.Dispatcher
}

// New creates a reducer that checks signatures with verifier and routes
// extension actions through dispatcher.
func New(verifier signature.Verifier, dispatcher *extension.Dispatcher) *Logic {
	return &Logic{verifier: verifier, dispatcher: dispatcher}
}

// Apply folds action into prev. prev is nil before the request exists.
func (l *Logic) Apply(prev *ir.Request, action ir.Action, timestamp int64) (*ir.Request, error) {
	payload, err := codec.SignedPayload(action)
	if err != nil {
		return nil, ir.Reject(ir.ReasonInvalidParameters, "%v", err)
	}
	if err := l.verifier.Verify(payload, action.Signature, action.Signer); err != nil {
		return nil, ir.Reject(ir.ReasonUnauthorized, "signature: %v", err)
	}
	if action.Version != ir.ProtocolVersion {
		return nil, ir.Reject(ir.ReasonInvalidParameters, "action version %s not supported", action.Version)
	}
	hash, err := codec.ContentHash(action)
	if err != nil {
		return nil, ir.Reject(ir.ReasonInvalidParameters, "%v", err)
	}

	if action.Name == ir.ActionCreate {
		if prev != nil {
			return nil, ir.Reject(ir.ReasonDuplicateCreate, "request %s already created", prev.RequestID)
		}
		next, err := l.create(action, payload, timestamp)
		if err != nil {
			return nil, err
		}
		return withEvent(next, action, timestamp, hash), nil
	}

	if prev == nil {
		return nil, ir.Reject(ir.ReasonInvalidTransition, "%s before create", action.Name)
	}
	requestID, err := codec.ParseRequestRef(action.Parameters)
	if err != nil {
		return nil, err
	}
	if requestID != prev.RequestID {
		return nil, ir.Reject(ir.ReasonInvalidParameters, "requestId %s does not match %s", requestID, prev.RequestID)
	}

	next := prev.Clone()
	signer := action.Signer
	switch action.Name {
	case ir.ActionAccept:
		err = accept(next, signer)
	case ir.ActionCancel:
		err = cancel(next, signer)
	case ir.ActionIncreaseExpectedAmount:
		err = increase(next, action.Parameters, signer)
	case ir.ActionReduceExpectedAmount:
		err = reduce(next, action.Parameters, signer)
	case ir.ActionAddExtensionsData:
		var p codec.ExtensionsDataParams
		p, err = codec.ParseExtensionsDataParams(action.Parameters)
		if err == nil {
			err = l.addExtensionsData(next, p.ExtensionsData, signer, timestamp)
		}
	case ir.ActionApplyExtension:
		var p codec.ApplyExtensionParams
		p, err = codec.ParseApplyExtensionParams(action.Parameters)
		if err == nil {
			err = l.applyExtension(next, p.ExtensionAction, signer, timestamp)
		}
	default:
		err = ir.Reject(ir.ReasonInvalidParameters, "unknown action %q", action.Name)
	}
	if err != nil {
		return nil, err
	}
	return withEvent(next, action, timestamp, hash), nil
}

func (l *Logic) create(action ir.Action, payload []byte, timestamp int64) (*ir.Request, error) {
	p, err := codec.ParseCreateParams(action.Parameters)
	if err != nil {
		return nil, err
	}
	signer := action.Signer
	isPayee := p.Payee != nil && p.Payee.Equal(signer)
	isPayer := p.Payer != nil && p.Payer.Equal(signer)
	if !isPayee && !isPayer {
		return nil, ir.Reject(ir.ReasonUnauthorized, "signer must be the payee or the payer")
	}

	req := &ir.Request{
		RequestID:      ir.RequestID(payload),
		Creator:        signer,
		Payee:          p.Payee,
		Payer:          p.Payer,
		Currency:       p.Currency,
		ExpectedAmount: codec.FormatAmount(p.ExpectedAmount),
		State:          ir.StateCreated,
		Extensions:     ir.ExtensionsState{},
		ExtensionsData: []ir.ExtensionAction{},
		Events:         []ir.Event{},
		Version:        ir.ProtocolVersion,
		Timestamp:      timestamp,
		Nonce:          p.Nonce,
	}
	if len(p.ExtensionsData) > 0 {
		if err := l.addExtensionsData(req, p.ExtensionsData, signer, timestamp); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func accept(req *ir.Request, signer ir.Identity) error {
	if req.State != ir.StateCreated {
		return ir.Reject(ir.ReasonInvalidTransition, "cannot accept a %s request", req.State)
	}
	if !req.IsPayee(signer) {
		return ir.Reject(ir.ReasonUnauthorized, "only the payee can accept")
	}
	req.State = ir.StateAccepted
	return nil
}

func cancel(req *ir.Request, signer ir.Identity) error {
	if req.State != ir.StateCreated {
		return ir.Reject(ir.ReasonInvalidTransition, "cannot cancel a %s request", req.State)
	}
	if !req.IsPayee(signer) && !req.IsPayer(signer) {
		return ir.Reject(ir.ReasonUnauthorized, "only the payee or the payer can cancel")
	}
	req.State = ir.StateCancelled
	return nil
}

func increase(req *ir.Request, params ir.IRObject, signer ir.Identity) error {
	if req.State != ir.StateCreated {
		return ir.Reject(ir.ReasonInvalidTransition, "cannot change the amount of a %s request", req.State)
	}
	if !req.IsPayer(signer) {
		return ir.Reject(ir.ReasonUnauthorized, "only the payer can increase the expected amount")
	}
	p, err := codec.ParseAmountDelta(params)
	if err != nil {
		return err
	}
	current, err := currentAmount(req)
	if err != nil {
		return err
	}
	req.ExpectedAmount = codec.FormatAmount(new(big.Int).Add(current, p.Delta))
	return nil
}

func reduce(req *ir.Request, params ir.IRObject, signer ir.Identity) error {
	if req.State != ir.StateCreated {
		return ir.Reject(ir.ReasonInvalidTransition, "cannot change the amount of a %s request", req.State)
	}
	if !req.IsPayee(signer) {
		return ir.Reject(ir.ReasonUnauthorized, "only the payee can reduce the expected amount")
	}
	p, err := codec.ParseAmountDelta(params)
	if err != nil {
		return err
	}
	current, err := currentAmount(req)
	if err != nil {
		return err
	}
	result := new(big.Int).Sub(current, p.Delta)
	if result.Sign() < 0 {
		return ir.Reject(ir.ReasonInvalidAmount, "reducing %s by %s would be negative", req.ExpectedAmount, p.Delta)
	}
	req.ExpectedAmount = codec.FormatAmount(result)
	return nil
}

// currentAmount parses the stored amount. Only Apply writes it, so a parse
// failure is a reducer bug.
func currentAmount(req *ir.Request) (*big.Int, error) {
	n, ok := new(big.Int).SetString(req.ExpectedAmount, 10)
	if !ok || n.Sign() < 0 {
		return nil, &ir.InvariantError{Message: fmt.Sprintf("stored expected amount %q is invalid", req.ExpectedAmount)}
	}
	return n, nil
}

// addExtensionsData dispatches recognized extension actions and keeps the
// rest verbatim. Any module error refuses the whole action.
func (l *Logic) addExtensionsData(req *ir.Request, list []ir.ExtensionAction, signer ir.Identity, timestamp int64) error {
	for _, ea := range list {
		if !l.dispatcher.Recognizes(ea.ID) {
			req.ExtensionsData = append(req.ExtensionsData, ea.Clone())
			continue
		}
		exts, err := l.dispatcher.ApplyActionToExtensions(req.Extensions, ea, req, signer, timestamp)
		if err != nil {
			return err
		}
		req.Extensions = exts
	}
	return nil
}

func (l *Logic) applyExtension(req *ir.Request, ea ir.ExtensionAction, signer ir.Identity, timestamp int64) error {
	exts, err := l.dispatcher.ApplyActionToExtensions(req.Extensions, ea, req, signer, timestamp)
	if err != nil {
		return err
	}
	req.Extensions = exts
	return nil
}

func withEvent(req *ir.Request, action ir.Action, timestamp int64, hash string) *ir.Request {
	actor := action.Signer
	req.Events = append(req.Events, ir.Event{
		Name:       string(action.Name),
		Status:     ir.EventApplied,
		Parameters: action.Parameters.Clone(),
		Actor:      &actor,
		Timestamp:  timestamp,
		ActionHash: hash,
	})
	return req
}
