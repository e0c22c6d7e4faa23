package ir

import (
	"strings"
)

// IdentityType names the kind of identity value.
type IdentityType string

// IdentityTypeEthereumAddress is a 0x-prefixed 20-byte hex address.
const IdentityTypeEthereumAddress IdentityType = "ethereumAddress"

// Identity is a party to a request.
type Identity struct {
	Type  IdentityType `json:"type"`
	Value string       `json:"value"`
}

// Equal compares identities. Ethereum addresses compare case-insensitively
// so that checksummed and lowercase forms match.
func (i Identity) Equal(o Identity) bool {
	if i.Type != o.Type {
		return false
	}
	if i.Type == IdentityTypeEthereumAddress {
		return strings.EqualFold(i.Value, o.Value)
	}
	return i.Value == o.Value
}

// IsZero reports whether the identity is unset.
func (i Identity) IsZero() bool {
	return i.Type == "" && i.Value == ""
}

// ToIR returns the identity as an IRObject.
func (i Identity) ToIR() IRObject {
	return IRObject{
		"type":  IRString(i.Type),
		"value": IRString(i.Value),
	}
}

// SignatureMethod names a signature scheme.
type SignatureMethod string

// SignatureMethodECDSA is secp256k1 ECDSA over keccak256, 65-byte [R||S||V].
const SignatureMethodECDSA SignatureMethod = "ecdsa"

// Signature is a hex encoded signature and the method that produced it.
type Signature struct {
	Method SignatureMethod `json:"method"`
	Value  string          `json:"value"`
}

// ToIR returns the signature as an IRObject.
func (s Signature) ToIR() IRObject {
	return IRObject{
		"method": IRString(s.Method),
		"value":  IRString(s.Value),
	}
}

// ActionName is the tag of a core action.
type ActionName string

// Core action names.
const (
	ActionCreate                 ActionName = "create"
	ActionAccept                 ActionName = "accept"
	ActionCancel                 ActionName = "cancel"
	ActionIncreaseExpectedAmount ActionName = "increaseExpectedAmount"
	ActionReduceExpectedAmount   ActionName = "reduceExpectedAmount"
	ActionAddExtensionsData      ActionName = "addExtensionsData"
	ActionApplyExtension         ActionName = "applyExtension"
)

// ValidActionNames is the closed set of core action names.
var ValidActionNames = map[ActionName]bool{
	ActionCreate:                 true,
	ActionAccept:                 true,
	ActionCancel:                 true,
	ActionIncreaseExpectedAmount: true,
	ActionReduceExpectedAmount:   true,
	ActionAddExtensionsData:      true,
	ActionApplyExtension:         true,
}

// Action is a signed intent to transition a request.
type Action struct {
	Name       ActionName `json:"name"`
	Parameters IRObject   `json:"parameters"`
	Version    string     `json:"version"`
	Signer     Identity   `json:"signer"`
	Signature  Signature  `json:"signature"`
}

// Data returns the signed part of the action: {name, parameters, version}.
func (a Action) Data() IRObject {
	params := a.Parameters
	if params == nil {
		params = IRObject{}
	}
	return IRObject{
		"name":       IRString(a.Name),
		"parameters": params,
		"version":    IRString(a.Version),
	}
}

// ToIR returns the full wire form of the action.
func (a Action) ToIR() IRObject {
	return IRObject{
		"data":      a.Data(),
		"signer":    a.Signer.ToIR(),
		"signature": a.Signature.ToIR(),
	}
}

// ExtensionType groups extensions by purpose.
type ExtensionType string

// Extension types.
const (
	ExtensionTypeContentData    ExtensionType = "content-data"
	ExtensionTypePaymentNetwork ExtensionType = "payment-network"
)

// ExtensionAction is an extension-scoped action carried inside a core
// action's parameters.
type ExtensionAction struct {
	ID         string   `json:"id"`
	Action     string   `json:"action"`
	Parameters IRObject `json:"parameters"`
	Version    string   `json:"version"`
}

// ToIR returns the extension action as an IRObject.
func (e ExtensionAction) ToIR() IRObject {
	params := e.Parameters
	if params == nil {
		params = IRObject{}
	}
	return IRObject{
		"id":         IRString(e.ID),
		"action":     IRString(e.Action),
		"parameters": params,
		"version":    IRString(e.Version),
	}
}

// Clone returns a deep copy.
func (e ExtensionAction) Clone() ExtensionAction {
	e.Parameters = e.Parameters.Clone()
	return e
}

// ExtensionEvent records one action applied to an extension.
type ExtensionEvent struct {
	Name       string    `json:"name"`
	Parameters IRObject  `json:"parameters"`
	Timestamp  int64     `json:"timestamp"`
	From       *Identity `json:"from,omitempty"`
}

// ToIR returns the event as an IRObject.
func (e ExtensionEvent) ToIR() IRObject {
	params := e.Parameters
	if params == nil {
		params = IRObject{}
	}
	obj := IRObject{
		"name":       IRString(e.Name),
		"parameters": params,
		"timestamp":  IRInt(e.Timestamp),
	}
	if e.From != nil {
		obj["from"] = e.From.ToIR()
	}
	return obj
}

// ExtensionState is the sub-state one extension keeps inside a request.
type ExtensionState struct {
	ID      string           `json:"id"`
	Type    ExtensionType    `json:"type"`
	Version string           `json:"version"`
	Events  []ExtensionEvent `json:"events"`
	Values  IRObject         `json:"values"`
}

// Clone returns a deep copy.
func (s ExtensionState) Clone() ExtensionState {
	out := s
	out.Values = s.Values.Clone()
	if s.Events != nil {
		out.Events = make([]ExtensionEvent, len(s.Events))
		for i, ev := range s.Events {
			ev.Parameters = ev.Parameters.Clone()
			if ev.From != nil {
				from := *ev.From
				ev.From = &from
			}
			out.Events[i] = ev
		}
	}
	return out
}

// ToIR returns the state as an IRObject.
func (s ExtensionState) ToIR() IRObject {
	events := make(IRArray, len(s.Events))
	for i, ev := range s.Events {
		events[i] = ev.ToIR()
	}
	values := s.Values
	if values == nil {
		values = IRObject{}
	}
	return IRObject{
		"id":      IRString(s.ID),
		"type":    IRString(s.Type),
		"version": IRString(s.Version),
		"events":  events,
		"values":  values,
	}
}

// ExtensionsState maps extension id to its state.
type ExtensionsState map[string]ExtensionState

// Clone returns a deep copy. A nil map clones to an empty map.
func (e ExtensionsState) Clone() ExtensionsState {
	out := make(ExtensionsState, len(e))
	for id, st := range e {
		out[id] = st.Clone()
	}
	return out
}

// ToIR returns the map as an IRObject keyed by extension id.
func (e ExtensionsState) ToIR() IRObject {
	obj := make(IRObject, len(e))
	for id, st := range e {
		obj[id] = st.ToIR()
	}
	return obj
}

// State is the core lifecycle state of a request.
type State string

// Request states.
const (
	StateCreated   State = "created"
	StateAccepted  State = "accepted"
	StateCancelled State = "cancelled"
)

// EventStatus says what happened to an action during replay.
type EventStatus string

// Event statuses.
const (
	EventApplied   EventStatus = "applied"
	EventRejected  EventStatus = "rejected"
	EventMalformed EventStatus = "malformed"
)

// Event is one entry of a request's audit trail. Every action considered by
// replay produces exactly one event.
type Event struct {
	Name       string       `json:"name"`
	Status     EventStatus  `json:"status"`
	Parameters IRObject     `json:"parameters"`
	Actor      *Identity    `json:"actor,omitempty"`
	Timestamp  int64        `json:"timestamp"`
	ActionHash string       `json:"action_hash"`
	Reason     RejectReason `json:"reason,omitempty"`
	Message    string       `json:"message,omitempty"`
}

// Clone returns a deep copy.
func (e Event) Clone() Event {
	e.Parameters = e.Parameters.Clone()
	if e.Actor != nil {
		actor := *e.Actor
		e.Actor = &actor
	}
	return e
}

// ToIR returns the event as an IRObject.
func (e Event) ToIR() IRObject {
	params := e.Parameters
	if params == nil {
		params = IRObject{}
	}
	obj := IRObject{
		"name":        IRString(e.Name),
		"status":      IRString(e.Status),
		"parameters":  params,
		"timestamp":   IRInt(e.Timestamp),
		"action_hash": IRString(e.ActionHash),
	}
	if e.Actor != nil {
		obj["actor"] = e.Actor.ToIR()
	}
	if e.Reason != "" {
		obj["reason"] = IRString(e.Reason)
	}
	if e.Message != "" {
		obj["message"] = IRString(e.Message)
	}
	return obj
}

// LogEntry is one raw action as delivered by the action log, tagged with the
// log's logical timestamp.
type LogEntry struct {
	Data      []byte `json:"data"`
	Timestamp int64  `json:"timestamp"`
}
