package ir

import "fmt"

// Request is the canonical aggregate produced by replaying a channel.
type Request struct {
	RequestID      string            `json:"request_id"`
	Creator        Identity          `json:"creator"`
	Payee          *Identity         `json:"payee,omitempty"`
	Payer          *Identity         `json:"payer,omitempty"`
	Currency       string            `json:"currency"`
	ExpectedAmount string            `json:"expected_amount"` // decimal string, never float
	State          State             `json:"state"`
	Extensions     ExtensionsState   `json:"extensions"`
	ExtensionsData []ExtensionAction `json:"extensions_data"`
	Events         []Event           `json:"events"`
	Version        string            `json:"version"`
	Timestamp      int64             `json:"timestamp"` // logical timestamp of the create action
	Nonce          IRValue           `json:"-"`
}

// Clone returns a deep copy. Reducers clone the previous snapshot and edit
// the copy; the previous snapshot is history and is never written to.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	out := *r
	if r.Payee != nil {
		payee := *r.Payee
		out.Payee = &payee
	}
	if r.Payer != nil {
		payer := *r.Payer
		out.Payer = &payer
	}
	out.Extensions = r.Extensions.Clone()
	out.ExtensionsData = make([]ExtensionAction, len(r.ExtensionsData))
	for i, ea := range r.ExtensionsData {
		out.ExtensionsData[i] = ea.Clone()
	}
	out.Events = make([]Event, len(r.Events))
	for i, ev := range r.Events {
		out.Events[i] = ev.Clone()
	}
	out.Nonce = CloneValue(r.Nonce)
	return &out
}

// IsPayee reports whether id is the request's payee.
func (r *Request) IsPayee(id Identity) bool {
	return r.Payee != nil && r.Payee.Equal(id)
}

// IsPayer reports whether id is the request's payer.
func (r *Request) IsPayer(id Identity) bool {
	return r.Payer != nil && r.Payer.Equal(id)
}

// ToIR returns the request as an IRObject. Optional fields are omitted
// rather than written as null.
func (r *Request) ToIR() IRObject {
	extData := make(IRArray, len(r.ExtensionsData))
	for i, ea := range r.ExtensionsData {
		extData[i] = ea.ToIR()
	}
	events := make(IRArray, len(r.Events))
	for i, ev := range r.Events {
		events[i] = ev.ToIR()
	}
	obj := IRObject{
		"request_id":      IRString(r.RequestID),
		"creator":         r.Creator.ToIR(),
		"currency":        IRString(r.Currency),
		"expected_amount": IRString(r.ExpectedAmount),
		"state":           IRString(r.State),
		"extensions":      r.Extensions.ToIR(),
		"extensions_data": extData,
		"events":          events,
		"version":         IRString(r.Version),
		"timestamp":       IRInt(r.Timestamp),
	}
	if r.Payee != nil {
		obj["payee"] = r.Payee.ToIR()
	}
	if r.Payer != nil {
		obj["payer"] = r.Payer.ToIR()
	}
	if r.Nonce != nil {
		obj["nonce"] = r.Nonce
	}
	return obj
}

// Canonical returns the RFC 8785 encoding of the request. Two replays of the
// same action set produce byte-identical output.
func (r *Request) Canonical() ([]byte, error) {
	data, err := MarshalCanonical(r.ToIR())
	if err != nil {
		return nil, fmt.Errorf("canonical request %s: %w", r.RequestID, err)
	}
	return data, nil
}
