package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/reqlog/internal/extension/paymentnetwork"
	"github.com/roach88/reqlog/internal/ir"
)

// paymentReferencePlaceholder stands in for payment references, which
// depend on the request id.
const paymentReferencePlaceholder = "<payment_reference>"

// Snapshot returns the canonical JSON snapshot of a run: the trace without
// messages and a summary of the request. The request id is left out.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	trace := make(ir.IRArray, len(result.Trace))
	for i, ev := range result.Trace {
		obj := ir.IRObject{
			"step":   ir.IRInt(ev.Step),
			"status": ir.IRString(ev.Status),
		}
		if ev.Name != "" {
			obj["name"] = ir.IRString(ev.Name)
		}
		if ev.Reason != "" {
			obj["reason"] = ir.IRString(ev.Reason)
		}
		trace[i] = obj
	}

	snapshot := ir.IRObject{
		"scenario": ir.IRString(scenarioName),
		"trace":    trace,
	}
	if result.Request != nil {
		snapshot["request"] = summarizeRequest(result.Request)
	}
	return ir.MarshalCanonical(snapshot)
}

func summarizeRequest(req *ir.Request) ir.IRObject {
	exts := make(ir.IRObject, len(req.Extensions))
	for id, st := range req.Extensions {
		values := st.Values.Clone()
		if values == nil {
			values = ir.IRObject{}
		}
		if values.Has(paymentnetwork.KeyPaymentReference) {
			values[paymentnetwork.KeyPaymentReference] = ir.IRString(paymentReferencePlaceholder)
		}
		events := make(ir.IRArray, len(st.Events))
		for i, ev := range st.Events {
			events[i] = ir.IRString(ev.Name)
		}
		exts[id] = ir.IRObject{
			"type":    ir.IRString(st.Type),
			"version": ir.IRString(st.Version),
			"values":  values,
			"events":  events,
		}
	}

	extData := make(ir.IRArray, len(req.ExtensionsData))
	for i, ea := range req.ExtensionsData {
		extData[i] = ea.ToIR()
	}

	obj := ir.IRObject{
		"creator":         ir.IRString(req.Creator.Value),
		"currency":        ir.IRString(req.Currency),
		"expected_amount": ir.IRString(req.ExpectedAmount),
		"state":           ir.IRString(req.State),
		"timestamp":       ir.IRInt(req.Timestamp),
		"version":         ir.IRString(req.Version),
		"extensions":      exts,
		"extensions_data": extData,
	}
	if req.Payee != nil {
		obj["payee"] = ir.IRString(req.Payee.Value)
	}
	if req.Payer != nil {
		obj["payer"] = ir.IRString(req.Payer.Value)
	}
	return obj
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
