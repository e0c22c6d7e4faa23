package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/reqlog/internal/extension/paymentnetwork"
	"github.com/roach88/reqlog/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s", ev.Step, displayName(ev), ev.Status)
		if ev.Reason != "" {
			fmt.Fprintf(&buf, " %s", ev.Reason)
		}
		buf.WriteString("\n")
	}

	return buf.String()
}

func displayName(ev TraceEvent) string {
	if ev.Name == "" {
		return "(raw)"
	}
	return ev.Name
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	req := result.Request
	fail := func(expected, actual string) error {
		return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Trace: result.Trace}
	}

	if a.Type == AssertNoRequest {
		if req != nil {
			return fail("no request", fmt.Sprintf("request in state %s", req.State))
		}
		return nil
	}
	if req == nil {
		return fail(describe(a), "no request was created")
	}

	switch a.Type {
	case AssertState:
		if string(req.State) != a.Equals {
			return fail("state "+a.Equals, "state "+string(req.State))
		}
	case AssertExpectedAmount:
		if req.ExpectedAmount != a.Equals {
			return fail("expected amount "+a.Equals, "expected amount "+req.ExpectedAmount)
		}
	case AssertEventCount:
		if len(req.Events) != a.Count {
			return fail(fmt.Sprintf("%d events", a.Count), fmt.Sprintf("%d events", len(req.Events)))
		}
	case AssertEventStatuses:
		got := make([]string, len(req.Events))
		for i, ev := range req.Events {
			got[i] = string(ev.Status)
		}
		if !slices.Equal(got, a.Statuses) {
			return fail(fmt.Sprintf("statuses %v", a.Statuses), fmt.Sprintf("statuses %v", got))
		}
	case AssertExtensionValue:
		state, ok := req.Extensions[a.Extension]
		if !ok {
			return fail(describe(a), "extension "+a.Extension+" not present")
		}
		got, ok := state.Values.String(a.Key)
		if !ok {
			return fail(describe(a), fmt.Sprintf("%s has no string value %s", a.Extension, a.Key))
		}
		if got != a.Equals {
			return fail(describe(a), fmt.Sprintf("%s.%s = %q", a.Extension, a.Key, got))
		}
	case AssertPaymentReference:
		state, ok := req.Extensions[a.Extension]
		if !ok {
			return fail(describe(a), "extension "+a.Extension+" not present")
		}
		values := paymentnetwork.ReadValues(state)
		want := ir.PaymentReference(req.RequestID, values.Salt, "")
		if values.PaymentReference != want {
			return fail("payment reference "+want, "payment reference "+values.PaymentReference)
		}
	default:
		return fail(describe(a), "unknown assertion type")
	}
	return nil
}

func describe(a Assertion) string {
	switch a.Type {
	case AssertExtensionValue:
		return fmt.Sprintf("%s.%s = %q", a.Extension, a.Key, a.Equals)
	case AssertPaymentReference:
		return fmt.Sprintf("payment reference of %s derived from its salt", a.Extension)
	case AssertEventCount:
		return fmt.Sprintf("%d events", a.Count)
	case AssertEventStatuses:
		return fmt.Sprintf("statuses %v", a.Statuses)
	default:
		return fmt.Sprintf("%s %s", a.Type, a.Equals)
	}
}
