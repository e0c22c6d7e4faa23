package harness

import "github.com/roach88/reqlog/internal/ir"

// TraceEvent is one replay event, tied back to the step that produced it.
type TraceEvent struct {
	// Step is the index of the scenario step, or -1 when no step matches.
	Step   int    `json:"step"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`

	// Message is the rejection text. Golden snapshots leave it out.
	Message string `json:"message,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace lists the request's events in replay order. When the log holds
	// no valid create it is empty.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Request is the replayed request, nil when none was created.
	Request *ir.Request `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// eventForStep returns the trace event a step produced.
func (r *Result) eventForStep(step int) (TraceEvent, bool) {
	for _, ev := range r.Trace {
		if ev.Step == step {
			return ev, true
		}
	}
	return TraceEvent{}, false
}
