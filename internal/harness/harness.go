package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/reqlog/internal/codec"
	"github.com/roach88/reqlog/internal/engine"
	"github.com/roach88/reqlog/internal/ir"
	"github.com/roach88/reqlog/internal/signature"
	"github.com/roach88/reqlog/internal/store"
	"github.com/roach88/reqlog/internal/testutil"
)

// Harness is the scenario execution engine.
// Each Run gets its own in-memory store and signer cache.
type Harness struct {
	store   *store.Store
	engine  *engine.Engine
	signers map[string]*signature.EthereumSigner
	logger  *slog.Logger
}

// Option configures a run.
type Option func(*Harness)

// WithLogger sets the logger passed to the engine.
//
// Default: logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Create a fresh in-memory database
// 2. Sign every step and append it to the scenario's channel
// 3. Read the channel back and replay it
// 4. Check step expectations and assertions
//
// The error is non-nil only when the scenario could not be executed; failed
// expectations are reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:   st,
		signers: make(map[string]*signature.EthereumSigner),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.engine = engine.NewDefault(engine.WithLogger(h.logger))

	return h.run(context.Background(), scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	requestID, err := h.requestID(scenario.Steps)
	if err != nil {
		return nil, err
	}
	channel := requestID
	if channel == "" {
		channel = "scenario:" + scenario.Name
	}

	// Duplicate steps share a hash; the first one owns the event.
	stepByHash := make(map[string]int)
	for i, step := range scenario.Steps {
		data, err := h.encodeStep(step, requestID)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		conf, err := h.store.AppendAction(ctx, channel, data)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: append: %w", i, err)
		}
		if _, seen := stepByHash[conf.Hash]; !seen {
			stepByHash[conf.Hash] = i
		}
	}

	entries, err := h.store.GetActionsForChannel(ctx, channel)
	if err != nil {
		return nil, err
	}
	req, err := h.engine.Replay(entries)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	result := NewResult()
	result.Request = req
	if req != nil {
		for _, ev := range req.Events {
			step, ok := stepByHash[ev.ActionHash]
			if !ok {
				step = -1
			}
			result.Trace = append(result.Trace, TraceEvent{
				Step:    step,
				Name:    ev.Name,
				Status:  string(ev.Status),
				Reason:  string(ev.Reason),
				Message: ev.Message,
			})
		}
	}

	for i, step := range scenario.Steps {
		if step.Expect == nil {
			continue
		}
		if msg := checkExpect(result, i, step); msg != "" {
			result.AddError(msg)
		}
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// checkExpect compares a step's event with its expect clause.
func checkExpect(result *Result, index int, step Step) string {
	label := step.Action
	if label == "" {
		label = "raw"
	}
	ev, ok := result.eventForStep(index)
	if !ok {
		return fmt.Sprintf("steps[%d] (%s): expected %s, produced no event", index, label, step.Expect.Status)
	}
	if ev.Status != step.Expect.Status {
		return fmt.Sprintf("steps[%d] (%s): expected %s, got %s %s", index, label, step.Expect.Status, ev.Status, ev.Message)
	}
	if step.Expect.Reason != "" && ev.Reason != step.Expect.Reason {
		return fmt.Sprintf("steps[%d] (%s): expected reason %s, got %s", index, label, step.Expect.Reason, ev.Reason)
	}
	return ""
}

// requestID returns the id of the first create step, or "" without one.
func (h *Harness) requestID(steps []Step) (string, error) {
	for i, step := range steps {
		if step.Action != string(ir.ActionCreate) {
			continue
		}
		action, err := h.buildAction(step, "")
		if err != nil {
			return "", fmt.Errorf("steps[%d]: %w", i, err)
		}
		payload, err := codec.SignedPayload(action)
		if err != nil {
			return "", fmt.Errorf("steps[%d]: %w", i, err)
		}
		return ir.RequestID(payload), nil
	}
	return "", nil
}

func (h *Harness) encodeStep(step Step, requestID string) ([]byte, error) {
	if step.Raw != "" {
		return []byte(step.Raw), nil
	}
	action, err := h.buildAction(step, requestID)
	if err != nil {
		return nil, err
	}
	return codec.Encode(action)
}

// buildAction resolves party references and signs the step's action.
func (h *Harness) buildAction(step Step, requestID string) (ir.Action, error) {
	signer, err := h.signer(step.Signer)
	if err != nil {
		return ir.Action{}, err
	}

	resolved, err := h.resolve(step.Params)
	if err != nil {
		return ir.Action{}, err
	}
	value, err := ir.FromGo(resolved)
	if err != nil {
		return ir.Action{}, fmt.Errorf("params: %w", err)
	}
	params, ok := value.(ir.IRObject)
	if !ok {
		params = ir.IRObject{}
	}
	name := ir.ActionName(step.Action)
	if name != ir.ActionCreate && requestID != "" && !params.Has("requestId") {
		params["requestId"] = ir.IRString(requestID)
	}

	version := step.Version
	if version == "" {
		version = ir.ProtocolVersion
	}
	action := ir.Action{
		Name:       name,
		Parameters: params,
		Version:    version,
		Signer:     signer.Identity(),
	}
	payload, err := codec.SignedPayload(action)
	if err != nil {
		return ir.Action{}, err
	}
	sig, err := signer.Sign(payload)
	if err != nil {
		return ir.Action{}, err
	}
	action.Signature = sig
	return action, nil
}

func (h *Harness) signer(name string) (*signature.EthereumSigner, error) {
	if s, ok := h.signers[name]; ok {
		return s, nil
	}
	key, ok := testutil.PartyKey(name)
	if !ok {
		return nil, fmt.Errorf("unknown party %q", name)
	}
	s, err := signature.ParseEthereumSigner(key)
	if err != nil {
		return nil, err
	}
	h.signers[name] = s
	return s, nil
}

// resolve replaces "@party" and "@party.address" strings.
func (h *Harness) resolve(v any) (any, error) {
	switch val := v.(type) {
	case string:
		if !strings.HasPrefix(val, "@") {
			return val, nil
		}
		name, field, _ := strings.Cut(val[1:], ".")
		s, err := h.signer(name)
		if err != nil {
			return nil, err
		}
		switch field {
		case "":
			return s.Identity().ToIR(), nil
		case "address":
			return s.Identity().Value, nil
		default:
			return nil, fmt.Errorf("unknown party field %q in %q", field, val)
		}
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			r, err := h.resolve(elem)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			r, err := h.resolve(elem)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}
