package engine

import (
	"bytes"
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/reqlog/internal/codec"
	"github.com/roach88/reqlog/internal/extension/builtin"
	"github.com/roach88/reqlog/internal/ir"
	"github.com/roach88/reqlog/internal/logic"
	"github.com/roach88/reqlog/internal/signature"
)

// Engine folds action logs into requests.
//
// Thread-safety: Engine holds no mutable state and is safe for concurrent
// use. Each Replay call works on its own copy of the entries.
type Engine struct {
	logic  *logic.Logic
	logger *slog.Logger
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLogger sets the logger used for per-action debug output.
//
// Default: slog.Default()
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an Engine that applies actions with l.
func New(l *logic.Logic, opts ...EngineOption) *Engine {
	e := &Engine{
		logic:  l,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewDefault creates an Engine with the ECDSA verifier and the built-in
// extensions.
func NewDefault(opts ...EngineOption) *Engine {
	return New(logic.New(signature.NewMultiVerifier(), builtin.Dispatcher()), opts...)
}

// entry is one decoded (or undecodable) log entry.
type entry struct {
	action    ir.Action
	decodeErr error
	hash      string
	timestamp int64
}

// Replay folds entries into a Request. It returns nil, nil when the log
// holds no valid create. The only errors are *RuntimeError values for
// invariant violations and unexpected reducer failures.
func (e *Engine) Replay(entries []ir.LogEntry) (*ir.Request, error) {
	return e.replay("", entries)
}

// ReplayChannel is Replay for the log stored under channelID. A create whose
// request id is not channelID is rejected with INVALID_PARAMETERS, so the
// result is either nil or the request channelID names.
func (e *Engine) ReplayChannel(channelID string, entries []ir.LogEntry) (*ir.Request, error) {
	return e.replay(channelID, entries)
}

func (e *Engine) replay(channelID string, entries []ir.LogEntry) (*ir.Request, error) {
	ordered := e.decodeAll(entries)

	var (
		req     *ir.Request
		pending []ir.Event
	)
	record := func(ev ir.Event) {
		if req == nil {
			pending = append(pending, ev)
			return
		}
		req.Events = append(req.Events, ev)
	}

	for _, en := range ordered {
		if en.decodeErr != nil {
			e.logger.Debug("malformed action",
				"hash", en.hash,
				"timestamp", en.timestamp,
				"error", en.decodeErr,
			)
			record(ir.Event{
				Status:     ir.EventMalformed,
				Parameters: ir.IRObject{},
				Timestamp:  en.timestamp,
				ActionHash: en.hash,
				Message:    en.decodeErr.Error(),
			})
			continue
		}

		e.logger.Debug("applying action",
			"name", en.action.Name,
			"hash", en.hash,
			"timestamp", en.timestamp,
		)
		var next *ir.Request
		err := checkChannel(channelID, en.action)
		if err == nil {
			next, err = e.logic.Apply(req, en.action, en.timestamp)
		}
		if err == nil {
			if req == nil && len(pending) > 0 {
				next.Events = append(pending, next.Events...)
				pending = nil
			}
			req = next
			continue
		}

		reason, ok := ir.RejectReasonOf(err)
		if !ok {
			requestID := ""
			if req != nil {
				requestID = req.RequestID
			}
			e.logger.Error("replay aborted",
				"name", en.action.Name,
				"hash", en.hash,
				"error", err,
			)
			return nil, newApplyError(requestID, en.hash, err)
		}
		e.logger.Debug("action rejected",
			"name", en.action.Name,
			"hash", en.hash,
			"reason", reason,
			"error", err,
		)
		actor := en.action.Signer
		record(ir.Event{
			Name:       string(en.action.Name),
			Status:     ir.EventRejected,
			Parameters: en.action.Parameters.Clone(),
			Actor:      &actor,
			Timestamp:  en.timestamp,
			ActionHash: en.hash,
			Reason:     reason,
			Message:    err.Error(),
		})
	}
	return req, nil
}

// checkChannel rejects a create that derives a request id other than
// channelID. An empty channelID accepts any create.
func checkChannel(channelID string, action ir.Action) error {
	if channelID == "" || action.Name != ir.ActionCreate {
		return nil
	}
	payload, err := codec.SignedPayload(action)
	if err != nil {
		return ir.Reject(ir.ReasonInvalidParameters, "create: %v", err)
	}
	if id := ir.RequestID(payload); id != channelID {
		return ir.Reject(ir.ReasonInvalidParameters, "create is for request %s, not %s", id, channelID)
	}
	return nil
}

// decodeAll decodes, deduplicates and orders entries.
func (e *Engine) decodeAll(entries []ir.LogEntry) []entry {
	out := make([]entry, 0, len(entries))
	for _, le := range entries {
		action, err := codec.Decode(le.Data)
		if err != nil {
			out = append(out, entry{decodeErr: err, hash: ir.RawHash(le.Data), timestamp: le.Timestamp})
			continue
		}
		hash, err := codec.ContentHash(action)
		if err != nil {
			out = append(out, entry{decodeErr: err, hash: ir.RawHash(le.Data), timestamp: le.Timestamp})
			continue
		}
		out = append(out, entry{action: action, hash: hash, timestamp: le.Timestamp})
	}

	slices.SortFunc(out, func(a, b entry) int {
		if c := cmp.Compare(a.timestamp, b.timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.hash, b.hash)
	})

	// The same action read twice keeps its earliest position.
	seen := make(map[string]bool, len(out))
	deduped := out[:0]
	for _, en := range out {
		if seen[en.hash] {
			continue
		}
		seen[en.hash] = true
		deduped = append(deduped, en)
	}
	return deduped
}

// Verify replays entries in the given order and in reverse order and checks
// that both runs produce identical canonical bytes.
func (e *Engine) Verify(entries []ir.LogEntry) (*ir.Request, error) {
	return e.verify("", entries)
}

// VerifyChannel is Verify with the create check of ReplayChannel.
func (e *Engine) VerifyChannel(channelID string, entries []ir.LogEntry) (*ir.Request, error) {
	return e.verify(channelID, entries)
}

func (e *Engine) verify(channelID string, entries []ir.LogEntry) (*ir.Request, error) {
	first, err := e.replay(channelID, entries)
	if err != nil {
		return nil, err
	}
	reversed := slices.Clone(entries)
	slices.Reverse(reversed)
	second, err := e.replay(channelID, reversed)
	if err != nil {
		return nil, err
	}

	a, err := canonicalOrNil(first)
	if err != nil {
		return nil, err
	}
	b, err := canonicalOrNil(second)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(a, b) {
		requestID := ""
		if first != nil {
			requestID = first.RequestID
		}
		return nil, &RuntimeError{
			Code:      ErrCodeNondeterministic,
			Message:   fmt.Sprintf("replays differ (%d vs %d bytes)", len(a), len(b)),
			RequestID: requestID,
		}
	}
	return first, nil
}

func canonicalOrNil(req *ir.Request) ([]byte, error) {
	if req == nil {
		return nil, nil
	}
	data, err := req.Canonical()
	if err != nil {
		return nil, fmt.Errorf("canonical request: %w", err)
	}
	return data, nil
}
