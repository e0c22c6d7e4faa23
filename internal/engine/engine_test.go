package engine

import (
	"bytes"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reqlog/internal/extension"
	"github.com/roach88/reqlog/internal/extension/contentdata"
	"github.com/roach88/reqlog/internal/ir"
	"github.com/roach88/reqlog/internal/logic"
	"github.com/roach88/reqlog/internal/signature"
	"github.com/roach88/reqlog/internal/testutil"
)

func quietEngine() *Engine {
	return NewDefault(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

// channel builds a log for one request created by the payee.
type channel struct {
	t         *testing.T
	payee     *signature.EthereumSigner
	payer     *signature.EthereumSigner
	create    ir.Action
	requestID string
	entries   []ir.LogEntry
	clock     *testutil.LogClock
}

func newChannel(t *testing.T, createParams func(ir.IRObject)) *channel {
	t.Helper()
	c := &channel{t: t, payee: testutil.Payee(t), payer: testutil.Payer(t), clock: testutil.NewLogClock()}
	params := testutil.CreateParams(c.payee.Identity(), c.payer.Identity(), "BTC", "100000000000")
	if createParams != nil {
		createParams(params)
	}
	c.create = testutil.Sign(t, c.payee, ir.ActionCreate, params)
	c.requestID = testutil.RequestID(t, c.create)
	return c
}

func (c *channel) add(ts int64, action ir.Action) *channel {
	c.entries = append(c.entries, ir.LogEntry{Data: testutil.Encode(c.t, action), Timestamp: c.clock.Observe(ts)})
	return c
}

// next appends action at the tick after the latest timestamp.
func (c *channel) next(action ir.Action) *channel {
	return c.add(c.clock.Next(), action)
}

func (c *channel) addRaw(ts int64, data string) *channel {
	c.entries = append(c.entries, ir.LogEntry{Data: []byte(data), Timestamp: ts})
	return c
}

func eventSummary(req *ir.Request) []string {
	out := make([]string, len(req.Events))
	for i, ev := range req.Events {
		out[i] = ev.Name + ":" + string(ev.Status)
	}
	return out
}

func TestReplay_Empty(t *testing.T) {
	req, err := quietEngine().Replay(nil)
	require.NoError(t, err)
	assert.Nil(t, req)
}

func TestReplay_WithoutCreate(t *testing.T) {
	c := newChannel(t, nil)
	c.add(1, testutil.Sign(t, c.payee, ir.ActionAccept, testutil.RefParams(c.requestID)))

	req, err := quietEngine().Replay(c.entries)
	require.NoError(t, err)
	assert.Nil(t, req)
}

func TestReplay_ContentDataRequest(t *testing.T) {
	content := ir.IRObject{"invoice": ir.IRString("2024-001")}
	c := newChannel(t, func(p ir.IRObject) {
		p["extensionsData"] = ir.IRArray{contentdata.CreateAction(content).ToIR()}
	})
	c.add(1, c.create)

	req, err := quietEngine().Replay(c.entries)
	require.NoError(t, err)
	require.NotNil(t, req)

	assert.Equal(t, c.requestID, req.RequestID)
	assert.Len(t, req.RequestID, 66)
	assert.Equal(t, ir.StateCreated, req.State)
	assert.Equal(t, "BTC", req.Currency)
	assert.Equal(t, "100000000000", req.ExpectedAmount)
	require.Contains(t, req.Extensions, contentdata.ID)
	assert.Equal(t, ir.IRValue(content), req.Extensions[contentdata.ID].Values["content"])
	assert.Equal(t, []string{"create:applied"}, eventSummary(req))
}

func TestReplay_RejectedActionsAreRecorded(t *testing.T) {
	c := newChannel(t, nil)
	c.add(1, c.create).
		add(2, testutil.Sign(t, c.payee, ir.ActionIncreaseExpectedAmount, testutil.DeltaParams(c.requestID, "5"))).
		add(3, testutil.Sign(t, c.payer, ir.ActionCancel, testutil.RefParams(c.requestID))).
		add(4, testutil.Sign(t, c.payee, ir.ActionAccept, testutil.RefParams(c.requestID)))

	req, err := quietEngine().Replay(c.entries)
	require.NoError(t, err)

	assert.Equal(t, ir.StateCancelled, req.State)
	assert.Equal(t, "100000000000", req.ExpectedAmount)
	assert.Equal(t, []string{
		"create:applied",
		"increaseExpectedAmount:rejected",
		"cancel:applied",
		"accept:rejected",
	}, eventSummary(req))
	assert.Equal(t, ir.ReasonUnauthorized, req.Events[1].Reason)
	assert.Equal(t, ir.ReasonInvalidTransition, req.Events[3].Reason)
	assert.Equal(t, int64(4), req.Events[3].Timestamp)
}

func TestReplay_UnknownExtensionIsRejectedNotFatal(t *testing.T) {
	c := newChannel(t, nil)
	ea := ir.ExtensionAction{ID: "unknownExtension", Action: "create", Parameters: ir.IRObject{}, Version: "0.1.0"}
	c.add(1, c.create).
		add(2, testutil.Sign(t, c.payee, ir.ActionApplyExtension, testutil.ApplyExtensionParams(c.requestID, ea))).
		add(3, testutil.Sign(t, c.payee, ir.ActionAccept, testutil.RefParams(c.requestID)))

	req, err := quietEngine().Replay(c.entries)
	require.NoError(t, err)

	assert.Equal(t, ir.StateAccepted, req.State)
	require.Len(t, req.Events, 3)
	assert.Equal(t, ir.EventRejected, req.Events[1].Status)
	assert.Equal(t, ir.ReasonExtensionNotRecognized, req.Events[1].Reason)
	assert.Equal(t, "extension not recognized, id: unknownExtension", req.Events[1].Message)
}

func TestReplay_MalformedEntries(t *testing.T) {
	c := newChannel(t, nil)
	c.add(2, c.create).
		addRaw(1, `{"data":{"name":"create"}`).
		addRaw(3, `{"data":{"name":"pay","parameters":{},"version":"2.0"},"signer":{},"signature":{}}`)

	req, err := quietEngine().Replay(c.entries)
	require.NoError(t, err)

	// The malformed entry before the create is buffered and prepended.
	assert.Equal(t, []string{":malformed", "create:applied", ":malformed"}, eventSummary(req))
	assert.Equal(t, ir.RawHash([]byte(`{"data":{"name":"create"}`)), req.Events[0].ActionHash)
	assert.Equal(t, int64(1), req.Events[0].Timestamp)
	assert.NotEmpty(t, req.Events[2].Message)
}

func TestReplay_EventsBeforeCreateArePrepended(t *testing.T) {
	c := newChannel(t, nil)
	c.add(1, testutil.Sign(t, c.payee, ir.ActionAccept, testutil.RefParams(c.requestID))).
		add(2, c.create)

	req, err := quietEngine().Replay(c.entries)
	require.NoError(t, err)

	assert.Equal(t, ir.StateCreated, req.State)
	assert.Equal(t, []string{"accept:rejected", "create:applied"}, eventSummary(req))
	assert.Equal(t, ir.ReasonInvalidTransition, req.Events[0].Reason)
}

func TestReplay_DuplicateEntriesAppliedOnce(t *testing.T) {
	c := newChannel(t, nil)
	increase := testutil.Sign(t, c.payer, ir.ActionIncreaseExpectedAmount, testutil.DeltaParams(c.requestID, "1"))
	c.add(1, c.create).add(2, increase).add(5, increase)

	req, err := quietEngine().Replay(c.entries)
	require.NoError(t, err)

	assert.Equal(t, "100000000001", req.ExpectedAmount)
	assert.Equal(t, []string{"create:applied", "increaseExpectedAmount:applied"}, eventSummary(req))
	assert.Equal(t, int64(2), req.Events[1].Timestamp)
}

func TestReplay_ReencodedSignatureIsNotASecondAction(t *testing.T) {
	c := newChannel(t, nil)
	increase := testutil.Sign(t, c.payer, ir.ActionIncreaseExpectedAmount, testutil.DeltaParams(c.requestID, "100"))

	raw, err := hexutil.Decode(increase.Signature.Value)
	require.NoError(t, err)
	raw[64] -= 27
	copied := increase
	copied.Signature.Value = hexutil.Encode(raw)
	require.NotEqual(t, testutil.Encode(t, increase), testutil.Encode(t, copied))

	c.add(1, c.create).add(2, increase).add(3, copied)

	req, err := quietEngine().Replay(c.entries)
	require.NoError(t, err)

	assert.Equal(t, "100000000100", req.ExpectedAmount)
	assert.Equal(t, []string{
		"create:applied",
		"increaseExpectedAmount:applied",
		"increaseExpectedAmount:rejected",
	}, eventSummary(req))
	assert.Equal(t, ir.ReasonUnauthorized, req.Events[2].Reason)
}

func TestReplayChannel_CreateForAnotherRequestIsRejected(t *testing.T) {
	c := newChannel(t, nil)
	third := testutil.ThirdParty(t)
	foreign := testutil.Sign(t, third, ir.ActionCreate, testutil.CreateParams(third.Identity(), c.payer.Identity(), "BTC", "1"))

	c.add(1, foreign).
		add(2, c.create).
		add(3, testutil.Sign(t, c.payer, ir.ActionIncreaseExpectedAmount, testutil.DeltaParams(c.requestID, "5")))

	req, err := quietEngine().ReplayChannel(c.requestID, c.entries)
	require.NoError(t, err)
	require.NotNil(t, req)

	assert.Equal(t, c.requestID, req.RequestID)
	assert.Equal(t, "100000000005", req.ExpectedAmount)
	assert.Equal(t, []string{"create:rejected", "create:applied", "increaseExpectedAmount:applied"}, eventSummary(req))
	assert.Equal(t, ir.ReasonInvalidParameters, req.Events[0].Reason)

	// Without the channel id the earliest create wins.
	plain, err := quietEngine().Replay(c.entries)
	require.NoError(t, err)
	assert.NotEqual(t, c.requestID, plain.RequestID)

	only, err := quietEngine().ReplayChannel(c.requestID, c.entries[:1])
	require.NoError(t, err)
	assert.Nil(t, only)
}

func TestReplay_SecondCreateIsDuplicate(t *testing.T) {
	c := newChannel(t, nil)
	other := testutil.Sign(t, c.payer, ir.ActionCreate,
		testutil.CreateParams(c.payee.Identity(), c.payer.Identity(), "EUR", "5"))
	c.add(1, c.create).add(2, other)

	req, err := quietEngine().Replay(c.entries)
	require.NoError(t, err)

	assert.Equal(t, c.requestID, req.RequestID)
	assert.Equal(t, ir.ReasonDuplicateCreate, req.Events[1].Reason)
}

func TestReplay_OrderIndependent(t *testing.T) {
	c := newChannel(t, nil)
	c.add(1, c.create).
		add(2, testutil.Sign(t, c.payer, ir.ActionIncreaseExpectedAmount, testutil.DeltaParams(c.requestID, "7"))).
		add(2, testutil.Sign(t, c.payee, ir.ActionAddExtensionsData, testutil.ExtensionsDataParams(c.requestID,
			contentdata.CreateAction(ir.IRObject{"memo": ir.IRString("tie")})))).
		add(3, testutil.Sign(t, c.payee, ir.ActionReduceExpectedAmount, testutil.DeltaParams(c.requestID, "3"))).
		addRaw(3, `not json`).
		// Accept and cancel tie; the content hash decides which one wins.
		add(4, testutil.Sign(t, c.payee, ir.ActionAccept, testutil.RefParams(c.requestID))).
		add(4, testutil.Sign(t, c.payer, ir.ActionCancel, testutil.RefParams(c.requestID)))

	e := quietEngine()
	want, err := e.Replay(c.entries)
	require.NoError(t, err)
	wantBytes, err := want.Canonical()
	require.NoError(t, err)
	assert.Equal(t, "100000000004", want.ExpectedAmount)
	assert.Len(t, want.Events, 7)

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 25; i++ {
		shuffled := slices.Clone(c.entries)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, err := e.Replay(shuffled)
		require.NoError(t, err)
		gotBytes, err := got.Canonical()
		require.NoError(t, err)
		require.Equal(t, string(wantBytes), string(gotBytes), "permutation %d", i)
	}
}

func TestReplay_DoesNotMutateEntries(t *testing.T) {
	c := newChannel(t, nil)
	c.add(3, c.create).add(1, testutil.Sign(t, c.payee, ir.ActionAccept, testutil.RefParams(c.requestID)))
	before := make([]ir.LogEntry, len(c.entries))
	for i, en := range c.entries {
		before[i] = ir.LogEntry{Data: bytes.Clone(en.Data), Timestamp: en.Timestamp}
	}

	_, err := quietEngine().Replay(c.entries)
	require.NoError(t, err)
	assert.Equal(t, before, c.entries)
}

func TestVerify(t *testing.T) {
	c := newChannel(t, nil)
	c.add(1, c.create).add(2, testutil.Sign(t, c.payee, ir.ActionAccept, testutil.RefParams(c.requestID)))

	req, err := quietEngine().Verify(c.entries)
	require.NoError(t, err)
	assert.Equal(t, ir.StateAccepted, req.State)

	req, err = quietEngine().Verify(nil)
	require.NoError(t, err)
	assert.Nil(t, req)
}

// brokenExtension returns state under the wrong id.
type brokenExtension struct{}

func (brokenExtension) ID() string             { return "broken" }
func (brokenExtension) Type() ir.ExtensionType { return ir.ExtensionTypeContentData }
func (brokenExtension) ApplyAction(*ir.ExtensionState, ir.ExtensionAction, *ir.Request, ir.Identity, int64) (ir.ExtensionState, error) {
	return ir.ExtensionState{ID: "someone-else"}, nil
}

func TestReplay_InvariantViolationAborts(t *testing.T) {
	registry := extension.NewRegistry()
	require.NoError(t, registry.Register(brokenExtension{}))
	e := New(logic.New(signature.NewMultiVerifier(), extension.NewDispatcher(registry)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	c := newChannel(t, nil)
	ea := ir.ExtensionAction{ID: "broken", Action: "x", Parameters: ir.IRObject{}, Version: "0.1.0"}
	c.add(1, c.create).add(2, testutil.Sign(t, c.payee, ir.ActionApplyExtension, testutil.ApplyExtensionParams(c.requestID, ea)))

	req, err := e.Replay(c.entries)
	require.Error(t, err)
	assert.Nil(t, req)
	assert.True(t, IsInvariantViolation(err))
	assert.True(t, ir.IsInvariantError(err))

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, c.requestID, re.RequestID)
}

func TestRuntimeError_Format(t *testing.T) {
	err := &RuntimeError{Code: ErrCodeNondeterministic, Message: "replays differ"}
	assert.Equal(t, "NONDETERMINISTIC_REPLAY: replays differ", err.Error())
	assert.True(t, IsNondeterministic(err))
	assert.False(t, IsInvariantViolation(err))

	err = &RuntimeError{Code: ErrCodeUnexpected, Message: "boom", RequestID: "01ab", ActionHash: "ah"}
	assert.Equal(t, "UNEXPECTED_ERROR: boom (request=01ab, action=ah)", err.Error())
}

func TestReplay_SequentialLog(t *testing.T) {
	c := newChannel(t, nil)
	c.next(c.create).
		next(testutil.Sign(t, c.payer, ir.ActionIncreaseExpectedAmount, testutil.DeltaParams(c.requestID, "7"))).
		next(testutil.Sign(t, c.payee, ir.ActionAccept, testutil.RefParams(c.requestID)))

	req, err := quietEngine().Replay(c.entries)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, ir.StateAccepted, req.State)
	assert.Equal(t, "100000000007", req.ExpectedAmount)
	assert.Equal(t, int64(1), req.Timestamp)
	assert.Equal(t, []string{"create:applied", "increaseExpectedAmount:applied", "accept:applied"}, eventSummary(req))
}
