// Package client builds, signs and appends request actions, and reads
// requests back by replaying their channel.
//
// A Client never computes request state itself: every call appends one
// signed action to the log and then replays the whole channel through the
// engine, so what it returns is exactly what any other reader would derive.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/reqlog/internal/codec"
	"github.com/roach88/reqlog/internal/engine"
	"github.com/roach88/reqlog/internal/ir"
	"github.com/roach88/reqlog/internal/signature"
	"github.com/roach88/reqlog/internal/store"
)

// ErrRequestNotFound is returned when a channel holds no valid create.
var ErrRequestNotFound = errors.New("request not found")

// ErrCreateRejected is returned when an appended create yields no request.
// A refused create leaves no request to carry the rejection event.
var ErrCreateRejected = errors.New("create rejected")

// ActionRejectedError reports that an appended action was refused on
// replay. The action stays in the log; the event says why it had no effect.
type ActionRejectedError struct {
	Event ir.Event
}

// Error implements the error interface.
func (e *ActionRejectedError) Error() string {
	if e.Event.Status == ir.EventMalformed {
		return fmt.Sprintf("action malformed: %s", e.Event.Message)
	}
	return fmt.Sprintf("action %s rejected: %s", e.Event.Name, e.Event.Message)
}

// Log is the subset of the action log store the client needs.
type Log interface {
	AppendAction(ctx context.Context, channelID string, data []byte, topics ...string) (store.Confirmation, error)
	GetActionsForChannel(ctx context.Context, channelID string) ([]ir.LogEntry, error)
	GetChannelsForTopic(ctx context.Context, topic string) ([]string, error)
}

// Client appends actions to a log and replays requests from it.
type Client struct {
	log    Log
	engine *engine.Engine
	gen    Generator
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithGenerator sets the source of salts and nonces.
//
// Default: UUIDv7Generator
func WithGenerator(g Generator) Option {
	return func(c *Client) {
		c.gen = g
	}
}

// WithLogger sets the client logger. The engine keeps its own logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithEngine replaces the default replay engine.
func WithEngine(e *engine.Engine) Option {
	return func(c *Client) {
		c.engine = e
	}
}

// New creates a client over log.
func New(log Log, opts ...Option) *Client {
	c := &Client{
		log:    log,
		gen:    UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.engine == nil {
		c.engine = engine.NewDefault(engine.WithLogger(c.logger))
	}
	return c
}

// FromRequestID replays the request's channel.
func (c *Client) FromRequestID(ctx context.Context, requestID string) (*ir.Request, error) {
	if !ir.IsRequestID(requestID) {
		return nil, fmt.Errorf("invalid request id %q", requestID)
	}
	req, err := c.replay(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
	}
	return req, nil
}

// replay reads the request's own channel. Topics only discover channels;
// entries indexed under requestID from other channels are not part of it.
func (c *Client) replay(ctx context.Context, requestID string) (*ir.Request, error) {
	entries, err := c.log.GetActionsForChannel(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("read request %s: %w", requestID, err)
	}
	req, err := c.engine.ReplayChannel(requestID, entries)
	if err != nil {
		return nil, fmt.Errorf("replay request %s: %w", requestID, err)
	}
	if req != nil && req.RequestID != requestID {
		return nil, fmt.Errorf("replay request %s: got request %s", requestID, req.RequestID)
	}
	return req, nil
}

// FromIdentity returns every request whose create named id as payee or
// payer, ordered by request id.
func (c *Client) FromIdentity(ctx context.Context, id ir.Identity) ([]*ir.Request, error) {
	topic, err := ir.IdentityTopic(id)
	if err != nil {
		return nil, err
	}
	channels, err := c.log.GetChannelsForTopic(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("read identity %s: %w", id.Value, err)
	}

	requests := make([]*ir.Request, 0, len(channels))
	for _, ch := range channels {
		req, err := c.FromRequestID(ctx, ch)
		if errors.Is(err, ErrRequestNotFound) {
			// Indexed under the identity but never validly created.
			continue
		}
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// submit signs and appends an action, then replays the channel and checks
// the action's fate.
func (c *Client) submit(ctx context.Context, signer signature.Signer, channelID string, name ir.ActionName, params ir.IRObject, topics ...string) (*ir.Request, error) {
	action, err := Sign(signer, name, params)
	if err != nil {
		return nil, err
	}
	data, err := codec.Encode(action)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	if channelID == "" {
		payload, err := codec.SignedPayload(action)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		channelID = ir.RequestID(payload)
	}

	conf, err := c.log.AppendAction(ctx, channelID, data, topics...)
	if err != nil {
		return nil, fmt.Errorf("append %s: %w", name, err)
	}
	c.logger.Info("action appended",
		"name", name,
		"request_id", channelID,
		"hash", conf.Hash,
		"timestamp", conf.Timestamp,
		"inserted", conf.Inserted,
	)

	req, err := c.replay(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		if name == ir.ActionCreate {
			return nil, fmt.Errorf("%w: %s", ErrCreateRejected, channelID)
		}
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, channelID)
	}
	for _, ev := range req.Events {
		if ev.ActionHash == conf.Hash && ev.Status != ir.EventApplied {
			return req, &ActionRejectedError{Event: ev}
		}
	}
	return req, nil
}

// Sign builds an action at the current protocol version and signs it.
func Sign(signer signature.Signer, name ir.ActionName, params ir.IRObject) (ir.Action, error) {
	action := ir.Action{
		Name:       name,
		Parameters: params,
		Version:    ir.ProtocolVersion,
		Signer:     signer.Identity(),
	}
	payload, err := codec.SignedPayload(action)
	if err != nil {
		return ir.Action{}, fmt.Errorf("sign %s: %w", name, err)
	}
	sig, err := signer.Sign(payload)
	if err != nil {
		return ir.Action{}, fmt.Errorf("sign %s: %w", name, err)
	}
	action.Signature = sig
	return action, nil
}
