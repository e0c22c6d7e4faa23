// Package detect computes request balances from payment events observed on
// chain. It reads a request's payment network state and never writes to it.
package detect

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"slices"

	"github.com/roach88/reqlog/internal/extension/paymentnetwork"
	"github.com/roach88/reqlog/internal/ir"
)

// EventName distinguishes payments from refunds.
type EventName string

// Transfer event names.
const (
	EventPayment EventName = "payment"
	EventRefund  EventName = "refund"
)

// TransferEvent is one transfer carrying a payment reference.
type TransferEvent struct {
	Name      EventName
	Amount    string // decimal string
	To        string
	TxHash    string
	Timestamp int64
}

// Query selects transfer events. Chain and Contract are only set for
// networks that need them (native token).
type Query struct {
	Network          string
	Name             EventName
	PaymentReference string
	Address          string
	Chain            string
	Contract         string
}

// EventSource retrieves transfer events, typically from a chain indexer.
type EventSource interface {
	TransferEvents(ctx context.Context, q Query) ([]TransferEvent, error)
}

// BalanceErrorCode categorizes balance failures.
type BalanceErrorCode string

const (
	// ErrCodeWrongExtension: the request lacks the detector's extension.
	ErrCodeWrongExtension BalanceErrorCode = "WRONG_EXTENSION"

	// ErrCodeVersionNotSupported: no contract is known for the extension version.
	ErrCodeVersionNotSupported BalanceErrorCode = "VERSION_NOT_SUPPORTED"

	// ErrCodeNetworkNotSupported: no contract is known for the chain.
	ErrCodeNetworkNotSupported BalanceErrorCode = "NETWORK_NOT_SUPPORTED"
)

// BalanceError reports why a balance could not be computed.
type BalanceError struct {
	Code    BalanceErrorCode
	Message string
}

// Error implements the error interface.
func (e *BalanceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Balance is the outcome of a detection run.
type Balance struct {
	// Amount is payments minus refunds, as a decimal string. It can be
	// negative when refunds exceed payments.
	Amount string
	Events []TransferEvent
}

// ReferenceBasedDetector computes balances for one reference-based payment
// network.
type ReferenceBasedDetector struct {
	network string
	source  EventSource
	logger  *slog.Logger
}

// NewReferenceBasedDetector creates a detector for the payment network id.
func NewReferenceBasedDetector(network string, source EventSource, logger *slog.Logger) *ReferenceBasedDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReferenceBasedDetector{network: network, source: source, logger: logger}
}

// Balance sums payment events sent to the payment address and subtracts
// refund events sent to the refund address, both matched on the request's
// payment reference.
//
// A request without the detector's extension yields a *BalanceError with
// code WRONG_EXTENSION.
func (d *ReferenceBasedDetector) Balance(ctx context.Context, req *ir.Request) (Balance, error) {
	state, ok := req.Extensions[d.network]
	if !ok {
		return Balance{}, &BalanceError{
			Code:    ErrCodeWrongExtension,
			Message: fmt.Sprintf("the request does not have the extension: %s", d.network),
		}
	}
	values := paymentnetwork.ReadValues(state)

	base := Query{Network: d.network, PaymentReference: values.PaymentReference}
	if d.network == paymentnetwork.IDNativeToken {
		chain := values.PaymentNetworkName
		if !slices.Contains(paymentnetwork.NearNetworkNames, chain) {
			return Balance{}, &BalanceError{Code: ErrCodeNetworkNotSupported, Message: fmt.Sprintf("chain %q", chain)}
		}
		contract, err := paymentnetwork.NearContractName(chain, state.Version)
		if err != nil {
			return Balance{}, &BalanceError{Code: ErrCodeVersionNotSupported, Message: err.Error()}
		}
		base.Chain = chain
		base.Contract = contract
	}

	payments, err := d.extract(ctx, base, EventPayment, values.PaymentAddress)
	if err != nil {
		return Balance{}, err
	}
	refunds, err := d.extract(ctx, base, EventRefund, values.RefundAddress)
	if err != nil {
		return Balance{}, err
	}

	total := new(big.Int)
	events := make([]TransferEvent, 0, len(payments)+len(refunds))
	for _, ev := range payments {
		n, ok := new(big.Int).SetString(ev.Amount, 10)
		if !ok {
			return Balance{}, fmt.Errorf("payment %s: invalid amount %q", ev.TxHash, ev.Amount)
		}
		total.Add(total, n)
		events = append(events, ev)
	}
	for _, ev := range refunds {
		n, ok := new(big.Int).SetString(ev.Amount, 10)
		if !ok {
			return Balance{}, fmt.Errorf("refund %s: invalid amount %q", ev.TxHash, ev.Amount)
		}
		total.Sub(total, n)
		events = append(events, ev)
	}
	slices.SortStableFunc(events, func(a, b TransferEvent) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})

	d.logger.Debug("balance detected",
		"request_id", req.RequestID,
		"network", d.network,
		"balance", total.String(),
		"events", len(events),
	)
	return Balance{Amount: total.String(), Events: events}, nil
}

// extract returns no events when address is unset.
func (d *ReferenceBasedDetector) extract(ctx context.Context, base Query, name EventName, address string) ([]TransferEvent, error) {
	if address == "" {
		return nil, nil
	}
	q := base
	q.Name = name
	q.Address = address
	events, err := d.source.TransferEvents(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s events for %s: %w", name, d.network, err)
	}
	return events, nil
}
