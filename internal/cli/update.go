package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/reqlog/internal/client"
	"github.com/roach88/reqlog/internal/ir"
	"github.com/roach88/reqlog/internal/signature"
)

// updateFunc appends one action to an existing request.
type updateFunc func(ctx context.Context, c *client.Client, signer signature.Signer, requestID string, args []string) (*ir.Request, error)

// newUpdateCommand builds a command that signs one action for the request
// named by its first argument.
func newUpdateCommand(rootOpts *RootOptions, use, short, long string, nargs int, fn updateFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long: long + `

Exit codes:
  0 - Action applied
  1 - Action rejected on replay, or request not found
  2 - Command error (bad flags, database not found, etc.)`,
		Args:          cobra.ExactArgs(nargs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := rootOpts.signer()
			if err != nil {
				return err
			}
			if !ir.IsRequestID(args[0]) {
				return NewExitError(ExitCommandError, "invalid request id "+args[0])
			}

			c, st, err := rootOpts.openClient()
			if err != nil {
				return err
			}
			defer st.Close()

			req, err := fn(cmd.Context(), c, signer, args[0], args[1:])
			return rootOpts.report(cmd, req, err)
		},
	}
}

// NewAcceptCommand creates the accept command.
func NewAcceptCommand(rootOpts *RootOptions) *cobra.Command {
	return newUpdateCommand(rootOpts, "accept <request-id>", "Accept a request",
		"Sign an accept with --key. Only the payee can accept, and only a created request.",
		1, func(ctx context.Context, c *client.Client, s signature.Signer, id string, _ []string) (*ir.Request, error) {
			return c.Accept(ctx, s, id)
		})
}

// NewCancelCommand creates the cancel command.
func NewCancelCommand(rootOpts *RootOptions) *cobra.Command {
	return newUpdateCommand(rootOpts, "cancel <request-id>", "Cancel a request",
		"Sign a cancel with --key. The payee or the payer can cancel a created request.",
		1, func(ctx context.Context, c *client.Client, s signature.Signer, id string, _ []string) (*ir.Request, error) {
			return c.Cancel(ctx, s, id)
		})
}

// NewIncreaseCommand creates the increase command.
func NewIncreaseCommand(rootOpts *RootOptions) *cobra.Command {
	return newUpdateCommand(rootOpts, "increase <request-id> <delta>", "Increase the expected amount",
		"Sign an increaseExpectedAmount with --key. Only the payer can increase.",
		2, func(ctx context.Context, c *client.Client, s signature.Signer, id string, args []string) (*ir.Request, error) {
			return c.IncreaseExpectedAmount(ctx, s, id, args[0])
		})
}

// NewReduceCommand creates the reduce command.
func NewReduceCommand(rootOpts *RootOptions) *cobra.Command {
	return newUpdateCommand(rootOpts, "reduce <request-id> <delta>", "Reduce the expected amount",
		"Sign a reduceExpectedAmount with --key. Only the payee can reduce, and never below zero.",
		2, func(ctx context.Context, c *client.Client, s signature.Signer, id string, args []string) (*ir.Request, error) {
			return c.ReduceExpectedAmount(ctx, s, id, args[0])
		})
}

// NewPaymentAddressCommand creates the payment-address command.
func NewPaymentAddressCommand(rootOpts *RootOptions) *cobra.Command {
	return newUpdateCommand(rootOpts, "payment-address <request-id> <network-id> <address>", "Declare the payee's payment address",
		"Apply addPaymentAddress to a payment network extension. Only the payee can declare it.",
		3, func(ctx context.Context, c *client.Client, s signature.Signer, id string, args []string) (*ir.Request, error) {
			return c.AddPaymentAddress(ctx, s, id, args[0], args[1])
		})
}

// NewRefundAddressCommand creates the refund-address command.
func NewRefundAddressCommand(rootOpts *RootOptions) *cobra.Command {
	return newUpdateCommand(rootOpts, "refund-address <request-id> <network-id> <address>", "Declare the payer's refund address",
		"Apply addRefundAddress to a payment network extension. Only the payer can declare it.",
		3, func(ctx context.Context, c *client.Client, s signature.Signer, id string, args []string) (*ir.Request, error) {
			return c.AddRefundAddress(ctx, s, id, args[0], args[1])
		})
}
