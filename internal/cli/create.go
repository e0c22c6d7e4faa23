package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/reqlog/internal/client"
	"github.com/roach88/reqlog/internal/codec"
	"github.com/roach88/reqlog/internal/ir"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Currency       string
	Amount         string
	Payee          string
	Payer          string
	Content        string // JSON object for the content-data extension
	PaymentNetwork string // payment network extension id
	PaymentAddress string
	RefundAddress  string
	NetworkName    string
	Topics         []string
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a payment request",
		Long: `Sign a create action with --key and append it to the action log.

The signer must be the payee or the payer. Without --payee, the signer is
the payee unless it is the --payer.

Exit codes:
  0 - Request created
  1 - The create was rejected on replay
  2 - Command error (bad flags, database not found, etc.)

Examples:
  reqlog create --currency BTC --amount 100000000 --payer 0xFFcf8FDEE72ac11b5c542428B35EEF5769C409f0
  reqlog create --currency DAI --amount 1000 --payer 0xFFcf... \
      --payment-network pn-erc20-proxy-contract --payment-address 0x90F8...
  reqlog create --currency BTC --amount 5 --content '{"reason":"consulting"}'`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Currency, "currency", "", "currency code (required)")
	cmd.Flags().StringVar(&opts.Amount, "amount", "", "expected amount as a decimal integer (required)")
	cmd.Flags().StringVar(&opts.Payee, "payee", "", "payee address")
	cmd.Flags().StringVar(&opts.Payer, "payer", "", "payer address")
	cmd.Flags().StringVar(&opts.Content, "content", "", "content data as a JSON object")
	cmd.Flags().StringVar(&opts.PaymentNetwork, "payment-network", "", "payment network extension id")
	cmd.Flags().StringVar(&opts.PaymentAddress, "payment-address", "", "payment address for the payment network")
	cmd.Flags().StringVar(&opts.RefundAddress, "refund-address", "", "refund address for the payment network")
	cmd.Flags().StringVar(&opts.NetworkName, "network-name", "", "chain name for payment networks that need one")
	cmd.Flags().StringSliceVar(&opts.Topics, "topic", nil, "extra index topic (repeatable)")
	_ = cmd.MarkFlagRequired("currency")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func runCreate(ctx context.Context, opts *CreateOptions, cmd *cobra.Command) error {
	signer, err := opts.signer()
	if err != nil {
		return err
	}

	params := client.CreateParams{
		Currency:       opts.Currency,
		ExpectedAmount: opts.Amount,
		Topics:         opts.Topics,
	}
	if opts.Payer != "" {
		if params.Payer, err = parseAddress("payer", opts.Payer); err != nil {
			return err
		}
	}
	self := signer.Identity()
	switch {
	case opts.Payee != "":
		if params.Payee, err = parseAddress("payee", opts.Payee); err != nil {
			return err
		}
	case params.Payer == nil || !params.Payer.Equal(self):
		params.Payee = &self
	}

	if opts.Content != "" {
		v, err := ir.UnmarshalIRValue([]byte(opts.Content))
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --content", err)
		}
		obj, ok := v.(ir.IRObject)
		if !ok {
			return NewExitError(ExitCommandError, "invalid --content: expected a JSON object")
		}
		params.ContentData = obj
	}

	if opts.PaymentNetwork != "" {
		params.PaymentNetwork = &client.PaymentNetwork{
			ID:                 opts.PaymentNetwork,
			PaymentAddress:     opts.PaymentAddress,
			RefundAddress:      opts.RefundAddress,
			PaymentNetworkName: opts.NetworkName,
		}
	} else if opts.PaymentAddress != "" || opts.RefundAddress != "" || opts.NetworkName != "" {
		return NewExitError(ExitCommandError, "--payment-address, --refund-address and --network-name require --payment-network")
	}

	c, st, err := opts.openClient()
	if err != nil {
		return err
	}
	defer st.Close()

	req, err := c.CreateRequest(ctx, signer, params)
	return opts.report(cmd, req, err)
}

// parseAddress turns an address flag into an identity.
func parseAddress(flag, addr string) (*ir.Identity, error) {
	id, err := codec.ParseIdentity(ir.Identity{Type: ir.IdentityTypeEthereumAddress, Value: addr}.ToIR())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --"+flag, err)
	}
	return &id, nil
}

// report prints the request an action produced, or why it had no effect.
func (o *RootOptions) report(cmd *cobra.Command, req *ir.Request, err error) error {
	f := o.formatter(cmd)

	var rejected *client.ActionRejectedError
	switch {
	case err == nil:
		return f.Request(req)
	case errors.As(err, &rejected):
		details := map[string]string{"reason": string(rejected.Event.Reason)}
		if req != nil {
			details["request_id"] = req.RequestID
		}
		if ferr := f.Error(CodeRejected, err.Error(), details); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitFailure, "action rejected", err)
	case errors.Is(err, client.ErrCreateRejected):
		if ferr := f.Error(CodeRejected, err.Error(), nil); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitFailure, "action rejected", err)
	case errors.Is(err, client.ErrRequestNotFound):
		if ferr := f.Error(CodeNotFound, err.Error(), nil); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitFailure, "request not found", err)
	default:
		return WrapExitError(ExitCommandError, "command failed", err)
	}
}
