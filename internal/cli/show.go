package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/reqlog/internal/ir"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Identity string // list requests of this address instead
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show [request-id]",
		Short: "Show a request",
		Long: `Replay a request from the action log and print it.

With --identity, print every request that names the address as payee or
payer.

Examples:
  reqlog show 01a3f...
  reqlog show --identity 0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Identity, "identity", "", "list requests of this address")

	return cmd
}

func runShow(opts *ShowOptions, args []string, cmd *cobra.Command) error {
	if (len(args) == 1) == (opts.Identity != "") {
		return NewExitError(ExitCommandError, "give either a request id or --identity")
	}

	c, st, err := opts.openClient()
	if err != nil {
		return err
	}
	defer st.Close()
	ctx := cmd.Context()

	if len(args) == 1 {
		req, err := c.FromRequestID(ctx, args[0])
		return opts.report(cmd, req, err)
	}

	id, err := parseAddress("identity", opts.Identity)
	if err != nil {
		return err
	}
	requests, err := c.FromIdentity(ctx, *id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read requests", err)
	}

	if opts.Format == "json" {
		if requests == nil {
			requests = []*ir.Request{}
		}
		return opts.formatter(cmd).Success(requests)
	}
	w := cmd.OutOrStdout()
	if len(requests) == 0 {
		fmt.Fprintf(w, "No requests found for %s.\n", id.Value)
		return nil
	}
	for i, req := range requests {
		if i > 0 {
			fmt.Fprintln(w)
		}
		writeRequest(w, req, opts.Verbose)
	}
	return nil
}
