package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/reqlog/internal/client"
	"github.com/roach88/reqlog/internal/config"
	"github.com/roach88/reqlog/internal/signature"
	"github.com/roach88/reqlog/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	DB      string // action log path; REQLOG_DB when unset
	Key     string // hex signing key; REQLOG_PRIVATE_KEY when unset

	// Logger is set by the root command. Commands built on their own (in
	// tests) log nowhere.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the reqlog CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "reqlog",
		Short: "reqlog - payment requests from signed action logs",
		Long: `Create payment requests as signed actions in an append-only log and
read them back by replaying the log. Every reader that replays the same
actions derives the same request.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.applyConfig(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "path to SQLite action log (default $REQLOG_DB or reqlog.db)")
	cmd.PersistentFlags().StringVar(&opts.Key, "key", "", "hex private key used to sign (default $REQLOG_PRIVATE_KEY)")

	cmd.AddCommand(NewKeygenCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewAcceptCommand(opts))
	cmd.AddCommand(NewCancelCommand(opts))
	cmd.AddCommand(NewIncreaseCommand(opts))
	cmd.AddCommand(NewReduceCommand(opts))
	cmd.AddCommand(NewPaymentAddressCommand(opts))
	cmd.AddCommand(NewRefundAddressCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// applyConfig fills unset flags from the environment and builds the logger.
func (o *RootOptions) applyConfig(stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if o.DB == "" {
		o.DB = cfg.DB
	}
	if o.Key == "" {
		o.Key = cfg.PrivateKey
	}

	level, _ := cfg.Level()
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout(), Verbose: o.Verbose}
}

// openStore opens the action log named by --db.
func (o *RootOptions) openStore() (*store.Store, error) {
	if o.DB == "" {
		return nil, NewExitError(ExitCommandError, "no database: set --db or REQLOG_DB")
	}
	st, err := store.Open(o.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// openClient opens the action log and wraps it in a client.
func (o *RootOptions) openClient() (*client.Client, *store.Store, error) {
	st, err := o.openStore()
	if err != nil {
		return nil, nil, err
	}
	return client.New(st, client.WithLogger(o.logger())), st, nil
}

// signer parses --key.
func (o *RootOptions) signer() (*signature.EthereumSigner, error) {
	if o.Key == "" {
		return nil, NewExitError(ExitCommandError, "no signing key: set --key or REQLOG_PRIVATE_KEY")
	}
	s, err := signature.ParseEthereumSigner(o.Key)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid signing key", err)
	}
	return s, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
