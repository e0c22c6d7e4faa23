package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/reqlog/internal/signature"
)

// KeyInfo is the output of keygen.
type KeyInfo struct {
	Address    string `json:"address"`
	PrivateKey string `json:"private_key"`
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key",
		Long: `Generate a secp256k1 key and print it with its ethereum address.

Export the key as REQLOG_PRIVATE_KEY or pass it with --key.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := signature.GenerateEthereumSigner()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to generate key", err)
			}
			info := KeyInfo{Address: s.Identity().Value, PrivateKey: s.PrivateKeyHex()}

			if rootOpts.Format == "json" {
				return rootOpts.formatter(cmd).Success(info)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Address:     %s\n", info.Address)
			fmt.Fprintf(w, "Private key: %s\n", info.PrivateKey)
			return nil
		},
	}
}
