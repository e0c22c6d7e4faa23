package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/reqlog/internal/engine"
	"github.com/roach88/reqlog/internal/ir"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	RequestID string // optional - one request only
}

// ReplayChannelResult holds the replay result for a single channel.
type ReplayChannelResult struct {
	ChannelID     string `json:"channel_id"`
	Entries       int    `json:"entries"`
	Found         bool   `json:"found"`
	State         string `json:"state,omitempty"`
	Applied       int    `json:"applied"`
	Rejected      int    `json:"rejected"`
	Malformed     int    `json:"malformed"`
	Deterministic bool   `json:"deterministic"`
	Error         string `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Channels         []ReplayChannelResult `json:"channels"`
	TotalChannels    int                   `json:"total_channels"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the action log and verify determinism",
		Long: `Replay every channel of the action log and verify determinism.

Each channel is replayed from its stored order and from the reverse order;
both must produce byte-identical requests. The command reports per-channel
event counts.

Exit codes:
  0 - All channels are deterministic
  1 - Determinism verification failed, or a replay hit an invariant violation
  2 - Command error (database not found, etc.)

Examples:
  reqlog replay --db ./reqlog.db
  reqlog replay --db ./reqlog.db --request 01a3f...
  reqlog replay --db ./reqlog.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RequestID, "request", "", "replay one request only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	var channels []string
	if opts.RequestID != "" {
		channels = []string{opts.RequestID}
	} else {
		channels, err = st.ListChannels(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list channels", err)
		}
	}

	if len(channels) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, ReplayResult{Channels: []ReplayChannelResult{}, AllDeterministic: true})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No requests found in database.")
		return nil
	}

	eng := engine.NewDefault(engine.WithLogger(opts.logger()))
	result := ReplayResult{
		Channels:         make([]ReplayChannelResult, 0, len(channels)),
		TotalChannels:    len(channels),
		AllDeterministic: true,
	}
	for _, ch := range channels {
		entries, err := st.GetActionsForChannel(ctx, ch)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read channel %s", ch), err)
		}
		cr := verifyChannel(eng, ch, entries)
		if !cr.Deterministic {
			result.AllDeterministic = false
		}
		result.Channels = append(result.Channels, cr)
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// verifyChannel replays one channel in both orders.
func verifyChannel(eng *engine.Engine, channelID string, entries []ir.LogEntry) ReplayChannelResult {
	cr := ReplayChannelResult{ChannelID: channelID, Entries: len(entries)}

	req, err := eng.VerifyChannel(channelID, entries)
	if err != nil {
		// Invariant violations abort a replay; treat them like divergence.
		cr.Error = err.Error()
		return cr
	}
	cr.Deterministic = true
	if req == nil {
		return cr
	}

	cr.Found = true
	cr.State = string(req.State)
	for _, ev := range req.Events {
		switch ev.Status {
		case ir.EventApplied:
			cr.Applied++
		case ir.EventRejected:
			cr.Rejected++
		case ir.EventMalformed:
			cr.Malformed++
		}
	}
	return cr
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    CodeNondeterministic,
			Message: "replay is not deterministic",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay is not deterministic")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	for _, cr := range result.Channels {
		mark := "✓"
		if !cr.Deterministic {
			mark = "✗"
		}
		switch {
		case cr.Error != "":
			fmt.Fprintf(w, "%s %s: %s\n", mark, cr.ChannelID, cr.Error)
		case !cr.Found:
			fmt.Fprintf(w, "%s %s: no valid create (%d entries)\n", mark, cr.ChannelID, cr.Entries)
		default:
			fmt.Fprintf(w, "%s %s: %s, %d applied, %d rejected, %d malformed\n",
				mark, cr.ChannelID, cr.State, cr.Applied, cr.Rejected, cr.Malformed)
		}
		if verbose {
			fmt.Fprintf(w, "    entries: %d\n", cr.Entries)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Replayed %d request(s).\n", result.TotalChannels)
	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay is not deterministic")
	}
	fmt.Fprintln(w, "✓ All replays deterministic")
	return nil
}
