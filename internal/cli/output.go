package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/roach88/reqlog/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected action, failed scenario or non-deterministic replay
	ExitCommandError = 2 // Command error (bad flags, database not found, etc.)
)

// Error codes reported in JSON responses.
const (
	CodeRejected         = "E_REJECTED"
	CodeNotFound         = "E_NOT_FOUND"
	CodeNondeterministic = "E_NONDETERMINISTIC"
	CodeTestFailed       = "E_TEST_FAILED"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E_REJECTED", "E_NOT_FOUND", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Request outputs a replayed request. JSON output carries the full request;
// text output is a summary with the event trail.
func (f *OutputFormatter) Request(req *ir.Request) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: req})
	}
	writeRequest(f.Writer, req, f.Verbose)
	return nil
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// writeRequest renders a request for humans. Verbose adds rejection
// messages and extension values.
func writeRequest(w io.Writer, req *ir.Request, verbose bool) {
	fmt.Fprintf(w, "Request %s\n", req.RequestID)
	fmt.Fprintf(w, "  State:    %s\n", req.State)
	fmt.Fprintf(w, "  Currency: %s\n", req.Currency)
	fmt.Fprintf(w, "  Amount:   %s\n", req.ExpectedAmount)
	if req.Payee != nil {
		fmt.Fprintf(w, "  Payee:    %s\n", req.Payee.Value)
	}
	if req.Payer != nil {
		fmt.Fprintf(w, "  Payer:    %s\n", req.Payer.Value)
	}

	if len(req.Extensions) > 0 {
		ids := make([]string, 0, len(req.Extensions))
		for id := range req.Extensions {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		fmt.Fprintf(w, "  Extensions:\n")
		for _, id := range ids {
			st := req.Extensions[id]
			fmt.Fprintf(w, "    %s@%s", id, st.Version)
			if verbose {
				if data, err := ir.MarshalCanonical(st.Values); err == nil {
					fmt.Fprintf(w, " %s", data)
				}
			}
			fmt.Fprintln(w)
		}
	}
	if len(req.ExtensionsData) > 0 {
		ids := make([]string, len(req.ExtensionsData))
		for i, ea := range req.ExtensionsData {
			ids[i] = ea.ID + "." + ea.Action
		}
		fmt.Fprintf(w, "  Unrecognized extension data: %s\n", strings.Join(ids, ", "))
	}

	fmt.Fprintf(w, "  Events:\n")
	for _, ev := range req.Events {
		name := ev.Name
		if name == "" {
			name = "(malformed)"
		}
		fmt.Fprintf(w, "    [%d] %s %s", ev.Timestamp, name, ev.Status)
		if ev.Reason != "" {
			fmt.Fprintf(w, " %s", ev.Reason)
		}
		if verbose && ev.Status != ir.EventApplied && ev.Message != "" {
			fmt.Fprintf(w, " (%s)", ev.Message)
		}
		fmt.Fprintln(w)
	}
}
