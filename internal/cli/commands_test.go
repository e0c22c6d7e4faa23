package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reqlog/internal/testutil"
)

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "reqlog.db")
}

// execute runs a standalone command and returns its stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

type jsonResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

func decodeResponse(t *testing.T, out string) jsonResponse {
	t.Helper()
	var resp jsonResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func decodeRequest(t *testing.T, out string) map[string]any {
	t.Helper()
	resp := decodeResponse(t, out)
	require.Equal(t, "ok", resp.Status, out)
	var req map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &req))
	return req
}

// createRequest creates a BTC request from payee to payer and returns its id.
func createRequest(t *testing.T, db string) string {
	t.Helper()
	opts := &RootOptions{Format: "json", DB: db, Key: testutil.PayeeKey}
	out, err := execute(NewCreateCommand(opts),
		"--currency", "BTC", "--amount", "100", "--payer", testutil.PayerAddress)
	require.NoError(t, err, out)
	req := decodeRequest(t, out)
	id, ok := req["request_id"].(string)
	require.True(t, ok)
	return id
}

func TestCreateCommand_JSON(t *testing.T) {
	db := tempDB(t)
	opts := &RootOptions{Format: "json", DB: db, Key: testutil.PayeeKey}

	out, err := execute(NewCreateCommand(opts),
		"--currency", "BTC", "--amount", "100", "--payer", testutil.PayerAddress,
		"--content", `{"reason":"consulting"}`)
	require.NoError(t, err, out)

	req := decodeRequest(t, out)
	assert.Equal(t, "created", req["state"])
	assert.Equal(t, "BTC", req["currency"])
	assert.Equal(t, "100", req["expected_amount"])
	assert.Len(t, req["request_id"], 66)

	exts, ok := req["extensions"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, exts, "content-data")
}

func TestCreateCommand_Text(t *testing.T) {
	db := tempDB(t)
	opts := &RootOptions{Format: "text", DB: db, Key: testutil.PayerKey}

	out, err := execute(NewCreateCommand(opts),
		"--currency", "BTC", "--amount", "5", "--payee", testutil.PayeeAddress)
	require.NoError(t, err)
	assert.Contains(t, out, "State:    created")
	assert.Contains(t, out, "Payee:    "+testutil.PayeeAddress)
	assert.Contains(t, out, "[1] create applied")
}

func TestCreateCommand_PaymentNetwork(t *testing.T) {
	db := tempDB(t)
	opts := &RootOptions{Format: "json", DB: db, Key: testutil.PayeeKey}

	out, err := execute(NewCreateCommand(opts),
		"--currency", "DAI", "--amount", "1000", "--payer", testutil.PayerAddress,
		"--payment-network", "pn-erc20-proxy-contract", "--payment-address", testutil.PayeeAddress)
	require.NoError(t, err, out)

	req := decodeRequest(t, out)
	exts := req["extensions"].(map[string]any)
	pn, ok := exts["pn-erc20-proxy-contract"].(map[string]any)
	require.True(t, ok, out)
	values := pn["values"].(map[string]any)
	assert.Equal(t, testutil.PayeeAddress, values["paymentAddress"])
}

func TestCreateCommand_RefundAddressBelongsToPayer(t *testing.T) {
	db := tempDB(t)
	payee := &RootOptions{Format: "json", DB: db, Key: testutil.PayeeKey}

	out, err := execute(NewCreateCommand(payee),
		"--currency", "DAI", "--amount", "1000", "--payer", testutil.PayerAddress,
		"--payment-network", "pn-erc20-proxy-contract", "--refund-address", testutil.PayeeAddress)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, CodeRejected, decodeResponse(t, out).Error.Code)

	payer := &RootOptions{Format: "json", DB: db, Key: testutil.PayerKey}
	out, err = execute(NewCreateCommand(payer),
		"--currency", "DAI", "--amount", "1000", "--payee", testutil.PayeeAddress,
		"--payment-network", "pn-erc20-proxy-contract", "--refund-address", testutil.PayerAddress)
	require.NoError(t, err, out)
	values := decodeRequest(t, out)["extensions"].(map[string]any)["pn-erc20-proxy-contract"].(map[string]any)["values"].(map[string]any)
	assert.Equal(t, testutil.PayerAddress, values["refundAddress"])
}

func TestCreateCommand_AddressWithoutNetwork(t *testing.T) {
	opts := &RootOptions{Format: "text", DB: tempDB(t), Key: testutil.PayeeKey}

	_, err := execute(NewCreateCommand(opts),
		"--currency", "BTC", "--amount", "5", "--payment-address", testutil.PayeeAddress)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "require --payment-network")
}

func TestCreateCommand_InvalidAddress(t *testing.T) {
	opts := &RootOptions{Format: "text", DB: tempDB(t), Key: testutil.PayeeKey}

	_, err := execute(NewCreateCommand(opts),
		"--currency", "BTC", "--amount", "5", "--payer", "not-an-address")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid --payer")
}

func TestCreateCommand_ContentMustBeObject(t *testing.T) {
	opts := &RootOptions{Format: "text", DB: tempDB(t), Key: testutil.PayeeKey}

	_, err := execute(NewCreateCommand(opts),
		"--currency", "BTC", "--amount", "5", "--content", `["a"]`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a JSON object")
}

func TestCreateCommand_SignerNotAParty(t *testing.T) {
	db := tempDB(t)
	opts := &RootOptions{Format: "json", DB: db, Key: testutil.ThirdPartyKey}

	out, err := execute(NewCreateCommand(opts),
		"--currency", "BTC", "--amount", "5", "--payee", testutil.PayeeAddress, "--payer", testutil.PayerAddress)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeRejected, resp.Error.Code)
}

func TestCreateCommand_MissingKey(t *testing.T) {
	opts := &RootOptions{Format: "text", DB: tempDB(t)}

	_, err := execute(NewCreateCommand(opts), "--currency", "BTC", "--amount", "5")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no signing key")
}

func TestCreateCommand_InvalidKey(t *testing.T) {
	opts := &RootOptions{Format: "text", DB: tempDB(t), Key: "0x1234"}

	_, err := execute(NewCreateCommand(opts), "--currency", "BTC", "--amount", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid signing key")
}

func TestCreateCommand_MissingDB(t *testing.T) {
	opts := &RootOptions{Format: "text", Key: testutil.PayeeKey}

	_, err := execute(NewCreateCommand(opts), "--currency", "BTC", "--amount", "5")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no database")
}

func TestAcceptCommand(t *testing.T) {
	db := tempDB(t)
	id := createRequest(t, db)

	opts := &RootOptions{Format: "json", DB: db, Key: testutil.PayeeKey}
	out, err := execute(NewAcceptCommand(opts), id)
	require.NoError(t, err, out)
	assert.Equal(t, "accepted", decodeRequest(t, out)["state"])
}

func TestAcceptCommand_RejectedForPayer(t *testing.T) {
	db := tempDB(t)
	id := createRequest(t, db)

	opts := &RootOptions{Format: "json", DB: db, Key: testutil.PayerKey}
	out, err := execute(NewAcceptCommand(opts), id)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeRejected, resp.Error.Code)
	details, ok := resp.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "UNAUTHORIZED", details["reason"])
	assert.Equal(t, id, details["request_id"])
}

func TestCancelCommand(t *testing.T) {
	db := tempDB(t)
	id := createRequest(t, db)

	opts := &RootOptions{Format: "json", DB: db, Key: testutil.PayerKey}
	out, err := execute(NewCancelCommand(opts), id)
	require.NoError(t, err, out)
	assert.Equal(t, "cancelled", decodeRequest(t, out)["state"])
}

func TestIncreaseAndReduceCommands(t *testing.T) {
	db := tempDB(t)
	id := createRequest(t, db)

	payer := &RootOptions{Format: "json", DB: db, Key: testutil.PayerKey}
	out, err := execute(NewIncreaseCommand(payer), id, "50")
	require.NoError(t, err, out)
	assert.Equal(t, "150", decodeRequest(t, out)["expected_amount"])

	payee := &RootOptions{Format: "json", DB: db, Key: testutil.PayeeKey}
	out, err = execute(NewReduceCommand(payee), id, "30")
	require.NoError(t, err, out)
	assert.Equal(t, "120", decodeRequest(t, out)["expected_amount"])

	out, err = execute(NewReduceCommand(payee), id, "500")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, CodeRejected, decodeResponse(t, out).Error.Code)
}

func TestPaymentAddressCommands(t *testing.T) {
	db := tempDB(t)
	creator := &RootOptions{Format: "json", DB: db, Key: testutil.PayeeKey}
	out, err := execute(NewCreateCommand(creator),
		"--currency", "DAI", "--amount", "1000", "--payer", testutil.PayerAddress,
		"--payment-network", "pn-erc20-proxy-contract")
	require.NoError(t, err, out)
	id := decodeRequest(t, out)["request_id"].(string)

	out, err = execute(NewPaymentAddressCommand(creator), id, "pn-erc20-proxy-contract", testutil.PayeeAddress)
	require.NoError(t, err, out)

	payer := &RootOptions{Format: "json", DB: db, Key: testutil.PayerKey}
	out, err = execute(NewRefundAddressCommand(payer), id, "pn-erc20-proxy-contract", testutil.PayerAddress)
	require.NoError(t, err, out)

	values := decodeRequest(t, out)["extensions"].(map[string]any)["pn-erc20-proxy-contract"].(map[string]any)["values"].(map[string]any)
	assert.Equal(t, testutil.PayeeAddress, values["paymentAddress"])
	assert.Equal(t, testutil.PayerAddress, values["refundAddress"])
}

func TestUpdateCommand_InvalidRequestID(t *testing.T) {
	opts := &RootOptions{Format: "text", DB: tempDB(t), Key: testutil.PayeeKey}

	_, err := execute(NewAcceptCommand(opts), "not-a-request")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid request id")
}

func TestUpdateCommand_UnknownRequest(t *testing.T) {
	opts := &RootOptions{Format: "json", DB: tempDB(t), Key: testutil.PayeeKey}
	missing := "01" + string(bytes.Repeat([]byte("a"), 64))

	out, err := execute(NewAcceptCommand(opts), missing)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, CodeNotFound, decodeResponse(t, out).Error.Code)
}

func TestShowCommand(t *testing.T) {
	db := tempDB(t)
	id := createRequest(t, db)

	opts := &RootOptions{Format: "text", DB: db}
	out, err := execute(NewShowCommand(opts), id)
	require.NoError(t, err)
	assert.Contains(t, out, "Request "+id)
	assert.Contains(t, out, "State:    created")
}

func TestShowCommand_Identity(t *testing.T) {
	db := tempDB(t)
	first := createRequest(t, db)
	second := createRequest(t, db)

	opts := &RootOptions{Format: "json", DB: db}
	out, err := execute(NewShowCommand(opts), "--identity", testutil.PayerAddress)
	require.NoError(t, err, out)

	var requests []map[string]any
	require.NoError(t, json.Unmarshal(decodeResponse(t, out).Data, &requests))
	require.Len(t, requests, 2)
	ids := []any{requests[0]["request_id"], requests[1]["request_id"]}
	assert.ElementsMatch(t, []any{first, second}, ids)
}

func TestShowCommand_IdentityNoRequests(t *testing.T) {
	opts := &RootOptions{Format: "text", DB: tempDB(t)}

	out, err := execute(NewShowCommand(opts), "--identity", testutil.ThirdPartyAddress)
	require.NoError(t, err)
	assert.Contains(t, out, "No requests found for "+testutil.ThirdPartyAddress)
}

func TestShowCommand_NeedsExactlyOneSelector(t *testing.T) {
	opts := &RootOptions{Format: "text", DB: tempDB(t)}

	_, err := execute(NewShowCommand(opts))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(NewShowCommand(opts), "01ab", "--identity", testutil.PayeeAddress)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "either a request id or --identity")
}

func TestKeygenCommand(t *testing.T) {
	opts := &RootOptions{Format: "json"}

	out, err := execute(NewKeygenCommand(opts))
	require.NoError(t, err)

	var info KeyInfo
	require.NoError(t, json.Unmarshal(decodeResponse(t, out).Data, &info))
	assert.Regexp(t, `^0x[0-9a-fA-F]{40}$`, info.Address)

	// The printed key must sign as the printed address.
	opts.Key = info.PrivateKey
	s, err := opts.signer()
	require.NoError(t, err)
	assert.Equal(t, info.Address, s.Identity().Value)
}

func TestKeygenCommand_Text(t *testing.T) {
	out, err := execute(NewKeygenCommand(&RootOptions{Format: "text"}))
	require.NoError(t, err)
	assert.Contains(t, out, "Address:     0x")
	assert.Contains(t, out, "Private key: 0x")
}

func TestReplayCommand_EmptyDatabase(t *testing.T) {
	opts := &RootOptions{Format: "text", DB: tempDB(t)}

	out, err := execute(NewReplayCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "No requests found in database.")
}

func TestReplayCommand_Deterministic(t *testing.T) {
	db := tempDB(t)
	id := createRequest(t, db)
	_, err := execute(NewAcceptCommand(&RootOptions{Format: "text", DB: db, Key: testutil.PayerKey}), id)
	require.Error(t, err) // rejected, but still logged

	opts := &RootOptions{Format: "text", DB: db}
	out, err := execute(NewReplayCommand(opts))
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ "+id+": created, 1 applied, 1 rejected, 0 malformed")
	assert.Contains(t, out, "✓ All replays deterministic")
}

func TestReplayCommand_JSON(t *testing.T) {
	db := tempDB(t)
	id := createRequest(t, db)

	opts := &RootOptions{Format: "json", DB: db}
	out, err := execute(NewReplayCommand(opts), "--request", id)
	require.NoError(t, err, out)

	var result ReplayResult
	require.NoError(t, json.Unmarshal(decodeResponse(t, out).Data, &result))
	assert.True(t, result.AllDeterministic)
	require.Len(t, result.Channels, 1)
	assert.Equal(t, id, result.Channels[0].ChannelID)
	assert.True(t, result.Channels[0].Found)
	assert.Equal(t, 1, result.Channels[0].Applied)
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(NewTestCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := execute(NewTestCommand(&RootOptions{Format: "text"}), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandRunsScenarios(t *testing.T) {
	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), "../harness/testdata/scenarios")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ lifecycle")
	assert.Contains(t, out, "Test Summary: 4 passed, 0 failed, 4 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	out, err := execute(NewTestCommand(&RootOptions{Format: "json"}),
		"../harness/testdata/scenarios", "--filter", "life*")
	require.NoError(t, err, out)

	var result TestResult
	require.NoError(t, json.Unmarshal(decodeResponse(t, out).Data, &result))
	require.Equal(t, 1, result.Total)
	assert.Equal(t, "lifecycle", result.Scenarios[0].Name)
	assert.True(t, result.Scenarios[0].Pass)
}

const scenarioTemplate = `name: %s
description: "A single create"
steps:
  - action: create
    signer: payee
    params:
      payee: "@payee"
      payer: "@payer"
      currency: BTC
      expectedAmount: "100"
      nonce: "0000000000000009"
assertions:
  - type: state
    equals: %s
`

func writeScenario(t *testing.T, dir, name, state string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data := fmt.Sprintf(scenarioTemplate, name, state)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(data), 0o644))
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scenarios")
	writeScenario(t, dir, "failing", "accepted")

	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ failing")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommandUpdateWritesGolden(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "scenarios")
	writeScenario(t, dir, "single", "created")

	_, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir, "--update")
	require.NoError(t, err)

	golden := filepath.Join(root, "golden", "single.golden")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"created"`)

	// The regenerated golden now matches.
	_, err = execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)

	// A drifted golden fails the run.
	require.NoError(t, os.WriteFile(golden, []byte("{}"), 0o644))
	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")
}
