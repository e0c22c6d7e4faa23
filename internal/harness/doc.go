// Package harness runs replay scenarios against the engine.
//
// A scenario lists signed actions in log order, the outcome each one should
// have, and assertions on the request the log replays to. The harness signs
// every action with a well-known development key, appends it to a fresh
// in-memory store, reads the channel back and replays it.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: lifecycle
//	description: "Amount changes and acceptance"
//	steps:
//	  - action: create
//	    signer: payee
//	    params:
//	      currency: BTC
//	      expectedAmount: "100000000000"
//	      payee: "@payee"
//	      payer: "@payer"
//	      nonce: "0000000000000001"
//	  - action: accept
//	    signer: payee
//	    expect: { status: applied }
//	  - raw: "not an action"
//	    expect: { status: malformed }
//	assertions:
//	  - type: state
//	    equals: accepted
//
// Parties are named payee, payer and thirdParty. A string parameter
// "@payee" is replaced by the party's identity object and "@payee.address"
// by its address. Steps other than create get a requestId parameter for
// the scenario's request unless they set one.
//
// # Assertion Types
//
//   - state: the request state equals the given value
//   - expected_amount: the expected amount equals the given decimal string
//   - event_count: the request has exactly count events
//   - event_statuses: the event statuses, in order
//   - extension_value: values[key] of an extension equals the given string
//   - payment_reference: a payment network's reference matches its salt
//   - no_request: the log holds no valid create
//
// # Deterministic Testing
//
// Signatures are deterministic and the store clock starts at zero for each
// run, so a scenario always replays to the same request. Golden snapshots
// leave out the request id and put a placeholder in place of payment
// references, both of which change with the signed payload.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/lifecycle.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
