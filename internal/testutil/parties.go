// Package testutil provides deterministic keys, clocks, generators and
// action builders for tests.
package testutil

import (
	"testing"

	"github.com/roach88/reqlog/internal/signature"
)

// Well-known development keys. Their addresses are fixed, which keeps
// golden files stable.
const (
	PayeeKey      = "0x4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d"
	PayerKey      = "0x6cbed15c793ce57650b9877cf6fa156fbef513c4e6134f022a85b1ffdd59b2a1"
	ThirdPartyKey = "0x6370fd033278c143179d81c5526140625662b8daa446c22ee2d73db3707e620c"

	PayeeAddress      = "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1"
	PayerAddress      = "0xFFcf8FDEE72ac11b5c542428B35EEF5769C409f0"
	ThirdPartyAddress = "0x22d491Bde2303f2f43325b2108D26f1eAbA1e32b"
)

// Party names accepted by PartyKey.
var partyKeys = map[string]string{
	"payee":      PayeeKey,
	"payer":      PayerKey,
	"thirdParty": ThirdPartyKey,
}

// Signer parses a hex key, failing the test on error.
func Signer(t testing.TB, key string) *signature.EthereumSigner {
	t.Helper()
	s, err := signature.ParseEthereumSigner(key)
	if err != nil {
		t.Fatalf("parse signer: %v", err)
	}
	return s
}

// Payee returns the payee test signer.
func Payee(t testing.TB) *signature.EthereumSigner { return Signer(t, PayeeKey) }

// Payer returns the payer test signer.
func Payer(t testing.TB) *signature.EthereumSigner { return Signer(t, PayerKey) }

// ThirdParty returns a signer that is neither payee nor payer.
func ThirdParty(t testing.TB) *signature.EthereumSigner { return Signer(t, ThirdPartyKey) }

// PartyKey returns the key of a named party ("payee", "payer",
// "thirdParty").
func PartyKey(name string) (string, bool) {
	key, ok := partyKeys[name]
	return key, ok
}
