// Package signature verifies and produces action signatures.
//
// The reducer only consumes the Verifier interface. EthereumVerifier checks
// secp256k1 ECDSA signatures over keccak256(payload) against an ethereum
// address identity; EthereumSigner produces them for the client, the CLI and
// tests.
package signature

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/roach88/reqlog/internal/ir"
)

// Sentinel errors for verification failures.
var (
	ErrInvalidSignature    = errors.New("signature does not match signer")
	ErrUnsupportedMethod   = errors.New("unsupported signature method")
	ErrUnsupportedIdentity = errors.New("unsupported identity type")
)

// Verifier checks that payload was signed by signer.
type Verifier interface {
	Verify(payload []byte, sig ir.Signature, signer ir.Identity) error
}

// Signer signs payloads as a fixed identity.
type Signer interface {
	Identity() ir.Identity
	Sign(payload []byte) (ir.Signature, error)
}

// EthereumVerifier verifies 65-byte [R || S || V] ECDSA signatures.
//
// Only the canonical encoding is accepted: lowercase 0x-prefixed hex, V of
// 27 or 28, and S in the lower half of the curve order. A signature has
// exactly one accepted wire form.
type EthereumVerifier struct{}

// Verify implements Verifier.
func (EthereumVerifier) Verify(payload []byte, sig ir.Signature, signer ir.Identity) error {
	if sig.Method != ir.SignatureMethodECDSA {
		return fmt.Errorf("%w: %q", ErrUnsupportedMethod, sig.Method)
	}
	if signer.Type != ir.IdentityTypeEthereumAddress {
		return fmt.Errorf("%w: %q", ErrUnsupportedIdentity, signer.Type)
	}
	raw, err := hexutil.Decode(sig.Value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(raw) != crypto.SignatureLength {
		return fmt.Errorf("%w: length %d", ErrInvalidSignature, len(raw))
	}
	if hexutil.Encode(raw) != sig.Value {
		return fmt.Errorf("%w: signature hex is not canonical", ErrInvalidSignature)
	}
	v := raw[crypto.RecoveryIDOffset]
	if v != 27 && v != 28 {
		return fmt.Errorf("%w: recovery byte %d, want 27 or 28", ErrInvalidSignature, v)
	}
	r := new(big.Int).SetBytes(raw[:32])
	sv := new(big.Int).SetBytes(raw[32:64])
	if !crypto.ValidateSignatureValues(v-27, r, sv, true) {
		return fmt.Errorf("%w: signature values out of range or S not canonical", ErrInvalidSignature)
	}
	rsv := make([]byte, crypto.SignatureLength)
	copy(rsv, raw)
	rsv[crypto.RecoveryIDOffset] = v - 27

	pub, err := crypto.SigToPub(crypto.Keccak256(payload), rsv)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	recovered := crypto.PubkeyToAddress(*pub)
	if !strings.EqualFold(recovered.Hex(), signer.Value) {
		return fmt.Errorf("%w: recovered %s", ErrInvalidSignature, recovered.Hex())
	}
	return nil
}

// MultiVerifier dispatches on the signature method.
type MultiVerifier struct {
	mu        sync.RWMutex
	verifiers map[ir.SignatureMethod]Verifier
}

// NewMultiVerifier creates a MultiVerifier with the ECDSA verifier
// registered.
func NewMultiVerifier() *MultiVerifier {
	return &MultiVerifier{
		verifiers: map[ir.SignatureMethod]Verifier{
			ir.SignatureMethodECDSA: EthereumVerifier{},
		},
	}
}

// Register adds or replaces the verifier for a method.
func (m *MultiVerifier) Register(method ir.SignatureMethod, v Verifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifiers[method] = v
}

// Verify implements Verifier.
func (m *MultiVerifier) Verify(payload []byte, sig ir.Signature, signer ir.Identity) error {
	m.mu.RLock()
	v, ok := m.verifiers[sig.Method]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedMethod, sig.Method)
	}
	return v.Verify(payload, sig, signer)
}

// EthereumSigner signs with a secp256k1 private key.
type EthereumSigner struct {
	key *ecdsa.PrivateKey
	id  ir.Identity
}

// NewEthereumSigner wraps a private key.
func NewEthereumSigner(key *ecdsa.PrivateKey) *EthereumSigner {
	return &EthereumSigner{
		key: key,
		id: ir.Identity{
			Type:  ir.IdentityTypeEthereumAddress,
			Value: crypto.PubkeyToAddress(key.PublicKey).Hex(),
		},
	}
}

// ParseEthereumSigner reads a hex private key, with or without 0x.
func ParseEthereumSigner(hexKey string) (*EthereumSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewEthereumSigner(key), nil
}

// GenerateEthereumSigner creates a signer with a fresh random key.
func GenerateEthereumSigner() (*EthereumSigner, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return NewEthereumSigner(key), nil
}

// Identity implements Signer.
func (s *EthereumSigner) Identity() ir.Identity {
	return s.id
}

// PrivateKeyHex returns the 0x-prefixed private key.
func (s *EthereumSigner) PrivateKeyHex() string {
	return hexutil.Encode(crypto.FromECDSA(s.key))
}

// Sign implements Signer. The recovery byte is written as 27/28.
func (s *EthereumSigner) Sign(payload []byte) (ir.Signature, error) {
	sig, err := crypto.Sign(crypto.Keccak256(payload), s.key)
	if err != nil {
		return ir.Signature{}, fmt.Errorf("sign: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return ir.Signature{Method: ir.SignatureMethodECDSA, Value: hexutil.Encode(sig)}, nil
}
