package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainAction   = "reqlog/action/v1"
	DomainRequest  = "reqlog/request/v1"
	DomainIdentity = "reqlog/identity/v1"
	DomainRaw      = "reqlog/raw/v1"
)

// RequestIDPrefix marks the hash format of request ids ("01" = SHA-256 with
// domain separation). Ids are 66 characters: prefix + 64 hex digits.
const RequestIDPrefix = "01"

// PaymentReferenceLength is the number of trailing keccak bytes kept for a
// payment reference.
const PaymentReferenceLength = 8

// hashWithDomain computes SHA256(domain + 0x00 + data) as hex.
// The null byte keeps domain and data from running into each other.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ActionHash is the content hash of a canonically encoded signed action.
// The replay engine uses it as the ordering tie-break.
func ActionHash(canonicalAction []byte) string {
	return hashWithDomain(DomainAction, canonicalAction)
}

// RawHash identifies bytes that could not be decoded as an action.
func RawHash(data []byte) string {
	return hashWithDomain(DomainRaw, data)
}

// RequestID derives the request id from the signed payload of a create
// action. The same payload always yields the same id.
func RequestID(signedPayload []byte) string {
	return RequestIDPrefix + hashWithDomain(DomainRequest, signedPayload)
}

// IsRequestID reports whether s has the shape of a request id.
func IsRequestID(s string) bool {
	if len(s) != len(RequestIDPrefix)+sha256.Size*2 || !strings.HasPrefix(s, RequestIDPrefix) {
		return false
	}
	_, err := hex.DecodeString(s[len(RequestIDPrefix):])
	return err == nil
}

// IdentityTopic is the log topic under which every action involving an
// identity is indexed.
func IdentityTopic(id Identity) (string, error) {
	canonical, err := MarshalCanonical(id.ToIR())
	if err != nil {
		return "", fmt.Errorf("IdentityTopic: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainIdentity, canonical), nil
}

// PaymentReference computes the reference that chain detectors look for in
// payment transactions: the last 8 bytes of
// keccak256(lowercase(requestID + salt + info)), hex encoded.
// Reference-based payment networks store it with info = "".
func PaymentReference(requestID, salt, info string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(strings.ToLower(requestID + salt + info)))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[len(sum)-PaymentReferenceLength:])
}
