package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDShape(t *testing.T) {
	id := RequestID([]byte(`{"name":"create"}`))
	assert.Len(t, id, 66, "prefix + 64 hex characters")
	assert.True(t, strings.HasPrefix(id, RequestIDPrefix))
	assert.True(t, IsRequestID(id))
}

func TestRequestIDDeterminism(t *testing.T) {
	payload := []byte(`{"name":"create","parameters":{"currency":"BTC"},"version":"2.0"}`)
	assert.Equal(t, RequestID(payload), RequestID(payload))
	assert.NotEqual(t, RequestID(payload), RequestID([]byte(`{"name":"create"}`)))
}

func TestIsRequestID(t *testing.T) {
	assert.False(t, IsRequestID(""))
	assert.False(t, IsRequestID("02"+strings.Repeat("a", 64)))
	assert.False(t, IsRequestID("01"+strings.Repeat("z", 64)))
	assert.False(t, IsRequestID("01"+strings.Repeat("a", 63)))
	assert.True(t, IsRequestID("01"+strings.Repeat("a", 64)))
}

func TestDomainSeparationPreventsCrossTypeCollision(t *testing.T) {
	data := []byte(`{"id":"test"}`)
	action := ActionHash(data)
	raw := RawHash(data)
	request := RequestID(data)[len(RequestIDPrefix):]

	assert.NotEqual(t, action, raw)
	assert.NotEqual(t, action, request)
	assert.NotEqual(t, raw, request)
}

func TestHashWithDomainSeparator(t *testing.T) {
	// Without the null separator these two would hash the same bytes.
	assert.NotEqual(t, hashWithDomain("ab", []byte("c")), hashWithDomain("a", []byte("bc")))
}

func TestIdentityTopic(t *testing.T) {
	a := Identity{Type: IdentityTypeEthereumAddress, Value: "0x627306090abab3a6e1400e9345bc60c78a8bef57"}
	b := Identity{Type: IdentityTypeEthereumAddress, Value: "0x740fc87Bd3f41d07d23A01DEc90623eBC5fed9D6"}

	topicA, err := IdentityTopic(a)
	require.NoError(t, err)
	topicA2, err := IdentityTopic(a)
	require.NoError(t, err)
	topicB, err := IdentityTopic(b)
	require.NoError(t, err)

	assert.Equal(t, topicA, topicA2)
	assert.NotEqual(t, topicA, topicB)
	assert.Len(t, topicA, 64)
}

func TestPaymentReference(t *testing.T) {
	ref := PaymentReference("01aabb", "ea3bc7caf64110ca", "")
	assert.Len(t, ref, PaymentReferenceLength*2)
	assert.Equal(t, ref, PaymentReference("01AABB", "EA3BC7CAF64110CA", ""), "input is lowercased")
	assert.NotEqual(t, ref, PaymentReference("01aabb", "ea3bc7caf64110cb", ""))
	assert.NotEqual(t, ref, PaymentReference("01aabb", "ea3bc7caf64110ca", "0xabc"))
}
