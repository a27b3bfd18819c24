package encryption

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestSealOpen_RoundTrip(t *testing.T) {
	svc, err := NewService(testKey)
	require.NoError(t, err)

	payload := []byte("%PDF-1.4 lab results")
	sealed, err := svc.Seal(payload)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "lab results")

	opened, err := svc.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, payload, opened)
}

func TestSeal_UsesFreshNonce(t *testing.T) {
	svc, err := NewService(testKey)
	require.NoError(t, err)

	a, _ := svc.Seal([]byte("same"))
	b, _ := svc.Seal([]byte("same"))
	assert.NotEqual(t, a, b)
}

func TestOpen_RejectsTamperedAndShort(t *testing.T) {
	svc, err := NewService(testKey)
	require.NoError(t, err)

	sealed, _ := svc.Seal([]byte("x-ray"))
	sealed[len(sealed)-1] ^= 0xff
	_, err = svc.Open(sealed)
	assert.Error(t, err)

	_, err = svc.Open([]byte{1, 2})
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestOpen_DifferentKeyFails(t *testing.T) {
	a, _ := NewService(testKey)
	b, _ := NewService(strings.Repeat("ab", 32))

	sealed, _ := a.Seal([]byte("note"))
	_, err := b.Open(sealed)
	assert.Error(t, err)
}

func TestNewService_KeyValidation(t *testing.T) {
	_, err := NewService("not-hex")
	assert.Error(t, err)

	_, err = NewService("abcd")
	assert.Error(t, err)

	svc, err := NewService("")
	require.NoError(t, err)
	assert.NotNil(t, svc)
}
