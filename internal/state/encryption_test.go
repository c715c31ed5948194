package state

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestEncryptRoundTrip(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, testKeyHex)

	plain := []byte(`{"version":1,"serial":2}`)
	sealed, err := Encrypt(plain)
	require.NoError(t, err)
	assert.True(t, IsEncrypted(sealed))
	assert.NotContains(t, string(sealed), "serial")

	opened, err := Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, plain, opened)
}

func TestEncryptNoKeyPassthrough(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "")

	plain := []byte(`{"version":1}`)
	out, err := Encrypt(plain)
	require.NoError(t, err)
	assert.Equal(t, plain, out)
	assert.False(t, IsEncrypted(out))

	opened, err := Decrypt(plain)
	require.NoError(t, err)
	assert.Equal(t, plain, opened)
}

func TestDecryptWithoutKeyFails(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, testKeyHex)
	sealed, err := Encrypt([]byte("secret"))
	require.NoError(t, err)

	t.Setenv(EncryptionKeyEnvVar, "")
	_, err = Decrypt(sealed)
	assert.ErrorContains(t, err, "PICKET_STATE_KEY is not set")
}

func TestDecryptWrongKey(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, testKeyHex)
	sealed, err := Encrypt([]byte("secret"))
	require.NoError(t, err)

	t.Setenv(EncryptionKeyEnvVar, strings.Repeat("ff", 32))
	_, err = Decrypt(sealed)
	assert.ErrorContains(t, err, "failed to decrypt")
}

func TestEncryptMalformedKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{name: "too short", key: "abcdef"},
		{name: "not hex or base64", key: "zzzz!!!!"},
		{name: "wrong length hex", key: hex.EncodeToString([]byte("short"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EncryptionKeyEnvVar, tt.key)
			_, err := Encrypt([]byte("content"))
			assert.ErrorContains(t, err, "32 bytes")
		})
	}
}

func TestEncryptedStateUnreadableOnDisk(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, testKeyHex)
	sealed, err := Encrypt([]byte(`{"resources":[{"providerId":"vpc-123"}]}`))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(sealed), "# PICKET_ENCRYPTED_STATE v1\n"))
	assert.NotContains(t, string(sealed), "vpc-123")
}
