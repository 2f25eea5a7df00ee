package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)
	t.Setenv("EXCHANGE_CREDENTIALS_KEY", key)

	plaintext := "upbit-access-key-value"

	encrypted, err := EncryptString(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, encrypted)

	decrypted, err := DecryptString(encrypted)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)
	t.Setenv("EXCHANGE_CREDENTIALS_KEY", key)

	first, err := EncryptString("same value")
	require.NoError(t, err)
	second, err := EncryptString("same value")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "nonce must differ per encryption")
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)
	t.Setenv("EXCHANGE_CREDENTIALS_KEY", key)

	encrypted, err := EncryptString("secret")
	require.NoError(t, err)

	otherKey, err := NewKey()
	require.NoError(t, err)
	t.Setenv("EXCHANGE_CREDENTIALS_KEY", otherKey)

	_, err = DecryptString(encrypted)
	require.Error(t, err)
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)
	t.Setenv("EXCHANGE_CREDENTIALS_KEY", key)

	_, err = DecryptString("not-base64!!!")
	require.Error(t, err)

	_, err = DecryptString("c2hvcnQ=")
	require.Error(t, err)
}

func TestEncryptWithoutKeyFails(t *testing.T) {
	t.Setenv("EXCHANGE_CREDENTIALS_KEY", "")

	_, err := EncryptString("secret")
	require.Error(t, err)
}
