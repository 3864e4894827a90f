package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	encrypted, err := Encrypt([]byte(`{"access_token":"secret"}`), key)
	require.NoError(t, err)
	assert.NotContains(t, encrypted, "secret")

	plaintext, err := Decrypt(encrypted, key)
	require.NoError(t, err)
	assert.Equal(t, `{"access_token":"secret"}`, plaintext)
}

func TestDecryptWrongKey(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	other := []byte("fedcba9876543210fedcba9876543210")

	encrypted, err := Encrypt([]byte("payload"), key)
	require.NoError(t, err)

	_, err = Decrypt(encrypted, other)
	assert.Error(t, err)
}

func TestDecryptShortCiphertext(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	_, err := Decrypt("YWJj", key)
	assert.Error(t, err)
}

func TestGenerateRandomKey(t *testing.T) {
	a, err := GenerateRandomKey(16)
	require.NoError(t, err)
	b, err := GenerateRandomKey(16)
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
