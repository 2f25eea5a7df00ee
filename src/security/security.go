package security

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Exchange API credentials are stored encrypted at rest (environment, config
// files) and decrypted at startup with a key that lives only in the runtime
// environment. Ciphertext layout: base64(nonce || sealed).

func cipherFromKey() (cipher.AEAD, error) {
	config := GetConfig()
	if config.CredentialsKey == "" {
		return nil, errors.New("EXCHANGE_CREDENTIALS_KEY not set")
	}

	key, err := base64.StdEncoding.DecodeString(config.CredentialsKey)
	if err != nil {
		return nil, fmt.Errorf("credentials key is not valid base64: %w", err)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to build cipher: %w", err)
	}

	return aead, nil
}

// EncryptString seals a plaintext credential for storage.
func EncryptString(plaintext string) (string, error) {
	aead, err := cipherFromKey()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(append(nonce, sealed...)), nil
}

// DecryptString opens a credential sealed by EncryptString.
func DecryptString(ciphertext string) (string, error) {
	aead, err := cipherFromKey()
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("ciphertext is not valid base64: %w", err)
	}

	if len(raw) < aead.NonceSize() {
		return "", errors.New("ciphertext too short")
	}

	plaintext, err := aead.Open(nil, raw[:aead.NonceSize()], raw[aead.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential: %w", err)
	}

	return string(plaintext), nil
}

// NewKey generates a fresh random credentials key, base64 encoded.
func NewKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
