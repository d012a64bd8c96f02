// Package crypto seals secrets stored in the database, such as the AI API key
// held in system settings.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// sealedPrefix marks values produced by SecretBox.Seal.
const sealedPrefix = "enc:v1:"

var (
	// ErrInvalidKey is returned when the encryption key is empty.
	ErrInvalidKey = errors.New("invalid encryption key: must not be empty")
	// ErrDecryptionFailed is returned when the value was sealed with another key or was tampered with.
	ErrDecryptionFailed = errors.New("decryption failed: invalid ciphertext or wrong key")
)

// SecretBox seals strings with XChaCha20-Poly1305.
type SecretBox struct {
	aead cipher.AEAD
}

// NewSecretBox derives a 32-byte key from keyInput.
// A base64 value decoding to exactly 32 bytes (openssl rand -base64 32) is used
// as is; any other input is treated as a passphrase and stretched with HKDF-SHA256.
func NewSecretBox(keyInput string) (*SecretBox, error) {
	if keyInput == "" {
		return nil, ErrInvalidKey
	}

	key, err := deriveKey(keyInput)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &SecretBox{aead: aead}, nil
}

func deriveKey(keyInput string) ([]byte, error) {
	if decoded, err := base64.StdEncoding.DecodeString(keyInput); err == nil && len(decoded) == chacha20poly1305.KeySize {
		return decoded, nil
	}

	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, []byte(keyInput), nil, []byte("ekaya-sales settings secrets"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// Seal returns "enc:v1:" + base64(nonce || ciphertext). Empty input stays empty.
func (b *SecretBox) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Values without the sealed prefix are returned unchanged
// so rows written before encryption was configured stay readable.
func (b *SecretBox) Open(value string) (string, error) {
	if value == "" || !IsSealed(value) {
		return value, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrDecryptionFailed)
	}

	nonceSize := b.aead.NonceSize()
	if len(data) < nonceSize+b.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	plaintext, err := b.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecryptionFailed)
	}
	return string(plaintext), nil
}

// IsSealed reports whether value was produced by Seal.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}
