// Package secrets seals credential material at rest. Ciphertexts carry a
// version prefix so the scheme can be rotated without rewriting every row.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const versionPrefix = "v1:"

var (
	ErrInvalidCiphertext = errors.New("invalid_ciphertext")
	ErrUnknownVersion    = errors.New("unknown_ciphertext_version")
)

// Sealer encrypts and decrypts short secrets with a process-wide key.
type Sealer struct {
	key []byte
}

// NewSealer derives a 256-bit key from the configured secret key material.
func NewSealer(secretKey string) (*Sealer, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, errors.New("empty_secret_key")
	}
	sum := sha256.Sum256([]byte(secretKey))
	return &Sealer{key: sum[:]}, nil
}

// Seal encrypts plaintext and returns a versioned, base64 ciphertext.
func (s *Sealer) Seal(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return versionPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a ciphertext produced by Seal. Ciphertexts without a known
// version prefix are rejected rather than guessed at.
func (s *Sealer) Open(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, versionPrefix) {
		return "", fmt.Errorf("%w: missing prefix", ErrUnknownVersion)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, versionPrefix))
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", ErrInvalidCiphertext
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plain), nil
}

// MaskString keeps the first and last four characters visible. Values too
// short to mask safely are fully redacted.
func MaskString(v string) string {
	if len(v) <= 8 {
		return "****"
	}
	return v[:4] + strings.Repeat("*", len(v)-8) + v[len(v)-4:]
}
