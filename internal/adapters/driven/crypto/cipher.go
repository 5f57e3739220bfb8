// Package crypto provides the TokenCipher used to encrypt stored credentials.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
)

// Ensure Cipher implements the interface.
var _ driven.TokenCipher = (*Cipher)(nil)

// KeySize is the required key length in bytes.
const KeySize = chacha20poly1305.KeySize

// versionPrefix tags ciphertexts so a future key scheme can coexist.
const versionPrefix = "v1."

// ErrMissingKey is returned when no cipher key is configured.
var ErrMissingKey = errors.New("token cipher key is not configured")

// Cipher encrypts tokens with XChaCha20-Poly1305 under a single process-wide key.
type Cipher struct {
	aead cipher.AEAD
}

// New creates a cipher from a raw 32-byte key.
func New(key []byte) (*Cipher, error) {
	if len(key) == 0 {
		return nil, ErrMissingKey
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("token cipher key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// NewFromString creates a cipher from a base64-encoded key (standard or URL
// alphabet, padded or not).
func NewFromString(encoded string) (*Cipher, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ErrMissingKey
	}
	key, err := decodeKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode token cipher key: %w", err)
	}
	return New(key)
}

// GenerateKey returns a new random key, base64 encoded.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func decodeKey(s string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		key, err := enc.DecodeString(s)
		if err == nil {
			return key, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// Encrypt seals plaintext under a fresh random nonce.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return versionPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt. Any failure is a
// *domain.CredentialError; the input is never returned as plaintext.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, versionPrefix) {
		return "", &domain.CredentialError{Op: "decrypt", Err: errors.New("unrecognised ciphertext format")}
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(ciphertext, versionPrefix))
	if err != nil {
		return "", &domain.CredentialError{Op: "decrypt", Err: fmt.Errorf("decode ciphertext: %w", err)}
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return "", &domain.CredentialError{Op: "decrypt", Err: errors.New("ciphertext too short")}
	}
	plaintext, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", &domain.CredentialError{Op: "decrypt", Err: err}
	}
	return string(plaintext), nil
}
