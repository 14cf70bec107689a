package secret

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrMalformed is returned when a sealed value cannot be decoded or
// authenticated.
var ErrMalformed = errors.New("secret: malformed ciphertext")

// Box seals short secrets (API keys) with XChaCha20-Poly1305. Sealed values
// are base64 of nonce || ciphertext.
type Box struct {
	aead cipher.AEAD
}

// NewBox creates a Box from a 32-byte key.
func NewBox(key []byte) (*Box, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("secret box: key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("secret box: create cipher: %w", err)
	}
	return &Box{aead: aead}, nil
}

// Seal encrypts plaintext. The userID is bound as associated data so a value
// sealed for one user cannot be opened for another.
func (b *Box) Seal(userID, plaintext string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize(), b.aead.NonceSize()+len(plaintext)+b.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secret seal: generate nonce: %w", err)
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), []byte(userID))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (b *Box) Open(userID, sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	n := b.aead.NonceSize()
	if len(data) < n+b.aead.Overhead() {
		return "", ErrMalformed
	}
	plaintext, err := b.aead.Open(nil, data[:n], data[n:], []byte(userID))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return string(plaintext), nil
}

// Sealer is what stores of user credentials depend on.
type Sealer interface {
	Seal(userID, plaintext string) (string, error)
	Open(userID, sealed string) (string, error)
}

// plain passes values through unchanged. Used when no key is configured.
type plain struct{}

func (plain) Seal(_, plaintext string) (string, error) { return plaintext, nil }
func (plain) Open(_, sealed string) (string, error)    { return sealed, nil }

// FromHex builds a Sealer from a 64-character hex key.
//
// An empty key disables encryption (development mode) and logs a warning;
// config validation rejects an empty key in production.
func FromHex(key string, logger zerolog.Logger) (Sealer, error) {
	if key == "" {
		logger.Warn().Msg("credential encryption disabled: CREDENTIAL_ENCRYPTION_KEY is not set")
		return plain{}, nil
	}
	raw, err := hex.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("CREDENTIAL_ENCRYPTION_KEY is not valid hex: %w", err)
	}
	if len(raw) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("CREDENTIAL_ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(raw))
	}
	box, err := NewBox(raw)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("credential encryption enabled")
	return box, nil
}
