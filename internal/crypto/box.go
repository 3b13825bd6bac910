// Package crypto provides symmetric encryption for tokens at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/config"
)

// Box encrypts and decrypts short strings with AES-256-GCM. The key is
// derived from a process-wide secret; a fresh nonce is generated per call so
// equal plaintexts never produce equal ciphertexts.
type Box struct {
	aead cipher.AEAD
}

// New derives a 32-byte key from the secret and builds the AEAD.
func New(secret string) (*Box, error) {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &Box{aead: aead}, nil
}

// WarnIfDefaultKey logs a warning when the encryption secret is still the
// insecure development default. Startup continues either way.
func WarnIfDefaultKey(secret string, logger *zap.Logger) {
	if secret == config.DefaultEncryptionKey {
		logger.Warn("TOKEN_ENCRYPTION_KEY is the insecure default; set a real secret before production use")
	}
}

// Encrypt seals the plaintext and returns base64(nonce || ciphertext).
func (b *Box) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt is the inverse of Encrypt. Malformed or tampered input fails with
// an error rather than returning garbage.
func (b *Box) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(raw) < b.aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := raw[:b.aead.NonceSize()], raw[b.aead.NonceSize():]
	plain, err := b.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt token: %w", err)
	}
	return string(plain), nil
}
