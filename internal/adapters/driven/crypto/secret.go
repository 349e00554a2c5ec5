// Package crypto provides secret encryption, key derivation and PKCE
// generation for stored OAuth credentials.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

const (
	// secretVersion is the version byte for the encrypted blob format.
	secretVersion = 0x01

	// nonceSize is the AES-GCM nonce size (12 bytes is standard)
	nonceSize = 12

	// KeySize is the required key size for AES-256
	KeySize = 32

	// MaxPlaintextSize bounds a single secret.
	MaxPlaintextSize = 64 * 1024
)

var (
	// ErrInvalidKeySize is returned when the encryption key is not 32 bytes.
	ErrInvalidKeySize = errors.New("encryption key must be 32 bytes")

	// ErrPlaintextTooLarge is returned when a secret exceeds MaxPlaintextSize.
	ErrPlaintextTooLarge = errors.New("secret exceeds maximum size")
)

// Ensure SecretEncryptor implements SecretCipher
var _ driven.SecretCipher = (*SecretEncryptor)(nil)

// SecretEncryptor handles AES-256-GCM encryption/decryption of secrets.
// The encrypted format is: version(1) || nonce(12) || ciphertext(N)
type SecretEncryptor struct {
	gcm cipher.AEAD
}

// NewSecretEncryptor creates a new encryptor with the given 32-byte key.
func NewSecretEncryptor(key []byte) (*SecretEncryptor, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &SecretEncryptor{gcm: gcm}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (e *SecretEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext) > MaxPlaintextSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPlaintextTooLarge, len(plaintext))
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	// The version byte is authenticated as additional data.
	ciphertext := e.gcm.Seal(nil, nonce, plaintext, []byte{secretVersion})

	// Build blob: version || nonce || ciphertext
	blob := make([]byte, 1+nonceSize+len(ciphertext))
	blob[0] = secretVersion
	copy(blob[1:1+nonceSize], nonce)
	copy(blob[1+nonceSize:], ciphertext)

	return blob, nil
}

// Decrypt opens a blob produced by Encrypt. Every failure, including a
// truncated blob, an unknown version or a foreign key, is reported as
// domain.ErrDecryption.
func (e *SecretEncryptor) Decrypt(blob []byte) ([]byte, error) {
	minSize := 1 + nonceSize + e.gcm.Overhead()
	if len(blob) < minSize {
		return nil, fmt.Errorf("%w: blob is too small", domain.ErrDecryption)
	}

	if blob[0] != secretVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", domain.ErrDecryption, blob[0])
	}

	nonce := blob[1 : 1+nonceSize]
	plaintext, err := e.gcm.Open(nil, nonce, blob[1+nonceSize:], blob[:1])
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", domain.ErrDecryption)
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

// EncryptString encrypts a simple string value.
func (e *SecretEncryptor) EncryptString(s string) ([]byte, error) {
	return e.Encrypt([]byte(s))
}

// DecryptString decrypts a blob to a string.
func (e *SecretEncryptor) DecryptString(blob []byte) (string, error) {
	b, err := e.Decrypt(blob)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
