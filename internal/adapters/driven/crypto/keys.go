package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MinMasterSecretSize is the shortest accepted master secret.
const MinMasterSecretSize = 32

// ErrWeakMasterSecret is returned when the master secret is too short.
var ErrWeakMasterSecret = errors.New("master secret must be at least 32 bytes")

const (
	infoEncryption   = "sercha-connect/secret-encryption/v1"
	infoStateSigning = "sercha-connect/state-signing/v1"
)

// Keys are independent subkeys derived from one master secret.
type Keys struct {
	Encryption   []byte
	StateSigning []byte
}

// DeriveKeys expands the master secret into the encryption key and the
// state token signing key with HKDF-SHA256.
func DeriveKeys(master []byte) (*Keys, error) {
	if len(master) < MinMasterSecretSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrWeakMasterSecret, len(master))
	}

	enc, err := expand(master, infoEncryption, KeySize)
	if err != nil {
		return nil, err
	}
	sig, err := expand(master, infoStateSigning, 32)
	if err != nil {
		return nil, err
	}
	return &Keys{Encryption: enc, StateSigning: sig}, nil
}

func expand(master []byte, info string, size int) ([]byte, error) {
	key := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", info, err)
	}
	return key, nil
}
