package crypto

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

var testKey = []byte("01234567890123456789012345678901")

func TestSecretEncryptor_RoundTrip(t *testing.T) {
	encryptor, err := NewSecretEncryptor(testKey)
	if err != nil {
		t.Fatalf("NewSecretEncryptor: %v", err)
	}

	large := make([]byte, MaxPlaintextSize)
	if _, err := rand.Read(large); err != nil {
		t.Fatalf("rand: %v", err)
	}

	cases := map[string][]byte{
		"empty":  {},
		"token":  []byte("BQDx7-spotify-access-token"),
		"binary": {0x00, 0xff, 0x10, 0x00},
		"max":    large,
	}

	for name, plaintext := range cases {
		t.Run(name, func(t *testing.T) {
			blob, err := encryptor.Encrypt(plaintext)
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}
			if blob[0] != secretVersion {
				t.Errorf("version byte: got %d, want %d", blob[0], secretVersion)
			}

			got, err := encryptor.Decrypt(blob)
			if err != nil {
				t.Fatalf("Decrypt: %v", err)
			}
			if !bytes.Equal(got, plaintext) {
				t.Errorf("round trip mismatch for %s", name)
			}
		})
	}
}

func TestSecretEncryptor_TooLarge(t *testing.T) {
	encryptor, _ := NewSecretEncryptor(testKey)
	_, err := encryptor.Encrypt(make([]byte, MaxPlaintextSize+1))
	if !errors.Is(err, ErrPlaintextTooLarge) {
		t.Errorf("expected ErrPlaintextTooLarge, got %v", err)
	}
}

func TestSecretEncryptor_InvalidKeySize(t *testing.T) {
	tests := []struct {
		name string
		key  []byte
	}{
		{"empty", []byte{}},
		{"16 bytes", make([]byte, 16)},
		{"33 bytes", make([]byte, 33)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSecretEncryptor(tt.key)
			if !errors.Is(err, ErrInvalidKeySize) {
				t.Errorf("expected ErrInvalidKeySize, got %v", err)
			}
		})
	}
}

func TestSecretEncryptor_DecryptFailures(t *testing.T) {
	encryptor, _ := NewSecretEncryptor(testKey)
	blob, err := encryptor.EncryptString("secret")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}

	tampered := append([]byte(nil), blob...)
	tampered[len(tampered)-1] ^= 0xff

	badVersion := append([]byte(nil), blob...)
	badVersion[0] = 0x02

	otherKey, _ := NewSecretEncryptor([]byte("abcdefghijklmnopqrstuvwxyz012345"))

	tests := []struct {
		name string
		enc  *SecretEncryptor
		blob []byte
	}{
		{"nil", encryptor, nil},
		{"truncated", encryptor, blob[:5]},
		{"tampered", encryptor, tampered},
		{"unsupported version", encryptor, badVersion},
		{"foreign key", otherKey, blob},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.enc.Decrypt(tt.blob)
			if !errors.Is(err, domain.ErrDecryption) {
				t.Errorf("expected ErrDecryption, got %v", err)
			}
		})
	}
}

func TestSecretEncryptor_UniqueNonce(t *testing.T) {
	encryptor, _ := NewSecretEncryptor(testKey)

	blob1, _ := encryptor.EncryptString("same")
	blob2, _ := encryptor.EncryptString("same")
	if bytes.Equal(blob1, blob2) {
		t.Error("encrypting the same value twice should produce different blobs")
	}
}

func TestSecretEncryptor_StringHelpers(t *testing.T) {
	encryptor, _ := NewSecretEncryptor(testKey)

	blob, err := encryptor.EncryptString("gho_abc123")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	s, err := encryptor.DecryptString(blob)
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	if s != "gho_abc123" {
		t.Errorf("got %q, want %q", s, "gho_abc123")
	}
}
