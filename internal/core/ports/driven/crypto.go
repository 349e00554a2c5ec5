package driven

import (
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// SecretCipher encrypts secrets at rest.
// Decrypt failures are reported as domain.ErrDecryption.
type SecretCipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
	EncryptString(plaintext string) ([]byte, error)
	DecryptString(ciphertext []byte) (string, error)
}

// StateCodec produces tamper-evident, timestamped state tokens.
type StateCodec interface {
	// Encode signs the payload.
	Encode(payload *domain.StatePayload) (string, error)

	// Decode verifies the token at now. Returns ErrStateExpired when the
	// token is past its expiry and ErrStateTampered when the integrity
	// check fails.
	Decode(token string, now time.Time) (*domain.StatePayload, error)
}

// PKCEGenerator creates verifier/challenge pairs.
type PKCEGenerator interface {
	Generate(method domain.PKCEMethod) (*domain.PKCEParams, error)
}
