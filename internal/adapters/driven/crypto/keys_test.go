package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeys(t *testing.T) {
	master := bytes.Repeat([]byte("m"), 48)

	keys, err := DeriveKeys(master)
	require.NoError(t, err)
	assert.Len(t, keys.Encryption, KeySize)
	assert.Len(t, keys.StateSigning, 32)
	assert.NotEqual(t, keys.Encryption, keys.StateSigning)

	again, err := DeriveKeys(master)
	require.NoError(t, err)
	assert.Equal(t, keys.Encryption, again.Encryption, "derivation must be deterministic")

	other, err := DeriveKeys(bytes.Repeat([]byte("n"), 48))
	require.NoError(t, err)
	assert.NotEqual(t, keys.Encryption, other.Encryption)

	_, err = NewSecretEncryptor(keys.Encryption)
	assert.NoError(t, err)
}

func TestDeriveKeys_WeakMaster(t *testing.T) {
	_, err := DeriveKeys([]byte("short"))
	assert.True(t, errors.Is(err, ErrWeakMasterSecret))
}
