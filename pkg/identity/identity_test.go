package identity

import (
	"path/filepath"
	"testing"

	"github.com/GauravPawar101/Validate-me/pkg/file"
	"github.com/GauravPawar101/Validate-me/pkg/signer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidatorIdentity_PersistsID tests that an assigned id survives a restart with the same key.
func TestValidatorIdentity_PersistsID(t *testing.T) {
	_, priv, err := signer.GenerateKeyPair()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "validator.json")
	fs := file.NewFileService()

	first, err := NewValidatorIdentity(priv, path, fs)
	require.NoError(t, err)
	require.NoError(t, first.LoadIdentity())
	assert.Empty(t, first.GetValidatorID())
	require.NoError(t, first.SaveValidatorID("val-1"))

	second, err := NewValidatorIdentity(priv, path, fs)
	require.NoError(t, err)
	require.NoError(t, second.LoadIdentity())
	assert.Equal(t, "val-1", second.GetValidatorID())

	_, other, err := signer.GenerateKeyPair()
	require.NoError(t, err)
	third, err := NewValidatorIdentity(other, path, fs)
	require.NoError(t, err)
	require.NoError(t, third.LoadIdentity())
	assert.Empty(t, third.GetValidatorID())
}

// TestValidatorIdentity_Sign tests that signatures verify against the derived public key.
func TestValidatorIdentity_Sign(t *testing.T) {
	pub, priv, err := signer.GenerateKeyPair()
	require.NoError(t, err)

	id, err := NewValidatorIdentity(priv, "", nil)
	require.NoError(t, err)
	assert.Equal(t, pub, id.PublicKey())
	require.NoError(t, id.LoadIdentity())
	require.NoError(t, id.SaveValidatorID("val-2"))
	assert.Equal(t, "val-2", id.GetValidatorID())

	sig, err := id.Sign([]byte("payload"))
	require.NoError(t, err)
	assert.True(t, signer.Verify(pub, []byte("payload"), sig))
}

// TestNewValidatorIdentity_BadKey tests that malformed key material is rejected.
func TestNewValidatorIdentity_BadKey(t *testing.T) {
	_, err := NewValidatorIdentity(signer.PrivateKey{1, 2, 3}, "", nil)
	assert.ErrorIs(t, err, signer.ErrInvalidKeyLength)
}
