package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapUnwrapAsymmetric(t *testing.T) {
	recipient, err := GeneratePrivateKey()
	require.NoError(t, err)
	fileKey := NewFileKey()

	wrapped, err := WrapAsymmetric(fileKey, recipient.Public())
	require.NoError(t, err)

	unwrapped, err := UnwrapAsymmetric(wrapped, recipient)
	require.NoError(t, err)
	assert.Equal(t, fileKey, unwrapped)
}

func TestUnwrapAsymmetricWrongKeyFails(t *testing.T) {
	recipient, err := GeneratePrivateKey()
	require.NoError(t, err)
	impostor, err := GeneratePrivateKey()
	require.NoError(t, err)
	fileKey := NewFileKey()

	wrapped, err := WrapAsymmetric(fileKey, recipient.Public())
	require.NoError(t, err)

	unwrapped, err := UnwrapAsymmetric(wrapped, impostor)
	if err == nil {
		assert.NotEqual(t, fileKey, unwrapped)
	}
}

func TestWrapUnwrapSymmetric(t *testing.T) {
	parentKey := NewFileKey()
	fileKey := NewFileKey()

	wrapped, err := WrapSymmetric(fileKey, parentKey)
	require.NoError(t, err)

	unwrapped, err := UnwrapSymmetric(wrapped, parentKey)
	require.NoError(t, err)
	assert.Equal(t, fileKey, unwrapped)
}

func TestUnwrapSymmetricWrongParentFails(t *testing.T) {
	parentKey := NewFileKey()
	wrongParent := NewFileKey()
	fileKey := NewFileKey()

	wrapped, err := WrapSymmetric(fileKey, parentKey)
	require.NoError(t, err)

	_, err = UnwrapSymmetric(wrapped, wrongParent)
	assert.Error(t, err)
}
