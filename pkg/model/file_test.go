package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockbook/lbcore/pkg/crypto"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	uf := UnsignedFile{
		ID:     uuid.New(),
		Type:   Folder,
		Owner:  NewOwner(priv.Public()),
	}
	uf.Parent = uf.ID

	signed, err := Sign(uf, priv, 1000)
	require.NoError(t, err)

	owner, err := Verify(signed)
	require.NoError(t, err)
	assert.True(t, owner.Equal(NewOwner(priv.Public())))
}

func TestVerifyRejectsTamperedEnvelope(t *testing.T) {
	priv, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	uf := UnsignedFile{ID: uuid.New(), Type: Document, Owner: NewOwner(priv.Public())}
	signed, err := Sign(uf, priv, 1000)
	require.NoError(t, err)

	signed.TimestampedValue.Value.IsDeleted = true
	_, err = Verify(signed)
	assert.Error(t, err)
}

func TestEncryptNameRoundTripsViaHmac(t *testing.T) {
	key := crypto.NewFileKey()
	enc, err := EncryptName(key, "report.md")
	require.NoError(t, err)

	again, err := EncryptName(key, "report.md")
	require.NoError(t, err)
	assert.Equal(t, enc.Hmac, again.Hmac, "same name under same key must hash identically for lookup")
	assert.NotEqual(t, enc.Ciphertext, again.Ciphertext, "ciphertext still varies by nonce")

	other, err := EncryptName(key, "other.md")
	require.NoError(t, err)
	assert.NotEqual(t, enc.Hmac, other.Hmac)
}

func TestOwnerEquality(t *testing.T) {
	priv, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	other, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	a := NewOwner(priv.Public())
	b := NewOwner(priv.Public())
	c := NewOwner(other.Public())

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestIsRoot(t *testing.T) {
	id := uuid.New()
	root := UnsignedFile{ID: id, Parent: id}
	assert.True(t, root.IsRoot())

	child := UnsignedFile{ID: uuid.New(), Parent: id}
	assert.False(t, child.IsRoot())
}
