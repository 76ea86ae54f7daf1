package docs

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertGetRoundTrip(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	id := uuid.New()
	var hmac [32]byte
	hmac[0] = 1
	ciphertext := []byte("encrypted bytes")

	require.NoError(t, s.Insert(id, hmac, ciphertext))

	got, err := s.Get(id, hmac)
	require.NoError(t, err)
	assert.Equal(t, ciphertext, got)
}

func TestGetMissingReturnsFileNonexistent(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(uuid.New(), [32]byte{})
	assert.Error(t, err)
}

func TestInsertNilIsNoOp(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	id := uuid.New()
	require.NoError(t, s.Insert(id, [32]byte{}, nil))

	_, ok, err := s.MaybeGet(id, [32]byte{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRetainDeletesUnreferencedBlobs(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	keep := uuid.New()
	var keepHmac [32]byte
	keepHmac[0] = 9
	require.NoError(t, s.Insert(keep, keepHmac, []byte("keep me")))

	drop := uuid.New()
	var dropHmac [32]byte
	dropHmac[0] = 7
	require.NoError(t, s.Insert(drop, dropHmac, []byte("drop me")))

	removed, err := s.Retain(map[Key]struct{}{{ID: keep, Hmac: keepHmac}: {}})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok, err := s.MaybeGet(keep, keepHmac)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = s.MaybeGet(drop, dropHmac)
	require.NoError(t, err)
	assert.False(t, ok)
}
