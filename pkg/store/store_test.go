package store

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockbook/lbcore/pkg/crypto"
	"github.com/lockbook/lbcore/pkg/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAccountSetGetClear(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.GetAccount()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetAccount([]byte(`{"user":"alice"}`)))
	raw, ok, err := s.GetAccount()
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"user":"alice"}`, string(raw))

	require.NoError(t, s.ClearAccount())
	_, ok, err = s.GetAccount()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRootSetGet(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.GetRoot()
	require.NoError(t, err)
	assert.False(t, ok)

	id := uuid.New()
	require.NoError(t, s.SetRoot(id))

	got, ok, err := s.GetRoot()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestLastSyncedDefaultsToZero(t *testing.T) {
	s := openTestStore(t)

	v, err := s.GetLastSynced()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)

	require.NoError(t, s.SetLastSynced(42))
	v, err = s.GetLastSynced()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v)
}

func TestSaveAndLoadTrees(t *testing.T) {
	s := openTestStore(t)

	priv, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	id := uuid.New()
	uf := model.UnsignedFile{ID: id, Parent: id, Type: model.Folder, Owner: model.NewOwner(priv.Public())}
	signed, err := model.Sign(uf, priv, 1000)
	require.NoError(t, err)

	base := map[uuid.UUID]model.SignedFile{id: signed}
	require.NoError(t, s.SaveTrees(base, nil))

	loadedBase, err := s.LoadBaseMetadata()
	require.NoError(t, err)
	assert.Len(t, loadedBase, 1)
	assert.Contains(t, loadedBase, id)

	loadedStaged, err := s.LoadLocalMetadata()
	require.NoError(t, err)
	assert.Empty(t, loadedStaged)
}

func TestSaveTreesReplacesWholesale(t *testing.T) {
	s := openTestStore(t)

	priv, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	first := uuid.New()
	uf := model.UnsignedFile{ID: first, Parent: first, Type: model.Folder, Owner: model.NewOwner(priv.Public())}
	signed, err := model.Sign(uf, priv, 1000)
	require.NoError(t, err)
	require.NoError(t, s.SaveTrees(map[uuid.UUID]model.SignedFile{first: signed}, nil))

	second := uuid.New()
	uf2 := model.UnsignedFile{ID: second, Parent: second, Type: model.Folder, Owner: model.NewOwner(priv.Public())}
	signed2, err := model.Sign(uf2, priv, 1001)
	require.NoError(t, err)
	require.NoError(t, s.SaveTrees(map[uuid.UUID]model.SignedFile{second: signed2}, nil))

	loaded, err := s.LoadBaseMetadata()
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
	assert.Contains(t, loaded, second)
	assert.NotContains(t, loaded, first)
}

func TestPubKeyLookupCache(t *testing.T) {
	s := openTestStore(t)

	priv, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	owner := model.NewOwner(priv.Public())

	_, ok, err := s.LookupUsername(owner)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.CachePubKey(owner, "bob"))
	name, ok, err := s.LookupUsername(owner)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bob", name)
}

func TestInstallationIDStable(t *testing.T) {
	s := openTestStore(t)

	first, err := s.InstallationID()
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := s.InstallationID()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
