package sync

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockbook/lbcore/pkg/account"
	"github.com/lockbook/lbcore/pkg/clock"
	"github.com/lockbook/lbcore/pkg/crypto"
	"github.com/lockbook/lbcore/pkg/model"
	"github.com/lockbook/lbcore/pkg/tree"
)

func newTestEngine(t *testing.T) (*Engine, account.Account) {
	t.Helper()
	acc, err := account.New("alice", "http://localhost")
	require.NoError(t, err)
	e := &Engine{Account: acc, Clock: clock.NewFake(1000)}
	return e, acc
}

func signFor(t *testing.T, acc account.Account, uf model.UnsignedFile, ts int64) model.SignedFile {
	t.Helper()
	signed, err := model.Sign(uf, acc.PrivateKey(), ts)
	require.NoError(t, err)
	return signed
}

func TestMergeFieldsParentLocalWinsWhenLocalMoved(t *testing.T) {
	e, acc := newTestEngine(t)
	id := uuid.New()
	oldParent, newParent, serverParent := uuid.New(), uuid.New(), uuid.New()
	owner := model.NewOwner(acc.PublicKey())

	base := signFor(t, acc, model.UnsignedFile{ID: id, Parent: oldParent, Type: model.Document, Owner: owner}, 1)
	local := signFor(t, acc, model.UnsignedFile{ID: id, Parent: newParent, Type: model.Document, Owner: owner}, 2)
	server := signFor(t, acc, model.UnsignedFile{ID: id, Parent: serverParent, Type: model.Document, Owner: owner}, 3)

	merged, conflict, err := e.mergeFields(base, local, server)
	require.NoError(t, err)
	assert.Nil(t, conflict)
	assert.Equal(t, newParent, merged.Unsigned().Parent, "local move must win when local changed parent")
}

func TestMergeFieldsParentServerWinsWhenLocalUnchanged(t *testing.T) {
	e, acc := newTestEngine(t)
	id := uuid.New()
	sharedParent, serverParent := uuid.New(), uuid.New()
	owner := model.NewOwner(acc.PublicKey())

	base := signFor(t, acc, model.UnsignedFile{ID: id, Parent: sharedParent, Type: model.Document, Owner: owner}, 1)
	local := signFor(t, acc, model.UnsignedFile{ID: id, Parent: sharedParent, Type: model.Document, Owner: owner}, 2)
	server := signFor(t, acc, model.UnsignedFile{ID: id, Parent: serverParent, Type: model.Document, Owner: owner}, 3)

	merged, conflict, err := e.mergeFields(base, local, server)
	require.NoError(t, err)
	assert.Nil(t, conflict)
	assert.Equal(t, serverParent, merged.Unsigned().Parent)
}

func TestMergeFieldsIsDeletedIsLogicalOr(t *testing.T) {
	e, acc := newTestEngine(t)
	id, parent := uuid.New(), uuid.New()
	owner := model.NewOwner(acc.PublicKey())

	base := signFor(t, acc, model.UnsignedFile{ID: id, Parent: parent, Type: model.Document, Owner: owner}, 1)
	local := signFor(t, acc, model.UnsignedFile{ID: id, Parent: parent, Type: model.Document, Owner: owner, IsDeleted: true}, 2)
	server := signFor(t, acc, model.UnsignedFile{ID: id, Parent: parent, Type: model.Document, Owner: owner}, 3)

	merged, _, err := e.mergeFields(base, local, server)
	require.NoError(t, err)
	assert.True(t, merged.Unsigned().IsDeleted)
}

func TestMergeFieldsUnionsAccessKeys(t *testing.T) {
	e, acc := newTestEngine(t)
	id, parent := uuid.New(), uuid.New()
	owner := model.NewOwner(acc.PublicKey())
	fileKey := crypto.NewFileKey()

	bobKey, err := crypto.WrapAsymmetric(fileKey, acc.PublicKey())
	require.NoError(t, err)
	carolKey, err := crypto.WrapAsymmetric(fileKey, acc.PublicKey())
	require.NoError(t, err)

	base := signFor(t, acc, model.UnsignedFile{ID: id, Parent: parent, Type: model.Document, Owner: owner}, 1)
	local := signFor(t, acc, model.UnsignedFile{
		ID: id, Parent: parent, Type: model.Document, Owner: owner,
		UserAccessKeys: map[string]model.WrappedKey{"bob": bobKey},
	}, 2)
	server := signFor(t, acc, model.UnsignedFile{
		ID: id, Parent: parent, Type: model.Document, Owner: owner,
		UserAccessKeys: map[string]model.WrappedKey{"carol": carolKey},
	}, 3)

	merged, _, err := e.mergeFields(base, local, server)
	require.NoError(t, err)
	keys := merged.Unsigned().UserAccessKeys
	assert.Contains(t, keys, "bob")
	assert.Contains(t, keys, "carol")
}

func TestMergeFieldsDocumentConflictOnBothSidesChanged(t *testing.T) {
	e, acc := newTestEngine(t)
	id, parent := uuid.New(), uuid.New()
	owner := model.NewOwner(acc.PublicKey())

	var baseHmac, localHmac, serverHmac [32]byte
	baseHmac[0], localHmac[0], serverHmac[0] = 1, 2, 3

	base := signFor(t, acc, model.UnsignedFile{ID: id, Parent: parent, Type: model.Document, Owner: owner, DocumentHmac: &baseHmac}, 1)
	local := signFor(t, acc, model.UnsignedFile{ID: id, Parent: parent, Type: model.Document, Owner: owner, DocumentHmac: &localHmac}, 2)
	server := signFor(t, acc, model.UnsignedFile{ID: id, Parent: parent, Type: model.Document, Owner: owner, DocumentHmac: &serverHmac}, 3)

	merged, conflict, err := e.mergeFields(base, local, server)
	require.NoError(t, err)
	require.NotNil(t, conflict, "divergent document content on both sides must raise a conflict")
	assert.Equal(t, localHmac, *merged.Unsigned().DocumentHmac, "local content wins at the original id")
	assert.Equal(t, id, conflict.id)
}

func TestMergeFieldsServerDocumentWinsWhenLocalUnchanged(t *testing.T) {
	e, acc := newTestEngine(t)
	id, parent := uuid.New(), uuid.New()
	owner := model.NewOwner(acc.PublicKey())

	var baseHmac, serverHmac [32]byte
	baseHmac[0], serverHmac[0] = 1, 3

	base := signFor(t, acc, model.UnsignedFile{ID: id, Parent: parent, Type: model.Document, Owner: owner, DocumentHmac: &baseHmac}, 1)
	local := signFor(t, acc, model.UnsignedFile{ID: id, Parent: parent, Type: model.Document, Owner: owner, DocumentHmac: &baseHmac}, 2)
	server := signFor(t, acc, model.UnsignedFile{ID: id, Parent: parent, Type: model.Document, Owner: owner, DocumentHmac: &serverHmac}, 3)

	merged, conflict, err := e.mergeFields(base, local, server)
	require.NoError(t, err)
	assert.Nil(t, conflict)
	assert.Equal(t, serverHmac, *merged.Unsigned().DocumentHmac)
}

func TestMergeOneInsertsUnknownServerFileDirectly(t *testing.T) {
	e, acc := newTestEngine(t)
	owner := model.NewOwner(acc.PublicKey())
	rootID := uuid.New()
	root := signFor(t, acc, model.UnsignedFile{ID: rootID, Parent: rootID, Type: model.Folder, Owner: owner}, 1)

	base := tree.NewMapTree(map[uuid.UUID]model.SignedFile{rootID: root})
	staged := tree.NewStagedTree(base)
	lazy := tree.NewLazyTree(staged, acc)

	newID := uuid.New()
	serverFile := signFor(t, acc, model.UnsignedFile{ID: newID, Parent: rootID, Type: model.Document, Owner: owner}, 2)

	require.NoError(t, e.mergeOne(lazy, staged, serverFile))

	found, err := staged.Find(newID)
	require.NoError(t, err)
	assert.Equal(t, newID, found.Unsigned().ID)
	_, stagedEntry := staged.Staged.MaybeFind(newID)
	assert.False(t, stagedEntry, "a file with no local staged edit goes straight to base")
}
