package tree_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockbook/lbcore/pkg/crypto"
	"github.com/lockbook/lbcore/pkg/model"
	"github.com/lockbook/lbcore/pkg/tree"
)

type testOwner struct {
	username string
	priv     crypto.PrivateKey
}

func (o testOwner) Username() string             { return o.username }
func (o testOwner) PrivateKey() crypto.PrivateKey { return o.priv }

func newTestOwner(t *testing.T, username string) testOwner {
	t.Helper()
	priv, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return testOwner{username: username, priv: priv}
}

func sign(t *testing.T, owner testOwner, uf model.UnsignedFile) model.SignedFile {
	t.Helper()
	signed, err := model.Sign(uf, owner.priv, 1000)
	require.NoError(t, err)
	return signed
}

// buildTree constructs a root folder with a "docs" subfolder containing a
// "notes.md" document, all owned by owner.
func buildTree(t *testing.T, owner testOwner) (*tree.LazyTree, uuid.UUID, uuid.UUID, uuid.UUID) {
	t.Helper()

	rootKey := crypto.NewFileKey()
	rootID := uuid.New()
	rootName, err := model.EncryptName(rootKey, owner.username)
	require.NoError(t, err)
	rootWrapped, err := crypto.WrapAsymmetric(rootKey, owner.priv.Public())
	require.NoError(t, err)
	root := model.UnsignedFile{
		ID:             rootID,
		Parent:         rootID,
		Type:           model.Folder,
		Name:           rootName,
		Owner:          model.NewOwner(owner.priv.Public()),
		UserAccessKeys: map[string]model.WrappedKey{owner.username: rootWrapped},
	}

	folderKey := crypto.NewFileKey()
	folderID := uuid.New()
	folderName, err := model.EncryptName(folderKey, "docs")
	require.NoError(t, err)
	folderWrapped, err := crypto.WrapSymmetric(folderKey, rootKey)
	require.NoError(t, err)
	folder := model.UnsignedFile{
		ID:              folderID,
		Parent:          rootID,
		Type:            model.Folder,
		Name:            folderName,
		Owner:           model.NewOwner(owner.priv.Public()),
		FolderAccessKey: &folderWrapped,
	}

	docKey := crypto.NewFileKey()
	docID := uuid.New()
	docName, err := model.EncryptName(docKey, "notes.md")
	require.NoError(t, err)
	docWrapped, err := crypto.WrapSymmetric(docKey, folderKey)
	require.NoError(t, err)
	doc := model.UnsignedFile{
		ID:              docID,
		Parent:          folderID,
		Type:            model.Document,
		Name:            docName,
		Owner:           model.NewOwner(owner.priv.Public()),
		FolderAccessKey: &docWrapped,
	}

	mt := tree.NewMapTree(map[uuid.UUID]model.SignedFile{
		rootID:   sign(t, owner, root),
		folderID: sign(t, owner, folder),
		docID:    sign(t, owner, doc),
	})
	return tree.NewLazyTree(mt, owner), rootID, folderID, docID
}

func TestLazyTreeDecryptsNamesAndPaths(t *testing.T) {
	owner := newTestOwner(t, "alice")
	lazy, rootID, folderID, docID := buildTree(t, owner)

	rootName, err := lazy.DecryptedName(rootID)
	require.NoError(t, err)
	assert.Equal(t, "alice", rootName)

	folderName, err := lazy.DecryptedName(folderID)
	require.NoError(t, err)
	assert.Equal(t, "docs", folderName)

	docPath, err := lazy.Path(docID)
	require.NoError(t, err)
	assert.Equal(t, "/docs/notes.md", docPath)
}

func TestLazyTreeCalculateDeletedPropagatesFromAncestor(t *testing.T) {
	owner := newTestOwner(t, "alice")
	lazy, _, folderID, docID := buildTree(t, owner)

	deleted, err := lazy.CalculateDeleted(docID)
	require.NoError(t, err)
	assert.False(t, deleted)

	folder, err := lazy.Find(folderID)
	require.NoError(t, err)
	uf := folder.Unsigned()
	uf.IsDeleted = true
	resigned := sign(t, owner, uf)
	lazy.Insert(resigned)

	deleted, err = lazy.CalculateDeleted(docID)
	require.NoError(t, err)
	assert.True(t, deleted, "a document under a deleted folder is itself deleted")
}

func TestStagedTreePrunesNoOpEdits(t *testing.T) {
	owner := newTestOwner(t, "alice")
	_, rootID, _, _ := buildTree(t, owner)

	base := tree.NewMapTree(map[uuid.UUID]model.SignedFile{})
	root := model.UnsignedFile{ID: rootID, Parent: rootID, Type: model.Folder, Owner: model.NewOwner(owner.priv.Public())}
	signedRoot := sign(t, owner, root)
	base.Insert(signedRoot)

	st := tree.NewStagedTree(base)
	st.Insert(signedRoot) // identical to base entry
	_, staged := st.Staged.MaybeFind(rootID)
	assert.False(t, staged, "inserting an entry identical to base must not create staged work")

	root.IsDeleted = true
	edited := sign(t, owner, root)
	st.Insert(edited)
	_, staged = st.Staged.MaybeFind(rootID)
	assert.True(t, staged)

	st.PromoteAll()
	_, stagedAfter := st.Staged.MaybeFind(rootID)
	assert.False(t, stagedAfter)
	promoted, err := st.Base.Find(rootID)
	require.NoError(t, err)
	assert.True(t, promoted.Unsigned().IsDeleted)
}
