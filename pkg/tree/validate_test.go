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

func TestValidateAcceptsWellFormedTree(t *testing.T) {
	owner := newTestOwner(t, "alice")
	lazy, _, _, _ := buildTree(t, owner)
	assert.NoError(t, tree.Validate(lazy))
}

func TestValidateRejectsOrphan(t *testing.T) {
	owner := newTestOwner(t, "alice")
	lazy, rootID, _, _ := buildTree(t, owner)

	orphan := model.UnsignedFile{ID: uuid.New(), Parent: uuid.New(), Type: model.Document, Owner: model.NewOwner(owner.priv.Public())}
	lazy.Insert(sign(t, owner, orphan))

	err := tree.Validate(lazy)
	require.Error(t, err)
	var failure tree.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, tree.Orphan, failure.Kind)
	_ = rootID
}

func TestValidateRejectsPathConflict(t *testing.T) {
	owner := newTestOwner(t, "alice")
	lazy, rootID, folderID, _ := buildTree(t, owner)
	_ = folderID

	rootKey, err := lazy.DecryptedKey(rootID)
	require.NoError(t, err)
	dupKey := crypto.NewFileKey()
	dupName, err := model.EncryptName(dupKey, "docs")
	require.NoError(t, err)
	wrapped, err := crypto.WrapSymmetric(dupKey, rootKey)
	require.NoError(t, err)

	dup := model.UnsignedFile{
		ID:              uuid.New(),
		Parent:          rootID,
		Type:            model.Folder,
		Name:            dupName,
		Owner:           model.NewOwner(owner.priv.Public()),
		FolderAccessKey: &wrapped,
	}
	lazy.Insert(sign(t, owner, dup))

	err = tree.Validate(lazy)
	require.Error(t, err)
	var failure tree.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, tree.PathConflict, failure.Kind)
}

func TestValidateRejectsNonFolderWithChildren(t *testing.T) {
	owner := newTestOwner(t, "alice")
	lazy, _, folderID, docID := buildTree(t, owner)
	_ = folderID

	child := model.UnsignedFile{ID: uuid.New(), Parent: docID, Type: model.Document, Owner: model.NewOwner(owner.priv.Public())}
	lazy.Insert(sign(t, owner, child))

	err := tree.Validate(lazy)
	require.Error(t, err)
	var failure tree.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, tree.NonFolderWithChildren, failure.Kind)
}
