package core

import (
	"github.com/google/uuid"

	"github.com/lockbook/lbcore/pkg/crypto"
	"github.com/lockbook/lbcore/pkg/lberr"
	"github.com/lockbook/lbcore/pkg/model"
	"github.com/lockbook/lbcore/pkg/pathsvc"
	"github.com/lockbook/lbcore/pkg/tree"
)

// CreateFile creates a new file of typ named name under parentID, returning
// its id.
func (c *Core) CreateFile(name string, parentID uuid.UUID, typ model.FileType) (uuid.UUID, error) {
	if err := pathsvc.ValidateFileName(name); err != nil {
		return uuid.Nil, err
	}

	var newID uuid.UUID
	err := c.withWriteTx(func(lazy *tree.LazyTree, t *tree.StagedTree) error {
		parent, err := lazy.Find(parentID)
		if err != nil {
			return lberr.Of(lberr.FileParentNonexistent)
		}
		if parent.Unsigned().Type != model.Folder {
			return lberr.Of(lberr.FileNotFolder)
		}

		siblings, err := pathsvc.SiblingNames(lazy, parentID, uuid.Nil)
		if err != nil {
			return err
		}
		if _, taken := siblings[name]; taken {
			return lberr.Of(lberr.PathTaken)
		}

		parentKey, err := lazy.DecryptedKey(parentID)
		if err != nil {
			return err
		}
		fileKey, wrapped, err := newFileKeyWrappedUnder(parentKey)
		if err != nil {
			return err
		}
		encName, err := model.EncryptName(fileKey, name)
		if err != nil {
			return err
		}

		uf := model.UnsignedFile{
			ID:              uuid.New(),
			Parent:          parentID,
			Type:            typ,
			Name:            encName,
			Owner:           parent.Unsigned().Owner,
			FolderAccessKey: &wrapped,
		}
		signed, err := c.sign(uf)
		if err != nil {
			return err
		}
		t.Insert(signed)
		newID = uf.ID
		return nil
	})
	return newID, err
}

// RenameFile renames id to newName. Rejects the root.
func (c *Core) RenameFile(id uuid.UUID, newName string) error {
	if err := pathsvc.ValidateFileName(newName); err != nil {
		return err
	}

	return c.withWriteTx(func(lazy *tree.LazyTree, t *tree.StagedTree) error {
		f, err := t.Find(id)
		if err != nil {
			return err
		}
		uf := f.Unsigned()
		if uf.IsRoot() {
			return lberr.Of(lberr.RootModificationInvalid)
		}

		siblings, err := pathsvc.SiblingNames(lazy, uf.Parent, id)
		if err != nil {
			return err
		}
		if _, taken := siblings[newName]; taken {
			return lberr.Of(lberr.PathTaken)
		}

		key, err := lazy.DecryptedKey(id)
		if err != nil {
			return err
		}
		encName, err := model.EncryptName(key, newName)
		if err != nil {
			return err
		}
		uf.Name = encName

		signed, err := c.resign(uf, f)
		if err != nil {
			return err
		}
		t.Insert(signed)
		return nil
	})
}

// MoveFile moves id to be a child of newParent, re-wrapping its file key.
// Rejects cycles and the root.
func (c *Core) MoveFile(id, newParent uuid.UUID) error {
	return c.withWriteTx(func(lazy *tree.LazyTree, t *tree.StagedTree) error {
		f, err := t.Find(id)
		if err != nil {
			return err
		}
		uf := f.Unsigned()
		if uf.IsRoot() {
			return lberr.Of(lberr.RootModificationInvalid)
		}

		newParentFile, err := t.Find(newParent)
		if err != nil {
			return lberr.Of(lberr.FileParentNonexistent)
		}
		if newParentFile.Unsigned().Type != model.Folder {
			return lberr.Of(lberr.FileNotFolder)
		}
		if wouldCycle(t, id, newParent) {
			return lberr.Of(lberr.FolderMovedIntoSelf)
		}

		fileKey, err := lazy.DecryptedKey(id)
		if err != nil {
			return err
		}
		newParentKey, err := lazy.DecryptedKey(newParent)
		if err != nil {
			return err
		}
		wrapped, err := crypto.WrapSymmetric(fileKey, newParentKey)
		if err != nil {
			return err
		}

		uf.Parent = newParent
		uf.FolderAccessKey = &wrapped

		signed, err := c.resign(uf, f)
		if err != nil {
			return err
		}
		t.Insert(signed)
		return nil
	})
}

// wouldCycle reports whether moving id under candidateParent would create a
// cycle: true if candidateParent is id itself or a descendant of id.
func wouldCycle(t *tree.StagedTree, id, candidateParent uuid.UUID) bool {
	cur := candidateParent
	for {
		if cur == id {
			return true
		}
		f, ok := t.MaybeFind(cur)
		if !ok {
			return false
		}
		uf := f.Unsigned()
		if uf.IsRoot() {
			return false
		}
		cur = uf.Parent
	}
}

// Delete marks id as deleted. Rejects the root.
func (c *Core) Delete(id uuid.UUID) error {
	return c.withWriteTx(func(lazy *tree.LazyTree, t *tree.StagedTree) error {
		f, err := t.Find(id)
		if err != nil {
			return err
		}
		uf := f.Unsigned()
		if uf.IsRoot() {
			return lberr.Of(lberr.RootModificationInvalid)
		}
		uf.IsDeleted = true

		signed, err := c.resign(uf, f)
		if err != nil {
			return err
		}
		t.Insert(signed)
		return nil
	})
}

// WriteDocument AEAD-encrypts bytes under id's file key, stores the
// ciphertext, and stages the updated metadata.
func (c *Core) WriteDocument(id uuid.UUID, data []byte) error {
	err := c.withWriteTx(func(lazy *tree.LazyTree, t *tree.StagedTree) error {
		f, err := t.Find(id)
		if err != nil {
			return err
		}
		uf := f.Unsigned()
		if uf.Type != model.Document {
			return lberr.Of(lberr.FileNotDocument)
		}
		if deleted, err := lazy.CalculateDeleted(id); err != nil {
			return err
		} else if deleted {
			return lberr.Of(lberr.FileNonexistent)
		}

		key, err := lazy.DecryptedKey(id)
		if err != nil {
			return err
		}
		ciphertext, err := crypto.Encrypt(key, data)
		if err != nil {
			return err
		}
		hmac := crypto.DocumentHmac(key, ciphertext)
		if err := c.docs.Insert(id, hmac, ciphertext); err != nil {
			return err
		}

		size := uint64(len(data))
		uf.DocumentHmac = &hmac
		uf.DocumentSize = &size

		signed, err := c.resign(uf, f)
		if err != nil {
			return err
		}
		t.Insert(signed)
		return nil
	})
	if err != nil {
		return err
	}
	return c.acts.Record(id, model.EventWrite, c.clock.NowMillis())
}

// ReadDocument decrypts and returns id's document content. useCache is not
// consulted: content is always read from the local blob store.
func (c *Core) ReadDocument(id uuid.UUID, useCache bool) ([]byte, error) {
	var plaintext []byte
	err := c.withReadTx(func(lazy *tree.LazyTree) error {
		f, err := lazy.Find(id)
		if err != nil {
			return err
		}
		uf := f.Unsigned()
		if uf.Type != model.Document {
			return lberr.Of(lberr.FileNotDocument)
		}
		if deleted, err := lazy.CalculateDeleted(id); err != nil {
			return err
		} else if deleted {
			return lberr.Of(lberr.FileNonexistent)
		}
		if uf.DocumentHmac == nil {
			plaintext = nil
			return nil
		}

		key, err := lazy.DecryptedKey(id)
		if err != nil {
			return err
		}
		ciphertext, err := c.docs.Get(id, *uf.DocumentHmac)
		if err != nil {
			return err
		}
		plaintext, err = crypto.Decrypt(key, ciphertext)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := c.acts.Record(id, model.EventRead, c.clock.NowMillis()); err != nil {
		return nil, err
	}
	return plaintext, nil
}
