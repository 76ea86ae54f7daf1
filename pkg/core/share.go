package core

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/lockbook/lbcore/pkg/crypto"
	"github.com/lockbook/lbcore/pkg/lberr"
	"github.com/lockbook/lbcore/pkg/model"
	"github.com/lockbook/lbcore/pkg/pathsvc"
	"github.com/lockbook/lbcore/pkg/tree"
)

// ShareMode is the access level requested for a share. Enforcement of Read
// vs Write is a server concern; the core only records the wrapped key that
// grants access at all.
type ShareMode int

const (
	ShareRead ShareMode = iota
	ShareWrite
)

// ShareFile grants username access to id by wrapping its file key to their
// public key. The recipient's public key is resolved from the local cache,
// falling back to the server.
func (c *Core) ShareFile(ctx context.Context, id uuid.UUID, username string, mode ShareMode) error {
	if _, err := c.requireAccount(); err != nil {
		return err
	}

	recipientPub, err := c.resolvePublicKey(ctx, username)
	if err != nil {
		return err
	}

	return c.withWriteTx(func(lazy *tree.LazyTree, t *tree.StagedTree) error {
		f, err := t.Find(id)
		if err != nil {
			return err
		}
		uf := f.Unsigned()
		if _, exists := uf.UserAccessKeys[username]; exists {
			return lberr.Of(lberr.DuplicateShare)
		}

		key, err := lazy.DecryptedKey(id)
		if err != nil {
			return err
		}
		wrapped, err := crypto.WrapAsymmetric(key, recipientPub)
		if err != nil {
			return err
		}

		if uf.UserAccessKeys == nil {
			uf.UserAccessKeys = make(map[string]model.WrappedKey)
		} else {
			cloned := make(map[string]model.WrappedKey, len(uf.UserAccessKeys)+1)
			for k, v := range uf.UserAccessKeys {
				cloned[k] = v
			}
			uf.UserAccessKeys = cloned
		}
		uf.UserAccessKeys[username] = wrapped

		signed, err := c.resign(uf, f)
		if err != nil {
			return err
		}
		t.Insert(signed)
		return nil
	})
}

func (c *Core) resolvePublicKey(ctx context.Context, username string) (crypto.PublicKey, error) {
	if owner, ok, err := c.lookupCachedOwner(username); err != nil {
		return crypto.PublicKey{}, err
	} else if ok {
		return owner.PublicKey()
	}

	resp, err := c.client.GetPublicKey(ctx, username)
	if err != nil {
		return crypto.PublicKey{}, err
	}
	pub, err := crypto.PublicKeyFromBytes(resp.PublicKey)
	if err != nil {
		return crypto.PublicKey{}, err
	}

	c.store.Lock()
	err = c.store.CachePubKey(model.NewOwner(pub), username)
	c.store.Unlock()
	return pub, err
}

func (c *Core) lookupCachedOwner(username string) (model.Owner, bool, error) {
	// The pub_key_lookup bucket is keyed by Owner -> username, the reverse
	// of what we need here; scanning base metadata for an existing file
	// owned by username is the available forward lookup.
	base, err := c.store.LoadBaseMetadata()
	if err != nil {
		return model.Owner{}, false, err
	}
	for _, f := range base {
		owner := f.Unsigned().Owner
		if name, ok, err := c.store.LookupUsername(owner); err == nil && ok && name == username {
			return owner, true, nil
		}
	}
	return model.Owner{}, false, nil
}

// GetPendingShares lists files the current user has been granted access to
// but has not yet linked into their own tree via create_link_at_path.
func (c *Core) GetPendingShares() ([]uuid.UUID, error) {
	acc, err := c.requireAccount()
	if err != nil {
		return nil, err
	}

	var pending []uuid.UUID
	err = c.withReadTx(func(lazy *tree.LazyTree) error {
		linked := make(map[uuid.UUID]struct{})
		for id := range lazy.IDs() {
			f, err := lazy.Find(id)
			if err != nil {
				return err
			}
			uf := f.Unsigned()
			if uf.Type == model.Link && uf.LinkTarget != nil {
				linked[*uf.LinkTarget] = struct{}{}
			}
		}

		for id := range lazy.IDs() {
			f, err := lazy.Find(id)
			if err != nil {
				return err
			}
			uf := f.Unsigned()
			if uf.Owner.Equal(model.NewOwner(acc.PublicKey())) {
				continue
			}
			if _, ok := uf.UserAccessKeys[acc.Username()]; !ok {
				continue
			}
			if _, alreadyLinked := linked[id]; alreadyLinked {
				continue
			}
			pending = append(pending, id)
		}
		return nil
	})
	return pending, err
}

// CreateLinkAtPath creates a Link file at path referencing targetID.
func (c *Core) CreateLinkAtPath(path string, targetID uuid.UUID) (uuid.UUID, error) {
	parsed, err := pathsvc.ParsePath(path)
	if err != nil {
		return uuid.Nil, err
	}
	if len(parsed.Segments) == 0 {
		return uuid.Nil, lberr.Of(lberr.FileNameEmpty)
	}
	linkName := parsed.Segments[len(parsed.Segments)-1]
	if err := pathsvc.ValidateFileName(linkName); err != nil {
		return uuid.Nil, err
	}
	parentPath := parsed.Segments[:len(parsed.Segments)-1]

	var newID uuid.UUID
	err = c.withWriteTx(func(lazy *tree.LazyTree, t *tree.StagedTree) error {
		root, rootOK, err := c.store.GetRoot()
		if err != nil {
			return err
		}
		if !rootOK {
			return lberr.Of(lberr.FileNonexistent)
		}

		parentID := root
		if len(parentPath) > 0 {
			parentID, err = pathsvc.Resolve(lazy, root, strings.Join(parentPath, "/"))
			if err != nil {
				return err
			}
		}
		parent, err := t.Find(parentID)
		if err != nil {
			return err
		}
		if parent.Unsigned().Type != model.Folder {
			return lberr.Of(lberr.FileNotFolder)
		}

		target, err := t.Find(targetID)
		if err != nil {
			return lberr.Of(lberr.LinkTargetNonexistent)
		}
		owner := parent.Unsigned().Owner
		if target.Unsigned().Owner.Equal(owner) {
			return lberr.Of(lberr.LinkTargetIsOwned)
		}

		uf := model.UnsignedFile{
			ID:         uuid.New(),
			Parent:     parentID,
			Type:       model.Link,
			LinkTarget: &targetID,
			Owner:      owner,
		}
		parentKey, err := lazy.DecryptedKey(parentID)
		if err != nil {
			return err
		}
		linkKey := crypto.NewFileKey()
		encName, err := model.EncryptName(linkKey, linkName)
		if err != nil {
			return err
		}
		wrapped, err := crypto.WrapSymmetric(linkKey, parentKey)
		if err != nil {
			return err
		}
		uf.Name = encName
		uf.FolderAccessKey = &wrapped

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
