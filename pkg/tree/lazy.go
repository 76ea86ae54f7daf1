package tree

import (
	"strings"

	"github.com/google/uuid"
	"github.com/lockbook/lbcore/pkg/crypto"
	"github.com/lockbook/lbcore/pkg/lberr"
	"github.com/lockbook/lbcore/pkg/model"
)

// KeyOwner supplies the identity needed to unwrap file keys: the local
// account's private key and username. Defined here (rather than imported
// from pkg/account) to avoid a package cycle, since pkg/account itself
// builds on pkg/model and pkg/crypto.
type KeyOwner interface {
	PrivateKey() crypto.PrivateKey
	Username() string
}

// LazyTree wraps any MutableTree with memoized decrypted file keys, names,
// paths, and deleted status. Caches are invalidated wholesale on any write
// through this view — the spec's "finer-grained invalidation is an optional
// optimization" is deliberately not implemented; see DESIGN.md.
//
// A LazyTree is not safe for concurrent use: it must be owned by a single
// caller for its lifetime (pkg/store's write lock enforces this at the API
// boundary).
type LazyTree struct {
	Inner MutableTree
	Owner KeyOwner

	keyCache     map[uuid.UUID]crypto.FileKey
	nameCache    map[uuid.UUID]string
	pathCache    map[uuid.UUID]string
	deletedCache map[uuid.UUID]bool
}

// NewLazyTree wraps inner for decryption by owner.
func NewLazyTree(inner MutableTree, owner KeyOwner) *LazyTree {
	return &LazyTree{
		Inner:        inner,
		Owner:        owner,
		keyCache:     make(map[uuid.UUID]crypto.FileKey),
		nameCache:    make(map[uuid.UUID]string),
		pathCache:    make(map[uuid.UUID]string),
		deletedCache: make(map[uuid.UUID]bool),
	}
}

func (t *LazyTree) IDs() map[uuid.UUID]struct{} { return t.Inner.IDs() }

func (t *LazyTree) Find(id uuid.UUID) (model.SignedFile, error) { return t.Inner.Find(id) }

func (t *LazyTree) MaybeFind(id uuid.UUID) (model.SignedFile, bool) { return t.Inner.MaybeFind(id) }

// Invalidate clears every memoized cache. Called after any write.
func (t *LazyTree) Invalidate() {
	t.keyCache = make(map[uuid.UUID]crypto.FileKey)
	t.nameCache = make(map[uuid.UUID]string)
	t.pathCache = make(map[uuid.UUID]string)
	t.deletedCache = make(map[uuid.UUID]bool)
}

func (t *LazyTree) Insert(f model.SignedFile) (model.SignedFile, bool) {
	old, had := t.Inner.Insert(f)
	t.Invalidate()
	return old, had
}

func (t *LazyTree) Remove(id uuid.UUID) (model.SignedFile, bool) {
	old, had := t.Inner.Remove(id)
	t.Invalidate()
	return old, had
}

// DecryptedKey resolves id's file key: for the root or a directly shared
// file, unwraps the owner's copy in UserAccessKeys via ECDH; for a nested
// file, recursively resolves the parent's key and unwraps FolderAccessKey
// symmetrically.
func (t *LazyTree) DecryptedKey(id uuid.UUID) (crypto.FileKey, error) {
	if key, ok := t.keyCache[id]; ok {
		return key, nil
	}

	f, err := t.Find(id)
	if err != nil {
		return crypto.FileKey{}, err
	}
	uf := f.Unsigned()

	if wrapped, ok := uf.UserAccessKeys[t.Owner.Username()]; ok {
		key, err := crypto.UnwrapAsymmetric(wrapped, t.Owner.PrivateKey())
		if err != nil {
			return crypto.FileKey{}, err
		}
		t.keyCache[id] = key
		return key, nil
	}

	if uf.FolderAccessKey == nil {
		return crypto.FileKey{}, lberr.New(lberr.CryptoDeserialize, "file has no reachable key for this account")
	}
	if uf.IsRoot() {
		return crypto.FileKey{}, lberr.UnexpectedErr("root file %s has no owner access key", id)
	}

	parentKey, err := t.DecryptedKey(uf.Parent)
	if err != nil {
		return crypto.FileKey{}, err
	}
	key, err := crypto.UnwrapSymmetric(*uf.FolderAccessKey, parentKey)
	if err != nil {
		return crypto.FileKey{}, err
	}
	t.keyCache[id] = key
	return key, nil
}

// DecryptedName AEAD-decrypts id's name ciphertext under its file key.
func (t *LazyTree) DecryptedName(id uuid.UUID) (string, error) {
	if name, ok := t.nameCache[id]; ok {
		return name, nil
	}

	f, err := t.Find(id)
	if err != nil {
		return "", err
	}
	key, err := t.DecryptedKey(id)
	if err != nil {
		return "", err
	}

	plaintext, err := crypto.Decrypt(key, f.Unsigned().Name.Ciphertext)
	if err != nil {
		return "", err
	}

	name := string(plaintext)
	t.nameCache[id] = name
	return name, nil
}

// Path renders id's full path by walking the parent chain to the root and
// joining decrypted names with "/". The root's own path is "/".
func (t *LazyTree) Path(id uuid.UUID) (string, error) {
	if p, ok := t.pathCache[id]; ok {
		return p, nil
	}

	f, err := t.Find(id)
	if err != nil {
		return "", err
	}
	uf := f.Unsigned()

	if uf.IsRoot() {
		t.pathCache[id] = "/"
		return "/", nil
	}

	parentPath, err := t.Path(uf.Parent)
	if err != nil {
		return "", err
	}
	name, err := t.DecryptedName(id)
	if err != nil {
		return "", err
	}

	sep := ""
	if !strings.HasSuffix(parentPath, "/") {
		sep = "/"
	}
	path := parentPath + sep + name
	if uf.Type == model.Folder {
		path += "/"
	}

	t.pathCache[id] = path
	return path, nil
}

// CalculateDeleted reports whether id or any ancestor is marked deleted.
func (t *LazyTree) CalculateDeleted(id uuid.UUID) (bool, error) {
	if d, ok := t.deletedCache[id]; ok {
		return d, nil
	}

	f, err := t.Find(id)
	if err != nil {
		return false, err
	}
	uf := f.Unsigned()

	if uf.IsDeleted {
		t.deletedCache[id] = true
		return true, nil
	}
	if uf.IsRoot() {
		t.deletedCache[id] = false
		return false, nil
	}

	parentDeleted, err := t.CalculateDeleted(uf.Parent)
	if err != nil {
		return false, err
	}
	t.deletedCache[id] = parentDeleted
	return parentDeleted, nil
}
