// Package tree provides the uniform read/write abstraction over collections
// of signed file metadata used throughout lbcore: a plain map, a staged
// overlay atop a base, and a lazy view that memoizes decrypted keys, names,
// and paths over any of the above.
package tree

import (
	"github.com/google/uuid"
	"github.com/lockbook/lbcore/pkg/model"
)

// Tree is the read-only capability shared by every concrete tree shape.
type Tree interface {
	IDs() map[uuid.UUID]struct{}
	Find(id uuid.UUID) (model.SignedFile, error)
	MaybeFind(id uuid.UUID) (model.SignedFile, bool)
}

// MutableTree additionally supports insertion and removal.
type MutableTree interface {
	Tree
	// Insert stores f, returning the entry it replaced, if any.
	Insert(f model.SignedFile) (model.SignedFile, bool)
	// Remove deletes id, returning the removed entry, if any.
	Remove(id uuid.UUID) (model.SignedFile, bool)
}

// MapTree is a single map, read-through.
type MapTree struct {
	files map[uuid.UUID]model.SignedFile
}

// NewMapTree wraps an existing map (taking ownership of it) or creates an
// empty one if nil.
func NewMapTree(files map[uuid.UUID]model.SignedFile) *MapTree {
	if files == nil {
		files = make(map[uuid.UUID]model.SignedFile)
	}
	return &MapTree{files: files}
}

func (t *MapTree) IDs() map[uuid.UUID]struct{} {
	ids := make(map[uuid.UUID]struct{}, len(t.files))
	for id := range t.files {
		ids[id] = struct{}{}
	}
	return ids
}

func (t *MapTree) Find(id uuid.UUID) (model.SignedFile, error) {
	f, ok := t.files[id]
	if !ok {
		return model.SignedFile{}, fileNonexistent(id)
	}
	return f, nil
}

func (t *MapTree) MaybeFind(id uuid.UUID) (model.SignedFile, bool) {
	f, ok := t.files[id]
	return f, ok
}

func (t *MapTree) Insert(f model.SignedFile) (model.SignedFile, bool) {
	id := f.Unsigned().ID
	old, had := t.files[id]
	t.files[id] = f
	return old, had
}

func (t *MapTree) Remove(id uuid.UUID) (model.SignedFile, bool) {
	old, had := t.files[id]
	if had {
		delete(t.files, id)
	}
	return old, had
}

// Files returns the underlying map directly, for callers (pkg/sync,
// pkg/store) that need to persist or rebuild a tree wholesale.
func (t *MapTree) Files() map[uuid.UUID]model.SignedFile {
	return t.files
}
