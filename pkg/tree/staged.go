package tree

import (
	"reflect"

	"github.com/google/uuid"
	"github.com/lockbook/lbcore/pkg/model"
)

// StagedTree is the last-known-server base plus a local unsynced overlay.
// A lookup consults staged first, then base. An entry inserted into staged
// that is identical to the corresponding base entry is pruned immediately,
// so staged always reflects only genuine local edits. Ported from the
// original implementation's StagedTree (base + staged maps, prune-on-insert).
type StagedTree struct {
	Base   *MapTree
	Staged *MapTree
}

// NewStagedTree creates a staged overlay atop base with an empty staged map.
func NewStagedTree(base *MapTree) *StagedTree {
	return &StagedTree{Base: base, Staged: NewMapTree(nil)}
}

func (t *StagedTree) IDs() map[uuid.UUID]struct{} {
	ids := t.Base.IDs()
	for id := range t.Staged.IDs() {
		ids[id] = struct{}{}
	}
	return ids
}

func (t *StagedTree) Find(id uuid.UUID) (model.SignedFile, error) {
	f, ok := t.MaybeFind(id)
	if !ok {
		return model.SignedFile{}, fileNonexistent(id)
	}
	return f, nil
}

func (t *StagedTree) MaybeFind(id uuid.UUID) (model.SignedFile, bool) {
	if f, ok := t.Staged.MaybeFind(id); ok {
		return f, true
	}
	return t.Base.MaybeFind(id)
}

// Insert stages f. If f is identical to the base entry for the same id, the
// staged entry is pruned (removed, if present) instead, so a no-op edit
// never shows up as pending local work.
func (t *StagedTree) Insert(f model.SignedFile) (model.SignedFile, bool) {
	id := f.Unsigned().ID
	old, hadOld := t.MaybeFind(id)

	if base, ok := t.Base.MaybeFind(id); ok && reflect.DeepEqual(base, f) {
		t.Staged.Remove(id)
		return old, hadOld
	}

	t.Staged.Insert(f)
	return old, hadOld
}

// Remove deletes id from staged if present there; otherwise from base,
// surfacing the removal to a subsequent sync push.
func (t *StagedTree) Remove(id uuid.UUID) (model.SignedFile, bool) {
	if old, had := t.Staged.Remove(id); had {
		return old, true
	}
	return t.Base.Remove(id)
}

// Prune removes every staged entry that is identical to its base
// counterpart. Nothing in this module calls it; Insert already prunes
// entry by entry.
func (t *StagedTree) Prune() {
	for id := range t.Staged.IDs() {
		staged, _ := t.Staged.MaybeFind(id)
		if base, ok := t.Base.MaybeFind(id); ok && reflect.DeepEqual(base, staged) {
			t.Staged.Remove(id)
		}
	}
}

// PromoteAll moves every staged entry into base and clears staged, called
// after a successful sync push.
func (t *StagedTree) PromoteAll() {
	for id := range t.Staged.IDs() {
		f, _ := t.Staged.MaybeFind(id)
		t.Base.Insert(f)
	}
	t.Staged = NewMapTree(nil)
}
