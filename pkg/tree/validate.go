package tree

import (
	"github.com/google/uuid"
	"github.com/lockbook/lbcore/pkg/model"
)

// FailureKind is one of the tree invariant violations validation can
// surface.
type FailureKind string

const (
	Orphan               FailureKind = "Orphan"
	Cycle                FailureKind = "Cycle"
	PathConflict         FailureKind = "PathConflict"
	NonFolderWithChildren FailureKind = "NonFolderWithChildren"
	BrokenLink           FailureKind = "BrokenLink"
	OwnedLink            FailureKind = "OwnedLink"
	SharedLink           FailureKind = "SharedLink"
	DuplicateLink        FailureKind = "DuplicateLink"
	// DeletedFileUpdated is not raised by Validate or anywhere else in this
	// module. The case it names is handled at the point of the operation:
	// pkg/core reports a read or write of a deleted file as FileNonexistent,
	// and a pull merge drops a local edit to a file the server reports
	// deleted — see DESIGN.md.
	DeletedFileUpdated FailureKind = "DeletedFileUpdated"
)

// Failure names one invariant violation, identifying the offending file.
type Failure struct {
	Kind   FailureKind
	FileID uuid.UUID
}

func (f Failure) Error() string {
	return string(f.Kind) + ": " + f.FileID.String()
}

const maxNameLength = 230

// Validate runs every tree-wide invariant check over t and returns the
// first failure found, or nil if the tree is consistent. Called by
// pkg/core after any batch of local changes and by pkg/sync after each
// pull merge.
func Validate(t *LazyTree) error {
	ids := t.IDs()

	// Cycle and orphan/parent-type checks, and link-target existence.
	for id := range ids {
		f, err := t.Find(id)
		if err != nil {
			return err
		}
		uf := f.Unsigned()

		if !uf.IsRoot() {
			parent, ok := t.MaybeFind(uf.Parent)
			if !ok {
				return Failure{Kind: Orphan, FileID: id}
			}
			if parent.Unsigned().Type != model.Folder {
				return Failure{Kind: NonFolderWithChildren, FileID: uf.Parent}
			}

			if err := checkCycle(t, id); err != nil {
				return err
			}
		}

		if uf.Type == model.Link {
			if err := validateLink(t, uf); err != nil {
				return err
			}
		}

		if !uf.IsDeleted {
			name, err := t.DecryptedName(id)
			if err != nil {
				return err
			}
			if len(name) == 0 {
				return Failure{Kind: Orphan, FileID: id}
			}
			if len(name) > maxNameLength {
				return Failure{Kind: Orphan, FileID: id}
			}
		}
	}

	if err := checkSiblingNames(t, ids); err != nil {
		return err
	}
	if err := checkDuplicateLinks(t, ids); err != nil {
		return err
	}

	return nil
}

func checkCycle(t *LazyTree, start uuid.UUID) error {
	visited := map[uuid.UUID]struct{}{start: {}}
	cur := start
	for steps := 0; steps <= len(t.IDs())+1; steps++ {
		f, ok := t.MaybeFind(cur)
		if !ok {
			return Failure{Kind: Orphan, FileID: cur}
		}
		uf := f.Unsigned()
		if uf.IsRoot() {
			return nil
		}
		if _, seen := visited[uf.Parent]; seen {
			return Failure{Kind: Cycle, FileID: start}
		}
		visited[uf.Parent] = struct{}{}
		cur = uf.Parent
	}
	return Failure{Kind: Cycle, FileID: start}
}

func validateLink(t *LazyTree, link model.UnsignedFile) error {
	if link.LinkTarget == nil {
		return Failure{Kind: BrokenLink, FileID: link.ID}
	}
	target, ok := t.MaybeFind(*link.LinkTarget)
	if !ok {
		return Failure{Kind: BrokenLink, FileID: link.ID}
	}
	tuf := target.Unsigned()
	if tuf.Type == model.Link {
		return Failure{Kind: BrokenLink, FileID: link.ID}
	}
	if tuf.Owner.Equal(link.Owner) {
		return Failure{Kind: OwnedLink, FileID: link.ID}
	}

	parent, ok := t.MaybeFind(link.Parent)
	if ok && !parent.Unsigned().Owner.Equal(link.Owner) {
		return Failure{Kind: SharedLink, FileID: link.ID}
	}
	return nil
}

func checkSiblingNames(t *LazyTree, ids map[uuid.UUID]struct{}) error {
	type key struct {
		parent uuid.UUID
		name   string
	}
	seen := make(map[key]uuid.UUID)

	for id := range ids {
		f, err := t.Find(id)
		if err != nil {
			return err
		}
		uf := f.Unsigned()
		if uf.IsDeleted || uf.IsRoot() {
			continue
		}
		deleted, err := t.CalculateDeleted(id)
		if err != nil {
			return err
		}
		if deleted {
			continue
		}

		name, err := t.DecryptedName(id)
		if err != nil {
			return err
		}
		k := key{parent: uf.Parent, name: name}
		if _, dup := seen[k]; dup {
			return Failure{Kind: PathConflict, FileID: id}
		}
		seen[k] = id
	}
	return nil
}

func checkDuplicateLinks(t *LazyTree, ids map[uuid.UUID]struct{}) error {
	seen := make(map[uuid.UUID]uuid.UUID) // target id -> owner map key collision guard
	seenByOwnerTarget := make(map[string]struct{})

	for id := range ids {
		f, err := t.Find(id)
		if err != nil {
			return err
		}
		uf := f.Unsigned()
		if uf.Type != model.Link || uf.IsDeleted || uf.LinkTarget == nil {
			continue
		}
		k := uf.Owner.MapKey() + "|" + uf.LinkTarget.String()
		if _, dup := seenByOwnerTarget[k]; dup {
			return Failure{Kind: DuplicateLink, FileID: id}
		}
		seenByOwnerTarget[k] = struct{}{}
		seen[*uf.LinkTarget] = id
	}
	return nil
}
