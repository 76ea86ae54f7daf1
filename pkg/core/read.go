package core

import (
	"sort"

	"github.com/google/uuid"

	"github.com/lockbook/lbcore/pkg/lberr"
	"github.com/lockbook/lbcore/pkg/model"
	"github.com/lockbook/lbcore/pkg/pathsvc"
	"github.com/lockbook/lbcore/pkg/tree"
)

// PathFilter narrows ListPaths to one category of file.
type PathFilter int

const (
	AllFiles PathFilter = iota
	DocumentsOnly
	FoldersOnly
	LeafNodesOnly
)

// Metadata is a read-only snapshot of one file, with its name decrypted.
type Metadata struct {
	ID        uuid.UUID
	Parent    uuid.UUID
	Type      model.FileType
	Name      string
	IsDeleted bool
}

func describe(lazy *tree.LazyTree, id uuid.UUID) (Metadata, error) {
	f, err := lazy.Find(id)
	if err != nil {
		return Metadata{}, err
	}
	uf := f.Unsigned()
	name, err := lazy.DecryptedName(id)
	if err != nil {
		return Metadata{}, err
	}
	deleted, err := lazy.CalculateDeleted(id)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{ID: id, Parent: uf.Parent, Type: uf.Type, Name: name, IsDeleted: deleted}, nil
}

// ListMetadatas returns every non-deleted file visible to the current
// account.
func (c *Core) ListMetadatas() ([]Metadata, error) {
	var out []Metadata
	err := c.withReadTx(func(lazy *tree.LazyTree) error {
		for id := range lazy.IDs() {
			m, err := describe(lazy, id)
			if err != nil {
				return err
			}
			if m.IsDeleted {
				continue
			}
			out = append(out, m)
		}
		return nil
	})
	sortMetadatas(out)
	return out, err
}

// GetChildren returns parentID's immediate non-deleted children.
func (c *Core) GetChildren(parentID uuid.UUID) ([]Metadata, error) {
	var out []Metadata
	err := c.withReadTx(func(lazy *tree.LazyTree) error {
		for id := range lazy.IDs() {
			f, err := lazy.Find(id)
			if err != nil {
				return err
			}
			uf := f.Unsigned()
			if uf.Parent != parentID || uf.ID == parentID {
				continue
			}
			m, err := describe(lazy, id)
			if err != nil {
				return err
			}
			if m.IsDeleted {
				continue
			}
			out = append(out, m)
		}
		return nil
	})
	sortMetadatas(out)
	return out, err
}

// GetByPath resolves path to a file id, starting from the account root.
func (c *Core) GetByPath(path string) (uuid.UUID, error) {
	var id uuid.UUID
	err := c.withReadTx(func(lazy *tree.LazyTree) error {
		root, ok, err := c.store.GetRoot()
		if err != nil {
			return err
		}
		if !ok {
			return lberr.Of(lberr.FileNonexistent)
		}
		resolved, err := pathsvc.Resolve(lazy, root, path)
		if err != nil {
			return err
		}
		id = resolved
		return nil
	})
	return id, err
}

// GetPathByID renders id's full path.
func (c *Core) GetPathByID(id uuid.UUID) (string, error) {
	var path string
	err := c.withReadTx(func(lazy *tree.LazyTree) error {
		p, err := pathsvc.Render(lazy, id)
		if err != nil {
			return err
		}
		path = p
		return nil
	})
	return path, err
}

// ListPaths returns every non-deleted file's full path, filtered by filter.
func (c *Core) ListPaths(filter PathFilter) ([]string, error) {
	var out []string
	err := c.withReadTx(func(lazy *tree.LazyTree) error {
		ids := lazy.IDs()
		for id := range ids {
			f, err := lazy.Find(id)
			if err != nil {
				return err
			}
			uf := f.Unsigned()
			deleted, err := lazy.CalculateDeleted(id)
			if err != nil {
				return err
			}
			if deleted {
				continue
			}

			switch filter {
			case DocumentsOnly:
				if uf.Type != model.Document {
					continue
				}
			case FoldersOnly:
				if uf.Type != model.Folder {
					continue
				}
			case LeafNodesOnly:
				if hasNonDeletedChild(lazy, ids, id) {
					continue
				}
			}

			p, err := pathsvc.Render(lazy, id)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

func hasNonDeletedChild(lazy *tree.LazyTree, ids map[uuid.UUID]struct{}, parent uuid.UUID) bool {
	for id := range ids {
		f, err := lazy.Find(id)
		if err != nil {
			continue
		}
		uf := f.Unsigned()
		if uf.Parent != parent || uf.ID == parent {
			continue
		}
		if deleted, err := lazy.CalculateDeleted(id); err == nil && !deleted {
			return true
		}
	}
	return false
}

func sortMetadatas(m []Metadata) {
	sort.Slice(m, func(i, j int) bool { return m[i].Name < m[j].Name })
}
