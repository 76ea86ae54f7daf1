// Package lbcore is the embeddable core of Lockbook: an end-to-end
// encrypted, multi-device file storage library. Callers (CLI, desktop and
// mobile bindings) link this package directly; it owns no UI and performs
// no networking beyond the sync server it is configured against.
//
// A Core is constructed once per writeable data directory via New, and
// owns that directory's persistent store and document cache for its
// lifetime. The exported surface is a thin, documented façade over
// pkg/core; new functionality is added there first and re-exported here
// once it stabilizes.
package lbcore

import (
	"context"

	"github.com/google/uuid"

	"github.com/lockbook/lbcore/pkg/activity"
	"github.com/lockbook/lbcore/pkg/core"
	"github.com/lockbook/lbcore/pkg/model"
	"github.com/lockbook/lbcore/pkg/sync"
)

// Config is a Core's construction-time configuration.
type Config = core.Config

// Core is a handle onto one local Lockbook data directory.
type Core struct {
	inner *core.Core
}

// New opens (creating if absent) a Core rooted at config.WriteablePath.
func New(config Config) (*Core, error) {
	inner, err := core.New(config)
	if err != nil {
		return nil, err
	}
	return &Core{inner: inner}, nil
}

// Close releases the underlying store handle. A Core must not be used
// after Close returns.
func (c *Core) Close() error {
	return c.inner.Close()
}

// Account lifecycle.

func (c *Core) CreateAccount(ctx context.Context, username, apiURL string) error {
	return c.inner.CreateAccount(ctx, username, apiURL)
}

func (c *Core) ImportAccount(ctx context.Context, accountString string) error {
	return c.inner.ImportAccount(ctx, accountString)
}

func (c *Core) ImportFromPhrase(ctx context.Context, username, apiURL string, words []string) error {
	return c.inner.ImportFromPhrase(ctx, username, apiURL, words)
}

func (c *Core) ExportAccount() (string, error) {
	return c.inner.ExportAccount()
}

func (c *Core) ExportAccountQR() ([]byte, error) {
	return c.inner.ExportAccountQR()
}

func (c *Core) ExportAccountPhrase() ([]string, error) {
	return c.inner.ExportAccountPhrase()
}

func (c *Core) DeleteAccount(ctx context.Context) error {
	return c.inner.DeleteAccount(ctx)
}

// Tree mutation.

func (c *Core) Root() (uuid.UUID, error) {
	return c.inner.Root()
}

func (c *Core) CreateFile(name string, parentID uuid.UUID, typ model.FileType) (uuid.UUID, error) {
	return c.inner.CreateFile(name, parentID, typ)
}

func (c *Core) RenameFile(id uuid.UUID, newName string) error {
	return c.inner.RenameFile(id, newName)
}

func (c *Core) MoveFile(id, newParent uuid.UUID) error {
	return c.inner.MoveFile(id, newParent)
}

func (c *Core) Delete(id uuid.UUID) error {
	return c.inner.Delete(id)
}

func (c *Core) WriteDocument(id uuid.UUID, data []byte) error {
	return c.inner.WriteDocument(id, data)
}

func (c *Core) ReadDocument(id uuid.UUID, useCache bool) ([]byte, error) {
	return c.inner.ReadDocument(id, useCache)
}

// Sharing.

func (c *Core) ShareFile(ctx context.Context, id uuid.UUID, username string, mode core.ShareMode) error {
	return c.inner.ShareFile(ctx, id, username, mode)
}

func (c *Core) GetPendingShares() ([]uuid.UUID, error) {
	return c.inner.GetPendingShares()
}

func (c *Core) CreateLinkAtPath(path string, targetID uuid.UUID) (uuid.UUID, error) {
	return c.inner.CreateLinkAtPath(path, targetID)
}

// Reads.

func (c *Core) ListMetadatas() ([]core.Metadata, error) {
	return c.inner.ListMetadatas()
}

func (c *Core) GetChildren(parentID uuid.UUID) ([]core.Metadata, error) {
	return c.inner.GetChildren(parentID)
}

func (c *Core) GetByPath(path string) (uuid.UUID, error) {
	return c.inner.GetByPath(path)
}

func (c *Core) GetPathByID(id uuid.UUID) (string, error) {
	return c.inner.GetPathByID(id)
}

func (c *Core) ListPaths(filter core.PathFilter) ([]string, error) {
	return c.inner.ListPaths(filter)
}

// Sync and activity.

func (c *Core) CalculateWork(ctx context.Context) (sync.Work, error) {
	return c.inner.CalculateWork(ctx)
}

func (c *Core) Sync(ctx context.Context, progress sync.ProgressFunc) error {
	return c.inner.Sync(ctx, progress)
}

func (c *Core) SuggestedDocs(weights activity.Weights) ([]uuid.UUID, error) {
	return c.inner.SuggestedDocs(weights)
}

// Re-exported types so callers need only import this package.

type (
	ShareMode  = core.ShareMode
	PathFilter = core.PathFilter
	Metadata   = core.Metadata
	FileType   = model.FileType
)

const (
	ShareRead  = core.ShareRead
	ShareWrite = core.ShareWrite

	AllFiles      = core.AllFiles
	DocumentsOnly = core.DocumentsOnly
	FoldersOnly   = core.FoldersOnly
	LeafNodesOnly = core.LeafNodesOnly

	Document = model.Document
	Folder   = model.Folder
	Link     = model.Link
)
