// Package core is lbcore's local mutation API: the single-writer surface
// that turns a caller's intent (create a file, write a document, share it)
// into a validated staged-tree mutation, plus the read surface and the
// account lifecycle and sync delegation that sit alongside it.
package core

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lockbook/lbcore/pkg/account"
	"github.com/lockbook/lbcore/pkg/activity"
	"github.com/lockbook/lbcore/pkg/apiclient"
	"github.com/lockbook/lbcore/pkg/clock"
	"github.com/lockbook/lbcore/pkg/crypto"
	"github.com/lockbook/lbcore/pkg/docs"
	"github.com/lockbook/lbcore/pkg/events"
	"github.com/lockbook/lbcore/pkg/lberr"
	"github.com/lockbook/lbcore/pkg/lblog"
	"github.com/lockbook/lbcore/pkg/model"
	"github.com/lockbook/lbcore/pkg/store"
	"github.com/lockbook/lbcore/pkg/sync"
	"github.com/lockbook/lbcore/pkg/tree"
)

// Config configures a Core instance. Additional fields are additive only —
// never remove or repurpose one, per the wire/config compatibility
// contract.
type Config struct {
	WriteablePath string
	Logs          bool
	ColoredLogs   bool
}

// Core owns every subsystem for the lifetime of a process: the persistent
// store, the document blob store, the sync engine, and the cached local
// account, if one exists.
type Core struct {
	config Config
	log    zerolog.Logger

	store  *store.Store
	docs   *docs.Store
	broker *events.Broker
	clock  clock.Clock
	acts   *activity.Log

	account *account.Account
	client  *apiclient.Client
	engine  *sync.Engine
}

// New opens (creating if absent) the store rooted at config.WriteablePath
// and loads the local account, if any.
func New(config Config) (*Core, error) {
	if config.WriteablePath == "" {
		return nil, lberr.Of(lberr.DiskPathInvalid)
	}
	if err := os.MkdirAll(config.WriteablePath, 0o700); err != nil {
		return nil, lberr.New(lberr.DiskPathInvalid, err.Error())
	}

	lblog.Init(lblog.Config{Enabled: config.Logs, Colored: config.ColoredLogs})

	st, err := store.Open(filepath.Join(config.WriteablePath, "db"))
	if err != nil {
		return nil, err
	}
	docStore, err := docs.NewStore(config.WriteablePath)
	if err != nil {
		st.Close()
		return nil, err
	}

	c := &Core{
		config: config,
		log:    lblog.WithComponent("core"),
		store:  st,
		docs:   docStore,
		broker: events.NewBroker(),
		clock:  clock.NewSystem(),
	}
	c.acts = activity.NewLog(st)

	if raw, ok, err := st.GetAccount(); err != nil {
		st.Close()
		return nil, err
	} else if ok {
		acc, err := account.Import(string(raw))
		if err != nil {
			st.Close()
			return nil, err
		}
		c.setAccount(acc)
	}

	return c, nil
}

// Close releases the underlying store handle.
func (c *Core) Close() error {
	return c.store.Close()
}

func (c *Core) setAccount(acc account.Account) {
	c.account = &acc
	c.client = apiclient.New(acc.APIURL, acc.PrivateKey())
	c.engine = sync.NewEngine(c.store, c.docs, c.client, c.broker, acc, c.clock)
}

func (c *Core) requireAccount() (account.Account, error) {
	if c.account == nil {
		return account.Account{}, lberr.Of(lberr.AccountNonexistent)
	}
	return *c.account, nil
}

// sign produces a freshly signed envelope for value under the local
// account's key, at the current clock reading.
func (c *Core) sign(value model.UnsignedFile) (model.SignedFile, error) {
	acc, err := c.requireAccount()
	if err != nil {
		return model.SignedFile{}, err
	}
	return model.Sign(value, acc.PrivateKey(), c.clock.NowMillis())
}

// resign re-signs value, preserving the server-assigned version counters
// from the prior envelope.
func (c *Core) resign(value model.UnsignedFile, prior model.SignedFile) (model.SignedFile, error) {
	signed, err := c.sign(value)
	if err != nil {
		return model.SignedFile{}, err
	}
	signed.MetadataVersion = prior.MetadataVersion
	signed.ContentVersion = prior.ContentVersion
	return signed, nil
}

// withWriteTx loads the current base+staged trees, runs fn against a lazy
// view over a staged overlay, validates the result, and persists it only on
// success — an aborted transaction leaves the store untouched.
func (c *Core) withWriteTx(fn func(lazy *tree.LazyTree, t *tree.StagedTree) error) error {
	acc, err := c.requireAccount()
	if err != nil {
		return err
	}

	c.store.Lock()
	defer c.store.Unlock()

	base, err := c.store.LoadBaseMetadata()
	if err != nil {
		return err
	}
	staged, err := c.store.LoadLocalMetadata()
	if err != nil {
		return err
	}

	t := &tree.StagedTree{Base: tree.NewMapTree(base), Staged: tree.NewMapTree(staged)}
	lazy := tree.NewLazyTree(t, acc)

	if err := fn(lazy, t); err != nil {
		return err
	}

	lazy.Invalidate()
	if err := tree.Validate(lazy); err != nil {
		return err
	}

	return c.store.SaveTrees(t.Base.Files(), t.Staged.Files())
}

// withReadTx runs fn against a read-only lazy view over the current
// committed state.
func (c *Core) withReadTx(fn func(lazy *tree.LazyTree) error) error {
	acc, err := c.requireAccount()
	if err != nil {
		return err
	}

	c.store.RLock()
	defer c.store.RUnlock()

	base, err := c.store.LoadBaseMetadata()
	if err != nil {
		return err
	}
	staged, err := c.store.LoadLocalMetadata()
	if err != nil {
		return err
	}

	t := &tree.StagedTree{Base: tree.NewMapTree(base), Staged: tree.NewMapTree(staged)}
	lazy := tree.NewLazyTree(t, acc)
	return fn(lazy)
}

// Root returns the current account's root file id.
func (c *Core) Root() (uuid.UUID, error) {
	if _, err := c.requireAccount(); err != nil {
		return uuid.Nil, err
	}
	id, ok, err := c.store.GetRoot()
	if err != nil {
		return uuid.Nil, err
	}
	if !ok {
		return uuid.Nil, lberr.Of(lberr.FileNonexistent)
	}
	return id, nil
}

// CalculateWork reports pending local and server changes.
func (c *Core) CalculateWork(ctx context.Context) (sync.Work, error) {
	if _, err := c.requireAccount(); err != nil {
		return sync.Work{}, err
	}
	return c.engine.CalculateWork(ctx)
}

// Sync runs the full pull/push algorithm against the configured server.
func (c *Core) Sync(ctx context.Context, progress sync.ProgressFunc) error {
	if _, err := c.requireAccount(); err != nil {
		return err
	}
	return c.engine.Sync(ctx, progress)
}

// SuggestedDocs ranks recently active documents by the given weights.
func (c *Core) SuggestedDocs(weights activity.Weights) ([]uuid.UUID, error) {
	docEvents, err := c.store.ListDocEvents()
	if err != nil {
		return nil, err
	}
	return activity.SuggestedDocs(docEvents, weights)
}

// newFileKeyWrappedUnder wraps a fresh file key under parentKey for a
// non-root file.
func newFileKeyWrappedUnder(parentKey crypto.FileKey) (crypto.FileKey, crypto.WrappedKey, error) {
	key := crypto.NewFileKey()
	wrapped, err := crypto.WrapSymmetric(key, parentKey)
	if err != nil {
		return crypto.FileKey{}, crypto.WrappedKey{}, err
	}
	return key, wrapped, nil
}
