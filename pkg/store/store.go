// Package store is lbcore's persistent, single-process embedded key-value
// store: account/installation/sync-marker singletons, base and staged file
// metadata, the public-key-to-username cache, and the document activity
// log, each in its own bbolt bucket — grounded on the teacher's
// bucket-per-entity BoltStore (db.Update/db.View, json.Marshal per record).
package store

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/lockbook/lbcore/pkg/lberr"
	"github.com/lockbook/lbcore/pkg/model"
)

var (
	bucketMeta          = []byte("meta")
	bucketBaseMetadata  = []byte("base_metadata")
	bucketLocalMetadata = []byte("local_metadata")
	bucketPubKeyLookup  = []byte("pub_key_lookup")
	bucketDocEvents     = []byte("doc_events")
)

const (
	keyInstallationID = "installation_id"
	keyAccount        = "account"
	keyLastSynced     = "last_synced"
	keyRoot           = "root"
)

// maxDocEvents caps the append-only activity log, per spec.md 4.10
// ("the list is capped, implementation detail, order of thousands").
const maxDocEvents = 5000

// Store is lbcore's persistent store, rooted at a single bbolt file.
//
// A single sync.RWMutex additionally guards the Go-API level: bbolt itself
// serializes writers, but the spec's single-global-lock contract also
// serializes construction of a tree.LazyTree across the read and write
// paths, so concurrent callers never observe two LazyTrees over the same
// generation of data.
type Store struct {
	db *bolt.DB
	mu sync.RWMutex
}

// Open opens (creating if absent) the bbolt file at dbPath and ensures all
// buckets exist.
func Open(dbPath string) (*Store, error) {
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, lberr.UnexpectedErr("open store: %v", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketBaseMetadata, bucketLocalMetadata, bucketPubKeyLookup, bucketDocEvents} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, lberr.UnexpectedErr("init buckets: %v", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying bbolt file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Lock acquires the store's write lock. Callers constructing a
// tree.LazyTree over a mutable view must hold this for the view's lifetime.
func (s *Store) Lock()   { s.mu.Lock() }
func (s *Store) Unlock() { s.mu.Unlock() }

// RLock acquires the store's read lock for read-only tree views.
func (s *Store) RLock()   { s.mu.RLock() }
func (s *Store) RUnlock() { s.mu.RUnlock() }

func getBucketValue(tx *bolt.Tx, bucket []byte, key string) ([]byte, bool) {
	b := tx.Bucket(bucket).Get([]byte(key))
	if b == nil {
		return nil, false
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true
}

// InstallationID returns the per-installation identifier, generating and
// persisting one on first run.
func (s *Store) InstallationID() (string, error) {
	var id string
	err := s.db.Update(func(tx *bolt.Tx) error {
		if raw, ok := getBucketValue(tx, bucketMeta, keyInstallationID); ok {
			id = string(raw)
			return nil
		}
		id = uuid.NewString()
		return tx.Bucket(bucketMeta).Put([]byte(keyInstallationID), []byte(id))
	})
	if err != nil {
		return "", lberr.UnexpectedErr("installation id: %v", err)
	}
	return id, nil
}

// GetAccount returns the locally stored account, if any.
func (s *Store) GetAccount() (json.RawMessage, bool, error) {
	var out json.RawMessage
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw, found := getBucketValue(tx, bucketMeta, keyAccount)
		ok = found
		out = raw
		return nil
	})
	return out, ok, err
}

// SetAccount persists the account blob. Returns AccountExists if one is
// already stored, matching "the core refuses to create or import an
// account when one already exists locally."
func (s *Store) SetAccount(accountJSON []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if _, ok := getBucketValue(tx, bucketMeta, keyAccount); ok {
			return lberr.Of(lberr.AccountExists)
		}
		return tx.Bucket(bucketMeta).Put([]byte(keyAccount), accountJSON)
	})
}

// ClearAccount removes the account, root, and last-sync marker (used by
// DeleteAccount).
func (s *Store) ClearAccount() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		for _, k := range []string{keyAccount, keyRoot, keyLastSynced} {
			if err := meta.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRoot returns the root file id, if set.
func (s *Store) GetRoot() (uuid.UUID, bool, error) {
	var id uuid.UUID
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw, found := getBucketValue(tx, bucketMeta, keyRoot)
		if !found {
			return nil
		}
		parsed, err := uuid.ParseBytes(raw)
		if err != nil {
			return err
		}
		id, ok = parsed, true
		return nil
	})
	return id, ok, err
}

// SetRoot persists the root file id.
func (s *Store) SetRoot(id uuid.UUID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put([]byte(keyRoot), []byte(id.String()))
	})
}

// GetLastSynced returns the last-sync marker (server metadata_version high
// water mark), 0 if never synced.
func (s *Store) GetLastSynced() (uint64, error) {
	var v uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		raw, ok := getBucketValue(tx, bucketMeta, keyLastSynced)
		if !ok {
			return nil
		}
		return json.Unmarshal(raw, &v)
	})
	return v, err
}

// SetLastSynced persists the last-sync marker.
func (s *Store) SetLastSynced(version uint64) error {
	raw, err := json.Marshal(version)
	if err != nil {
		return lberr.UnexpectedErr("marshal last synced: %v", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put([]byte(keyLastSynced), raw)
	})
}

func putSignedFile(tx *bolt.Tx, bucket []byte, f model.SignedFile) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return lberr.UnexpectedErr("marshal signed file: %v", err)
	}
	return tx.Bucket(bucket).Put([]byte(f.Unsigned().ID.String()), raw)
}

func allSignedFiles(tx *bolt.Tx, bucket []byte) (map[uuid.UUID]model.SignedFile, error) {
	out := make(map[uuid.UUID]model.SignedFile)
	err := tx.Bucket(bucket).ForEach(func(k, v []byte) error {
		var f model.SignedFile
		if err := json.Unmarshal(v, &f); err != nil {
			return err
		}
		id, err := uuid.Parse(string(k))
		if err != nil {
			return err
		}
		out[id] = f
		return nil
	})
	if err != nil {
		return nil, lberr.UnexpectedErr("scan bucket: %v", err)
	}
	return out, nil
}

// LoadBaseMetadata returns the full base_metadata table.
func (s *Store) LoadBaseMetadata() (map[uuid.UUID]model.SignedFile, error) {
	var out map[uuid.UUID]model.SignedFile
	err := s.db.View(func(tx *bolt.Tx) error {
		m, err := allSignedFiles(tx, bucketBaseMetadata)
		out = m
		return err
	})
	return out, err
}

// LoadLocalMetadata returns the full local_metadata (staged overlay) table.
func (s *Store) LoadLocalMetadata() (map[uuid.UUID]model.SignedFile, error) {
	var out map[uuid.UUID]model.SignedFile
	err := s.db.View(func(tx *bolt.Tx) error {
		m, err := allSignedFiles(tx, bucketLocalMetadata)
		out = m
		return err
	})
	return out, err
}

// SaveTrees overwrites base_metadata and local_metadata with the given
// contents in a single transaction, called by pkg/core after every
// successful mutation and by pkg/sync when it promotes a completed sync.
func (s *Store) SaveTrees(base, staged map[uuid.UUID]model.SignedFile) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketBaseMetadata, bucketLocalMetadata} {
			if err := tx.DeleteBucket(bucket); err != nil && err != bolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket(bucket); err != nil {
				return err
			}
		}
		for _, f := range base {
			if err := putSignedFile(tx, bucketBaseMetadata, f); err != nil {
				return err
			}
		}
		for _, f := range staged {
			if err := putSignedFile(tx, bucketLocalMetadata, f); err != nil {
				return err
			}
		}
		return nil
	})
}

// LookupUsername returns the cached username for an owner's public key.
func (s *Store) LookupUsername(owner model.Owner) (string, bool, error) {
	var name string
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw, found := getBucketValue(tx, bucketPubKeyLookup, string(owner.Key))
		ok = found
		if found {
			name = string(raw)
		}
		return nil
	})
	return name, ok, err
}

// CachePubKey records owner -> username. Only ever called inside the
// store's write lock, per the concurrency model.
func (s *Store) CachePubKey(owner model.Owner, username string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPubKeyLookup).Put([]byte(owner.Key), []byte(username))
	})
}
