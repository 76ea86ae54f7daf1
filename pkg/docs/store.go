// Package docs implements the content-addressed document blob store: files
// are laid out at <root>/documents/<file-id>-<base64url(hmac)>, written
// atomically via a .pending file plus rename, and garbage-collected by
// Retain against a live set of (id, hmac) pairs referenced from metadata.
package docs

import (
	"encoding/base64"
	"encoding/gob"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/lockbook/lbcore/pkg/lberr"
)

// Key identifies one document blob.
type Key struct {
	ID   uuid.UUID
	Hmac [32]byte
}

// envelope is the on-disk encoding of one document blob. gob is used here
// rather than the JSON the rest of lbcore's persisted records use because
// the payload is a single opaque encrypted byte string with no further
// structure to name; the HMAC is carried in the file name, not in the
// envelope — see DESIGN.md.
type envelope struct {
	Ciphertext []byte
}

// Store is the on-disk document blob store rooted at a directory.
type Store struct {
	root string
}

// NewStore returns a Store rooted at <writeablePath>/documents, creating
// the directory if absent.
func NewStore(writeablePath string) (*Store, error) {
	root := filepath.Join(writeablePath, "documents")
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, lberr.New(lberr.DiskPathInvalid, err.Error())
	}
	return &Store{root: root}, nil
}

func (s *Store) pathFor(k Key) string {
	return filepath.Join(s.root, k.ID.String()+"-"+base64.URLEncoding.EncodeToString(k.Hmac[:]))
}

// Insert writes ciphertext under (id, hmac), atomically. A no-op when
// ciphertext is nil (meaning the caller has no document content).
func (s *Store) Insert(id uuid.UUID, hmac [32]byte, ciphertext []byte) error {
	if ciphertext == nil {
		return nil
	}
	k := Key{ID: id, Hmac: hmac}
	finalPath := s.pathFor(k)
	pendingPath := finalPath + ".pending"

	f, err := os.OpenFile(pendingPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return lberr.UnexpectedErr("open pending document: %v", err)
	}
	enc := gob.NewEncoder(f)
	if err := enc.Encode(envelope{Ciphertext: ciphertext}); err != nil {
		f.Close()
		os.Remove(pendingPath)
		return lberr.UnexpectedErr("encode document: %v", err)
	}
	if err := f.Close(); err != nil {
		return lberr.UnexpectedErr("close pending document: %v", err)
	}
	if err := os.Rename(pendingPath, finalPath); err != nil {
		return lberr.UnexpectedErr("commit document: %v", err)
	}
	return nil
}

// Get reads and decodes the ciphertext stored at (id, hmac).
func (s *Store) Get(id uuid.UUID, hmac [32]byte) ([]byte, error) {
	ciphertext, ok, err := s.MaybeGet(id, hmac)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, lberr.Of(lberr.FileNonexistent)
	}
	return ciphertext, nil
}

// MaybeGet is Get without an error for the not-found case.
func (s *Store) MaybeGet(id uuid.UUID, hmac [32]byte) ([]byte, bool, error) {
	k := Key{ID: id, Hmac: hmac}
	f, err := os.Open(s.pathFor(k))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, lberr.UnexpectedErr("open document: %v", err)
	}
	defer f.Close()

	var env envelope
	if err := gob.NewDecoder(f).Decode(&env); err != nil {
		return nil, false, lberr.UnexpectedErr("decode document: %v", err)
	}
	return env.Ciphertext, true, nil
}

// Delete removes the blob at (id, hmac) if present.
func (s *Store) Delete(id uuid.UUID, hmac [32]byte) error {
	k := Key{ID: id, Hmac: hmac}
	if err := os.Remove(s.pathFor(k)); err != nil && !os.IsNotExist(err) {
		return lberr.UnexpectedErr("delete document: %v", err)
	}
	return nil
}

// Retain lists the document directory and deletes every blob whose (id,
// hmac) is not in live. A name that fails to parse indicates store
// corruption and is reported as an error; the caller (pkg/sync) logs and
// continues rather than treating it as fatal, per spec.
func (s *Store) Retain(live map[Key]struct{}) (removed int, err error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, lberr.UnexpectedErr("read documents directory: %v", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".pending") {
			continue
		}
		k, parseErr := parseKey(name)
		if parseErr != nil {
			return removed, lberr.UnexpectedErr("corrupt document filename %q: %v", name, parseErr)
		}
		if _, ok := live[k]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, name)); err != nil && !os.IsNotExist(err) {
			return removed, lberr.UnexpectedErr("gc document %q: %v", name, err)
		}
		removed++
	}
	return removed, nil
}

func parseKey(name string) (Key, error) {
	idx := strings.LastIndex(name, "-")
	if idx < 0 {
		return Key{}, lberr.UnexpectedErr("missing separator in %q", name)
	}
	idPart, hmacPart := name[:idx], name[idx+1:]

	id, err := uuid.Parse(idPart)
	if err != nil {
		return Key{}, err
	}
	hmacBytes, err := base64.URLEncoding.DecodeString(hmacPart)
	if err != nil {
		return Key{}, err
	}
	if len(hmacBytes) != 32 {
		return Key{}, lberr.UnexpectedErr("hmac wrong length in %q", name)
	}

	var k Key
	k.ID = id
	copy(k.Hmac[:], hmacBytes)
	return k, nil
}
