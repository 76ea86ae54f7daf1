// Package model defines lbcore's encrypted, signed file-tree data model:
// unsigned file metadata, the signed envelope that wraps it, and the Owner
// identity derived from a public key.
package model

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/lockbook/lbcore/pkg/crypto"
	"github.com/lockbook/lbcore/pkg/lberr"
)

// Owner is the public key under which a file was created; the only key
// permitted to sign updates to it, other than a share grantee with write
// access. Equality and hashing are by serialized bytes.
type Owner struct {
	Key []byte
}

// NewOwner wraps a public key as an Owner.
func NewOwner(pub crypto.PublicKey) Owner {
	return Owner{Key: pub.Bytes()}
}

// PublicKey parses the owner back into a usable public key.
func (o Owner) PublicKey() (crypto.PublicKey, error) {
	return crypto.PublicKeyFromBytes(o.Key)
}

// Equal compares two owners by their serialized key bytes.
func (o Owner) Equal(other Owner) bool {
	return bytes.Equal(o.Key, other.Key)
}

// MapKey returns the owner's serialized key bytes as a string, usable as a
// map key.
func (o Owner) MapKey() string {
	return string(o.Key)
}

// FileType distinguishes documents, folders, and links.
type FileType int

const (
	Document FileType = iota
	Folder
	Link
)

func (t FileType) String() string {
	switch t {
	case Document:
		return "Document"
	case Folder:
		return "Folder"
	case Link:
		return "Link"
	default:
		return "Unknown"
	}
}

// EncryptedName is a file name encrypted under its file key: an HMAC for
// quick equality/lookup plus the AEAD ciphertext of the UTF-8 name.
type EncryptedName struct {
	Hmac       [32]byte
	Ciphertext []byte
}

// WrappedKey re-exports crypto.WrappedKey under the model package so
// callers working with UnsignedFile don't need to import pkg/crypto
// directly for this type.
type WrappedKey = crypto.WrappedKey

// UnsignedFile is one node of the file tree: a file or folder's metadata,
// unsigned. It is never persisted directly; it is always wrapped in a
// SignedFile.
type UnsignedFile struct {
	ID       uuid.UUID
	Parent   uuid.UUID // root's parent is itself
	Type     FileType
	LinkTarget *uuid.UUID // set iff Type == Link

	Name  EncryptedName
	Owner Owner

	IsDeleted bool

	// UserAccessKeys maps username -> the file key wrapped to that user's
	// public key via ECDH. Present on roots and shared files.
	UserAccessKeys map[string]WrappedKey

	// FolderAccessKey wraps the file key under the parent's file key.
	// Present on files nested under another file (i.e. not a root).
	FolderAccessKey *WrappedKey

	DocumentHmac *[32]byte
	DocumentSize *uint64
}

// IsRoot reports whether f is a root (its own parent).
func (f *UnsignedFile) IsRoot() bool {
	return f.Parent == f.ID
}

// TimestampedValue pairs a value with the clock reading at which it was
// produced. Timestamps are milliseconds since the epoch.
type TimestampedValue struct {
	Value     UnsignedFile
	Timestamp int64
}

// SignedFile is the on-the-wire, on-disk representation of a file: a
// timestamped value plus a detached signature by the owner's key.
//
// MetadataVersion and ContentVersion are server-assigned monotonic
// counters used by the sync engine to detect stale writes
// (OldVersionIncorrect) and to know which documents need fetching; they
// have no signed-envelope equivalent in the spec's abstract data model but
// are required to implement the sync contract in §6.
type SignedFile struct {
	TimestampedValue TimestampedValue
	Signature        crypto.Signature

	MetadataVersion uint64
	ContentVersion  uint64
}

// Unsigned is a convenience accessor for the wrapped value.
func (s SignedFile) Unsigned() UnsignedFile {
	return s.TimestampedValue.Value
}

// EncryptName AEAD-encrypts name under key and computes its lookup HMAC —
// the inverse of a tree.LazyTree's DecryptedName.
func EncryptName(key crypto.FileKey, name string) (EncryptedName, error) {
	ciphertext, err := crypto.Encrypt(key, []byte(name))
	if err != nil {
		return EncryptedName{}, err
	}
	return EncryptedName{
		Hmac:       crypto.DocumentHmac(key, []byte(name)),
		Ciphertext: ciphertext,
	}, nil
}

// canonicalBytes deterministically serializes a TimestampedValue for
// signing. JSON with sorted map keys (Go's encoding/json already sorts map
// keys on marshal) gives a stable encoding across processes.
func canonicalBytes(tv TimestampedValue) ([]byte, error) {
	b, err := json.Marshal(tv)
	if err != nil {
		return nil, lberr.UnexpectedErr("marshal timestamped value: %v", err)
	}
	return b, nil
}

// Sign wraps value in a TimestampedValue at the given timestamp and signs
// it with priv, whose public key must equal value.Owner.
func Sign(value UnsignedFile, priv crypto.PrivateKey, timestampMillis int64) (SignedFile, error) {
	tv := TimestampedValue{Value: value, Timestamp: timestampMillis}
	data, err := canonicalBytes(tv)
	if err != nil {
		return SignedFile{}, err
	}
	sig := crypto.Sign(priv, data)
	return SignedFile{TimestampedValue: tv, Signature: sig}, nil
}

// Verify re-serializes the envelope's value and checks the signature,
// returning the signer's Owner identity. Every file read from disk or
// received from the server must pass through Verify before entering
// in-memory caches.
func Verify(s SignedFile) (Owner, error) {
	data, err := canonicalBytes(s.TimestampedValue)
	if err != nil {
		return Owner{}, err
	}
	pub, err := crypto.Verify(s.Signature, data)
	if err != nil {
		return Owner{}, err
	}
	return NewOwner(pub), nil
}
