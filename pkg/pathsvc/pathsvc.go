// Package pathsvc resolves between filesystem-style paths and file ids over
// a tree.LazyTree: parsing, path-to-id resolution (following links
// transparently), id-to-path rendering, filename validation, and
// unique-name generation.
package pathsvc

import (
	"strings"

	"github.com/google/uuid"
	"github.com/lockbook/lbcore/pkg/lberr"
	"github.com/lockbook/lbcore/pkg/model"
	"github.com/lockbook/lbcore/pkg/tree"
)

const (
	maxNameLength          = 230
	maxEncryptedNameLength = 254
)

// ParsePath splits path on "/", rejecting empty interior segments. A
// leading "/" is optional. A trailing "/" is preserved as a TrailingSlash
// flag (requested by create_at_path to force the last segment to be a
// folder) rather than an extra empty segment.
type ParsedPath struct {
	Segments     []string
	TrailingSlash bool
}

// ParsePath decomposes a path string.
func ParsePath(path string) (ParsedPath, error) {
	trimmed := strings.TrimPrefix(path, "/")
	trailing := strings.HasSuffix(trimmed, "/") && trimmed != ""
	trimmed = strings.TrimSuffix(trimmed, "/")

	if trimmed == "" {
		return ParsedPath{TrailingSlash: trailing}, nil
	}

	segments := strings.Split(trimmed, "/")
	for _, s := range segments {
		if s == "" {
			return ParsedPath{}, lberr.Of(lberr.PathContainsEmptyFileName)
		}
	}
	return ParsedPath{Segments: segments, TrailingSlash: trailing}, nil
}

// ValidateFileName checks a decrypted name against the spec's filename
// rules: non-empty, no "/", at most 230 characters.
func ValidateFileName(name string) error {
	if name == "" {
		return lberr.Of(lberr.FileNameEmpty)
	}
	if strings.Contains(name, "/") {
		return lberr.Of(lberr.FileNameContainsSlash)
	}
	if len(name) > maxNameLength {
		return lberr.Of(lberr.FileNameTooLong)
	}
	return nil
}

// ValidateEncryptedNameLength checks the AEAD-encrypted form against the
// 254-byte ceiling. crypto.Encrypt adds 28 bytes (a 12-byte nonce and a
// 16-byte GCM tag), so a name longer than 226 bytes exceeds it.
func ValidateEncryptedNameLength(ciphertext []byte) error {
	if len(ciphertext) > maxEncryptedNameLength {
		return lberr.Of(lberr.FileNameTooLong)
	}
	return nil
}

// Resolve walks from root, resolving each path segment by decrypted name
// against non-deleted children, transparently following links when a
// segment names a link.
func Resolve(t *tree.LazyTree, root uuid.UUID, path string) (uuid.UUID, error) {
	parsed, err := ParsePath(path)
	if err != nil {
		return uuid.Nil, err
	}

	current := root
	for _, segment := range parsed.Segments {
		next, err := findChildByName(t, current, segment)
		if err != nil {
			return uuid.Nil, err
		}
		current = next
	}
	return current, nil
}

func findChildByName(t *tree.LazyTree, parent uuid.UUID, name string) (uuid.UUID, error) {
	for id := range t.IDs() {
		f, err := t.Find(id)
		if err != nil {
			return uuid.Nil, err
		}
		uf := f.Unsigned()
		if uf.Parent != parent || uf.ID == parent {
			continue
		}
		deleted, err := t.CalculateDeleted(id)
		if err != nil {
			return uuid.Nil, err
		}
		if deleted {
			continue
		}

		childName, err := t.DecryptedName(id)
		if err != nil {
			return uuid.Nil, err
		}
		if childName != name {
			continue
		}

		if uf.Type == model.Link && uf.LinkTarget != nil {
			return *uf.LinkTarget, nil
		}
		return id, nil
	}
	return uuid.Nil, lberr.Of(lberr.FileNonexistent)
}

// Render walks id's parent chain to the root, joining decrypted names with
// "/". Equivalent to tree.LazyTree.Path but exposed here as the public
// path-service surface.
func Render(t *tree.LazyTree, id uuid.UUID) (string, error) {
	return t.Path(id)
}

// NextAvailableName returns base if it is free among siblings, else
// base-1, base-2, … until unique.
func NextAvailableName(base string, siblings map[string]struct{}) string {
	if _, taken := siblings[base]; !taken {
		return base
	}
	return ParseNameComponents(base).NextInChildren(siblings)
}

// SiblingNames collects the decrypted names of parent's non-deleted
// children, for collision checks and NextAvailableName.
func SiblingNames(t *tree.LazyTree, parent uuid.UUID, exclude uuid.UUID) (map[string]struct{}, error) {
	names := make(map[string]struct{})
	for id := range t.IDs() {
		if id == exclude {
			continue
		}
		f, err := t.Find(id)
		if err != nil {
			return nil, err
		}
		uf := f.Unsigned()
		if uf.Parent != parent || uf.ID == parent {
			continue
		}
		deleted, err := t.CalculateDeleted(id)
		if err != nil {
			return nil, err
		}
		if deleted {
			continue
		}
		name, err := t.DecryptedName(id)
		if err != nil {
			return nil, err
		}
		names[name] = struct{}{}
	}
	return names, nil
}
