package sync

import (
	"reflect"
	"strconv"

	"github.com/google/uuid"

	"github.com/lockbook/lbcore/pkg/crypto"
	"github.com/lockbook/lbcore/pkg/lbmetrics"
	"github.com/lockbook/lbcore/pkg/model"
	"github.com/lockbook/lbcore/pkg/tree"
)

// conflictSibling describes a document-content conflict detected during a
// pull merge: both the local staged copy and the incoming server update
// changed the document since base. Per spec.md §4.9 ("Open Question:
// document conflict resolution" — resolved as dual-file, see DESIGN.md),
// the local edit wins at the original id, and a new sibling document is
// materialized carrying the server's content.
type conflictSibling struct {
	id         uuid.UUID
	parent     uuid.UUID
	baseName   string
	serverFile model.SignedFile
}

// mergeOne folds one server update into the staged overlay, three-way
// merging against any conflicting local staged edit.
func (e *Engine) mergeOne(lazy *tree.LazyTree, t *tree.StagedTree, update model.SignedFile) error {
	id := update.Unsigned().ID

	local, hasLocal := t.Staged.MaybeFind(id)
	if !hasLocal {
		t.Base.Insert(update)
		return nil
	}
	if update.Unsigned().IsDeleted {
		// The server reports the file deleted: the local edit is discarded.
		t.Base.Insert(update)
		t.Staged.Remove(id)
		return nil
	}

	base, hasBase := t.Base.MaybeFind(id)
	if !hasBase {
		// Locally created and independently created server-side under the
		// same id cannot happen (ids are client-generated UUIDs); treat the
		// server as authoritative and drop the conflicting local staged
		// entry rather than leaving an inconsistent tree.
		t.Base.Insert(update)
		t.Staged.Remove(id)
		return nil
	}

	merged, conflict, err := e.mergeFields(base, local, update)
	if err != nil {
		return err
	}

	t.Base.Insert(update)
	t.Insert(merged)

	if conflict != nil {
		if err := e.materializeConflict(lazy, t, *conflict); err != nil {
			return err
		}
	}
	return nil
}

// mergeFields applies spec.md §4.9's per-field merge rules and re-signs the
// result with this engine's account key. It returns a non-nil conflict when
// the document content diverged on both sides.
func (e *Engine) mergeFields(base, local, server model.SignedFile) (model.SignedFile, *conflictSibling, error) {
	baseUf := base.Unsigned()
	localUf := local.Unsigned()
	serverUf := server.Unsigned()

	merged := localUf

	if baseUf.Parent == localUf.Parent {
		merged.Parent = serverUf.Parent
	}
	if baseUf.Name.Hmac == localUf.Name.Hmac {
		merged.Name = serverUf.Name
	}
	merged.IsDeleted = localUf.IsDeleted || serverUf.IsDeleted
	merged.UserAccessKeys = unionAccessKeys(localUf.UserAccessKeys, serverUf.UserAccessKeys)

	if reflect.DeepEqual(baseUf.FolderAccessKey, localUf.FolderAccessKey) {
		merged.FolderAccessKey = serverUf.FolderAccessKey
	}

	var conflict *conflictSibling
	localChanged := !hmacPtrEqual(baseUf.DocumentHmac, localUf.DocumentHmac)
	serverChanged := !hmacPtrEqual(baseUf.DocumentHmac, serverUf.DocumentHmac)

	switch {
	case localChanged && serverChanged && !hmacPtrEqual(localUf.DocumentHmac, serverUf.DocumentHmac):
		// merged already carries the local document (copied from localUf);
		// record the server's version as a sibling to materialize.
		conflict = &conflictSibling{
			id:         localUf.ID,
			parent:     merged.Parent,
			serverFile: server,
		}
		lbmetrics.ConflictsTotal.Inc()
	case serverChanged:
		merged.DocumentHmac = serverUf.DocumentHmac
		merged.DocumentSize = serverUf.DocumentSize
	}

	signed, err := e.sign(merged, local.MetadataVersion, local.ContentVersion)
	if err != nil {
		return model.SignedFile{}, nil, err
	}
	return signed, conflict, nil
}

// materializeConflict creates a new sibling document under conflict's
// parent, with a fresh file key and its own copy of the server's content,
// named "<original name>-CONFLICT-<unix ms>".
func (e *Engine) materializeConflict(lazy *tree.LazyTree, t *tree.StagedTree, c conflictSibling) error {
	lazy.Invalidate()
	originalName, err := lazy.DecryptedName(c.id)
	if err != nil {
		return err
	}
	parentKey, err := lazy.DecryptedKey(c.parent)
	if err != nil {
		return err
	}

	conflictName := originalName + "-CONFLICT-" + strconv.FormatInt(e.Clock.NowMillis(), 10)
	fileKey := crypto.NewFileKey()
	encName, err := model.EncryptName(fileKey, conflictName)
	if err != nil {
		return err
	}
	wrappedKey, err := crypto.WrapSymmetric(fileKey, parentKey)
	if err != nil {
		return err
	}

	serverUf := c.serverFile.Unsigned()
	uf := model.UnsignedFile{
		ID:              uuid.New(),
		Parent:          c.parent,
		Type:            model.Document,
		Name:            encName,
		Owner:           model.NewOwner(e.Account.PublicKey()),
		FolderAccessKey: &wrappedKey,
		DocumentHmac:    serverUf.DocumentHmac,
		DocumentSize:    serverUf.DocumentSize,
	}

	signed, err := e.sign(uf, 0, c.serverFile.ContentVersion)
	if err != nil {
		return err
	}
	t.Insert(signed)
	return nil
}

func unionAccessKeys(local, server map[string]model.WrappedKey) map[string]model.WrappedKey {
	out := make(map[string]model.WrappedKey, len(local)+len(server))
	for k, v := range server {
		out[k] = v
	}
	for k, v := range local {
		out[k] = v
	}
	return out
}

func hmacPtrEqual(a, b *[32]byte) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// sign stamps value into a freshly signed envelope at the engine's current
// clock reading, preserving the server-assigned version counters.
func (e *Engine) sign(value model.UnsignedFile, metadataVersion, contentVersion uint64) (model.SignedFile, error) {
	signed, err := model.Sign(value, e.Account.PrivateKey(), e.Clock.NowMillis())
	if err != nil {
		return model.SignedFile{}, err
	}
	signed.MetadataVersion = metadataVersion
	signed.ContentVersion = contentVersion
	return signed, nil
}

// resignWithName re-encrypts uf's name under key and re-signs, used by
// autoRename to produce a validly signed envelope instead of mutating a
// signed file's name in place.
func (e *Engine) resignWithName(uf model.UnsignedFile, key crypto.FileKey, newName string, metadataVersion, contentVersion uint64) (model.SignedFile, error) {
	encName, err := model.EncryptName(key, newName)
	if err != nil {
		return model.SignedFile{}, err
	}
	uf.Name = encName
	return e.sign(uf, metadataVersion, contentVersion)
}
