// Package sync implements lbcore's sync engine: work calculation, the pull
// three-way merge, validation with auto-rename-on-conflict, document
// fetch/push, and promotion — ported from the original core's
// FileSyncService (calculate_work / sync retry loop), adapted to Go's
// explicit error returns and an events.Broker for progress instead of a
// bare callback.
package sync

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/lockbook/lbcore/pkg/account"
	"github.com/lockbook/lbcore/pkg/apiclient"
	"github.com/lockbook/lbcore/pkg/clock"
	"github.com/lockbook/lbcore/pkg/docs"
	"github.com/lockbook/lbcore/pkg/events"
	"github.com/lockbook/lbcore/pkg/lberr"
	"github.com/lockbook/lbcore/pkg/lblog"
	"github.com/lockbook/lbcore/pkg/lbmetrics"
	"github.com/lockbook/lbcore/pkg/model"
	"github.com/lockbook/lbcore/pkg/pathsvc"
	"github.com/lockbook/lbcore/pkg/store"
	"github.com/lockbook/lbcore/pkg/tree"
)

// DefaultMaxRetries bounds the OldVersionIncorrect restart loop. spec.md
// §4.9 states a default of 5; the original FileSyncService used a 10-pass
// loop, but spec.md is explicit here and takes precedence (see DESIGN.md).
const DefaultMaxRetries = 5

// ProgressFunc receives the engine's progress events, in the order: pulling
// metadata, merging (once before the merge and once after each server
// update), downloading each missing document, pushing metadata (one per
// staged file), uploading each changed document, then done. Validation
// publishes no event.
type ProgressFunc func(events.Event)

// Engine runs sync for one account against one server.
type Engine struct {
	Store   *store.Store
	Docs    *docs.Store
	Client  *apiclient.Client
	Broker  *events.Broker
	Account account.Account
	Clock   clock.Clock

	syncing atomic.Bool
}

// NewEngine constructs a sync Engine.
func NewEngine(s *store.Store, d *docs.Store, c *apiclient.Client, broker *events.Broker, acc account.Account, clk clock.Clock) *Engine {
	return &Engine{Store: s, Docs: d, Client: c, Broker: broker, Account: acc, Clock: clk}
}

// CalculateWork reports pending local and server changes without mutating
// any state.
func (e *Engine) CalculateWork(ctx context.Context) (Work, error) {
	staged, err := e.Store.LoadLocalMetadata()
	if err != nil {
		return Work{}, err
	}
	lastSynced, err := e.Store.GetLastSynced()
	if err != nil {
		return Work{}, err
	}

	resp, err := e.Client.GetUpdates(ctx, lastSynced)
	if err != nil {
		return Work{}, err
	}

	local := make([]uuid.UUID, 0, len(staged))
	for id := range staged {
		local = append(local, id)
	}

	return Work{LocalChanges: local, ServerChanges: resp.Updates}, nil
}

func (e *Engine) publish(kind events.Kind, msg string, count, total int) {
	if e.Broker != nil {
		e.Broker.Publish(events.Event{Kind: kind, Message: msg, Count: count, Total: total})
	}
}

// Sync runs the full pull/push algorithm. progress, if non-nil, is
// additionally subscribed to the engine's broker for the duration of the
// call.
func (e *Engine) Sync(ctx context.Context, progress ProgressFunc) error {
	if !e.syncing.CompareAndSwap(false, true) {
		lbmetrics.SyncTotal.WithLabelValues("already_syncing").Inc()
		return lberr.Of(lberr.AlreadySyncing)
	}
	defer e.syncing.Store(false)

	var unsubscribe func()
	if progress != nil && e.Broker != nil {
		sub := e.Broker.Subscribe()
		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range sub {
				progress(ev)
			}
		}()
		unsubscribe = func() {
			e.Broker.Unsubscribe(sub)
			<-done
		}
		defer unsubscribe()
	}

	if err := e.Client.Ping(ctx); err != nil {
		lbmetrics.SyncTotal.WithLabelValues("error").Inc()
		return lberr.Of(lberr.ServerUnreachable)
	}

	timer := lbmetrics.NewTimer()
	var lastErr error
	for attempt := 0; attempt < DefaultMaxRetries; attempt++ {
		err := e.syncOnce(ctx)
		if err == nil {
			timer.ObserveDuration(lbmetrics.SyncDuration)
			lbmetrics.SyncTotal.WithLabelValues("ok").Inc()
			e.publish(events.KindDone, "sync complete", 0, 0)
			return nil
		}
		if !lberr.Is(err, lberr.OldVersionIncorrect) {
			lbmetrics.SyncTotal.WithLabelValues("error").Inc()
			return err
		}
		lastErr = err
		lblog.WithComponent("sync").Warn().Int("attempt", attempt+1).Msg("stale base version, restarting sync")
	}
	lbmetrics.SyncTotal.WithLabelValues("error").Inc()
	return lastErr
}

func (e *Engine) syncOnce(ctx context.Context) error {
	base, err := e.Store.LoadBaseMetadata()
	if err != nil {
		return err
	}
	staged, err := e.Store.LoadLocalMetadata()
	if err != nil {
		return err
	}
	lastSynced, err := e.Store.GetLastSynced()
	if err != nil {
		return err
	}

	// Step 1: fetch server updates.
	e.publish(events.KindPullMetadata, "pulling metadata", 0, 0)
	resp, err := e.Client.GetUpdates(ctx, lastSynced)
	if err != nil {
		return err
	}

	baseTree := tree.NewMapTree(base)
	stagedOverlay := &tree.StagedTree{Base: baseTree, Staged: tree.NewMapTree(staged)}
	lazy := tree.NewLazyTree(stagedOverlay, e.Account)

	// Step 2: pull merge.
	e.publish(events.KindPullMerge, "merging", 0, len(resp.Updates))
	newMax := lastSynced
	for i, update := range resp.Updates {
		if update.MetadataVersion > newMax {
			newMax = update.MetadataVersion
		}
		if _, err := model.Verify(update); err != nil {
			lblog.WithComponent("sync").Warn().Str("file", update.Unsigned().ID.String()).Msg("skipping file with invalid signature")
			continue
		}

		if err := e.mergeOne(lazy, stagedOverlay, update); err != nil {
			return err
		}
		e.publish(events.KindPullMerge, "merging", i+1, len(resp.Updates))
	}

	// Step 3: validate, auto-renaming on PathConflict.
	if err := e.validateWithAutoRename(lazy, stagedOverlay); err != nil {
		return err
	}

	// Step 4: fetch missing documents referenced by the merged tree.
	if err := e.fetchMissingDocuments(ctx, stagedOverlay); err != nil {
		return err
	}

	// Step 5: push.
	newVersion, err := e.push(ctx, stagedOverlay)
	if err != nil {
		return err
	}
	if newVersion > newMax {
		newMax = newVersion
	}

	// Step 6: promote.
	stagedOverlay.PromoteAll()
	if err := e.Store.SaveTrees(stagedOverlay.Base.Files(), stagedOverlay.Staged.Files()); err != nil {
		return err
	}
	if err := e.Store.SetLastSynced(newMax); err != nil {
		return err
	}

	// Step 7: garbage-collect documents, outside the above transaction;
	// failures are logged but not fatal.
	live := liveDocKeys(stagedOverlay.Base.Files())
	if n, err := e.Docs.Retain(live); err != nil {
		lblog.WithComponent("sync").Error().Err(err).Msg("document gc failed")
	} else {
		lbmetrics.DocsGCedTotal.Add(float64(n))
	}

	return nil
}

func liveDocKeys(files map[uuid.UUID]model.SignedFile) map[docs.Key]struct{} {
	live := make(map[docs.Key]struct{})
	for id, f := range files {
		if hmac := f.Unsigned().DocumentHmac; hmac != nil {
			live[docs.Key{ID: id, Hmac: *hmac}] = struct{}{}
		}
	}
	return live
}

func (e *Engine) fetchMissingDocuments(ctx context.Context, t *tree.StagedTree) error {
	ids := t.IDs()
	i, total := 0, len(ids)
	for id := range ids {
		f, _ := t.MaybeFind(id)
		uf := f.Unsigned()
		i++
		if uf.DocumentHmac == nil {
			continue
		}
		if _, ok, err := e.Docs.MaybeGet(id, *uf.DocumentHmac); err != nil {
			return err
		} else if ok {
			continue
		}

		e.publish(events.KindDownloadDoc, "downloading document", i, total)
		resp, err := e.Client.GetDocument(ctx, apiclient.GetDocumentRequest{ID: id, ContentVersion: f.ContentVersion})
		if err != nil {
			lblog.WithComponent("sync").Warn().Str("file", id.String()).Err(err).Msg("failed to fetch document, skipping")
			continue
		}
		if err := e.Docs.Insert(id, *uf.DocumentHmac, resp.Content); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) push(ctx context.Context, t *tree.StagedTree) (uint64, error) {
	stagedIDs := t.Staged.IDs()
	if len(stagedIDs) == 0 {
		lastSynced, err := e.Store.GetLastSynced()
		return lastSynced, err
	}

	updates := make([]apiclient.MetadataUpdate, 0, len(stagedIDs))
	i := 0
	for id := range stagedIDs {
		f, _ := t.Staged.MaybeFind(id)
		update := apiclient.MetadataUpdate{New: f}
		if baseFile, ok := t.Base.MaybeFind(id); ok {
			old := baseFile
			update.Old = &old
		}
		updates = append(updates, update)
		i++
		e.publish(events.KindPushMetadata, "pushing metadata", i, len(stagedIDs))
	}

	resp, err := e.Client.UpsertFileMetadata(ctx, updates)
	if err != nil {
		return 0, err
	}

	i = 0
	for id := range stagedIDs {
		f, _ := t.Staged.MaybeFind(id)
		uf := f.Unsigned()
		baseFile, hadBase := t.Base.MaybeFind(id)
		i++
		if uf.DocumentHmac == nil {
			continue
		}
		if hadBase && baseFile.Unsigned().DocumentHmac != nil && *baseFile.Unsigned().DocumentHmac == *uf.DocumentHmac {
			continue // document unchanged, only metadata moved
		}
		ciphertext, err := e.Docs.Get(id, *uf.DocumentHmac)
		if err != nil {
			return 0, err
		}
		var oldVersion uint64
		if hadBase {
			oldVersion = baseFile.MetadataVersion
		}
		e.publish(events.KindPushDoc, "uploading document", i, len(stagedIDs))
		if _, err := e.Client.ChangeDocumentContent(ctx, apiclient.ChangeDocumentContentRequest{
			ID:                 id,
			OldMetadataVersion: oldVersion,
			NewContent:         ciphertext,
		}); err != nil {
			return 0, err
		}
	}

	// Stamp the server-assigned version onto every pushed entry so
	// promotion carries it into base.
	for id := range stagedIDs {
		f, _ := t.Staged.MaybeFind(id)
		f.MetadataVersion = resp.NewVersion
		t.Staged.Insert(f)
	}

	return resp.NewVersion, nil
}

func (e *Engine) validateWithAutoRename(lazy *tree.LazyTree, t *tree.StagedTree) error {
	const maxAttempts = 1000
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lazy.Invalidate()
		err := tree.Validate(lazy)
		if err == nil {
			return nil
		}
		failure, ok := err.(tree.Failure)
		if !ok || failure.Kind != tree.PathConflict {
			return err
		}
		if err := e.autoRename(lazy, t, failure.FileID); err != nil {
			return err
		}
	}
	return lberr.UnexpectedErr("validation did not converge after %d auto-rename attempts", maxAttempts)
}

func (e *Engine) autoRename(lazy *tree.LazyTree, t *tree.StagedTree, id uuid.UUID) error {
	f, err := t.Find(id)
	if err != nil {
		return err
	}
	uf := f.Unsigned()

	lazy.Invalidate()
	siblings, err := pathsvc.SiblingNames(lazy, uf.Parent, id)
	if err != nil {
		return err
	}
	name, err := lazy.DecryptedName(id)
	if err != nil {
		return err
	}

	newName := pathsvc.NextAvailableName(name, siblings)
	key, err := lazy.DecryptedKey(id)
	if err != nil {
		return err
	}
	renamed, err := e.resignWithName(uf, key, newName, f.MetadataVersion, f.ContentVersion)
	if err != nil {
		return err
	}
	t.Insert(renamed)
	return nil
}
