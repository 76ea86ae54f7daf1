package core_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockbook/lbcore/pkg/apiclient"
	"github.com/lockbook/lbcore/pkg/core"
	"github.com/lockbook/lbcore/pkg/model"
)

// fakeServer is a minimal, in-memory stand-in for a Lockbook sync server: it
// implements just enough of the wire protocol (pkg/apiclient) to drive a
// full create/write/sync/pull round trip across two independent Core
// instances sharing one account.
type fakeServer struct {
	mu       sync.Mutex
	pubKeys  map[string][]byte
	files    map[uuid.UUID]model.SignedFile
	contents map[string][]byte
	version  uint64
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		pubKeys:  make(map[string][]byte),
		files:    make(map[uuid.UUID]model.SignedFile),
		contents: make(map[string][]byte),
	}
}

func docKey(id uuid.UUID, hmac [32]byte) string {
	return id.String() + string(hmac[:])
}

func (s *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/new-account", s.handleNewAccount)
	mux.HandleFunc("/get-public-key", s.handleGetPublicKey)
	mux.HandleFunc("/get-updates", s.handleGetUpdates)
	mux.HandleFunc("/upsert-file-metadata", s.handleUpsertFileMetadata)
	mux.HandleFunc("/change-document-content", s.handleChangeDocumentContent)
	mux.HandleFunc("/get-document", s.handleGetDocument)
	mux.HandleFunc("/delete-account", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, struct{}{})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *fakeServer) handleNewAccount(w http.ResponseWriter, r *http.Request) {
	var req apiclient.NewAccountRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pubKeys[req.Username] = req.PublicKey
	s.version++
	req.RootFolder.MetadataVersion = s.version
	s.files[req.RootFolder.Unsigned().ID] = req.RootFolder

	writeJSON(w, apiclient.NewAccountResponse{LastSyncedVersion: s.version})
}

func (s *fakeServer) handleGetPublicKey(w http.ResponseWriter, r *http.Request) {
	var req apiclient.GetPublicKeyRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	pub, ok := s.pubKeys[req.Username]
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]string{"kind": "UsernameNotFound"})
		return
	}
	writeJSON(w, apiclient.GetPublicKeyResponse{PublicKey: pub})
}

func (s *fakeServer) handleGetUpdates(w http.ResponseWriter, r *http.Request) {
	var req apiclient.GetUpdatesRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	defer s.mu.Unlock()
	var updates []model.SignedFile
	for _, f := range s.files {
		if f.MetadataVersion > req.SinceVersion {
			updates = append(updates, f)
		}
	}
	writeJSON(w, apiclient.GetUpdatesResponse{Updates: updates})
}

func (s *fakeServer) handleUpsertFileMetadata(w http.ResponseWriter, r *http.Request) {
	var req apiclient.UpsertFileMetadataRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	for _, u := range req.Updates {
		u.New.MetadataVersion = s.version
		s.files[u.New.Unsigned().ID] = u.New
	}
	writeJSON(w, apiclient.UpsertFileMetadataResponse{NewVersion: s.version})
}

func (s *fakeServer) handleChangeDocumentContent(w http.ResponseWriter, r *http.Request) {
	var req apiclient.ChangeDocumentContentRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[req.ID]
	if ok && f.Unsigned().DocumentHmac != nil {
		s.contents[docKey(req.ID, *f.Unsigned().DocumentHmac)] = req.NewContent
	}
	s.version++
	writeJSON(w, apiclient.ChangeDocumentContentResponse{NewVersion: s.version})
}

func (s *fakeServer) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	var req apiclient.GetDocumentRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[req.ID]
	if !ok || f.Unsigned().DocumentHmac == nil {
		writeJSON(w, apiclient.GetDocumentResponse{})
		return
	}
	writeJSON(w, apiclient.GetDocumentResponse{Content: s.contents[docKey(req.ID, *f.Unsigned().DocumentHmac)]})
}

func TestCreateAccountWriteAndReadDocument(t *testing.T) {
	server := newFakeServer()
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	c, err := core.New(core.Config{WriteablePath: t.TempDir()})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.CreateAccount(ctx, "alice", ts.URL))

	root, err := c.Root()
	require.NoError(t, err)

	docID, err := c.CreateFile("notes.md", root, model.Document)
	require.NoError(t, err)

	require.NoError(t, c.WriteDocument(docID, []byte("hello lockbook")))

	content, err := c.ReadDocument(docID, true)
	require.NoError(t, err)
	assert.Equal(t, "hello lockbook", string(content))

	paths, err := c.ListPaths(core.DocumentsOnly)
	require.NoError(t, err)
	assert.Contains(t, paths, "/notes.md")
}

func TestSyncPushesAndPullsAcrossDevices(t *testing.T) {
	server := newFakeServer()
	ts := httptest.NewServer(server.handler())
	defer ts.Close()
	ctx := context.Background()

	deviceA, err := core.New(core.Config{WriteablePath: t.TempDir()})
	require.NoError(t, err)
	defer deviceA.Close()
	require.NoError(t, deviceA.CreateAccount(ctx, "alice", ts.URL))

	root, err := deviceA.Root()
	require.NoError(t, err)
	docID, err := deviceA.CreateFile("shared.md", root, model.Document)
	require.NoError(t, err)
	require.NoError(t, deviceA.WriteDocument(docID, []byte("device a content")))
	require.NoError(t, deviceA.Sync(ctx, nil))

	exported, err := deviceA.ExportAccount()
	require.NoError(t, err)

	deviceB, err := core.New(core.Config{WriteablePath: t.TempDir()})
	require.NoError(t, err)
	defer deviceB.Close()
	require.NoError(t, deviceB.ImportAccount(ctx, exported))

	paths, err := deviceB.ListPaths(core.DocumentsOnly)
	require.NoError(t, err)
	assert.Contains(t, paths, "/shared.md")

	id, err := deviceB.GetByPath("/shared.md")
	require.NoError(t, err)
	content, err := deviceB.ReadDocument(id, true)
	require.NoError(t, err)
	assert.Equal(t, "device a content", string(content))
}

func TestCreateFileRejectsDuplicateSiblingName(t *testing.T) {
	server := newFakeServer()
	ts := httptest.NewServer(server.handler())
	defer ts.Close()
	ctx := context.Background()

	c, err := core.New(core.Config{WriteablePath: t.TempDir()})
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.CreateAccount(ctx, "alice", ts.URL))

	root, err := c.Root()
	require.NoError(t, err)
	_, err = c.CreateFile("dup.md", root, model.Document)
	require.NoError(t, err)

	_, err = c.CreateFile("dup.md", root, model.Document)
	assert.Error(t, err)
}

func TestMoveFileRejectsCycle(t *testing.T) {
	server := newFakeServer()
	ts := httptest.NewServer(server.handler())
	defer ts.Close()
	ctx := context.Background()

	c, err := core.New(core.Config{WriteablePath: t.TempDir()})
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.CreateAccount(ctx, "alice", ts.URL))

	root, err := c.Root()
	require.NoError(t, err)
	folderA, err := c.CreateFile("a", root, model.Folder)
	require.NoError(t, err)
	folderB, err := c.CreateFile("b", folderA, model.Folder)
	require.NoError(t, err)

	err = c.MoveFile(folderA, folderB)
	assert.Error(t, err)
}
