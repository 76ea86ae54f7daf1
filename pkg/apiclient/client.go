// Package apiclient implements lbcore's server wire protocol: JSON-over-
// HTTPS requests, each carrying a timestamp and a signature over the
// request body computed with the account's private key, per spec.md §6.
// The teacher's gRPC+mTLS client (pkg/client) does not fit here — no
// protoc toolchain is available to regenerate .proto code, and spec.md
// contracts the wire protocol at "JSON-over-HTTPS (or equivalent)"; see
// DESIGN.md.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lockbook/lbcore/pkg/crypto"
	"github.com/lockbook/lbcore/pkg/health"
	"github.com/lockbook/lbcore/pkg/lberr"
	"github.com/lockbook/lbcore/pkg/model"
)

// Client talks to one Lockbook server instance.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Signer  crypto.PrivateKey
}

// New constructs a Client against baseURL, signing every request with
// signer.
func New(baseURL string, signer crypto.PrivateKey) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Signer:  signer,
	}
}

// Ping is a cheap pre-flight reachability check, used by pkg/sync before a
// full round trip.
func (c *Client) Ping(ctx context.Context) error {
	return health.Ping(ctx, c.BaseURL)
}

func (c *Client) do(ctx context.Context, endpoint string, reqBody, respBody any) error {
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return lberr.UnexpectedErr("marshal request: %v", err)
	}

	url := c.BaseURL + "/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return lberr.UnexpectedErr("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	sig := crypto.Sign(c.Signer, raw)
	sigBytes, err := json.Marshal(sig)
	if err != nil {
		return lberr.UnexpectedErr("marshal signature: %v", err)
	}
	req.Header.Set("X-Lockbook-Timestamp", fmt.Sprintf("%d", time.Now().UnixMilli()))
	req.Header.Set("X-Lockbook-Signature", string(sigBytes))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return lberr.Of(lberr.ServerUnreachable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return lberr.Of(lberr.ServerUnreachable)
	}

	if resp.StatusCode == http.StatusServiceUnavailable {
		return lberr.Of(lberr.ServerDisabled)
	}
	if resp.StatusCode == http.StatusUpgradeRequired {
		return lberr.Of(lberr.ClientUpdateRequired)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Kind string `json:"kind"`
		}
		_ = json.Unmarshal(body, &apiErr)
		if apiErr.Kind != "" {
			return lberr.New(lberr.Kind(apiErr.Kind), "")
		}
		return lberr.UnexpectedErr("server returned %d", resp.StatusCode)
	}

	if respBody == nil {
		return nil
	}
	if err := json.Unmarshal(body, respBody); err != nil {
		return lberr.UnexpectedErr("unmarshal response: %v", err)
	}
	return nil
}

// NewAccountRequest/Response implement the NewAccount endpoint.
type NewAccountRequest struct {
	Username   string            `json:"username"`
	PublicKey  []byte            `json:"public_key"`
	RootFolder model.SignedFile  `json:"root_folder"`
}

type NewAccountResponse struct {
	LastSyncedVersion uint64 `json:"last_synced_version"`
}

func (c *Client) NewAccount(ctx context.Context, req NewAccountRequest) (NewAccountResponse, error) {
	var resp NewAccountResponse
	err := c.do(ctx, "new-account", req, &resp)
	return resp, err
}

type GetPublicKeyRequest struct {
	Username string `json:"username"`
}

type GetPublicKeyResponse struct {
	PublicKey []byte `json:"public_key"`
}

func (c *Client) GetPublicKey(ctx context.Context, username string) (GetPublicKeyResponse, error) {
	var resp GetPublicKeyResponse
	err := c.do(ctx, "get-public-key", GetPublicKeyRequest{Username: username}, &resp)
	return resp, err
}

type GetUpdatesRequest struct {
	SinceVersion uint64 `json:"since_version"`
}

type GetUpdatesResponse struct {
	Updates []model.SignedFile `json:"updates"`
}

func (c *Client) GetUpdates(ctx context.Context, sinceVersion uint64) (GetUpdatesResponse, error) {
	var resp GetUpdatesResponse
	err := c.do(ctx, "get-updates", GetUpdatesRequest{SinceVersion: sinceVersion}, &resp)
	return resp, err
}

type MetadataUpdate struct {
	Old *model.SignedFile `json:"old,omitempty"`
	New model.SignedFile  `json:"new"`
}

type UpsertFileMetadataRequest struct {
	Updates []MetadataUpdate `json:"updates"`
}

type UpsertFileMetadataResponse struct {
	NewVersion uint64 `json:"new_version"`
}

func (c *Client) UpsertFileMetadata(ctx context.Context, updates []MetadataUpdate) (UpsertFileMetadataResponse, error) {
	var resp UpsertFileMetadataResponse
	err := c.do(ctx, "upsert-file-metadata", UpsertFileMetadataRequest{Updates: updates}, &resp)
	return resp, err
}

type ChangeDocumentContentRequest struct {
	ID                uuid.UUID `json:"id"`
	OldMetadataVersion uint64    `json:"old_metadata_version"`
	NewContent        []byte    `json:"new_content"`
}

type ChangeDocumentContentResponse struct {
	NewVersion uint64 `json:"new_version"`
}

func (c *Client) ChangeDocumentContent(ctx context.Context, req ChangeDocumentContentRequest) (ChangeDocumentContentResponse, error) {
	var resp ChangeDocumentContentResponse
	err := c.do(ctx, "change-document-content", req, &resp)
	return resp, err
}

type GetDocumentRequest struct {
	ID             uuid.UUID `json:"id"`
	ContentVersion uint64    `json:"content_version"`
}

type GetDocumentResponse struct {
	Content []byte `json:"content"`
}

func (c *Client) GetDocument(ctx context.Context, req GetDocumentRequest) (GetDocumentResponse, error) {
	var resp GetDocumentResponse
	err := c.do(ctx, "get-document", req, &resp)
	return resp, err
}

func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.do(ctx, "delete-account", struct{}{}, nil)
}

type GetUsageResponse struct {
	ServerUsage uint64 `json:"server_usage"`
	DataCap     uint64 `json:"data_cap"`
}

func (c *Client) GetUsage(ctx context.Context) (GetUsageResponse, error) {
	var resp GetUsageResponse
	err := c.do(ctx, "get-usage", struct{}{}, &resp)
	return resp, err
}
