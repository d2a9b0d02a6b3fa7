// Package remote talks to a timeline server over HTTP and WebSocket. Its
// Client implements domain.RecordBackend and domain.BlobStore so a PostStore
// can run in a different process from the stores.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blackmichael/timeline/internal/domain"
	"github.com/blackmichael/timeline/internal/httpserver"
)

// APIError is returned when the server answers with a non-2xx status.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Body)
}

// Client is a timeline server client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
	logger     *slog.Logger

	minReconnect time.Duration
	maxReconnect time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithReconnectDelay sets the bounds of the watch reconnect backoff.
func WithReconnectDelay(initial, limit time.Duration) Option {
	return func(c *Client) {
		c.minReconnect = initial
		c.maxReconnect = limit
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		dialer:       websocket.DefaultDialer,
		logger:       logger,
		minReconnect: time.Second,
		maxReconnect: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Push stores rec under a key chosen by the server.
func (c *Client) Push(ctx context.Context, collection string, rec domain.Record) (string, error) {
	var resp httpserver.PushResponse
	if err := c.doJSON(ctx, http.MethodPost, recordsPath(collection), rec, &resp); err != nil {
		return "", fmt.Errorf("push record: %w", err)
	}
	if resp.Key == "" {
		return "", fmt.Errorf("push record: server returned no key")
	}
	return resp.Key, nil
}

// Set upserts rec at key.
func (c *Client) Set(ctx context.Context, collection, key string, rec domain.Record) error {
	p := recordsPath(collection) + "/" + url.PathEscape(key)
	if err := c.doJSON(ctx, http.MethodPut, p, rec, nil); err != nil {
		return fmt.Errorf("set record: %w", err)
	}
	return nil
}

// Snapshot fetches every record in the collection.
func (c *Client) Snapshot(ctx context.Context, collection string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := c.doJSON(ctx, http.MethodGet, recordsPath(collection), nil, &snap); err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	if snap == nil {
		snap = domain.Snapshot{}
	}
	return snap, nil
}

// Put uploads data to path.
func (c *Client) Put(ctx context.Context, path string, data []byte) (*domain.BlobMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/v1/blobs/"+escapePath(path), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	var meta domain.BlobMetadata
	if err := c.do(req, &meta); err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}
	return &meta, nil
}

// URL resolves the download URL of the blob at path. A missing blob is
// reported as domain.ErrBlobNotFound.
func (c *Client) URL(ctx context.Context, path string) (string, error) {
	var resp httpserver.URLResponse
	err := c.doJSON(ctx, http.MethodGet, "/v1/blob-urls/"+escapePath(path), nil, &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", domain.ErrBlobNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("resolve blob url: %w", err)
	}
	return resp.URL, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, result)
}

// do sends req and decodes a JSON response into result. Non-2xx responses
// are returned unwrapped as *APIError.
func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

func recordsPath(collection string) string {
	return "/v1/records/" + url.PathEscape(collection)
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

var (
	_ domain.RecordBackend = (*Client)(nil)
	_ domain.BlobStore     = (*Client)(nil)
)
