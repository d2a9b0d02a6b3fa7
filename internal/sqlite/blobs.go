package sqlite

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/blackmichael/timeline/internal/domain"
)

// BlobStore implements domain.BlobStore by keeping payloads in a BLOB
// column. Retrieval references point at the hosted backend's download
// endpoint under baseURL.
type BlobStore struct {
	db      *sql.DB
	baseURL string
}

// NewBlobStore creates the blobs table if needed.
func NewBlobStore(db *sql.DB, baseURL string) (*BlobStore, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS blobs (
		path TEXT PRIMARY KEY,
		content_type TEXT NOT NULL,
		size INTEGER NOT NULL,
		md5 TEXT NOT NULL,
		data BLOB NOT NULL,
		created_at DATETIME NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &BlobStore{db: db, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put stores data at path, replacing any previous blob there.
func (s *BlobStore) Put(ctx context.Context, path string, data []byte) (*domain.BlobMetadata, error) {
	if path == "" {
		return nil, fmt.Errorf("empty blob path")
	}

	sum := md5.Sum(data)
	meta := &domain.BlobMetadata{
		Path:        path,
		Size:        int64(len(data)),
		ContentType: mimetype.Detect(data).String(),
		MD5:         hex.EncodeToString(sum[:]),
		CreatedAt:   time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (path, content_type, size, md5, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (path) DO UPDATE SET
			content_type = excluded.content_type,
			size = excluded.size,
			md5 = excluded.md5,
			data = excluded.data,
			created_at = excluded.created_at`,
		meta.Path, meta.ContentType, meta.Size, meta.MD5, data, meta.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("store blob %s: %w", path, err)
	}
	return meta, nil
}

// URL returns the download URL for an existing blob.
func (s *BlobStore) URL(ctx context.Context, path string) (string, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM blobs WHERE path = ?`, path).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", domain.ErrBlobNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("lookup blob %s: %w", path, err)
	}
	return s.baseURL + "/v1/blobs/" + escapePath(path), nil
}

// Get returns the payload stored at path and its metadata.
func (s *BlobStore) Get(ctx context.Context, path string) ([]byte, *domain.BlobMetadata, error) {
	var (
		data []byte
		meta = domain.BlobMetadata{Path: path}
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT content_type, size, md5, data, created_at
		FROM blobs WHERE path = ?`, path,
	).Scan(&meta.ContentType, &meta.Size, &meta.MD5, &data, &meta.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrBlobNotFound, path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read blob %s: %w", path, err)
	}
	return data, &meta, nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

var _ domain.BlobStore = (*BlobStore)(nil)
