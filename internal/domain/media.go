package domain

import (
	"context"
	"fmt"
	"log/slog"
	"path"
)

// AudioCommentCategory is the storage category for recorded audio comments.
const AudioCommentCategory = "audioComment"

// MediaStore uploads media payloads and resolves their retrieval references.
//
// Upload is not safe to retry with a fresh id: every id produces a new blob.
// Callers that retry must reuse the id they were given.
type MediaStore struct {
	blobs  BlobStore
	logger *slog.Logger
}

// NewMediaStore creates a MediaStore on top of blobs.
func NewMediaStore(blobs BlobStore, logger *slog.Logger) *MediaStore {
	return &MediaStore{blobs: blobs, logger: logger}
}

// BlobPath returns the storage path for a payload of the given category.
func BlobPath(category, id string) string {
	return path.Join(category, id)
}

// Upload writes data under (category, id) and returns its retrieval
// reference. It returns only after the write is acknowledged and the
// reference resolved; every failure wraps ErrUpload.
func (m *MediaStore) Upload(ctx context.Context, data []byte, category, id string) (string, error) {
	p := BlobPath(category, id)

	meta, err := m.blobs.Put(ctx, p, data)
	if err != nil {
		m.logger.Error("error storing media data", "path", p, "error", err)
		return "", fmt.Errorf("%w: put %s: %w", ErrUpload, p, err)
	}
	if meta == nil {
		m.logger.Error("no metadata returned from upload", "path", p)
		return "", fmt.Errorf("%w: put %s: no metadata returned", ErrUpload, p)
	}

	url, err := m.blobs.URL(ctx, p)
	if err != nil {
		m.logger.Error("error getting download url of media", "path", p, "error", err)
		return "", fmt.Errorf("%w: resolve %s: %w", ErrUpload, p, err)
	}
	if url == "" {
		m.logger.Error("download url is empty", "path", p)
		return "", fmt.Errorf("%w: resolve %s: empty url", ErrUpload, p)
	}

	m.logger.Debug("media stored", "path", p, "size", meta.Size, "content_type", meta.ContentType)
	return url, nil
}
