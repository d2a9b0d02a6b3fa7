package domain

import (
	"context"
	"time"
)

// RecordBackend is a keyed record store with change notification. Values are
// Records; the backend enforces no schema.
type RecordBackend interface {
	// Push stores rec under a new key chosen by the backend and returns it.
	Push(ctx context.Context, collection string, rec Record) (string, error)

	// Set upserts rec at key.
	Set(ctx context.Context, collection, key string, rec Record) error

	// Snapshot returns every record currently in the collection.
	Snapshot(ctx context.Context, collection string) (Snapshot, error)

	// Watch delivers the current snapshot of the collection and then a fresh
	// full snapshot after every change. Transport failures are delivered as
	// events with Err set and do not end the stream. The channel is closed
	// once ctx is done.
	Watch(ctx context.Context, collection string) (<-chan ChangeEvent, error)
}

// BlobMetadata acknowledges a completed blob write.
type BlobMetadata struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	MD5         string    `json:"md5"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BlobStore is durable storage for opaque byte payloads.
type BlobStore interface {
	// Put writes data at path. A nil metadata with a nil error means the
	// store did not acknowledge the write.
	Put(ctx context.Context, path string, data []byte) (*BlobMetadata, error)

	// URL resolves the durable retrieval reference for path.
	URL(ctx context.Context, path string) (string, error)
}

// Authenticator reports the signed-in user. A nil identity with a nil error
// means nobody is signed in.
type Authenticator interface {
	CurrentUser(ctx context.Context) (*Identity, error)
}
