package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var errBoom = errors.New("boom")

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type memBackend struct {
	mu      sync.Mutex
	data    map[string]map[string]Record
	seq     int
	pushErr error
	setErr  error
	events  chan ChangeEvent
}

func newMemBackend() *memBackend {
	return &memBackend{
		data:   make(map[string]map[string]Record),
		events: make(chan ChangeEvent),
	}
}

func (b *memBackend) Push(_ context.Context, collection string, rec Record) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pushErr != nil {
		return "", b.pushErr
	}
	b.seq++
	key := fmt.Sprintf("p%d", b.seq)
	b.put(collection, key, rec)
	return key, nil
}

func (b *memBackend) Set(_ context.Context, collection, key string, rec Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.setErr != nil {
		return b.setErr
	}
	b.put(collection, key, rec)
	return nil
}

func (b *memBackend) put(collection, key string, rec Record) {
	if b.data[collection] == nil {
		b.data[collection] = make(map[string]Record)
	}
	b.data[collection][key] = rec
}

func (b *memBackend) get(collection, key string) (Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.data[collection][key]
	return rec, ok
}

func (b *memBackend) count(collection string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data[collection])
}

func (b *memBackend) Snapshot(_ context.Context, collection string) (Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := make(Snapshot, len(b.data[collection]))
	for k, v := range b.data[collection] {
		snap[k] = map[string]any(v)
	}
	return snap, nil
}

// Watch forwards whatever the test sends on b.events.
func (b *memBackend) Watch(ctx context.Context, _ string) (<-chan ChangeEvent, error) {
	out := make(chan ChangeEvent)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-b.events:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

type memBlobs struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	putErr   error
	noMeta   bool
	urlErr   error
	emptyURL bool
	baseURL  string
}

func newMemBlobs() *memBlobs {
	return &memBlobs{blobs: make(map[string][]byte), baseURL: "blob://"}
}

func (m *memBlobs) Put(_ context.Context, path string, data []byte) (*BlobMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.blobs[path] = data
	if m.noMeta {
		return nil, nil
	}
	return &BlobMetadata{Path: path, Size: int64(len(data))}, nil
}

func (m *memBlobs) URL(_ context.Context, path string) (string, error) {
	if m.urlErr != nil {
		return "", m.urlErr
	}
	if m.emptyURL {
		return "", nil
	}
	return m.baseURL + path, nil
}

func (m *memBlobs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

type staticAuth struct {
	id *Identity
}

func (a staticAuth) CurrentUser(context.Context) (*Identity, error) {
	return a.id, nil
}

var harper = &Identity{UID: "u-harper", DisplayName: "Harper"}
