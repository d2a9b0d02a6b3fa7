package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blackmichael/timeline/internal/domain"
)

// RecordStore implements domain.RecordBackend on a SQLite table. Change
// notification is in-process: watchers see writes made through this
// RecordStore only.
type RecordStore struct {
	db     *sql.DB
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[string]map[chan struct{}]struct{}
}

// NewRecordStore creates the records table if needed and returns a store
// backed by db. The caller owns db.
func NewRecordStore(db *sql.DB, logger *slog.Logger) (*RecordStore, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (collection, key)
	);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &RecordStore{
		db:       db,
		logger:   logger,
		watchers: make(map[string]map[chan struct{}]struct{}),
	}, nil
}

// Push stores rec under a new random key.
func (s *RecordStore) Push(ctx context.Context, collection string, rec domain.Record) (string, error) {
	key := uuid.NewString()
	if err := s.Set(ctx, collection, key, rec); err != nil {
		return "", err
	}
	return key, nil
}

// Set upserts rec at key and notifies watchers of the collection.
func (s *RecordStore) Set(ctx context.Context, collection, key string, rec domain.Record) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (collection, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		collection, key, string(value), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, key, err)
	}

	s.notify(collection)
	return nil
}

// Snapshot returns every record in collection. A stored value that is not
// valid JSON is returned as its raw text.
func (s *RecordStore) Snapshot(ctx context.Context, collection string) (domain.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM records WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	snap := make(domain.Snapshot)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			s.logger.Warn("stored record is not valid JSON", "collection", collection, "key", key, "error", err)
			value = raw
		}
		snap[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return snap, nil
}

// Watch streams snapshots of collection, starting with the current one.
func (s *RecordStore) Watch(ctx context.Context, collection string) (<-chan domain.ChangeEvent, error) {
	notify := make(chan struct{}, 1)
	notify <- struct{}{}
	s.addWatcher(collection, notify)

	out := make(chan domain.ChangeEvent)
	go func() {
		defer close(out)
		defer s.removeWatcher(collection, notify)

		for {
			select {
			case <-ctx.Done():
				return
			case <-notify:
			}

			var ev domain.ChangeEvent
			ev.Snapshot, ev.Err = s.Snapshot(ctx, collection)
			if ev.Err != nil && ctx.Err() != nil {
				return
			}

			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *RecordStore) addWatcher(collection string, ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchers[collection] == nil {
		s.watchers[collection] = make(map[chan struct{}]struct{})
	}
	s.watchers[collection][ch] = struct{}{}
}

func (s *RecordStore) removeWatcher(collection string, ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers[collection], ch)
	if len(s.watchers[collection]) == 0 {
		delete(s.watchers, collection)
	}
}

// notify wakes every watcher of collection. A watcher that has not yet
// consumed an earlier wake-up is left alone; it will read a fresh snapshot
// anyway.
func (s *RecordStore) notify(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.watchers[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

var _ domain.RecordBackend = (*RecordStore)(nil)
