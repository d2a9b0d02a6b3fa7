package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/blackmichael/timeline/internal/domain"
)

// changeChannel is the NOTIFY channel written on every upsert. The payload is
// the collection name.
const changeChannel = "timeline_changes"

// Repository implements domain.RecordBackend using PostgreSQL. Records are
// stored as JSONB; writers NOTIFY on changeChannel so watchers in any process
// connected to the same database observe the change.
type Repository struct {
	db          *sql.DB
	databaseURL string
	logger      *slog.Logger
}

// NewRepository connects to PostgreSQL at the given URL, verifies the
// connection, creates the records table if needed and returns a new
// Repository. The caller should call Close when the repository is no longer
// needed.
func NewRepository(databaseURL string, logger *slog.Logger) (*Repository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			collection TEXT NOT NULL,
			key TEXT NOT NULL,
			value JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (collection, key)
		)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Repository{db: db, databaseURL: databaseURL, logger: logger}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Push inserts rec under a new random key.
func (r *Repository) Push(ctx context.Context, collection string, rec domain.Record) (string, error) {
	key := uuid.NewString()
	if err := r.Set(ctx, collection, key, rec); err != nil {
		return "", err
	}
	return key, nil
}

// Set upserts rec and notifies listeners in the same transaction, so the
// notification is delivered only once the write is committed.
func (r *Repository) Set(ctx context.Context, collection, key string, rec domain.Record) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (collection, key, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection, key) DO UPDATE SET value = $3, updated_at = $4`,
		collection, key, string(value), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert record (collection=%s, key=%s): %w", collection, key, err)
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, changeChannel, collection); err != nil {
		return fmt.Errorf("notify change: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Snapshot returns every record in the collection.
func (r *Repository) Snapshot(ctx context.Context, collection string) (domain.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, value FROM records WHERE collection = $1`, collection)
	if err != nil {
		return nil, fmt.Errorf("query records (collection=%s): %w", collection, err)
	}
	defer rows.Close()

	snap := make(domain.Snapshot)
	for rows.Next() {
		var (
			key string
			raw []byte
		)
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", key, err)
		}
		snap[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return snap, nil
}

// Watch opens a dedicated LISTEN connection and emits a fresh snapshot of
// collection on start, on every matching notification and after every
// reconnect. Listener failures are emitted as error events while pq keeps
// reconnecting in the background.
func (r *Repository) Watch(ctx context.Context, collection string) (<-chan domain.ChangeEvent, error) {
	problems := make(chan error, 1)
	listener := pq.NewListener(r.databaseURL, 100*time.Millisecond, 10*time.Second,
		func(ev pq.ListenerEventType, err error) {
			if err == nil {
				return
			}
			select {
			case problems <- err:
			default:
			}
		},
	)
	if err := listener.Listen(changeChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen %s: %w", changeChannel, err)
	}

	out := make(chan domain.ChangeEvent)
	go func() {
		defer close(out)
		defer listener.Close()

		send := func(ev domain.ChangeEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		refresh := func() bool {
			snap, err := r.Snapshot(ctx, collection)
			if err != nil && ctx.Err() != nil {
				return false
			}
			return send(domain.ChangeEvent{Snapshot: snap, Err: err})
		}

		if !refresh() {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				// nil means the connection was re-established and
				// notifications may have been missed.
				if n != nil && n.Extra != collection {
					continue
				}
				if !refresh() {
					return
				}
			case err := <-problems:
				r.logger.Error("change listener error", "collection", collection, "error", err)
				if !send(domain.ChangeEvent{Err: fmt.Errorf("change listener: %w", err)}) {
					return
				}
			}
		}
	}()

	return out, nil
}

var _ domain.RecordBackend = (*Repository)(nil)
