package postgres

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/blackmichael/timeline/internal/domain"
)

// newTestRepository connects to TIMELINE_TEST_POSTGRES_URL and skips the test
// when it is unset.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	url := os.Getenv("TIMELINE_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("TIMELINE_TEST_POSTGRES_URL not set")
	}

	repo, err := NewRepository(url, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepositoryPushSetSnapshot(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	collection := "test-" + uuid.NewString()

	key, err := repo.Push(ctx, collection, domain.Record{"title": "first"})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := repo.Set(ctx, collection, key, domain.Record{"title": "updated", "ratio": 0.75}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	snap, err := repo.Snapshot(ctx, collection)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap) != 1 {
		t.Fatalf("expected 1 record, got %d", len(snap))
	}
	rec := snap[key].(map[string]any)
	if rec["title"] != "updated" || rec["ratio"] != 0.75 {
		t.Errorf("unexpected record: %#v", rec)
	}
}

func TestRepositoryWatch(t *testing.T) {
	repo := newTestRepository(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	collection := "test-" + uuid.NewString()

	events, err := repo.Watch(ctx, collection)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	next := func() domain.ChangeEvent {
		t.Helper()
		for {
			select {
			case ev := <-events:
				if ev.Err != nil {
					t.Logf("transient watch error: %v", ev.Err)
					continue
				}
				return ev
			case <-time.After(10 * time.Second):
				t.Fatal("timed out waiting for change event")
			}
		}
	}

	if ev := next(); len(ev.Snapshot) != 0 {
		t.Fatalf("initial snapshot = %v, want empty", ev.Snapshot)
	}

	if _, err := repo.Push(ctx, collection, domain.Record{"title": "hello"}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if ev := next(); len(ev.Snapshot) != 1 {
		t.Fatalf("snapshot after push = %v, want one record", ev.Snapshot)
	}
}
