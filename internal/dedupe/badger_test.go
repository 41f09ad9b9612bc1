package dedupe

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bakkerme/digestbot/internal/core"
)

func TestBadgerStoreRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "badger")
	store, err := NewBadgerStore(dir, 0)
	if err != nil {
		t.Fatalf("NewBadgerStore: %v", err)
	}

	seen, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(seen) != 0 {
		t.Fatalf("expected empty set, got %v", seen.Links())
	}

	if err := store.Save(context.Background(), core.NewSeenSet("https://example.com/a", "https://example.com/b")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Save(context.Background(), core.NewSeenSet("https://example.com/a", "https://example.com/b", "https://example.com/c")); err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewBadgerStore(dir, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	seen, err = reopened.Load(context.Background())
	if err != nil {
		t.Fatalf("load after reopen: %v", err)
	}
	if len(seen) != 3 || !seen.Has("https://example.com/c") {
		t.Fatalf("unexpected seen set: %v", seen.Links())
	}
}

func TestNewBadgerStoreValidation(t *testing.T) {
	if _, err := NewBadgerStore("  ", 0); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := NewBadgerStore(t.TempDir(), -1); err == nil {
		t.Fatalf("expected error for negative ttl")
	}
}
