package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestRepo(t *testing.T, path string) *Repository {
	t.Helper()
	repo, err := NewRepository(path)
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func TestHideSpoilersRoundTrip(t *testing.T) {
	repo := openTestRepo(t, filepath.Join(t.TempDir(), "test.db"))
	ctx := context.Background()

	if _, ok, err := repo.GetHideSpoilers(ctx); err != nil || ok {
		t.Fatalf("GetHideSpoilers() on empty db = ok %v, err %v", ok, err)
	}

	for _, want := range []bool{true, false, true} {
		if err := repo.SetHideSpoilers(ctx, want); err != nil {
			t.Fatalf("SetHideSpoilers(%v) error = %v", want, err)
		}
		got, ok, err := repo.GetHideSpoilers(ctx)
		if err != nil || !ok || got != want {
			t.Fatalf("GetHideSpoilers() = %v, %v, %v; want %v", got, ok, err, want)
		}
	}
}

func TestCursorRoundTrip(t *testing.T) {
	repo := openTestRepo(t, filepath.Join(t.TempDir(), "test.db"))
	ctx := context.Background()

	if c, err := repo.GetCursor(ctx, "jetstream"); err != nil || c != 0 {
		t.Fatalf("GetCursor() on empty db = %d, %v", c, err)
	}
	if err := repo.UpdateCursor(ctx, "jetstream", 1728000000000000); err != nil {
		t.Fatalf("UpdateCursor() error = %v", err)
	}
	if err := repo.UpdateCursor(ctx, "jetstream", 1728000000000123); err != nil {
		t.Fatalf("UpdateCursor() error = %v", err)
	}
	if c, err := repo.GetCursor(ctx, "jetstream"); err != nil || c != 1728000000000123 {
		t.Fatalf("GetCursor() = %d, %v", c, err)
	}
	if c, _ := repo.GetCursor(ctx, "other"); c != 0 {
		t.Fatalf("GetCursor(other) = %d, want 0", c)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	first, err := NewRepository(path)
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	if err := first.SetHideSpoilers(ctx, false); err != nil {
		t.Fatalf("SetHideSpoilers() error = %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second := openTestRepo(t, path)
	hide, ok, err := second.GetHideSpoilers(ctx)
	if err != nil || !ok || hide {
		t.Fatalf("GetHideSpoilers() after reopen = %v, %v, %v", hide, ok, err)
	}
}
