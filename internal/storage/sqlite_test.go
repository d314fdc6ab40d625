package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sub", "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_PutGet(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	vec := []float32{0.25, -1.5, 3}
	if err := store.Put(ctx, "k1", "mock", vec); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(vec) {
		t.Fatalf("len=%d, want %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("component %d = %f, want %f", i, got[i], vec[i])
		}
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Count=%d, want 1", count)
	}
}

func TestSQLiteStore_PutReplaces(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	_ = store.Put(ctx, "k", "mock", []float32{1, 2})
	if err := store.Put(ctx, "k", "mock", []float32{3, 4, 5}); err != nil {
		t.Fatal(err)
	}
	got, _ := store.Get(ctx, "k")
	if len(got) != 3 || got[0] != 3 {
		t.Errorf("got %v, want replaced vector", got)
	}
	if count, _ := store.Count(ctx); count != 1 {
		t.Errorf("Count=%d, want 1", count)
	}
}

func TestSQLiteStore_NotFound(t *testing.T) {
	store := openStore(t)
	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Put(ctx, "k", "mock", []float32{7})
	_ = store.Close()

	store, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	got, err := store.Get(ctx, "k")
	if err != nil || len(got) != 1 || got[0] != 7 {
		t.Errorf("after reopen got %v, %v", got, err)
	}
	size, err := store.SizeBytes()
	if err != nil {
		t.Fatal(err)
	}
	if size <= 0 {
		t.Errorf("SizeBytes=%d, want > 0", size)
	}
}

func TestBlobRoundTripRejectsBadLength(t *testing.T) {
	if _, err := bytesToFloat32Slice([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
