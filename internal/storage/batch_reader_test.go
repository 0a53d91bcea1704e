package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestBatchReader_ReadAllPreservesIndexes(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	ctx := context.Background()
	paths := make([]string, 10)
	for i := range paths {
		paths[i] = fmt.Sprintf("batches/obj%02d.json", i)
		if err := store.Put(ctx, paths[i], []byte(fmt.Sprintf("content-%d", i)), "application/json"); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	reader := NewBatchReader(store, 3)
	got := make([]string, len(paths))
	err = reader.ReadAll(ctx, paths, func(i int, objectPath string, data []byte) error {
		if objectPath != paths[i] {
			return fmt.Errorf("index %d got path %s", i, objectPath)
		}
		got[i] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}

	for i, content := range got {
		if want := fmt.Sprintf("content-%d", i); content != want {
			t.Errorf("slot %d = %q, want %q", i, content, want)
		}
	}
}

func TestBatchReader_MissingObject(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	reader := NewBatchReader(store, 2)
	err = reader.ReadAll(context.Background(), []string{"missing.json"}, func(int, string, []byte) error {
		return nil
	})
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestBatchReader_CallbackError(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	ctx := context.Background()
	if err := store.Put(ctx, "a.json", []byte("{}"), ""); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	boom := errors.New("boom")
	reader := NewBatchReader(store, 0)
	err = reader.ReadAll(ctx, []string{"a.json"}, func(int, string, []byte) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected callback error, got %v", err)
	}
}
