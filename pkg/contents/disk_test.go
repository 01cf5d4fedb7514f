package contents

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestManager(t *testing.T) (*DiskManager, string) {
	t.Helper()
	dir := t.TempDir()
	m, err := NewDiskManager(dir)
	if err != nil {
		t.Fatalf("NewDiskManager() error = %v", err)
	}
	return m, dir
}

func TestDiskManagerGet(t *testing.T) {
	m, dir := newTestManager(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(dir, "note.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("with_content", func(t *testing.T) {
		model, err := m.Get(ctx, "note.txt", true)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if string(model.Content) != "hello" {
			t.Errorf("Content = %q, want %q", model.Content, "hello")
		}
		if model.LastModified.IsZero() {
			t.Error("LastModified is zero")
		}
	})

	t.Run("metadata_only", func(t *testing.T) {
		model, err := m.Get(ctx, "note.txt", false)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if model.Content != nil {
			t.Errorf("Content = %q, want nil", model.Content)
		}
		if model.LastModified.IsZero() {
			t.Error("LastModified is zero")
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := m.Get(ctx, "nope.txt", true); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("directory", func(t *testing.T) {
		if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
			t.Fatal(err)
		}
		if _, err := m.Get(ctx, "sub", true); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("traversal", func(t *testing.T) {
		// Paths are confined to the root; a climb out resolves inside it.
		if _, err := m.Get(ctx, "../../etc/passwd", true); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})
}

func TestDiskManagerSave(t *testing.T) {
	m, dir := newTestManager(t)
	ctx := context.Background()

	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("v1"), 0644); err != nil {
		t.Fatal(err)
	}
	before, err := m.Get(ctx, "note.txt", false)
	if err != nil {
		t.Fatal(err)
	}

	// Make sure the mtime can advance on coarse-grained filesystems.
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}
	before.LastModified = old

	saved, err := m.Save(ctx, Model{Path: "note.txt", Content: []byte("v2")})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !saved.LastModified.After(before.LastModified) {
		t.Errorf("LastModified did not advance: %v -> %v", before.LastModified, saved.LastModified)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v2" {
		t.Errorf("file content = %q, want %q", data, "v2")
	}
}

func TestDiskManagerExists(t *testing.T) {
	m, dir := newTestManager(t)
	ctx := context.Background()

	if m.Exists(ctx, "note.txt") {
		t.Error("Exists() = true for missing file")
	}
	if err := os.WriteFile(filepath.Join(dir, "note.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if !m.Exists(ctx, "note.txt") {
		t.Error("Exists() = false for existing file")
	}
}
