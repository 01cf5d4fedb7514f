package fileid

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

func allExist(ctx context.Context, path string) bool  { return true }
func noneExist(ctx context.Context, path string) bool { return false }

func TestIndexStable(t *testing.T) {
	m, err := NewManager(allExist, "")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	id1, created, err := m.Index(ctx, "a.txt")
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if id1 == "" {
		t.Fatal("Index() returned empty id")
	}
	if !created {
		t.Error("first Index() created = false, want true")
	}

	id2, created, err := m.Index(ctx, "a.txt")
	if err != nil {
		t.Fatalf("second Index() error = %v", err)
	}
	if id1 != id2 {
		t.Errorf("repeat Index() = %q, want %q", id2, id1)
	}
	if created {
		t.Error("repeat Index() created = true, want false")
	}

	if got := m.ID("a.txt"); got != id1 {
		t.Errorf("ID() = %q, want %q", got, id1)
	}
	if got := m.Path(id1); got != "a.txt" {
		t.Errorf("Path() = %q, want %q", got, "a.txt")
	}
}

func TestIndexConcurrentSingleCreate(t *testing.T) {
	m, err := NewManager(allExist, "")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	var created atomic.Int32
	ids := make([]string, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, c, err := m.Index(ctx, "shared.txt")
			if err != nil {
				t.Errorf("Index() error = %v", err)
				return
			}
			if c {
				created.Add(1)
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	if got := created.Load(); got != 1 {
		t.Errorf("created count = %d, want 1", got)
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] != ids[0] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], ids[0])
		}
	}
}

func TestIndexMissingResource(t *testing.T) {
	m, err := NewManager(noneExist, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := m.Index(context.Background(), "ghost.txt"); !errors.Is(err, ErrNoResource) {
		t.Errorf("Index() error = %v, want ErrNoResource", err)
	}
	if got := m.ID("ghost.txt"); got != "" {
		t.Errorf("ID() = %q after failed index, want empty", got)
	}
}

func TestMoveKeepsID(t *testing.T) {
	m, err := NewManager(allExist, "")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	id, _, err := m.Index(ctx, "old.txt")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Move("old.txt", "new.txt"); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if got := m.ID("new.txt"); got != id {
		t.Errorf("ID(new) = %q, want %q", got, id)
	}
	if got := m.ID("old.txt"); got != "" {
		t.Errorf("ID(old) = %q, want empty", got)
	}
	if got := m.Path(id); got != "new.txt" {
		t.Errorf("Path() = %q, want %q", got, "new.txt")
	}
}

func TestPersistence(t *testing.T) {
	savePath := filepath.Join(t.TempDir(), "index.json")

	m1, err := NewManager(allExist, savePath)
	if err != nil {
		t.Fatal(err)
	}
	id, _, err := m1.Index(context.Background(), "a.txt")
	if err != nil {
		t.Fatal(err)
	}

	// A second manager loading the same file sees the same mapping.
	m2, err := NewManager(allExist, savePath)
	if err != nil {
		t.Fatal(err)
	}
	if got := m2.ID("a.txt"); got != id {
		t.Errorf("reloaded ID() = %q, want %q", got, id)
	}
	if got := m2.Path(id); got != "a.txt" {
		t.Errorf("reloaded Path() = %q, want %q", got, "a.txt")
	}
}
