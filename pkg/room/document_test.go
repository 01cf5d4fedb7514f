package room

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docrelay-dev/docrelay/pkg/contents"
	"github.com/docrelay-dev/docrelay/pkg/fileid"
	"github.com/docrelay-dev/docrelay/pkg/loader"
	"github.com/docrelay-dev/docrelay/pkg/updatelog"
)

type docFixture struct {
	dir      string
	loaders  *loader.Registry
	identity Identity
	room     *DocumentRoom
	destroys *atomic.Int32
}

func newDocFixture(t *testing.T) *docFixture {
	return newDocFixtureDelay(t, time.Hour)
}

func newDocFixtureDelay(t *testing.T, saveDelay time.Duration) *docFixture {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	cm, err := contents.NewDiskManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	paths, err := fileid.NewManager(cm.Exists, "")
	if err != nil {
		t.Fatal(err)
	}
	id, _, err := paths.Index(context.Background(), "doc.txt")
	if err != nil {
		t.Fatal(err)
	}

	loaders := loader.NewRegistry(paths, cm, loader.Options{SaveDelay: saveDelay}, nil)
	l, err := loaders.Acquire(context.Background(), id, "text", "file")
	if err != nil {
		t.Fatal(err)
	}

	identity := ParseIdentity("text:file:" + id)
	var destroys atomic.Int32
	room := NewDocumentRoom(identity, l, nil, dir, nil, func(*DocumentRoom) {
		destroys.Add(1)
		loaders.Release(id)
	})
	return &docFixture{
		dir:      dir,
		loaders:  loaders,
		identity: identity,
		room:     room,
		destroys: &destroys,
	}
}

func TestDocumentRoomInitialize(t *testing.T) {
	f := newDocFixture(t)
	ctx := context.Background()

	if got := f.room.State(); got != StateUninitialized {
		t.Fatalf("initial state = %v, want uninitialized", got)
	}
	if err := f.room.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if got := f.room.State(); got != StateLive {
		t.Fatalf("state after Initialize = %v, want live", got)
	}
	// Repeat initialization is a no-op.
	if err := f.room.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
}

func TestDocumentRoomSyncMessage(t *testing.T) {
	f := newDocFixture(t)
	ctx := context.Background()
	if err := f.room.Initialize(ctx); err != nil {
		t.Fatal(err)
	}

	a := &fakeClient{id: "a"}
	b := &fakeClient{id: "b"}
	if err := f.room.AddClient(a); err != nil {
		t.Fatal(err)
	}
	if err := f.room.AddClient(b); err != nil {
		t.Fatal(err)
	}

	update := []byte{0x00, 0x01, 0x02}
	if err := f.room.HandleMessage(a, update); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	if got := b.received(); len(got) != 1 || string(got[0]) != string(update) {
		t.Errorf("b received %v, want the relayed update", got)
	}
	if got := a.received(); len(got) != 0 {
		t.Errorf("sender received %v, want nothing", got)
	}

	// Accepted updates land in the room's update log.
	logPath := updatelog.PathFor(filepath.Join(f.dir, "doc.txt"), "file")
	var logged [][]byte
	err := updatelog.Replay(logPath, func(u []byte) error {
		logged = append(logged, append([]byte(nil), u...))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(logged) != 1 || string(logged[0]) != string(update) {
		t.Errorf("update log holds %v, want the accepted update", logged)
	}

	// A late joiner is caught up from the replica's update buffer.
	late := &fakeClient{id: "late"}
	if err := f.room.AddClient(late); err != nil {
		t.Fatal(err)
	}
	if got := late.received(); len(got) != 1 || string(got[0]) != string(update) {
		t.Errorf("late joiner received %v, want the buffered update", got)
	}
}

func TestSavePersistsAppliedUpdates(t *testing.T) {
	f := newDocFixtureDelay(t, 10*time.Millisecond)
	if err := f.room.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	a := &fakeClient{id: "a"}
	if err := f.room.AddClient(a); err != nil {
		t.Fatal(err)
	}

	update := []byte{0x00, 0xde, 0xad}
	if err := f.room.HandleMessage(a, update); err != nil {
		t.Fatal(err)
	}

	// The debounced write must carry the edit, not the pre-edit checkpoint.
	path := filepath.Join(f.dir, "doc.txt")
	deadline := time.After(2 * time.Second)
	for {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(data, []byte("hello")) {
			if !bytes.HasPrefix(data, []byte("hello")) || !bytes.Contains(data, update) {
				t.Fatalf("saved content = %q, want checkpoint plus the applied update", data)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("durable resource still holds the pre-edit checkpoint")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Once the write landed the room folds the buffered updates into the
	// checkpoint and resets the update log.
	deadline = time.After(2 * time.Second)
	for len(f.room.doc.Updates()) != 0 {
		select {
		case <-deadline:
			t.Fatal("updates never compacted after the save")
		case <-time.After(5 * time.Millisecond):
		}
	}
	logPath := updatelog.PathFor(filepath.Join(f.dir, "doc.txt"), "file")
	records := 0
	if err := updatelog.Replay(logPath, func([]byte) error { records++; return nil }); err != nil {
		t.Fatal(err)
	}
	if records != 0 {
		t.Errorf("update log holds %d records after the save, want 0", records)
	}
}

func TestDocumentRoomAwarenessNotLogged(t *testing.T) {
	f := newDocFixture(t)
	if err := f.room.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	a := &fakeClient{id: "a"}
	b := &fakeClient{id: "b"}
	f.room.AddClient(a)
	f.room.AddClient(b)

	aware := []byte{0x01, 0xaa}
	if err := f.room.HandleMessage(a, aware); err != nil {
		t.Fatal(err)
	}
	if got := b.received(); len(got) != 1 {
		t.Fatalf("b received %d messages, want 1", len(got))
	}

	logPath := updatelog.PathFor(filepath.Join(f.dir, "doc.txt"), "file")
	count := 0
	if err := updatelog.Replay(logPath, func([]byte) error { count++; return nil }); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("awareness message reached the update log (%d records)", count)
	}
}

func TestDocumentRoomCleanupExpires(t *testing.T) {
	f := newDocFixture(t)
	if err := f.room.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	a := &fakeClient{id: "a"}
	f.room.AddClient(a)
	if remaining := f.room.RemoveClient(a); remaining != 0 {
		t.Fatalf("RemoveClient() = %d, want 0", remaining)
	}

	f.room.ScheduleCleanup(20 * time.Millisecond)
	if got := f.room.State(); got != StateCleanupScheduled {
		t.Fatalf("state = %v, want cleanup_scheduled", got)
	}

	deadline := time.After(2 * time.Second)
	for f.room.State() != StateDestroyed {
		select {
		case <-deadline:
			t.Fatal("room never destroyed after cleanup delay")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if f.destroys.Load() != 1 {
		t.Errorf("destroy callback ran %d times, want 1", f.destroys.Load())
	}
	if err := f.room.AddClient(&fakeClient{id: "b"}); err != ErrRoomClosed {
		t.Errorf("AddClient after destroy = %v, want ErrRoomClosed", err)
	}
}

func TestDocumentRoomReattachCancelsCleanup(t *testing.T) {
	f := newDocFixture(t)
	if err := f.room.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	f.room.ScheduleCleanup(50 * time.Millisecond)

	// A client attaching during the grace period keeps the room alive.
	a := &fakeClient{id: "a"}
	if err := f.room.AddClient(a); err != nil {
		t.Fatal(err)
	}
	f.room.CancelCleanup()

	time.Sleep(120 * time.Millisecond)
	if got := f.room.State(); got != StateLive {
		t.Errorf("state = %v, want live after reattach", got)
	}
	if f.destroys.Load() != 0 {
		t.Errorf("destroy callback ran %d times, want 0", f.destroys.Load())
	}
}

func TestDocumentRoomDisabledCleanup(t *testing.T) {
	f := newDocFixture(t)
	if err := f.room.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	f.room.ScheduleCleanup(-1)
	if got := f.room.State(); got != StateLive {
		t.Errorf("state = %v, want live with cleanup disabled", got)
	}
}

func TestDocumentRoomMessageBeforeInitialize(t *testing.T) {
	f := newDocFixture(t)
	a := &fakeClient{id: "a"}
	if err := f.room.AddClient(a); err != nil {
		t.Fatal(err)
	}
	if err := f.room.HandleMessage(a, []byte{0x00, 0x01}); err != ErrNotInitialized {
		t.Errorf("HandleMessage before Initialize = %v, want ErrNotInitialized", err)
	}
}
