package room

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/docrelay-dev/docrelay/pkg/contents"
	"github.com/docrelay-dev/docrelay/pkg/crdt"
	"github.com/docrelay-dev/docrelay/pkg/loader"
	"github.com/docrelay-dev/docrelay/pkg/protocol"
	"github.com/docrelay-dev/docrelay/pkg/updatelog"
)

// DocumentState tracks where a document room is in its lifecycle.
type DocumentState int

const (
	StateUninitialized DocumentState = iota
	StateInitializing
	StateLive
	StateCleanupScheduled
	StateDestroyed
)

func (s DocumentState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateLive:
		return "live"
	case StateCleanupScheduled:
		return "cleanup_scheduled"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// DocumentRoom serves one durable document. It holds the authoritative
// in-memory replica, persists accepted updates to the room's update
// log, and schedules debounced saves through the content loader.
type DocumentRoom struct {
	identity Identity
	loader   *loader.FileLoader
	doc      crdt.Doc
	logRoot  string
	logger   *slog.Logger

	// onDestroy runs once after the room tears itself down, so the
	// owner can unregister it and release the loader subscription.
	onDestroy func(*DocumentRoom)

	initOnce sync.Once
	initErr  error

	mu      sync.Mutex
	state   DocumentState
	clients map[string]Client
	writer  *updatelog.Writer
	cleanup *time.Timer
}

// NewDocumentRoom wires a room to its loader and replica. logRoot is
// the directory resource paths are relative to; the room's update log
// lives next to the resource under that root. The room is inert until
// Initialize is called by the first attaching connection.
func NewDocumentRoom(identity Identity, l *loader.FileLoader, doc crdt.Doc, logRoot string, logger *slog.Logger, onDestroy func(*DocumentRoom)) *DocumentRoom {
	if logger == nil {
		logger = slog.Default()
	}
	if doc == nil {
		doc = crdt.NewUpdateBuffer()
	}
	return &DocumentRoom{
		identity:  identity,
		loader:    l,
		doc:       doc,
		logRoot:   logRoot,
		logger:    logger.With("component", "room", "room", identity.String()),
		onDestroy: onDestroy,
		clients:   make(map[string]Client),
	}
}

func (r *DocumentRoom) ID() string { return r.identity.String() }

// Identity returns the parsed room identity.
func (r *DocumentRoom) Identity() Identity { return r.identity }

// State returns the current lifecycle state.
func (r *DocumentRoom) State() DocumentState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Initialize loads the document content, replays the update log into
// the replica, and subscribes to external change notifications. It is
// single-flight: concurrent attaches wait for the first call and share
// its result.
func (r *DocumentRoom) Initialize(ctx context.Context) error {
	r.initOnce.Do(func() {
		r.mu.Lock()
		r.state = StateInitializing
		r.mu.Unlock()

		r.initErr = r.initialize(ctx)

		r.mu.Lock()
		if r.initErr == nil {
			r.state = StateLive
		} else {
			r.state = StateUninitialized
		}
		r.mu.Unlock()
	})
	return r.initErr
}

func (r *DocumentRoom) initialize(ctx context.Context) error {
	model, err := r.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}
	r.doc.SetContent(model.Content)

	logPath := updatelog.PathFor(filepath.Join(r.logRoot, model.Path), r.identity.FileType)
	replayed := 0
	err = updatelog.Replay(logPath, func(update []byte) error {
		replayed++
		return r.doc.ApplyUpdate(update)
	})
	if err != nil {
		return fmt.Errorf("replay update log: %w", err)
	}

	writer, err := updatelog.Open(logPath)
	if err != nil {
		return fmt.Errorf("open update log: %w", err)
	}
	r.mu.Lock()
	r.writer = writer
	r.mu.Unlock()

	r.loader.Observe(r.identity.String(), r.onFileChanged)
	r.loader.OnSaved(r.identity.String(), r.onSaved)

	r.logger.Info("room initialized",
		"path", model.Path,
		"replayed_updates", replayed)
	return nil
}

// onFileChanged handles an out-of-band change to the backing resource.
// The replica is reset to the new content; attached clients keep their
// local state and re-sync on their next connection.
func (r *DocumentRoom) onFileChanged(model contents.Model) {
	r.doc.SetContent(model.Content)
	r.logger.Warn("content changed outside the room, replica reset",
		"path", model.Path,
		"last_modified", model.LastModified)
}

// onSaved runs after the loader durably wrote the document. Once the write
// matches the replica the buffered updates are folded into the checkpoint
// and the update log resets: everything it held is now in the resource
// itself. A mismatch means updates arrived after the write was scheduled;
// the save they scheduled is still pending, so compaction waits for it.
func (r *DocumentRoom) onSaved(model contents.Model) {
	r.mu.Lock()
	writer := r.writer
	destroyed := r.state == StateDestroyed
	r.mu.Unlock()
	if destroyed {
		return
	}
	if !bytes.Equal(model.Content, r.doc.Content()) {
		return
	}

	r.doc.Compact()
	if writer != nil {
		if err := writer.Truncate(); err != nil {
			r.logger.Error("truncating update log", "error", err)
		}
	}
}

func (r *DocumentRoom) AddClient(c Client) error {
	r.mu.Lock()
	if r.state == StateDestroyed {
		r.mu.Unlock()
		return ErrRoomClosed
	}
	r.clients[c.ID()] = c
	if r.cleanup != nil {
		r.cleanup.Stop()
		r.cleanup = nil
	}
	if r.state == StateCleanupScheduled {
		r.state = StateLive
	}
	r.mu.Unlock()

	// Catch the new client up on every update accepted since the last
	// durable write. Updates are stored as full frames, so they replay
	// verbatim; anything older is already in the resource the client
	// fetched.
	for _, update := range r.doc.Updates() {
		c.Send(update)
	}
	return nil
}

func (r *DocumentRoom) RemoveClient(c Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, c.ID())
	return len(r.clients)
}

func (r *DocumentRoom) Clients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *DocumentRoom) Broadcast(fromID string, msg []byte) {
	r.mu.Lock()
	targets := make([]Client, 0, len(r.clients))
	for id, c := range r.clients {
		if id == fromID {
			continue
		}
		targets = append(targets, c)
	}
	r.mu.Unlock()

	for _, c := range targets {
		c.Send(msg)
	}
}

// HandleMessage applies one inbound frame. Sync messages are appended
// to the update log, applied to the replica, relayed, and schedule a
// debounced save. Awareness messages are relayed only.
func (r *DocumentRoom) HandleMessage(from Client, msg []byte) error {
	if protocol.IsAwareness(msg) {
		r.Broadcast(from.ID(), msg)
		return nil
	}

	r.mu.Lock()
	writer := r.writer
	destroyed := r.state == StateDestroyed
	r.mu.Unlock()
	if destroyed {
		return ErrRoomClosed
	}
	if writer == nil {
		return ErrNotInitialized
	}

	if err := writer.Append(msg); err != nil {
		return fmt.Errorf("append update: %w", err)
	}
	if err := r.doc.ApplyUpdate(msg); err != nil {
		return fmt.Errorf("apply update: %w", err)
	}
	r.Broadcast(from.ID(), msg)

	r.loader.Save(contents.Model{
		Path:    r.loader.Path(),
		Format:  r.identity.Format,
		Type:    r.identity.FileType,
		Content: r.doc.Content(),
	})
	return nil
}

// ScheduleCleanup arms a destroy timer. The room is destroyed after
// delay unless a client attaches first. A negative delay disables
// cleanup entirely; zero destroys immediately.
func (r *DocumentRoom) ScheduleCleanup(delay time.Duration) {
	if delay < 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateDestroyed || len(r.clients) > 0 {
		return
	}
	if r.cleanup != nil {
		r.cleanup.Stop()
	}
	r.state = StateCleanupScheduled
	r.cleanup = time.AfterFunc(delay, r.destroyIfEmpty)
	r.logger.Info("cleanup scheduled", "delay", delay)
}

// CancelCleanup stops a pending destroy timer. Called when a client
// attaches during the grace period; an attach always wins over a
// pending destroy.
func (r *DocumentRoom) CancelCleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cleanup != nil {
		r.cleanup.Stop()
		r.cleanup = nil
	}
	if r.state == StateCleanupScheduled {
		r.state = StateLive
		r.logger.Info("cleanup cancelled, client reattached")
	}
}

// destroyIfEmpty is the cleanup timer body. A client that attached
// after the timer fired but before it acquired the lock keeps the
// room alive.
func (r *DocumentRoom) destroyIfEmpty() {
	r.mu.Lock()
	if r.state == StateDestroyed || len(r.clients) > 0 {
		r.mu.Unlock()
		return
	}
	r.teardownLocked()
	r.mu.Unlock()

	if r.onDestroy != nil {
		r.onDestroy(r)
	}
}

// Close tears the room down unconditionally, detaching any remaining
// clients. Used during gateway shutdown.
func (r *DocumentRoom) Close() {
	r.mu.Lock()
	if r.state == StateDestroyed {
		r.mu.Unlock()
		return
	}
	r.teardownLocked()
	r.mu.Unlock()

	if r.onDestroy != nil {
		r.onDestroy(r)
	}
}

func (r *DocumentRoom) teardownLocked() {
	r.state = StateDestroyed
	r.clients = make(map[string]Client)
	if r.cleanup != nil {
		r.cleanup.Stop()
		r.cleanup = nil
	}
	r.loader.Unobserve(r.identity.String())
	if r.writer != nil {
		if err := r.writer.Close(); err != nil {
			r.logger.Error("closing update log", "error", err)
		}
		r.writer = nil
	}
	r.logger.Info("room destroyed")
}
