package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/docrelay-dev/docrelay/pkg/contents"
	"github.com/docrelay-dev/docrelay/pkg/fileid"
)

// Registry maps a file id to exactly one shared FileLoader, reference
// counted by subscription. Lookup-or-create runs in a single critical
// section, so no two loaders ever exist for one id, and a release racing a
// fresh acquire can never destroy a loader that just gained a subscriber:
// the count is rechecked after the final flush before the entry is removed.
type Registry struct {
	paths    *fileid.Manager
	contents contents.Manager
	opts     Options
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	loader *FileLoader
	refs   int
}

// NewRegistry creates a Registry. opts applies to every loader it constructs.
func NewRegistry(paths *fileid.Manager, cm contents.Manager, opts Options, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		paths:    paths,
		contents: cm,
		opts:     opts,
		logger:   logger,
		entries:  make(map[string]*entry),
	}
}

// Acquire returns the loader for fileID, constructing it on first
// subscription, and increments the subscriber count.
func (r *Registry) Acquire(ctx context.Context, fileID, format, fileType string) (*FileLoader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[fileID]; ok {
		e.refs++
		return e.loader, nil
	}

	l, err := newFileLoader(ctx, fileID, format, fileType, r.paths, r.contents, r.opts, r.logger)
	if err != nil {
		return nil, fmt.Errorf("loader: creating loader for %s: %w", fileID, err)
	}
	r.logger.Info("created file loader", "file_id", fileID, "path", l.Path())
	r.entries[fileID] = &entry{loader: l, refs: 1}
	return l, nil
}

// Release decrements the subscriber count for fileID. When it reaches zero
// the pending debounced save (if any) is flushed, the watcher stops, and the
// entry is removed. The flush happens while the entry is still registered:
// an Acquire racing the release then reuses this loader instead of
// constructing a fresh one whose first write could overlap the final flush.
func (r *Registry) Release(fileID string) {
	r.mu.Lock()
	e, ok := r.entries[fileID]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	e.loader.FlushNow()

	r.mu.Lock()
	if e.refs > 0 {
		// Revived by a concurrent Acquire while flushing.
		r.mu.Unlock()
		return
	}
	delete(r.entries, fileID)
	r.mu.Unlock()

	e.loader.Clean()
	r.logger.Info("deleted file loader", "file_id", fileID)
}

// Subscribers returns the current subscriber count for fileID.
func (r *Registry) Subscribers(fileID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[fileID]; ok {
		return e.refs
	}
	return 0
}

// Has reports whether a loader currently exists for fileID. Used to detect
// a second room opening the same underlying file.
func (r *Registry) Has(fileID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[fileID]
	return ok
}

// Shutdown flushes and cleans every loader. The registry is unusable after.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for id, e := range entries {
		e.loader.FlushNow()
		e.loader.Clean()
		r.logger.Info("deleted file loader", "file_id", id)
	}
}
