// Package loader centralizes all I/O against one durable resource: polling
// for external changes, notifying observers, and debounced persistence.
package loader

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/docrelay-dev/docrelay/pkg/contents"
	"github.com/docrelay-dev/docrelay/pkg/fileid"
)

// Loader errors.
var (
	// ErrOutOfBand is reported when a save finds the storage timestamp moved
	// since the loader last observed it: something else wrote the resource.
	ErrOutOfBand = errors.New("loader: out-of-band change on storage")
)

// ChangeFunc is invoked when the resource content changed externally.
// The model carries the fresh content.
type ChangeFunc func(model contents.Model)

// SavedFunc is invoked after the loader durably wrote the resource. The
// model carries the content that was written and the storage timestamp it
// received.
type SavedFunc func(model contents.Model)

// FileLoader owns every read and write for one file id. Rooms subscribe to
// it for change notifications and route their saves through it.
type FileLoader struct {
	fileID   string
	format   string
	fileType string

	paths    *fileid.Manager
	contents contents.Manager
	logger   *slog.Logger

	saveDelay    time.Duration
	pollInterval time.Duration

	// writeMu serializes all storage writes for this resource.
	writeMu sync.Mutex

	mu           sync.Mutex
	observers    map[string]ChangeFunc
	saveHooks    map[string]SavedFunc
	lastModified time.Time
	pendingSave  *time.Timer
	pendingModel contents.Model
	cleaned      bool

	watchStop chan struct{}
	watchDone chan struct{}
}

// Options configures a FileLoader.
type Options struct {
	// SaveDelay is the debounce window before a save hits storage.
	SaveDelay time.Duration

	// PollInterval is the watcher period. Zero disables polling; change
	// detection then relies on explicit Notify calls.
	PollInterval time.Duration
}

// newFileLoader fetches the initial state of the resource and, when polling
// is enabled, starts the watcher. Constructed through Registry.Acquire.
func newFileLoader(ctx context.Context, fileID, format, fileType string, paths *fileid.Manager, cm contents.Manager, opts Options, logger *slog.Logger) (*FileLoader, error) {
	l := &FileLoader{
		fileID:       fileID,
		format:       format,
		fileType:     fileType,
		paths:        paths,
		contents:     cm,
		logger:       logger.With("component", "loader", "file_id", fileID),
		saveDelay:    opts.SaveDelay,
		pollInterval: opts.PollInterval,
		observers:    make(map[string]ChangeFunc),
		saveHooks:    make(map[string]SavedFunc),
	}

	model, err := cm.Get(ctx, l.Path(), false)
	if err != nil {
		return nil, err
	}
	l.lastModified = model.LastModified

	if l.pollInterval > 0 {
		l.watchStop = make(chan struct{})
		l.watchDone = make(chan struct{})
		go l.watch()
	}
	return l, nil
}

// FileID returns the stable file id this loader serves.
func (l *FileLoader) FileID() string { return l.fileID }

// Format returns the file format the loader was created for.
func (l *FileLoader) Format() string { return l.format }

// FileType returns the content type the loader was created for.
func (l *FileLoader) FileType() string { return l.fileType }

// Path resolves the current resource path. Consulted on every operation so
// the loader follows renames.
func (l *FileLoader) Path() string {
	return l.paths.Path(l.fileID)
}

// Observe subscribes an observer, keyed by room id.
func (l *FileLoader) Observe(id string, fn ChangeFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers[id] = fn
}

// OnSaved subscribes a hook that fires after each durable write, keyed by
// room id.
func (l *FileLoader) OnSaved(id string, fn SavedFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.saveHooks[id] = fn
}

// Unobserve removes the observer and saved hook registered under id.
func (l *FileLoader) Unobserve(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.observers, id)
	delete(l.saveHooks, id)
}

// Load fetches the resource with content.
func (l *FileLoader) Load(ctx context.Context) (contents.Model, error) {
	model, err := l.contents.Get(ctx, l.Path(), true)
	if err != nil {
		return contents.Model{}, err
	}
	model.Format = l.format
	model.Type = l.fileType

	l.mu.Lock()
	if model.LastModified.After(l.lastModified) {
		l.lastModified = model.LastModified
	}
	l.mu.Unlock()
	return model, nil
}

// Notify checks storage for an external change. Observers fire only when the
// storage timestamp strictly advanced past the last one the loader observed;
// the new timestamp is adopted after they ran.
func (l *FileLoader) Notify(ctx context.Context) error {
	path := l.Path()
	meta, err := l.contents.Get(ctx, path, false)
	if err != nil {
		return err
	}

	l.mu.Lock()
	if !meta.LastModified.After(l.lastModified) {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	model, err := l.contents.Get(ctx, path, true)
	if err != nil {
		return err
	}
	model.Format = l.format
	model.Type = l.fileType

	l.mu.Lock()
	if !model.LastModified.After(l.lastModified) {
		l.mu.Unlock()
		return nil
	}
	observers := make([]ChangeFunc, 0, len(l.observers))
	for _, fn := range l.observers {
		observers = append(observers, fn)
	}
	l.lastModified = model.LastModified
	l.mu.Unlock()

	for _, fn := range observers {
		fn(model)
	}
	return nil
}

// Save schedules a debounced write of model. Calls within the debounce
// window collapse into a single write of the newest payload; the delay
// restarts on every call.
func (l *FileLoader) Save(model contents.Model) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cleaned {
		return
	}

	l.pendingModel = model
	if l.pendingSave != nil {
		l.pendingSave.Reset(l.saveDelay)
		return
	}
	l.pendingSave = time.AfterFunc(l.saveDelay, l.flushPending)
}

// FlushNow forces any pending debounced save to storage immediately.
// Called on teardown so the last edits are not lost to the debounce window.
func (l *FileLoader) FlushNow() {
	l.mu.Lock()
	if l.pendingSave == nil {
		l.mu.Unlock()
		return
	}
	l.pendingSave.Stop()
	l.mu.Unlock()
	l.flushPending()
}

func (l *FileLoader) flushPending() {
	l.mu.Lock()
	if l.pendingSave == nil {
		l.mu.Unlock()
		return
	}
	l.pendingSave = nil
	model := l.pendingModel
	l.mu.Unlock()

	if err := l.save(context.Background(), model); err != nil {
		if errors.Is(err, ErrOutOfBand) {
			l.logger.Warn("save skipped, file changed on storage", "path", model.Path)
			return
		}
		l.logger.Error("save failed", "path", model.Path, "error", err)
	}
}

// save writes model to storage. Writes for one resource never overlap. When
// the storage timestamp moved since the loader last observed it the write is
// abandoned with ErrOutOfBand and observers are refreshed with the external
// content instead.
func (l *FileLoader) save(ctx context.Context, model contents.Model) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	path := l.Path()
	meta, err := l.contents.Get(ctx, path, false)
	if err != nil {
		return err
	}

	l.mu.Lock()
	known := l.lastModified
	l.mu.Unlock()

	if meta.LastModified.After(known) {
		// Someone else wrote the file. Let observers reconcile.
		if nerr := l.Notify(ctx); nerr != nil {
			l.logger.Error("refresh after out-of-band change failed", "error", nerr)
		}
		return ErrOutOfBand
	}

	model.Path = path
	saved, err := l.contents.Save(ctx, model)
	if err != nil {
		return err
	}

	// Adopt the write's timestamp so this save does not notify ourselves.
	l.mu.Lock()
	if saved.LastModified.After(l.lastModified) {
		l.lastModified = saved.LastModified
	}
	hooks := make([]SavedFunc, 0, len(l.saveHooks))
	for _, fn := range l.saveHooks {
		hooks = append(hooks, fn)
	}
	l.mu.Unlock()

	l.logger.Info("saved file", "path", path)

	model.LastModified = saved.LastModified
	for _, fn := range hooks {
		fn(model)
	}
	return nil
}

// watch polls storage until Clean is called. Errors are logged and the loop
// retries on its next tick.
func (l *FileLoader) watch() {
	defer close(l.watchDone)

	l.logger.Info("watching file", "path", l.Path())
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := l.Notify(context.Background()); err != nil {
				l.logger.Error("error watching file", "path", l.Path(), "error", err)
			}
		case <-l.watchStop:
			return
		}
	}
}

// Clean tears the loader down: the watcher stops, any pending debounced save
// is cancelled, and no observer fires afterwards. Safe to call at any time
// and idempotent.
func (l *FileLoader) Clean() {
	l.mu.Lock()
	if l.cleaned {
		l.mu.Unlock()
		return
	}
	l.cleaned = true
	l.observers = make(map[string]ChangeFunc)
	l.saveHooks = make(map[string]SavedFunc)
	if l.pendingSave != nil {
		l.pendingSave.Stop()
		l.pendingSave = nil
	}
	stop := l.watchStop
	done := l.watchDone
	l.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}
