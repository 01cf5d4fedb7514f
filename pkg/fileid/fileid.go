// Package fileid maintains a stable identifier per resource path.
//
// Identifiers survive renames: a rename is recorded with Move, keeping the id
// attached to the resource rather than its current path. The index persists
// to a JSON file so ids survive server restarts.
package fileid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
)

// Index errors.
var (
	// ErrNoResource is returned by Index when the path does not resolve to
	// an existing resource.
	ErrNoResource = errors.New("fileid: path does not resolve to a resource")
)

// ExistsFunc reports whether a path currently resolves to a resource.
type ExistsFunc func(ctx context.Context, path string) bool

// Manager maps resource paths to stable ids and back.
// All methods are safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	byPath   map[string]string
	byID     map[string]string
	exists   ExistsFunc
	savePath string // "" disables persistence
}

// NewManager creates a Manager. exists is consulted before indexing a new
// path. savePath, if non-empty, is the JSON file the index is persisted to;
// an existing file is loaded.
func NewManager(exists ExistsFunc, savePath string) (*Manager, error) {
	m := &Manager{
		byPath:   make(map[string]string),
		byID:     make(map[string]string),
		exists:   exists,
		savePath: savePath,
	}
	if savePath != "" {
		if err := m.load(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ID returns the id for path, or "" if the path is not indexed.
func (m *Manager) ID(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byPath[path]
}

// Path returns the current path for id, or "" if the id is unknown.
func (m *Manager) Path(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

// Index returns the id for path, allocating one if the path is not yet
// indexed. created reports whether this call allocated the id; the check
// and allocation share one critical section so concurrent callers for one
// path see exactly one created=true. Returns ErrNoResource when the path
// does not resolve to an existing resource.
func (m *Manager) Index(ctx context.Context, path string) (id string, created bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byPath[path]; ok {
		return id, false, nil
	}
	if m.exists != nil && !m.exists(ctx, path) {
		return "", false, ErrNoResource
	}

	id = uuid.NewString()
	m.byPath[path] = id
	m.byID[id] = path
	if err := m.persistLocked(); err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Move reattaches the id of oldPath to newPath. It is a no-op when oldPath
// is not indexed.
func (m *Manager) Move(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byPath[oldPath]
	if !ok {
		return nil
	}
	delete(m.byPath, oldPath)
	m.byPath[newPath] = id
	m.byID[id] = newPath
	return m.persistLocked()
}

func (m *Manager) persistLocked() error {
	if m.savePath == "" {
		return nil
	}
	data, err := json.MarshalIndent(m.byPath, "", "  ")
	if err != nil {
		return fmt.Errorf("fileid: encoding index: %w", err)
	}
	if err := os.WriteFile(m.savePath, data, 0644); err != nil {
		return fmt.Errorf("fileid: writing index: %w", err)
	}
	return nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.savePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("fileid: reading index: %w", err)
	}
	if err := json.Unmarshal(data, &m.byPath); err != nil {
		return fmt.Errorf("fileid: decoding index: %w", err)
	}
	for path, id := range m.byPath {
		m.byID[id] = path
	}
	return nil
}
