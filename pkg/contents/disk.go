package contents

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiskManager serves resources from a directory on the local filesystem.
type DiskManager struct {
	root string
}

// NewDiskManager creates a DiskManager rooted at dir.
func NewDiskManager(dir string) (*DiskManager, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("contents: resolving root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("contents: root %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("contents: root %s is not a directory", dir)
	}
	return &DiskManager{root: abs}, nil
}

// Root returns the absolute root directory.
func (m *DiskManager) Root() string {
	return m.root
}

// resolve maps a relative resource path inside the root, rejecting traversal.
func (m *DiskManager) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	full := filepath.Join(m.root, clean)
	if full != m.root && !strings.HasPrefix(full, m.root+string(filepath.Separator)) {
		return "", ErrNotFound
	}
	return full, nil
}

// Get implements Manager.
func (m *DiskManager) Get(ctx context.Context, path string, withContent bool) (Model, error) {
	full, err := m.resolve(path)
	if err != nil {
		return Model{}, err
	}

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return Model{}, ErrNotFound
		}
		return Model{}, fmt.Errorf("contents: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Model{}, ErrNotFound
	}

	model := Model{
		Path:         path,
		LastModified: info.ModTime(),
	}
	if withContent {
		data, err := os.ReadFile(full)
		if err != nil {
			return Model{}, fmt.Errorf("contents: read %s: %w", path, err)
		}
		model.Content = data
	}
	return model, nil
}

// Save implements Manager. The write goes through a temp file and rename so
// a concurrent reader never observes a torn write.
func (m *DiskManager) Save(ctx context.Context, model Model) (Model, error) {
	full, err := m.resolve(model.Path)
	if err != nil {
		return Model{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".save-*")
	if err != nil {
		return Model{}, fmt.Errorf("contents: temp file for %s: %w", model.Path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(model.Content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return Model{}, fmt.Errorf("contents: write %s: %w", model.Path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return Model{}, fmt.Errorf("contents: close %s: %w", model.Path, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return Model{}, fmt.Errorf("contents: rename %s: %w", model.Path, err)
	}

	info, err := os.Stat(full)
	if err != nil {
		return Model{}, fmt.Errorf("contents: stat after save %s: %w", model.Path, err)
	}

	saved := model
	saved.LastModified = info.ModTime()
	return saved, nil
}

// Exists implements Manager.
func (m *DiskManager) Exists(ctx context.Context, path string) bool {
	full, err := m.resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}
