// Package contents defines the durable content backend boundary.
//
// A Manager reads and writes one file-like resource by path. The gateway
// treats it as a checkpoint store: the in-memory room state is authoritative
// while a room is live, and the backend only holds the last saved state.
package contents

import (
	"context"
	"errors"
	"time"
)

// Manager errors.
var (
	// ErrNotFound is returned when the path does not resolve to a resource.
	ErrNotFound = errors.New("contents: not found")
)

// Model is the metadata and (optionally) content of one resource.
type Model struct {
	Path         string
	Format       string
	Type         string
	Content      []byte // nil when fetched without content
	LastModified time.Time
}

// Manager reads and writes durable resources by path.
// Implementations must be safe for concurrent use.
type Manager interface {
	// Get fetches the resource at path. When withContent is false only
	// metadata (including LastModified) is populated.
	// Returns ErrNotFound if the path does not resolve to a resource.
	Get(ctx context.Context, path string, withContent bool) (Model, error)

	// Save writes the model's content to its path and returns the refreshed
	// model, including the LastModified of the write.
	Save(ctx context.Context, model Model) (Model, error)

	// Exists reports whether the path resolves to a resource.
	Exists(ctx context.Context, path string) bool
}
