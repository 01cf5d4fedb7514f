// Package updatelog persists document updates as an append-only sequence of
// opaque records.
//
// One log exists per document room, stored as a hidden sibling of the
// original resource. Records are replayable in append order; their payload
// bytes belong to the external sync engine and are never interpreted here.
package updatelog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Log errors.
var (
	// ErrClosed is returned when appending to a closed writer.
	ErrClosed = errors.New("updatelog: writer closed")
)

// PathFor derives the log path for a resource: a hidden sibling of the
// original file encoding the document type and the original name.
func PathFor(resourcePath, fileType string) string {
	dir, name := filepath.Split(resourcePath)
	return filepath.Join(dir, fmt.Sprintf(".%s:%s.updates", fileType, name))
}

// Writer appends length-prefixed records to a log file.
// Safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	closed bool
}

// Open opens (or creates) the log at path for appending.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("updatelog: open %s: %w", path, err)
	}
	return &Writer{f: f}, nil
}

// Append writes one record.
func (w *Writer) Append(update []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(update)))
	if _, err := w.f.Write(header[:]); err != nil {
		return fmt.Errorf("updatelog: append: %w", err)
	}
	if _, err := w.f.Write(update); err != nil {
		return fmt.Errorf("updatelog: append: %w", err)
	}
	return nil
}

// Truncate discards every record. Called once the logged updates are folded
// into the durable document, so a later replay does not re-apply them.
func (w *Writer) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if err := w.f.Truncate(0); err != nil {
		return fmt.Errorf("updatelog: truncate: %w", err)
	}
	return nil
}

// Close flushes and closes the log file. Further appends fail with ErrClosed.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.f.Close()
}

// Replay reads the log at path and invokes fn for each record in append
// order. A missing log is not an error (nothing to replay). A truncated
// trailing record, left by a crash mid-append, is tolerated and ends the replay.
func Replay(path string, fn func(update []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("updatelog: open %s: %w", path, err)
	}
	defer f.Close()

	var header [4]byte
	for {
		if _, err := io.ReadFull(f, header[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return fmt.Errorf("updatelog: read %s: %w", path, err)
		}
		record := make([]byte, binary.BigEndian.Uint32(header[:]))
		if _, err := io.ReadFull(f, record); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil // truncated trailing record
			}
			return fmt.Errorf("updatelog: read %s: %w", path, err)
		}
		if err := fn(record); err != nil {
			return err
		}
	}
}
