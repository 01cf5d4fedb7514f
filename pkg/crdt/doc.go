// Package crdt is the boundary to the external replicated-document engine.
//
// The gateway never interprets update bytes: it loads a checkpoint, feeds
// opaque updates through, replays them for late joiners, and reads a
// serialized checkpoint back out for persistence. Conflict resolution lives
// entirely on the other side of the Doc interface.
package crdt

import (
	"encoding/binary"
	"sync"
)

// Doc is one replicated document held in memory by a document room.
// Implementations must be safe for concurrent use.
type Doc interface {
	// SetContent replaces the checkpoint content, discarding buffered
	// updates. Called once at room initialization with the durable state.
	SetContent(content []byte)

	// Content returns the serialized state to persist. It must reflect
	// every update applied so far, so a save scheduled after edit N never
	// writes content older than edit N.
	Content() []byte

	// ApplyUpdate feeds one opaque update into the document.
	ApplyUpdate(update []byte) error

	// Updates returns the updates applied since the last checkpoint, in
	// application order, for replay to late joiners.
	Updates() [][]byte

	// Compact folds the buffered updates into the checkpoint. The room
	// calls it once those updates are durably persisted, so both replay
	// and the in-memory list stay bounded by the save interval.
	Compact()
}

// UpdateBuffer is the default Doc: a checkpoint plus the ordered list of
// opaque updates applied on top of it. It performs no merging of its own.
// Content serializes the checkpoint followed by each buffered update as a
// length-prefixed record; engines that actually merge replace this with
// their own state encoding. Clients run the conflict resolution and the
// buffer only guarantees that every client observes the same update
// sequence.
type UpdateBuffer struct {
	mu      sync.RWMutex
	content []byte
	updates [][]byte
}

// NewUpdateBuffer creates an empty UpdateBuffer.
func NewUpdateBuffer() *UpdateBuffer {
	return &UpdateBuffer{}
}

// SetContent implements Doc.
func (d *UpdateBuffer) SetContent(content []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.content = append([]byte(nil), content...)
	d.updates = nil
}

// Content implements Doc. The result is the checkpoint with every buffered
// update folded in, so persisting it never loses an applied edit.
func (d *UpdateBuffer) Content() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.foldLocked()
}

// ApplyUpdate implements Doc.
func (d *UpdateBuffer) ApplyUpdate(update []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, append([]byte(nil), update...))
	return nil
}

// Updates implements Doc.
func (d *UpdateBuffer) Updates() [][]byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([][]byte, len(d.updates))
	copy(out, d.updates)
	return out
}

// Compact implements Doc. The checkpoint absorbs the buffered updates and
// the list resets, so late joiners only replay edits newer than the last
// durable write.
func (d *UpdateBuffer) Compact() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.content = d.foldLocked()
	d.updates = nil
}

func (d *UpdateBuffer) foldLocked() []byte {
	size := len(d.content)
	for _, u := range d.updates {
		size += 4 + len(u)
	}
	out := make([]byte, 0, size)
	out = append(out, d.content...)
	var header [4]byte
	for _, u := range d.updates {
		binary.BigEndian.PutUint32(header[:], uint32(len(u)))
		out = append(out, header[:]...)
		out = append(out, u...)
	}
	return out
}
