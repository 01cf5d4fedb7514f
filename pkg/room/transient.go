package room

import (
	"sync"

	"github.com/docrelay-dev/docrelay/pkg/protocol"
)

// TransientRoom is a pure relay with no backing resource. It remembers
// the last awareness message per client so late joiners see who is
// already present.
type TransientRoom struct {
	id string

	mu        sync.Mutex
	clients   map[string]Client
	awareness map[string][]byte
	closed    bool
}

// NewTransientRoom creates an empty transient room.
func NewTransientRoom(id string) *TransientRoom {
	return &TransientRoom{
		id:        id,
		clients:   make(map[string]Client),
		awareness: make(map[string][]byte),
	}
}

func (r *TransientRoom) ID() string { return r.id }

func (r *TransientRoom) AddClient(c Client) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRoomClosed
	}
	r.clients[c.ID()] = c
	replay := make([][]byte, 0, len(r.awareness))
	for id, msg := range r.awareness {
		if id == c.ID() {
			continue
		}
		replay = append(replay, msg)
	}
	r.mu.Unlock()

	for _, msg := range replay {
		c.Send(msg)
	}
	return nil
}

func (r *TransientRoom) RemoveClient(c Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, c.ID())
	delete(r.awareness, c.ID())
	return len(r.clients)
}

func (r *TransientRoom) Clients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *TransientRoom) Broadcast(fromID string, msg []byte) {
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

func (r *TransientRoom) HandleMessage(from Client, msg []byte) error {
	if protocol.IsAwareness(msg) {
		r.mu.Lock()
		if !r.closed {
			r.awareness[from.ID()] = msg
		}
		r.mu.Unlock()
	}
	r.Broadcast(from.ID(), msg)
	return nil
}

func (r *TransientRoom) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.clients = make(map[string]Client)
	r.awareness = make(map[string][]byte)
}
