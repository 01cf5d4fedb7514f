package server

import "sync"

// Users is the process-wide directory of connected collaborators,
// keyed by the awareness client id each one announces. It exists for
// observability only; relay never consults it.
type Users struct {
	mu    sync.Mutex
	names map[uint64]string
}

// NewUsers creates an empty directory.
func NewUsers() *Users {
	return &Users{names: make(map[uint64]string)}
}

// Set records the display name announced by an awareness client.
func (u *Users) Set(clientID uint64, name string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.names[clientID] = name
}

// Remove forgets an awareness client.
func (u *Users) Remove(clientID uint64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.names, clientID)
}

// Name returns the display name for an awareness client, if known.
func (u *Users) Name(clientID uint64) (string, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	name, ok := u.names[clientID]
	return name, ok
}

// List returns a snapshot of the directory.
func (u *Users) List() map[uint64]string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make(map[uint64]string, len(u.names))
	for id, name := range u.names {
		out[id] = name
	}
	return out
}

// Len returns the number of known collaborators.
func (u *Users) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.names)
}
