package room

import "sync"

// Registry maps room ids to live rooms. All operations are atomic with
// respect to each other, so two connections racing to open the same
// room observe a single instance.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]Room
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]Room)}
}

// Exists reports whether a room is registered under id.
func (r *Registry) Exists(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[id]
	return ok
}

// Get returns the room registered under id, if any.
func (r *Registry) Get(id string) (Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	return room, ok
}

// Add registers a room under its own id. Returns ErrRoomExists if the
// id is taken.
func (r *Registry) Add(room Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[room.ID()]; ok {
		return ErrRoomExists
	}
	r.rooms[room.ID()] = room
	return nil
}

// Delete removes the room registered under id. Deleting an absent id
// is a no-op.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, id)
}

// GetOrCreate returns the room registered under id, constructing and
// registering one via factory if absent. Construction happens inside
// the registry's critical section so concurrent first connections get
// the same instance. The second return value reports whether the room
// was created by this call.
func (r *Registry) GetOrCreate(id string, factory func() (Room, error)) (Room, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[id]; ok {
		return room, false, nil
	}
	room, err := factory()
	if err != nil {
		return nil, false, err
	}
	r.rooms[id] = room
	return room, true, nil
}

// Len returns the number of registered rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// CloseAll tears down and removes every registered room. Used during
// gateway shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	rooms := make([]Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.rooms = make(map[string]Room)
	r.mu.Unlock()

	for _, room := range rooms {
		room.Close()
	}
}
