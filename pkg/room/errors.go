package room

import "errors"

var (
	// ErrRoomExists is returned by Registry.Add when a room with the
	// same id is already registered.
	ErrRoomExists = errors.New("room: room already exists")

	// ErrRoomClosed is returned when a client attaches to a room that
	// has already been destroyed.
	ErrRoomClosed = errors.New("room: room is closed")

	// ErrNotInitialized is returned when a document room receives a
	// message before Initialize has completed.
	ErrNotInitialized = errors.New("room: room not initialized")
)
