package server

import (
	"errors"
	"fmt"
)

// Sentinel errors for common gateway error conditions.
var (
	// ErrSessionExpired is returned when a client presents a session token
	// from a previous server process.
	ErrSessionExpired = errors.New("server: session expired")

	// ErrResourceNotFound is returned when a document room names a file id
	// with no backing resource.
	ErrResourceNotFound = errors.New("server: resource not found")

	// ErrNotAuthorized is returned when a request is missing or carries an
	// invalid auth token.
	ErrNotAuthorized = errors.New("server: not authorized")

	// ErrGatewayClosed is returned when an operation is attempted after
	// shutdown has begun.
	ErrGatewayClosed = errors.New("server: gateway closed")
)

// RoomError wraps an error with room context for debugging.
type RoomError struct {
	RoomID string
	Op     string // Operation that failed
	Err    error  // Underlying error
}

// Error returns the error message with room context.
func (e *RoomError) Error() string {
	if e.RoomID == "" {
		return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: room %s: %s: %v", e.RoomID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *RoomError) Unwrap() error {
	return e.Err
}

// NewRoomError creates a new RoomError.
func NewRoomError(roomID, op string, err error) *RoomError {
	return &RoomError{
		RoomID: roomID,
		Op:     op,
		Err:    err,
	}
}
