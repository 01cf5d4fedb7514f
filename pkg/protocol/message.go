package protocol

import "errors"

// MaxMessageSize is the maximum size of a single inbound frame.
// The sync engine can ship an entire document state in one message, so the
// limit is deliberately generous. Fixed external constant, not configurable.
const MaxMessageSize = 1024 * 1024 * 1024 // 1 GiB

// MessageType is the first byte of every binary frame. Everything that is
// not an awareness update is an opaque sync payload relayed without
// interpretation.
type MessageType uint8

const (
	MessageSync      MessageType = 0x00 // Document sync (opaque engine payload)
	MessageAwareness MessageType = 0x01 // Presence/awareness update
)

// String returns the string representation of the message type.
func (mt MessageType) String() string {
	switch mt {
	case MessageSync:
		return "Sync"
	case MessageAwareness:
		return "Awareness"
	default:
		return "Sync" // unrecognized types relay as sync payloads
	}
}

// Message errors.
var (
	ErrEmptyMessage    = errors.New("protocol: empty message")
	ErrMessageTooLarge = errors.New("protocol: message exceeds size limit")
)

// TypeOf returns the message type discriminator of a raw frame, rejecting
// frames the relay must not accept.
func TypeOf(msg []byte) (MessageType, error) {
	if len(msg) == 0 {
		return 0, ErrEmptyMessage
	}
	if len(msg) > MaxMessageSize {
		return 0, ErrMessageTooLarge
	}
	return MessageType(msg[0]), nil
}

// IsAwareness reports whether the raw frame carries an awareness update.
func IsAwareness(msg []byte) bool {
	return len(msg) > 0 && MessageType(msg[0]) == MessageAwareness
}
