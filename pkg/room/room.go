// Package room implements the in-memory collaboration rooms that fan
// messages out between the clients attached to one document or channel.
package room

// Client is one attached connection. Send must not block the caller;
// implementations queue outbound messages and drop on a full or broken
// connection.
type Client interface {
	ID() string
	Send(msg []byte)
}

// Room fans messages out to a set of attached clients.
type Room interface {
	// ID returns the room id this room was registered under.
	ID() string

	// AddClient attaches a client. Returns ErrRoomClosed if the room
	// has been destroyed.
	AddClient(c Client) error

	// RemoveClient detaches a client and returns the number of
	// clients that remain attached.
	RemoveClient(c Client) int

	// Clients returns the number of attached clients.
	Clients() int

	// Broadcast sends msg to every attached client except the one
	// identified by fromID. An empty fromID sends to everyone.
	Broadcast(fromID string, msg []byte)

	// HandleMessage processes one inbound message from a client and
	// relays it to the rest of the room.
	HandleMessage(from Client, msg []byte) error

	// Close tears the room down immediately, regardless of attached
	// clients. Used during shutdown.
	Close()
}
