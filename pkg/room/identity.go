package room

import "strings"

// Identity is a parsed room id. Document rooms encode the serialization
// format, the resource type, and the stable file id as
// "<format>:<type>:<file_id>". Any id with fewer than two separators
// names a transient room and carries no resource binding.
type Identity struct {
	Format   string
	FileType string
	FileID   string
	raw      string
}

// ParseIdentity splits a room id into its identity. An id with at least
// two ':' separators is a document identity; the file id keeps any
// additional separators it contains.
func ParseIdentity(roomID string) Identity {
	parts := strings.SplitN(roomID, ":", 3)
	if len(parts) < 3 {
		return Identity{raw: roomID}
	}
	return Identity{
		Format:   parts[0],
		FileType: parts[1],
		FileID:   parts[2],
		raw:      roomID,
	}
}

// IsDocument reports whether the identity names a document room.
func (id Identity) IsDocument() bool { return id.FileID != "" }

// String returns the original room id.
func (id Identity) String() string { return id.raw }
