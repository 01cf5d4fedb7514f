package protocol

import (
	"encoding/json"
	"errors"
)

// Awareness errors.
var (
	ErrTruncatedAwareness = errors.New("protocol: truncated awareness update")
	ErrAwarenessTooLong   = errors.New("protocol: awareness state exceeds payload")
)

// AwarenessEntry is one participant entry in an awareness update.
type AwarenessEntry struct {
	ClientID uint64
	Clock    uint64
	// State is the raw JSON state document, or nil when the entry removes
	// the participant.
	State json.RawMessage
}

// Removed reports whether this entry removes the participant.
func (e AwarenessEntry) Removed() bool {
	return e.State == nil
}

// DisplayName extracts the participant display name from the state document
// ({"user":{"name":...}}). Returns "" if the state carries no name.
func (e AwarenessEntry) DisplayName() string {
	if e.State == nil {
		return ""
	}
	var state struct {
		User struct {
			Name string `json:"name"`
		} `json:"user"`
	}
	if err := json.Unmarshal(e.State, &state); err != nil {
		return ""
	}
	return state.User.Name
}

// AwarenessUpdate is a decoded awareness payload.
type AwarenessUpdate struct {
	Entries []AwarenessEntry
}

// Added returns the entries that add or refresh a participant state.
func (u *AwarenessUpdate) Added() []AwarenessEntry {
	var added []AwarenessEntry
	for _, e := range u.Entries {
		if !e.Removed() {
			added = append(added, e)
		}
	}
	return added
}

// RemovedIDs returns the client IDs removed by this update.
func (u *AwarenessUpdate) RemovedIDs() []uint64 {
	var removed []uint64
	for _, e := range u.Entries {
		if e.Removed() {
			removed = append(removed, e.ClientID)
		}
	}
	return removed
}

// DecodeAwarenessUpdate decodes the payload of an awareness message (the
// frame without its leading type byte).
//
// Wire layout, all integers varint encoded:
//
//	entry count
//	per entry: client id, clock, state length, state bytes (JSON)
//
// A JSON "null" state marks the participant as removed. The payload comes
// from the external sync engine; the gateway decodes it only to maintain the
// connected-users directory.
func DecodeAwarenessUpdate(payload []byte) (*AwarenessUpdate, error) {
	count, n := DecodeUvarint(payload)
	if n < 0 {
		return nil, ErrTruncatedAwareness
	}
	payload = payload[n:]

	update := &AwarenessUpdate{}
	for i := uint64(0); i < count; i++ {
		var e AwarenessEntry

		e.ClientID, n = DecodeUvarint(payload)
		if n < 0 {
			return nil, ErrTruncatedAwareness
		}
		payload = payload[n:]

		e.Clock, n = DecodeUvarint(payload)
		if n < 0 {
			return nil, ErrTruncatedAwareness
		}
		payload = payload[n:]

		length, n := DecodeUvarint(payload)
		if n < 0 {
			return nil, ErrTruncatedAwareness
		}
		payload = payload[n:]

		if length > uint64(len(payload)) {
			return nil, ErrAwarenessTooLong
		}
		state := payload[:length]
		payload = payload[length:]

		if string(state) != "null" {
			e.State = json.RawMessage(append([]byte(nil), state...))
		}
		update.Entries = append(update.Entries, e)
	}

	return update, nil
}

// EncodeAwarenessUpdate encodes entries into an awareness payload (without
// the leading type byte). Used by tests and by the transient room when
// replaying presence state to late joiners.
func EncodeAwarenessUpdate(entries []AwarenessEntry) []byte {
	buf := AppendUvarint(nil, uint64(len(entries)))
	for _, e := range entries {
		buf = AppendUvarint(buf, e.ClientID)
		buf = AppendUvarint(buf, e.Clock)
		state := []byte("null")
		if e.State != nil {
			state = e.State
		}
		buf = AppendUvarint(buf, uint64(len(state)))
		buf = append(buf, state...)
	}
	return buf
}
