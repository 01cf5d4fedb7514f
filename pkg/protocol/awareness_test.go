package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeAwarenessUpdate(t *testing.T) {
	entries := []AwarenessEntry{
		{ClientID: 1, Clock: 3, State: json.RawMessage(`{"user":{"name":"alice"}}`)},
		{ClientID: 2, Clock: 1, State: nil}, // removed
		{ClientID: 9000, Clock: 12, State: json.RawMessage(`{"user":{"name":"bob"},"cursor":{"line":4}}`)},
	}
	payload := EncodeAwarenessUpdate(entries)

	update, err := DecodeAwarenessUpdate(payload)
	if err != nil {
		t.Fatalf("DecodeAwarenessUpdate() error = %v", err)
	}
	if len(update.Entries) != 3 {
		t.Fatalf("decoded %d entries, want 3", len(update.Entries))
	}

	added := update.Added()
	if len(added) != 2 {
		t.Fatalf("Added() returned %d entries, want 2", len(added))
	}
	if added[0].DisplayName() != "alice" || added[1].DisplayName() != "bob" {
		t.Errorf("display names = %q, %q", added[0].DisplayName(), added[1].DisplayName())
	}
	if added[1].ClientID != 9000 {
		t.Errorf("added[1].ClientID = %d, want 9000", added[1].ClientID)
	}

	removed := update.RemovedIDs()
	if len(removed) != 1 || removed[0] != 2 {
		t.Errorf("RemovedIDs() = %v, want [2]", removed)
	}
}

func TestDecodeAwarenessUpdateTruncated(t *testing.T) {
	entries := []AwarenessEntry{
		{ClientID: 1, Clock: 1, State: json.RawMessage(`{"user":{"name":"alice"}}`)},
	}
	payload := EncodeAwarenessUpdate(entries)

	for cut := 1; cut < len(payload); cut++ {
		if _, err := DecodeAwarenessUpdate(payload[:cut]); err == nil {
			t.Errorf("DecodeAwarenessUpdate(payload[:%d]) succeeded, want error", cut)
		}
	}
}

func TestDisplayNameMissing(t *testing.T) {
	tests := []struct {
		name  string
		state string
	}{
		{"no_user", `{"cursor":{"line":1}}`},
		{"empty_object", `{}`},
		{"not_json", `???`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := AwarenessEntry{ClientID: 1, State: json.RawMessage(tc.state)}
			if got := e.DisplayName(); got != "" {
				t.Errorf("DisplayName() = %q, want empty", got)
			}
		})
	}
}

func TestMessageType(t *testing.T) {
	if !IsAwareness([]byte{byte(MessageAwareness), 0x00}) {
		t.Error("IsAwareness() = false for awareness frame")
	}
	if IsAwareness([]byte{byte(MessageSync), 0x00}) {
		t.Error("IsAwareness() = true for sync frame")
	}
	if IsAwareness(nil) {
		t.Error("IsAwareness(nil) = true")
	}

	if _, err := TypeOf(nil); err != ErrEmptyMessage {
		t.Errorf("TypeOf(nil) error = %v, want ErrEmptyMessage", err)
	}
	mt, err := TypeOf([]byte{0x01})
	if err != nil || mt != MessageAwareness {
		t.Errorf("TypeOf = %v, %v", mt, err)
	}
}
