package protocol

import (
	"errors"
	"testing"
)

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name    string
		msg     []byte
		want    MessageType
		wantErr error
	}{
		{name: "sync", msg: []byte{0x00, 0x01}, want: MessageSync},
		{name: "awareness", msg: []byte{0x01, 0xaa}, want: MessageAwareness},
		{name: "unknown_discriminator", msg: []byte{0x7f}, want: MessageType(0x7f)},
		{name: "empty", msg: nil, wantErr: ErrEmptyMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TypeOf(tt.msg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("TypeOf() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("TypeOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsAwareness(t *testing.T) {
	if IsAwareness([]byte{0x00, 0x01}) {
		t.Error("sync frame classified as awareness")
	}
	if !IsAwareness([]byte{0x01}) {
		t.Error("awareness frame not recognized")
	}
	if IsAwareness(nil) {
		t.Error("empty frame classified as awareness")
	}
}
