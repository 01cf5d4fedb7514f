package room

import "testing"

func TestParseIdentity(t *testing.T) {
	tests := []struct {
		name     string
		roomID   string
		document bool
		format   string
		fileType string
		fileID   string
	}{
		{
			name:     "document",
			roomID:   "json:notebook:4f2a",
			document: true,
			format:   "json",
			fileType: "notebook",
			fileID:   "4f2a",
		},
		{
			name:     "file_id_keeps_extra_separators",
			roomID:   "text:file:a:b:c",
			document: true,
			format:   "text",
			fileType: "file",
			fileID:   "a:b:c",
		},
		{name: "transient_plain", roomID: "chat"},
		{name: "transient_one_separator", roomID: "awareness:lobby"},
		{name: "transient_empty_file_id", roomID: "text:file:"},
		{name: "empty", roomID: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := ParseIdentity(tt.roomID)
			if id.IsDocument() != tt.document {
				t.Fatalf("IsDocument() = %v, want %v", id.IsDocument(), tt.document)
			}
			if id.String() != tt.roomID {
				t.Errorf("String() = %q, want %q", id.String(), tt.roomID)
			}
			if !tt.document {
				return
			}
			if id.Format != tt.format || id.FileType != tt.fileType || id.FileID != tt.fileID {
				t.Errorf("parsed = %q/%q/%q, want %q/%q/%q",
					id.Format, id.FileType, id.FileID, tt.format, tt.fileType, tt.fileID)
			}
		})
	}
}
