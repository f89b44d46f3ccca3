package chunk

import "testing"

func TestChunkID(t *testing.T) {
	if got := ChunkID("doc-1", 2, 7); got != "doc-1:v2:7" {
		t.Errorf("ChunkID() = %q, want doc-1:v2:7", got)
	}
}

func TestParseID_RoundTrip(t *testing.T) {
	tests := []struct {
		documentID string
		version    int
		index      int
	}{
		{"doc-1", 1, 0},
		{"soil_health-guide", 12, 345},
		{"a", 1, 1},
	}
	for _, tt := range tests {
		id := ChunkID(tt.documentID, tt.version, tt.index)
		docID, ver, idx, err := ParseID(id)
		if err != nil {
			t.Errorf("ParseID(%q): %v", id, err)
			continue
		}
		if docID != tt.documentID || ver != tt.version || idx != tt.index {
			t.Errorf("ParseID(%q) = (%q, %d, %d)", id, docID, ver, idx)
		}
	}
}

func TestParseID_Malformed(t *testing.T) {
	bad := []string{
		"",
		"doc-1",
		"doc-1:v2",
		"doc-1:2:7",
		"doc-1:vx:7",
		"doc-1:v2:x",
		":v1:0",
	}
	for _, id := range bad {
		if _, _, _, err := ParseID(id); err == nil {
			t.Errorf("ParseID(%q): expected error, got nil", id)
		}
	}
}
