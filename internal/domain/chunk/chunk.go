package chunk

import (
	"fmt"
	"strconv"
	"strings"
)

// Chunk is one retrievable slice of a document version's content.
// A chunk set belongs to exactly one (document_id, version) pair and is
// only ever replaced as a whole.
type Chunk struct {
	ID           string `json:"id"`
	DocumentID   string `json:"document_id"`
	Version      int    `json:"version"`
	Index        int    `json:"index"` // 0-based, contiguous, retrieval order
	Content      string `json:"content"`
	SectionTitle string `json:"section_title,omitempty"`
	WordCount    int    `json:"word_count"`
	CharCount    int    `json:"char_count"`
	VectorID     string `json:"vector_id,omitempty"`
}

// ChunkID builds the canonical chunk identifier.
func ChunkID(documentID string, version, index int) string {
	return fmt.Sprintf("%s:v%d:%d", documentID, version, index)
}

// ParseID splits a chunk identifier back into its components.
func ParseID(id string) (documentID string, version, index int, err error) {
	lastSep := strings.LastIndex(id, ":")
	if lastSep < 0 {
		return "", 0, 0, fmt.Errorf("malformed chunk id %q", id)
	}
	verSep := strings.LastIndex(id[:lastSep], ":")
	if verSep < 0 {
		return "", 0, 0, fmt.Errorf("malformed chunk id %q", id)
	}

	documentID = id[:verSep]
	verPart := id[verSep+1 : lastSep]
	if !strings.HasPrefix(verPart, "v") {
		return "", 0, 0, fmt.Errorf("malformed chunk id %q", id)
	}
	version, err = strconv.Atoi(verPart[1:])
	if err != nil {
		return "", 0, 0, fmt.Errorf("malformed chunk id %q: %w", id, err)
	}
	index, err = strconv.Atoi(id[lastSep+1:])
	if err != nil {
		return "", 0, 0, fmt.Errorf("malformed chunk id %q: %w", id, err)
	}
	if documentID == "" {
		return "", 0, 0, fmt.Errorf("malformed chunk id %q", id)
	}
	return documentID, version, index, nil
}
