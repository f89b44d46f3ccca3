package chunk

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cropmind/agridex/internal/db"
	domchunk "github.com/cropmind/agridex/internal/domain/chunk"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	jsonSetFn func(ctx context.Context, key, path string, data []byte) error
	jsonGetFn func(ctx context.Context, key string, paths ...string) ([]byte, error)
	delFn     func(ctx context.Context, key string) error
	existsFn  func(ctx context.Context, key string) (bool, error)
}

func (m *mockStore) JSONSet(ctx context.Context, key, path string, data []byte) error {
	if m.jsonSetFn != nil {
		return m.jsonSetFn(ctx, key, path, data)
	}
	return nil
}

func (m *mockStore) JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error) {
	if m.jsonGetFn != nil {
		return m.jsonGetFn(ctx, key, paths...)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func newTestRepo() (*Repo, *mockStore) {
	ms := &mockStore{}
	return New(ms), ms
}

func testSet(t *testing.T, n int) []domchunk.Chunk {
	t.Helper()
	chunks := make([]domchunk.Chunk, n)
	for i := range chunks {
		chunks[i] = domchunk.Chunk{
			ID:         domchunk.ChunkID("doc-1", 1, i),
			DocumentID: "doc-1",
			Version:    1,
			Index:      i,
			Content:    "chunk content",
		}
	}
	return chunks
}

// jsonPathSet wraps a chunk set the way JSON.GET $ returns it.
func jsonPathSet(t *testing.T, chunks []domchunk.Chunk) []byte {
	t.Helper()
	data, err := json.Marshal([][]domchunk.Chunk{chunks})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}
