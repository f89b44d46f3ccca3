package bulkload

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/cropmind/agridex/internal/domain"
	domdoc "github.com/cropmind/agridex/internal/domain/document"
)

// --- Mocks ---

// mockStore is an in-memory key space. Scan supports the trailing-star
// patterns the loader uses.
type mockStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string][]byte)}
}

func (m *mockStore) JSONSet(_ context.Context, key, _ string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func (m *mockStore) Scan(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *mockStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func (m *mockStore) put(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = []byte("{}")
}

// mockDocs creates seed documents and mirrors head pointers into the store
// so phase-4 verification can count them.
type mockDocs struct {
	store   *mockStore
	mu      sync.Mutex
	created map[string]domdoc.Metadata
}

func newMockDocs(store *mockStore) *mockDocs {
	return &mockDocs{store: store, created: make(map[string]domdoc.Metadata)}
}

func (m *mockDocs) Create(
	_ context.Context, documentID, title string, dom domdoc.Domain,
	content string, meta domdoc.Metadata,
) (domdoc.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.created[documentID]; exists {
		return domdoc.Document{}, domain.NewVersionConflictError(1)
	}
	doc, err := domdoc.New(documentID, title, dom, content)
	if err != nil {
		return domdoc.Document{}, err
	}
	doc.Metadata = meta
	m.created[documentID] = meta
	m.store.put(domain.KeyPrefix + "dochead:" + documentID)
	return doc, nil
}

// --- Helpers ---

func testLoader(t *testing.T, store *mockStore, docs *mockDocs) *Loader {
	t.Helper()
	pool, err := ants.NewPool(4)
	if err != nil {
		t.Fatalf("ants.NewPool: %v", err)
	}
	t.Cleanup(pool.Release)
	return New(store, docs, pool, zap.NewNop())
}

func writeInput(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func errorsOfKind(report *Report, kind string) []RecordError {
	var out []RecordError
	for _, e := range report.Errors {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
