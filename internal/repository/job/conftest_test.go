package job

import (
	"context"

	"github.com/cropmind/agridex/internal/db"
)

// mockStore is an in-memory implementation of the consumer interface.
// The repo reads back what it wrote, so keeping real state is simpler than
// stubbing each call.
type mockStore struct {
	jsonData map[string][]byte
	kvData   map[string][]byte

	jsonSetErr error
	setErr     error
}

func newMockStore() *mockStore {
	return &mockStore{
		jsonData: make(map[string][]byte),
		kvData:   make(map[string][]byte),
	}
}

func (m *mockStore) JSONSet(_ context.Context, key, _ string, data []byte) error {
	if m.jsonSetErr != nil {
		return m.jsonSetErr
	}
	m.jsonData[key] = data
	return nil
}

func (m *mockStore) JSONGet(_ context.Context, key string, _ ...string) ([]byte, error) {
	data, ok := m.jsonData[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	// JSON.GET $ wraps the object in an array.
	return append(append([]byte("["), data...), ']'), nil
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := m.kvData[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return data, nil
}

func (m *mockStore) Set(_ context.Context, key string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.kvData[key] = value
	return nil
}
