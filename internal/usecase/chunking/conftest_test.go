package chunking

import (
	"context"

	domchunk "github.com/cropmind/agridex/internal/domain/chunk"
	domdoc "github.com/cropmind/agridex/internal/domain/document"
)

// --- Mocks ---

type mockDocReader struct {
	doc domdoc.Document
	err error
}

func (m *mockDocReader) Get(_ context.Context, _ string, _ int) (domdoc.Document, error) {
	return m.doc, m.err
}

type mockChunkRepo struct {
	replaced   []domchunk.Chunk
	replaceErr error
	set        []domchunk.Chunk
	getSetErr  error
	byID       domchunk.Chunk
	getByIDErr error
	deleted    int
	deleteErr  error
}

func (m *mockChunkRepo) Replace(_ context.Context, _ string, _ int, chunks []domchunk.Chunk) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.replaced = chunks
	return nil
}

func (m *mockChunkRepo) GetSet(_ context.Context, _ string, _ int) ([]domchunk.Chunk, error) {
	return m.set, m.getSetErr
}

func (m *mockChunkRepo) GetByID(_ context.Context, _ string) (domchunk.Chunk, error) {
	return m.byID, m.getByIDErr
}

func (m *mockChunkRepo) Delete(_ context.Context, _ string, _ int) (int, error) {
	return m.deleted, m.deleteErr
}
