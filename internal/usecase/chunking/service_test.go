package chunking

import (
	"context"
	"errors"
	"testing"

	"github.com/cropmind/agridex/internal/domain"
	domchunk "github.com/cropmind/agridex/internal/domain/chunk"
	domdoc "github.com/cropmind/agridex/internal/domain/document"
)

func makeDoc(t *testing.T, content string) domdoc.Document {
	t.Helper()
	doc, err := domdoc.New("doc-1", "Title", domdoc.DomainSoilHealth, content)
	if err != nil {
		t.Fatalf("domdoc.New: %v", err)
	}
	return doc
}

func TestChunkDocument_Success(t *testing.T) {
	docs := &mockDocReader{doc: makeDoc(t, "# Intro\n\nfirst paragraph\n\nsecond paragraph")}
	repo := &mockChunkRepo{}

	svc := New(docs, repo)
	chunks, err := svc.ChunkDocument(context.Background(), "doc-1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("no chunks produced")
	}
	if len(repo.replaced) != len(chunks) {
		t.Errorf("repository got %d chunks, service returned %d", len(repo.replaced), len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunks[%d].Index = %d, want contiguous", i, c.Index)
		}
		if c.ID != domchunk.ChunkID("doc-1", 1, i) {
			t.Errorf("chunks[%d].ID = %q", i, c.ID)
		}
		if c.WordCount == 0 || c.CharCount == 0 {
			t.Errorf("chunks[%d] missing counts: %d words, %d chars", i, c.WordCount, c.CharCount)
		}
	}
}

func TestChunkDocument_EmptyContent(t *testing.T) {
	docs := &mockDocReader{doc: makeDoc(t, "")}
	svc := New(docs, &mockChunkRepo{})

	_, err := svc.ChunkDocument(context.Background(), "doc-1", 1)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestChunkDocument_DocumentLookupFails(t *testing.T) {
	docs := &mockDocReader{err: domain.ErrDocumentNotFound}
	svc := New(docs, &mockChunkRepo{})

	_, err := svc.ChunkDocument(context.Background(), "missing", 1)
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("error = %v, want ErrDocumentNotFound", err)
	}
}

func TestChunkDocument_ReplaceFails(t *testing.T) {
	docs := &mockDocReader{doc: makeDoc(t, "some content")}
	repo := &mockChunkRepo{replaceErr: errors.New("store down")}
	svc := New(docs, repo)

	if _, err := svc.ChunkDocument(context.Background(), "doc-1", 1); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestBuild_Idempotent(t *testing.T) {
	content := "# A\n\nalpha beta\n\n# B\n\ngamma"
	first := Build("doc-1", 3, content, 2000)
	second := Build("doc-1", 3, content, 2000)

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestWithMaxChunkChars(t *testing.T) {
	docs := &mockDocReader{doc: makeDoc(t, "aaaa\n\nbbbb\n\ncccc")}
	repo := &mockChunkRepo{}
	svc := New(docs, repo).WithMaxChunkChars(5)

	chunks, err := svc.ChunkDocument(context.Background(), "doc-1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Errorf("len(chunks) = %d, want 3 with 5-char cap", len(chunks))
	}

	// Non-positive overrides are ignored.
	if svc.WithMaxChunkChars(0).maxChunkChars != 5 {
		t.Error("zero override should keep previous cap")
	}
}

func TestDeleteChunks(t *testing.T) {
	repo := &mockChunkRepo{deleted: 4}
	svc := New(&mockDocReader{}, repo)

	n, err := svc.DeleteChunks(context.Background(), "doc-1", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Errorf("deleted = %d, want 4", n)
	}
}

func TestGetChunk_NotFound(t *testing.T) {
	repo := &mockChunkRepo{getByIDErr: domain.ErrChunkNotFound}
	svc := New(&mockDocReader{}, repo)

	_, err := svc.GetChunk(context.Background(), "doc-1:v1:9")
	if !errors.Is(err, domain.ErrChunkNotFound) {
		t.Errorf("error = %v, want ErrChunkNotFound", err)
	}
}
