package chunking

import (
	"context"
	"fmt"

	"github.com/cropmind/agridex/internal/domain"
	domchunk "github.com/cropmind/agridex/internal/domain/chunk"
)

// Service splits document versions into retrieval chunks and manages the
// resulting chunk sets.
type Service struct {
	docs          DocumentReader
	chunks        ChunkRepository
	maxChunkChars int
}

// New creates a chunking service.
func New(docs DocumentReader, chunks ChunkRepository) *Service {
	return &Service{
		docs:          docs,
		chunks:        chunks,
		maxChunkChars: DefaultMaxChunkChars,
	}
}

// WithMaxChunkChars overrides the chunk size cap.
func (s *Service) WithMaxChunkChars(n int) *Service {
	if n > 0 {
		s.maxChunkChars = n
	}
	return s
}

// ChunkDocument splits a document version's content and replaces its chunk
// set. Rechunking is idempotent for unchanged content.
func (s *Service) ChunkDocument(ctx context.Context, documentID string, version int) ([]domchunk.Chunk, error) {
	doc, err := s.docs.Get(ctx, documentID, version)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if doc.Content == "" {
		return nil, fmt.Errorf("document %s v%d has no content: %w", documentID, version, domain.ErrValidation)
	}

	chunks := Build(documentID, version, doc.Content, s.maxChunkChars)
	if err := s.chunks.Replace(ctx, documentID, version, chunks); err != nil {
		return nil, fmt.Errorf("replace chunk set: %w", err)
	}
	return chunks, nil
}

// Build splits content into chunks for (documentID, version) without touching
// storage. Indexes are 0-based and contiguous.
func Build(documentID string, version int, content string, maxChars int) []domchunk.Chunk {
	pieces := split(content, maxChars)
	chunks := make([]domchunk.Chunk, 0, len(pieces))
	for i, p := range pieces {
		chunks = append(chunks, domchunk.Chunk{
			ID:           domchunk.ChunkID(documentID, version, i),
			DocumentID:   documentID,
			Version:      version,
			Index:        i,
			Content:      p.Content,
			SectionTitle: p.SectionTitle,
			WordCount:    wordCount(p.Content),
			CharCount:    len(p.Content),
		})
	}
	return chunks
}

// ListChunks returns the chunk set of a document version in index order.
func (s *Service) ListChunks(ctx context.Context, documentID string, version int) ([]domchunk.Chunk, error) {
	chunks, err := s.chunks.GetSet(ctx, documentID, version)
	if err != nil {
		return nil, fmt.Errorf("get chunk set: %w", err)
	}
	return chunks, nil
}

// GetChunk returns one chunk by its canonical identifier.
func (s *Service) GetChunk(ctx context.Context, chunkID string) (domchunk.Chunk, error) {
	c, err := s.chunks.GetByID(ctx, chunkID)
	if err != nil {
		return domchunk.Chunk{}, fmt.Errorf("get chunk %s: %w", chunkID, err)
	}
	return c, nil
}

// DeleteChunks removes the chunk set of a document version and returns how
// many chunks were removed.
func (s *Service) DeleteChunks(ctx context.Context, documentID string, version int) (int, error) {
	n, err := s.chunks.Delete(ctx, documentID, version)
	if err != nil {
		return 0, fmt.Errorf("delete chunk set: %w", err)
	}
	return n, nil
}
