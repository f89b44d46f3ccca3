package chunking

import (
	"context"

	domchunk "github.com/cropmind/agridex/internal/domain/chunk"
	domdoc "github.com/cropmind/agridex/internal/domain/document"
)

// ChunkRepository defines the storage contract for chunk sets.
type ChunkRepository interface {
	Replace(ctx context.Context, documentID string, version int, chunks []domchunk.Chunk) error
	GetSet(ctx context.Context, documentID string, version int) ([]domchunk.Chunk, error)
	GetByID(ctx context.Context, chunkID string) (domchunk.Chunk, error)
	Delete(ctx context.Context, documentID string, version int) (int, error)
}

// DocumentReader reads document versions for chunking.
type DocumentReader interface {
	Get(ctx context.Context, documentID string, version int) (domdoc.Document, error)
}
