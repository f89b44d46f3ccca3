package vectorization

import (
	"context"

	domchunk "github.com/cropmind/agridex/internal/domain/chunk"
	domdoc "github.com/cropmind/agridex/internal/domain/document"
	domjob "github.com/cropmind/agridex/internal/domain/job"
)

// Chunker rebuilds the chunk set of a document version.
type Chunker interface {
	ChunkDocument(ctx context.Context, documentID string, version int) ([]domchunk.Chunk, error)
}

// VectorStore persists chunk embeddings under a namespace.
type VectorStore interface {
	Store(ctx context.Context, namespace string, c *domchunk.Chunk, embedding []float32) (string, error)
	DeleteNamespace(ctx context.Context, namespace string) (int, error)
}

// JobRepository persists vectorization job records.
type JobRepository interface {
	SaveVectorization(ctx context.Context, j *domjob.VectorizationJob) error
	GetVectorization(ctx context.Context, jobID string) (domjob.VectorizationJob, error)
	LatestVectorization(ctx context.Context, documentID string, version int) (domjob.VectorizationJob, error)
}

// DocumentRepository reads and writes document versions.
type DocumentRepository interface {
	Get(ctx context.Context, documentID string, version int) (domdoc.Document, error)
	Put(ctx context.Context, doc *domdoc.Document) error
}
