package document

import (
	"context"

	domdoc "github.com/cropmind/agridex/internal/domain/document"
	domjob "github.com/cropmind/agridex/internal/domain/job"
	repodoc "github.com/cropmind/agridex/internal/repository/document"
)

// Repository defines the storage contract for document versions.
type Repository interface {
	Put(ctx context.Context, doc *domdoc.Document) error
	Get(ctx context.Context, documentID string, version int) (domdoc.Document, error)
	Head(ctx context.Context, documentID string) (domdoc.Document, error)
	HeadVersion(ctx context.Context, documentID string) (int, error)
	AdvanceHead(ctx context.Context, documentID string, expected, next int) error
	Versions(ctx context.Context, documentID string) ([]domdoc.Document, error)
	List(ctx context.Context, f repodoc.Filter, cursor string, limit int) (
		docs []domdoc.Document, nextCursor string, err error,
	)
	Search(ctx context.Context, text string, f repodoc.Filter, limit int) ([]domdoc.Document, error)
	Count(ctx context.Context, f repodoc.Filter) (int, error)
}

// VectorizationReader reads vectorization job state for activation gating.
type VectorizationReader interface {
	LatestVectorization(ctx context.Context, documentID string, version int) (domjob.VectorizationJob, error)
}
