package extraction

import (
	"context"

	domdoc "github.com/cropmind/agridex/internal/domain/document"
	domjob "github.com/cropmind/agridex/internal/domain/job"
)

// Input is the raw content source handed to the extractor.
type Input struct {
	Filename string
	FileType string
	Data     []byte
}

// Result is the extractor's output for one source file.
type Result struct {
	Content    string
	Method     string
	Confidence float64
	PageCount  int
}

// ProgressFunc receives extractor progress. Implementations must tolerate
// being called from the extractor's goroutine at any rate.
type ProgressFunc func(pagesProcessed, totalPages int, statusText string)

// Extractor turns a raw content source into cleaned document text.
type Extractor interface {
	Extract(ctx context.Context, in Input, progress ProgressFunc) (Result, error)
}

// JobRepository persists extraction job records.
type JobRepository interface {
	SaveExtraction(ctx context.Context, j *domjob.ExtractionJob) error
	GetExtraction(ctx context.Context, jobID string) (domjob.ExtractionJob, error)
}

// DocumentRepository reads and writes document versions.
type DocumentRepository interface {
	Get(ctx context.Context, documentID string, version int) (domdoc.Document, error)
	Put(ctx context.Context, doc *domdoc.Document) error
}
