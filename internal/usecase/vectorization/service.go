package vectorization

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/cropmind/agridex/internal/domain"
	domchunk "github.com/cropmind/agridex/internal/domain/chunk"
	domjob "github.com/cropmind/agridex/internal/domain/job"
	"github.com/cropmind/agridex/internal/logger"
	"github.com/cropmind/agridex/internal/metrics"
)

// Service coordinates embedding a document version's chunks into the vector
// index. Jobs are tracked on a shared record with partial-failure semantics:
// completed means every chunk stored, partial means some did, failed means
// none did.
type Service struct {
	docs     DocumentRepository
	jobs     JobRepository
	chunker  Chunker
	embedder domain.Embedder
	vectors  VectorStore
	pool     *ants.Pool
	log      *zap.Logger
}

// New creates a vectorization coordinator. The pool bounds per-chunk
// embedding concurrency and is shared with other fan-out work.
func New(
	docs DocumentRepository, jobs JobRepository, chunker Chunker,
	embedder domain.Embedder, vectors VectorStore,
	pool *ants.Pool, log *zap.Logger,
) *Service {
	return &Service{
		docs:     docs,
		jobs:     jobs,
		chunker:  chunker,
		embedder: embedder,
		vectors:  vectors,
		pool:     pool,
		log:      log,
	}
}

// Vectorize embeds and stores a document version's chunks. When async is
// true it returns immediately with a job ID; otherwise it blocks until the
// job reaches a terminal state. Re-running against unchanged content is a
// no-op that returns the prior completed job.
func (s *Service) Vectorize(ctx context.Context, documentID string, version int, async bool) (domjob.VectorizationJob, error) {
	doc, err := s.docs.Get(ctx, documentID, version)
	if err != nil {
		return domjob.VectorizationJob{}, fmt.Errorf("get document: %w", err)
	}
	if doc.Content == "" {
		return domjob.VectorizationJob{}, fmt.Errorf(
			"document %s v%d has no content: %w", documentID, version, domain.ErrValidation)
	}

	contentHash := doc.ContentHash
	if prior, err := s.jobs.LatestVectorization(ctx, documentID, version); err == nil {
		if prior.Qualifies(contentHash) {
			return prior, nil
		}
	} else if !errors.Is(err, domain.ErrJobNotFound) {
		return domjob.VectorizationJob{}, fmt.Errorf("latest vectorization job: %w", err)
	}

	j := &domjob.VectorizationJob{
		ID:          "vec-" + uuid.NewString(),
		DocumentID:  documentID,
		Version:     version,
		Status:      domjob.VectorizationPending,
		Namespace:   doc.VectorNamespace(),
		ContentHash: contentHash,
	}
	if err := s.jobs.SaveVectorization(ctx, j); err != nil {
		return domjob.VectorizationJob{}, fmt.Errorf("save vectorization job: %w", err)
	}

	if async {
		go s.run(context.WithoutCancel(ctx), *j)
		return *j, nil
	}

	s.run(ctx, *j)
	final, err := s.jobs.GetVectorization(ctx, j.ID)
	if err != nil {
		return domjob.VectorizationJob{}, fmt.Errorf("reload vectorization job: %w", err)
	}
	return final, nil
}

// GetJob returns a snapshot of a vectorization job.
func (s *Service) GetJob(ctx context.Context, jobID string) (domjob.VectorizationJob, error) {
	j, err := s.jobs.GetVectorization(ctx, jobID)
	if err != nil {
		return domjob.VectorizationJob{}, fmt.Errorf("get vectorization job: %w", err)
	}
	return j, nil
}

// LatestJob returns the newest vectorization job for a document version.
func (s *Service) LatestJob(ctx context.Context, documentID string, version int) (domjob.VectorizationJob, error) {
	j, err := s.jobs.LatestVectorization(ctx, documentID, version)
	if err != nil {
		return domjob.VectorizationJob{}, fmt.Errorf("latest vectorization job: %w", err)
	}
	return j, nil
}

type runState struct {
	mu  sync.Mutex
	job domjob.VectorizationJob
}

func (s *Service) run(ctx context.Context, job domjob.VectorizationJob) {
	log := s.log.With(logger.JobFields(job.ID, job.DocumentID, job.Version)...)
	started := time.Now()
	metrics.JobStarted("vectorization")
	job.StartedAt = started.UnixMilli()

	st := &runState{job: job}

	chunks, err := s.chunker.ChunkDocument(ctx, job.DocumentID, job.Version)
	if err != nil {
		s.fail(ctx, st, fmt.Sprintf("chunk document: %v", err), started, log)
		return
	}
	if len(chunks) == 0 {
		s.fail(ctx, st, "content produced no chunks", started, log)
		return
	}

	st.update(ctx, s, func(j *domjob.VectorizationJob) {
		j.ChunksTotal = len(chunks)
		j.Status = domjob.VectorizationEmbedding
	})

	embeddings := s.embedAll(ctx, st, chunks)

	st.update(ctx, s, func(j *domjob.VectorizationJob) {
		j.Status = domjob.VectorizationStoring
	})

	// Drop prior vectors for this namespace so a shrinking chunk set cannot
	// leave stale entries behind.
	if _, err := s.vectors.DeleteNamespace(ctx, job.Namespace); err != nil {
		s.fail(ctx, st, fmt.Sprintf("clear namespace: %v", err), started, log)
		return
	}

	vectorIDs := s.storeAll(ctx, st, chunks, embeddings, log)

	s.finish(ctx, st, chunks, vectorIDs, started, log)
}

// embedAll fans per-chunk embedding out over the worker pool. The result
// slice is indexed by chunk index; nil marks a failed chunk.
func (s *Service) embedAll(ctx context.Context, st *runState, chunks []domchunk.Chunk) [][]float32 {
	embeddings := make([][]float32, len(chunks))

	var wg sync.WaitGroup
	for i := range chunks {
		wg.Add(1)
		i := i
		task := func() {
			defer wg.Done()
			result, err := s.embedder.Embed(ctx, chunks[i].Content)
			if err != nil {
				st.update(ctx, s, func(j *domjob.VectorizationJob) { j.FailedCount++ })
				return
			}
			embeddings[i] = result.Embedding
			st.update(ctx, s, func(j *domjob.VectorizationJob) { j.ChunksEmbedded++ })
		}
		if err := s.pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()

	return embeddings
}

// storeAll persists embedded chunks sequentially and returns vector IDs in
// chunk index order (failed chunks leave an empty slot).
func (s *Service) storeAll(
	ctx context.Context, st *runState,
	chunks []domchunk.Chunk, embeddings [][]float32, log *zap.Logger,
) []string {
	vectorIDs := make([]string, len(chunks))
	for i := range chunks {
		if embeddings[i] == nil {
			continue
		}
		vectorID, err := s.vectors.Store(ctx, st.job.Namespace, &chunks[i], embeddings[i])
		if err != nil {
			log.Warn("store vector", zap.String("chunk_id", chunks[i].ID), zap.Error(err))
			st.update(ctx, s, func(j *domjob.VectorizationJob) { j.FailedCount++ })
			continue
		}
		vectorIDs[i] = vectorID
		st.update(ctx, s, func(j *domjob.VectorizationJob) { j.ChunksStored++ })
	}
	return vectorIDs
}

// finish settles the terminal status and, on full success, writes the
// derived vector fields back onto the document exactly once.
func (s *Service) finish(
	ctx context.Context, st *runState,
	chunks []domchunk.Chunk, vectorIDs []string,
	started time.Time, log *zap.Logger,
) {
	var status domjob.VectorizationStatus
	switch {
	case st.job.FailedCount == 0:
		status = domjob.VectorizationCompleted
	case st.job.ChunksStored > 0:
		status = domjob.VectorizationPartial
	default:
		status = domjob.VectorizationFailed
	}

	if status == domjob.VectorizationCompleted {
		if err := s.writeBack(ctx, st.job, chunks, vectorIDs); err != nil {
			s.fail(ctx, st, fmt.Sprintf("write vector fields: %v", err), started, log)
			return
		}
	}

	st.update(ctx, s, func(j *domjob.VectorizationJob) {
		j.Status = status
		if status != domjob.VectorizationCompleted {
			j.ErrorMessage = fmt.Sprintf("%d of %d chunks failed", j.FailedCount, j.ChunksTotal)
		}
		j.CompletedAt = time.Now().UnixMilli()
	})

	metrics.JobFinished("vectorization", string(status), time.Since(started).Seconds())
	log.Info("vectorization finished",
		zap.String("status", string(status)),
		zap.Int("chunks_stored", st.job.ChunksStored),
		zap.Int("failed_count", st.job.FailedCount),
		zap.Duration("took", time.Since(started)),
	)
}

func (s *Service) writeBack(ctx context.Context, job domjob.VectorizationJob, chunks []domchunk.Chunk, vectorIDs []string) error {
	doc, err := s.docs.Get(ctx, job.DocumentID, job.Version)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	if doc.ContentHash != job.ContentHash {
		// The content changed underneath the job; its vectors are already
		// stale and must not be recorded as current.
		return fmt.Errorf("content changed during vectorization: %w", domain.ErrVersionConflict)
	}

	doc.Namespace = job.Namespace
	doc.VectorIDs = vectorIDs
	doc.ChunkCount = len(chunks)
	doc.UpdatedAt = time.Now().UnixMilli()

	if err := s.docs.Put(ctx, &doc); err != nil {
		return fmt.Errorf("put document: %w", err)
	}
	return nil
}

func (s *Service) fail(ctx context.Context, st *runState, msg string, started time.Time, log *zap.Logger) {
	st.update(ctx, s, func(j *domjob.VectorizationJob) {
		j.Status = domjob.VectorizationFailed
		j.ErrorMessage = msg
		j.CompletedAt = time.Now().UnixMilli()
	})
	metrics.JobFinished("vectorization", string(domjob.VectorizationFailed), time.Since(started).Seconds())
	log.Warn("vectorization failed", zap.String("error", msg))
}

// update mutates the job under lock and persists the snapshot.
func (st *runState) update(ctx context.Context, s *Service, fn func(*domjob.VectorizationJob)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(&st.job)
	if err := s.jobs.SaveVectorization(ctx, &st.job); err != nil {
		s.log.Warn("save vectorization snapshot", zap.String("job_id", st.job.ID), zap.Error(err))
	}
}
