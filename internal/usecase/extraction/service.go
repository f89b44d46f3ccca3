package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cropmind/agridex/internal/domain"
	domdoc "github.com/cropmind/agridex/internal/domain/document"
	domjob "github.com/cropmind/agridex/internal/domain/job"
	"github.com/cropmind/agridex/internal/logger"
	"github.com/cropmind/agridex/internal/metrics"
)

// Service coordinates asynchronous raw-content extraction. Each Extract call
// creates a fresh job record; the background run communicates with observers
// only through snapshots of that record, so a disconnected observer never
// affects the run.
type Service struct {
	docs      DocumentRepository
	jobs      JobRepository
	extractor Extractor
	log       *zap.Logger
}

// New creates an extraction coordinator.
func New(docs DocumentRepository, jobs JobRepository, extractor Extractor, log *zap.Logger) *Service {
	return &Service{docs: docs, jobs: jobs, extractor: extractor, log: log}
}

// Extract queues extraction of a raw source into a draft document version
// and returns the new job's ID. A failed earlier job is never resumed; every
// call starts over with a new job.
func (s *Service) Extract(ctx context.Context, documentID string, version int, in Input) (string, error) {
	doc, err := s.docs.Get(ctx, documentID, version)
	if err != nil {
		return "", fmt.Errorf("get document: %w", err)
	}
	if doc.Status != domdoc.StatusDraft {
		return "", domain.NewStateTransitionError(
			string(doc.Status), string(doc.Status),
			"extraction only targets draft versions",
		)
	}
	if len(in.Data) == 0 {
		return "", fmt.Errorf("empty source data: %w", domain.ErrValidation)
	}

	j := &domjob.ExtractionJob{
		ID:         "ext-" + uuid.NewString(),
		DocumentID: documentID,
		Version:    version,
		Status:     domjob.ExtractionQueued,
		StatusText: "queued",
	}
	if err := s.jobs.SaveExtraction(ctx, j); err != nil {
		return "", fmt.Errorf("save extraction job: %w", err)
	}

	// The run outlives the request; it carries its own context.
	go s.run(context.WithoutCancel(ctx), *j, in)

	return j.ID, nil
}

// GetJob returns a snapshot of an extraction job.
func (s *Service) GetJob(ctx context.Context, jobID string) (domjob.ExtractionJob, error) {
	j, err := s.jobs.GetExtraction(ctx, jobID)
	if err != nil {
		return domjob.ExtractionJob{}, fmt.Errorf("get extraction job: %w", err)
	}
	return j, nil
}

func (s *Service) run(ctx context.Context, j domjob.ExtractionJob, in Input) {
	log := s.log.With(logger.JobFields(j.ID, j.DocumentID, j.Version)...)
	started := time.Now()
	metrics.JobStarted("extraction")

	j.Status = domjob.ExtractionProcessing
	j.StatusText = "processing"
	j.StartedAt = started.UnixMilli()
	if err := s.jobs.SaveExtraction(ctx, &j); err != nil {
		log.Error("save processing snapshot", zap.Error(err))
	}

	result, err := s.extractor.Extract(ctx, in, s.progressFunc(ctx, &j, log))
	if err != nil {
		s.finish(ctx, &j, domjob.ExtractionFailed, err.Error(), started, log)
		return
	}

	if err := s.writeBack(ctx, &j, in, result); err != nil {
		s.finish(ctx, &j, domjob.ExtractionFailed, err.Error(), started, log)
		return
	}

	j.ProgressPercent = 100
	j.PagesProcessed = j.TotalPages
	s.finish(ctx, &j, domjob.ExtractionSucceeded, "", started, log)
}

// progressFunc publishes extractor progress onto the job record. Percent is
// clamped non-decreasing; a laggy extractor callback cannot roll it back.
func (s *Service) progressFunc(ctx context.Context, j *domjob.ExtractionJob, log *zap.Logger) ProgressFunc {
	return func(pagesProcessed, totalPages int, statusText string) {
		percent := j.ProgressPercent
		if totalPages > 0 {
			if p := pagesProcessed * 100 / totalPages; p > percent {
				percent = p
			}
		}
		if percent > 100 {
			percent = 100
		}

		j.ProgressPercent = percent
		j.PagesProcessed = pagesProcessed
		j.TotalPages = totalPages
		if statusText != "" {
			j.StatusText = statusText
		}
		if err := s.jobs.SaveExtraction(ctx, j); err != nil {
			log.Warn("save progress snapshot", zap.Error(err))
		}
	}
}

// writeBack applies a successful extraction to the target draft version.
// This is the single content write for the version within this job.
func (s *Service) writeBack(ctx context.Context, j *domjob.ExtractionJob, in Input, result Result) error {
	doc, err := s.docs.Get(ctx, j.DocumentID, j.Version)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	if len(result.Content) > domdoc.MaxContentSize {
		return fmt.Errorf("extracted content too large (max %d bytes): %w",
			domdoc.MaxContentSize, domain.ErrValidation)
	}

	doc.Content = result.Content
	doc.ContentHash = domdoc.Hash(result.Content)
	doc.SourceFile = &domdoc.SourceFile{
		Filename:             in.Filename,
		FileType:             in.FileType,
		SizeBytes:            int64(len(in.Data)),
		ExtractionMethod:     result.Method,
		ExtractionConfidence: result.Confidence,
		PageCount:            result.PageCount,
	}
	doc.UpdatedAt = time.Now().UnixMilli()

	if err := s.docs.Put(ctx, &doc); err != nil {
		return fmt.Errorf("write extracted content: %w", err)
	}
	return nil
}

func (s *Service) finish(
	ctx context.Context, j *domjob.ExtractionJob,
	status domjob.ExtractionStatus, errMsg string,
	started time.Time, log *zap.Logger,
) {
	j.Status = status
	j.StatusText = string(status)
	j.ErrorMessage = errMsg
	j.CompletedAt = time.Now().UnixMilli()
	if err := s.jobs.SaveExtraction(ctx, j); err != nil {
		log.Error("save terminal snapshot", zap.Error(err))
	}

	metrics.JobFinished("extraction", string(status), time.Since(started).Seconds())
	if status == domjob.ExtractionFailed {
		log.Warn("extraction failed", zap.String("error", errMsg))
		return
	}
	log.Info("extraction succeeded",
		zap.Int("pages", j.TotalPages),
		zap.Duration("took", time.Since(started)),
	)
}
