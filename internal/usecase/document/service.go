package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cropmind/agridex/internal/domain"
	domdoc "github.com/cropmind/agridex/internal/domain/document"
	domjob "github.com/cropmind/agridex/internal/domain/job"
	repodoc "github.com/cropmind/agridex/internal/repository/document"
)

// MaxSearchResults caps free-text search result sets.
const MaxSearchResults = 50

// UpdateFields is a partial update against the head version. Nil fields are
// left untouched.
type UpdateFields struct {
	Title         *string
	Domain        *domdoc.Domain
	Content       *string
	Metadata      *domdoc.Metadata
	ChangeSummary string
}

// Service owns the document lifecycle: versioning, status transitions and
// the activation gate. Job coordinators only ever append derived fields;
// status changes all go through here.
type Service struct {
	repo            Repository
	vecJobs         VectorizationReader
	defaultPageSize int
	maxPageSize     int
}

// New creates a document lifecycle service.
func New(repo Repository, vecJobs VectorizationReader) *Service {
	return &Service{
		repo:            repo,
		vecJobs:         vecJobs,
		defaultPageSize: 20,
		maxPageSize:     100,
	}
}

// WithPagination configures page size limits.
func (s *Service) WithPagination(defaultPageSize, maxPageSize int) *Service {
	if defaultPageSize > 0 {
		s.defaultPageSize = defaultPageSize
	}
	if maxPageSize > 0 {
		s.maxPageSize = maxPageSize
	}
	return s
}

// Create makes version 1 of a new document in draft state. Content may be
// empty pending extraction.
func (s *Service) Create(
	ctx context.Context, documentID, title string, dom domdoc.Domain,
	content string, meta domdoc.Metadata,
) (domdoc.Document, error) {
	doc, err := domdoc.New(documentID, title, dom, content)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}
	doc.Metadata = meta

	head, err := s.repo.HeadVersion(ctx, documentID)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("head version: %w", err)
	}
	if head != 0 {
		return domdoc.Document{}, fmt.Errorf(
			"document %s already exists: %w", documentID, domain.NewVersionConflictError(head))
	}

	now := time.Now().UnixMilli()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	// Reserve the head pointer first: of two racing Creates only the CAS
	// winner gets to write the v1 record.
	if err := s.repo.AdvanceHead(ctx, documentID, 0, 1); err != nil {
		return domdoc.Document{}, fmt.Errorf("advance head: %w", err)
	}
	if err := s.repo.Put(ctx, &doc); err != nil {
		return domdoc.Document{}, fmt.Errorf("put document: %w", err)
	}
	return doc, nil
}

// Get returns one document version; version 0 means the head.
func (s *Service) Get(ctx context.Context, documentID string, version int) (domdoc.Document, error) {
	if version == 0 {
		doc, err := s.repo.Head(ctx, documentID)
		if err != nil {
			return domdoc.Document{}, fmt.Errorf("get head: %w", err)
		}
		return doc, nil
	}
	doc, err := s.repo.Get(ctx, documentID, version)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// Versions returns every stored version of a document.
func (s *Service) Versions(ctx context.Context, documentID string) ([]domdoc.Document, error) {
	docs, err := s.repo.Versions(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return docs, nil
}

// Update edits the head version. A draft head is amended in place unless a
// change summary is supplied; any other head always spawns a new draft
// version at head+1 so published content is never mutated.
func (s *Service) Update(ctx context.Context, documentID string, fields UpdateFields) (domdoc.Document, error) {
	head, err := s.repo.Head(ctx, documentID)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get head: %w", err)
	}

	amendInPlace := head.Status == domdoc.StatusDraft && fields.ChangeSummary == ""

	if amendInPlace {
		if err := applyFields(&head, fields); err != nil {
			return domdoc.Document{}, err
		}
		head.UpdatedAt = time.Now().UnixMilli()
		if err := s.repo.Put(ctx, &head); err != nil {
			return domdoc.Document{}, fmt.Errorf("put document: %w", err)
		}
		return head, nil
	}

	next := head.NextVersion(fields.ChangeSummary)
	if err := applyFields(&next, fields); err != nil {
		return domdoc.Document{}, err
	}
	now := time.Now().UnixMilli()
	next.CreatedAt = now
	next.UpdatedAt = now

	if err := s.repo.Put(ctx, &next); err != nil {
		return domdoc.Document{}, fmt.Errorf("put document: %w", err)
	}
	if err := s.repo.AdvanceHead(ctx, documentID, head.Version, next.Version); err != nil {
		return domdoc.Document{}, fmt.Errorf("advance head: %w", err)
	}
	return next, nil
}

// Stage moves the head draft to staged. Content must be non-empty.
func (s *Service) Stage(ctx context.Context, documentID string) (domdoc.Document, error) {
	head, err := s.repo.Head(ctx, documentID)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get head: %w", err)
	}
	if !domdoc.CanTransition(head.Status, domdoc.StatusStaged) {
		return domdoc.Document{}, domain.NewStateTransitionError(
			string(head.Status), string(domdoc.StatusStaged), "only drafts can be staged")
	}
	if head.Content == "" {
		return domdoc.Document{}, domain.NewStateTransitionError(
			string(head.Status), string(domdoc.StatusStaged), "content is empty")
	}
	return s.setStatus(ctx, head, domdoc.StatusStaged)
}

// Activate moves the staged head to active. The gate is the latest
// vectorization job for this exact version: it must be completed and its
// content hash must still match the version's content. Any previously
// active version of the document is demoted to archived.
func (s *Service) Activate(ctx context.Context, documentID string) (domdoc.Document, error) {
	head, err := s.repo.Head(ctx, documentID)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get head: %w", err)
	}
	if !domdoc.CanTransition(head.Status, domdoc.StatusActive) {
		return domdoc.Document{}, domain.NewStateTransitionError(
			string(head.Status), string(domdoc.StatusActive), "only staged versions can be activated")
	}

	if err := s.checkVectorization(ctx, head); err != nil {
		return domdoc.Document{}, err
	}

	if err := s.demoteActive(ctx, documentID, head.Version); err != nil {
		return domdoc.Document{}, err
	}
	return s.setStatus(ctx, head, domdoc.StatusActive)
}

// checkVectorization enforces the activation gate with a distinct reason for
// each way it can fail.
func (s *Service) checkVectorization(ctx context.Context, head domdoc.Document) error {
	j, err := s.vecJobs.LatestVectorization(ctx, head.DocumentID, head.Version)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return domain.NewStateTransitionError(
				string(head.Status), string(domdoc.StatusActive),
				"no vectorization job exists for this version")
		}
		return fmt.Errorf("latest vectorization job: %w", err)
	}
	if j.Status != domjob.VectorizationCompleted {
		return domain.NewStateTransitionError(
			string(head.Status), string(domdoc.StatusActive),
			fmt.Sprintf("vectorization job %s is %s, not completed", j.ID, j.Status))
	}
	if j.ContentHash != head.ContentHash {
		return domain.NewStateTransitionError(
			string(head.Status), string(domdoc.StatusActive),
			"content changed after vectorization (content hash mismatch)")
	}
	return nil
}

// demoteActive archives whichever version currently holds active status.
func (s *Service) demoteActive(ctx context.Context, documentID string, skipVersion int) error {
	versions, err := s.repo.Versions(ctx, documentID)
	if err != nil {
		return fmt.Errorf("list versions: %w", err)
	}
	for i := range versions {
		v := &versions[i]
		if v.Version == skipVersion || v.Status != domdoc.StatusActive {
			continue
		}
		v.Status = domdoc.StatusArchived
		v.UpdatedAt = time.Now().UnixMilli()
		if err := s.repo.Put(ctx, v); err != nil {
			return fmt.Errorf("archive previously active v%d: %w", v.Version, err)
		}
	}
	return nil
}

// Archive moves the head to archived.
func (s *Service) Archive(ctx context.Context, documentID string) (domdoc.Document, error) {
	head, err := s.repo.Head(ctx, documentID)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get head: %w", err)
	}
	if !domdoc.CanTransition(head.Status, domdoc.StatusArchived) {
		return domdoc.Document{}, domain.NewStateTransitionError(
			string(head.Status), string(domdoc.StatusArchived),
			"only staged or active versions can be archived")
	}
	return s.setStatus(ctx, head, domdoc.StatusArchived)
}

// Rollback copies a target version's content and metadata into a new draft
// at head+1. The target version itself is never touched.
func (s *Service) Rollback(ctx context.Context, documentID string, targetVersion int) (domdoc.Document, error) {
	target, err := s.repo.Get(ctx, documentID, targetVersion)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get target version: %w", err)
	}
	head, err := s.repo.HeadVersion(ctx, documentID)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("head version: %w", err)
	}

	next := target.NextVersion(fmt.Sprintf("rollback to version %d", targetVersion))
	next.Version = head + 1
	now := time.Now().UnixMilli()
	next.CreatedAt = now
	next.UpdatedAt = now

	if err := s.repo.Put(ctx, &next); err != nil {
		return domdoc.Document{}, fmt.Errorf("put rollback draft: %w", err)
	}
	if err := s.repo.AdvanceHead(ctx, documentID, head, next.Version); err != nil {
		return domdoc.Document{}, fmt.Errorf("advance head: %w", err)
	}
	return next, nil
}

// Delete archives every version of a document and returns how many versions
// changed state. Nothing is physically erased.
func (s *Service) Delete(ctx context.Context, documentID string) (int, error) {
	versions, err := s.repo.Versions(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("list versions: %w", err)
	}

	archived := 0
	for i := range versions {
		v := &versions[i]
		if v.Status == domdoc.StatusArchived {
			continue
		}
		v.Status = domdoc.StatusArchived
		v.UpdatedAt = time.Now().UnixMilli()
		if err := s.repo.Put(ctx, v); err != nil {
			return archived, fmt.Errorf("archive v%d: %w", v.Version, err)
		}
		archived++
	}
	return archived, nil
}

// List returns document versions matching the filter, paginated.
func (s *Service) List(
	ctx context.Context, f repodoc.Filter, cursor string, limit int,
) ([]domdoc.Document, string, error) {
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}
	docs, nextCursor, err := s.repo.List(ctx, f, cursor, limit)
	if err != nil {
		return nil, "", fmt.Errorf("list documents: %w", err)
	}
	return docs, nextCursor, nil
}

// Search runs a capped free-text query over titles and content.
func (s *Service) Search(ctx context.Context, text string, f repodoc.Filter, limit int) ([]domdoc.Document, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > MaxSearchResults {
		limit = MaxSearchResults
	}
	docs, err := s.repo.Search(ctx, text, f, limit)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	return docs, nil
}

func (s *Service) setStatus(ctx context.Context, doc domdoc.Document, status domdoc.Status) (domdoc.Document, error) {
	doc.Status = status
	doc.UpdatedAt = time.Now().UnixMilli()
	if err := s.repo.Put(ctx, &doc); err != nil {
		return domdoc.Document{}, fmt.Errorf("put document: %w", err)
	}
	return doc, nil
}

// applyFields validates and applies a partial update. Content edits refresh
// the content hash, which in turn invalidates any prior vectorization.
func applyFields(doc *domdoc.Document, fields UpdateFields) error {
	if fields.Title != nil {
		if *fields.Title == "" {
			return fmt.Errorf("title cannot be empty: %w", domain.ErrValidation)
		}
		doc.Title = *fields.Title
	}
	if fields.Domain != nil {
		if !fields.Domain.IsValid() {
			return fmt.Errorf("unknown domain %q: %w", *fields.Domain, domain.ErrValidation)
		}
		doc.Domain = *fields.Domain
	}
	if fields.Content != nil {
		if len(*fields.Content) > domdoc.MaxContentSize {
			return fmt.Errorf("content too large (max %d bytes): %w",
				domdoc.MaxContentSize, domain.ErrValidation)
		}
		doc.Content = *fields.Content
		doc.ContentHash = domdoc.Hash(*fields.Content)
	}
	if fields.Metadata != nil {
		doc.Metadata = *fields.Metadata
	}
	return nil
}
