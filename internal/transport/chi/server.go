package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cropmind/agridex/internal/domain"
	domdoc "github.com/cropmind/agridex/internal/domain/document"
	repodoc "github.com/cropmind/agridex/internal/repository/document"
	chunkinguc "github.com/cropmind/agridex/internal/usecase/chunking"
	documentuc "github.com/cropmind/agridex/internal/usecase/document"
	extractionuc "github.com/cropmind/agridex/internal/usecase/extraction"
	healthuc "github.com/cropmind/agridex/internal/usecase/health"
	vectorizationuc "github.com/cropmind/agridex/internal/usecase/vectorization"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the document, job and chunk APIs over chi.
type Server struct {
	documents     *documentuc.Service
	extraction    *extractionuc.Service
	chunking      *chunkinguc.Service
	vectorization *vectorizationuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	pollInterval  time.Duration
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. pollInterval drives progress
// streams; zero means the 250ms default.
func NewServer(
	documents *documentuc.Service,
	extraction *extractionuc.Service,
	chunking *chunkinguc.Service,
	vectorization *vectorizationuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
	pollInterval time.Duration,
) *Server {
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}
	s := &Server{
		documents:     documents,
		extraction:    extraction,
		chunking:      chunking,
		vectorization: vectorization,
		health:        health,
		logger:        logger,
		pollInterval:  pollInterval,
	}
	s.errorHandlers = []errorHandler{
		stateTransitionHandler,
		versionConflictHandler,
		referentialIntegrityHandler,
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrChunkNotFound, http.StatusNotFound, codeChunkNotFound),
		sentinelHandler(domain.ErrJobNotFound, http.StatusNotFound, codeJobNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrExtractionProviderError, http.StatusBadGateway, codeExtractionProvider),
	}
	return s
}

// Routes mounts every endpoint on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", s.CreateDocument)
			r.Get("/", s.ListDocuments)
			r.Post("/search", s.SearchDocuments)

			r.Route("/{documentID}", func(r chi.Router) {
				r.Get("/", s.GetDocument)
				r.Patch("/", s.UpdateDocument)
				r.Delete("/", s.DeleteDocument)
				r.Get("/versions", s.ListVersions)

				r.Post("/stage", s.StageDocument)
				r.Post("/activate", s.ActivateDocument)
				r.Post("/archive", s.ArchiveDocument)
				r.Post("/rollback", s.RollbackDocument)

				r.Route("/versions/{version}", func(r chi.Router) {
					r.Post("/extract", s.ExtractDocument)
					r.Post("/vectorize", s.VectorizeDocument)
					r.Post("/chunks", s.ChunkDocument)
					r.Get("/chunks", s.ListChunks)
					r.Delete("/chunks", s.DeleteChunks)
				})
			})
		})

		r.Get("/chunks/{chunkID}", s.GetChunk)

		r.Get("/extraction-jobs/{jobID}", s.GetExtractionJob)
		r.Get("/extraction-jobs/{jobID}/stream", s.StreamExtractionProgress)
		r.Get("/vectorization-jobs/{jobID}", s.GetVectorizationJob)
	})
}

// CreateDocument handles POST /api/v1/documents.
func (s *Server) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	doc, err := s.documents.Create(
		r.Context(), req.DocumentID, req.Title, domdoc.Domain(req.Domain), req.Content, req.Metadata)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/documents/"+doc.DocumentID)
	writeJSON(w, http.StatusCreated, doc)
}

// GetDocument handles GET /api/v1/documents/{documentID}. The optional
// version query selects a specific version; default is the head.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	version := 0
	if v := r.URL.Query().Get("version"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "version must be a positive integer")
			return
		}
		version = parsed
	}

	doc, err := s.documents.Get(r.Context(), chi.URLParam(r, "documentID"), version)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// ListVersions handles GET /api/v1/documents/{documentID}/versions.
func (s *Server) ListVersions(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")
	docs, err := s.documents.Versions(r.Context(), documentID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versionsResponse{DocumentID: documentID, Versions: docs})
}

// UpdateDocument handles PATCH /api/v1/documents/{documentID}.
func (s *Server) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	var req updateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	fields := documentuc.UpdateFields{
		Title:         req.Title,
		Content:       req.Content,
		Metadata:      req.Metadata,
		ChangeSummary: req.ChangeSummary,
	}
	if req.Domain != nil {
		d := domdoc.Domain(*req.Domain)
		fields.Domain = &d
	}

	doc, err := s.documents.Update(r.Context(), chi.URLParam(r, "documentID"), fields)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/v1/documents/{documentID}. Every
// version is archived; nothing is erased.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")
	archived, err := s.documents.Delete(r.Context(), documentID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteDocumentResponse{
		DocumentID:       documentID,
		VersionsArchived: archived,
	})
}

// ListDocuments handles GET /api/v1/documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repodoc.Filter{
		Domain: q.Get("domain"),
		Status: q.Get("status"),
		Author: q.Get("author"),
	}

	limit := 0
	if l := q.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	docs, nextCursor, err := s.documents.List(r.Context(), filter, q.Get("cursor"), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentListResponse{
		Items:      docs,
		HasMore:    nextCursor != "",
		NextCursor: nextCursor,
	})
}

// SearchDocuments handles POST /api/v1/documents/search.
func (s *Server) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query is required")
		return
	}

	filter := repodoc.Filter{Domain: req.Domain, Status: req.Status}
	docs, err := s.documents.Search(r.Context(), req.Query, filter, req.Limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Items: docs, Total: len(docs)})
}

// StageDocument handles POST /api/v1/documents/{documentID}/stage.
func (s *Server) StageDocument(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.documents.Stage)
}

// ActivateDocument handles POST /api/v1/documents/{documentID}/activate.
func (s *Server) ActivateDocument(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.documents.Activate)
}

// ArchiveDocument handles POST /api/v1/documents/{documentID}/archive.
func (s *Server) ArchiveDocument(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.documents.Archive)
}

func (s *Server) lifecycle(
	w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, documentID string) (domdoc.Document, error),
) {
	doc, err := op(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// RollbackDocument handles POST /api/v1/documents/{documentID}/rollback.
func (s *Server) RollbackDocument(w http.ResponseWriter, r *http.Request) {
	var req rollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.TargetVersion < 1 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "target_version must be a positive integer")
		return
	}

	doc, err := s.documents.Rollback(r.Context(), chi.URLParam(r, "documentID"), req.TargetVersion)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// ExtractDocument handles POST /api/v1/documents/{documentID}/versions/{version}/extract.
func (s *Server) ExtractDocument(w http.ResponseWriter, r *http.Request) {
	version, ok := s.versionParam(w, r)
	if !ok {
		return
	}

	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	jobID, err := s.extraction.Extract(
		r.Context(), chi.URLParam(r, "documentID"), version,
		extractionuc.Input{Filename: req.Filename, FileType: req.FileType, Data: req.Data})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/extraction-jobs/"+jobID)
	writeJSON(w, http.StatusAccepted, extractAcceptedResponse{JobID: jobID})
}

// GetExtractionJob handles GET /api/v1/extraction-jobs/{jobID}.
func (s *Server) GetExtractionJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.extraction.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// GetVectorizationJob handles GET /api/v1/vectorization-jobs/{jobID}.
func (s *Server) GetVectorizationJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.vectorization.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// VectorizeDocument handles POST /api/v1/documents/{documentID}/versions/{version}/vectorize.
func (s *Server) VectorizeDocument(w http.ResponseWriter, r *http.Request) {
	version, ok := s.versionParam(w, r)
	if !ok {
		return
	}

	async := true
	if r.ContentLength != 0 {
		var req vectorizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
			return
		}
		if req.Async != nil {
			async = *req.Async
		}
	}

	j, err := s.vectorization.Vectorize(r.Context(), chi.URLParam(r, "documentID"), version, async)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if async && !j.Status.Terminal() {
		status = http.StatusAccepted
	}
	writeJSON(w, status, j)
}

// ChunkDocument handles POST /api/v1/documents/{documentID}/versions/{version}/chunks.
func (s *Server) ChunkDocument(w http.ResponseWriter, r *http.Request) {
	version, ok := s.versionParam(w, r)
	if !ok {
		return
	}

	chunks, err := s.chunking.ChunkDocument(r.Context(), chi.URLParam(r, "documentID"), version)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := chunkDocumentResponse{ChunksCreated: len(chunks)}
	for _, c := range chunks {
		resp.TotalCharCount += c.CharCount
		resp.TotalWordCount += c.WordCount
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListChunks handles GET /api/v1/documents/{documentID}/versions/{version}/chunks.
func (s *Server) ListChunks(w http.ResponseWriter, r *http.Request) {
	version, ok := s.versionParam(w, r)
	if !ok {
		return
	}

	chunks, err := s.chunking.ListChunks(r.Context(), chi.URLParam(r, "documentID"), version)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	q := r.URL.Query()
	offset, limit := 0, len(chunks)
	if o := q.Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	if l := q.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	total := len(chunks)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, chunkListResponse{
		Items:   chunks[offset:end],
		Total:   total,
		HasMore: end < total,
	})
}

// GetChunk handles GET /api/v1/chunks/{chunkID}.
func (s *Server) GetChunk(w http.ResponseWriter, r *http.Request) {
	c, err := s.chunking.GetChunk(r.Context(), chi.URLParam(r, "chunkID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteChunks handles DELETE /api/v1/documents/{documentID}/versions/{version}/chunks.
func (s *Server) DeleteChunks(w http.ResponseWriter, r *http.Request) {
	version, ok := s.versionParam(w, r)
	if !ok {
		return
	}

	n, err := s.chunking.DeleteChunks(r.Context(), chi.URLParam(r, "documentID"), version)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteChunksResponse{ChunksDeleted: n})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func (s *Server) versionParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "version must be a positive integer")
		return 0, false
	}
	return version, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrDocumentNotFound,
		domain.ErrChunkNotFound,
		domain.ErrJobNotFound,
		domain.ErrNotFound,
		domain.ErrValidation,
		domain.ErrStateTransition,
		domain.ErrVersionConflict,
		domain.ErrReferentialIntegrity,
		domain.ErrEmbeddingProviderError,
		domain.ErrExtractionProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// stateTransitionHandler surfaces the specific denial reason. Activation
// failures in particular must say which gate failed.
func stateTransitionHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrStateTransition) {
		return false
	}
	var ste *domain.StateTransitionError
	if errors.As(err, &ste) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"code":    codeStateTransition,
			"message": ste.Reason,
			"from":    ste.From,
			"to":      ste.To,
		})
		return true
	}
	writeError(w, http.StatusConflict, codeStateTransition, msg)
	return true
}

// versionConflictHandler handles ErrVersionConflict with the current head.
func versionConflictHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrVersionConflict) {
		return false
	}
	var vce *domain.VersionConflictError
	if errors.As(err, &vce) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"code":         codeVersionConflict,
			"message":      msg,
			"current_head": vce.CurrentHead,
		})
		return true
	}
	writeError(w, http.StatusConflict, codeVersionConflict, msg)
	return true
}

// referentialIntegrityHandler names the offending field and target type.
func referentialIntegrityHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrReferentialIntegrity) {
		return false
	}
	var rie *domain.ReferentialIntegrityError
	if errors.As(err, &rie) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code":        codeReferentialIntegrity,
			"message":     msg,
			"field":       rie.Field,
			"value":       rie.Value,
			"target_type": rie.TargetType,
		})
		return true
	}
	writeError(w, http.StatusUnprocessableEntity, codeReferentialIntegrity, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
