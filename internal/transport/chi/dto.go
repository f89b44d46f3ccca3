package chi

import (
	domchunk "github.com/cropmind/agridex/internal/domain/chunk"
	domdoc "github.com/cropmind/agridex/internal/domain/document"
	domjob "github.com/cropmind/agridex/internal/domain/job"
)

// Error codes returned in error responses.
const (
	codeBadRequest           = "bad_request"
	codeValidationFailed     = "validation_failed"
	codeDocumentNotFound     = "document_not_found"
	codeChunkNotFound        = "chunk_not_found"
	codeJobNotFound          = "job_not_found"
	codeNotFound             = "not_found"
	codeStateTransition      = "state_transition_denied"
	codeVersionConflict      = "version_conflict"
	codeReferentialIntegrity = "referential_integrity_violation"
	codeEmbeddingProvider    = "embedding_provider_error"
	codeExtractionProvider   = "extraction_provider_error"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createDocumentRequest struct {
	DocumentID string          `json:"document_id"`
	Title      string          `json:"title"`
	Domain     string          `json:"domain"`
	Content    string          `json:"content"`
	Metadata   domdoc.Metadata `json:"metadata"`
}

type updateDocumentRequest struct {
	Title         *string          `json:"title"`
	Domain        *string          `json:"domain"`
	Content       *string          `json:"content"`
	Metadata      *domdoc.Metadata `json:"metadata"`
	ChangeSummary string           `json:"change_summary"`
}

type rollbackRequest struct {
	TargetVersion int `json:"target_version"`
}

type extractRequest struct {
	Filename string `json:"filename"`
	FileType string `json:"file_type"`
	Data     []byte `json:"data"` // base64 in JSON
}

type vectorizeRequest struct {
	Async *bool `json:"async"`
}

type searchRequest struct {
	Query  string `json:"query"`
	Domain string `json:"domain"`
	Status string `json:"status"`
	Limit  int    `json:"limit"`
}

type documentListResponse struct {
	Items      []domdoc.Document `json:"items"`
	HasMore    bool              `json:"has_more"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type searchResponse struct {
	Items []domdoc.Document `json:"items"`
	Total int               `json:"total"`
}

type versionsResponse struct {
	DocumentID string            `json:"document_id"`
	Versions   []domdoc.Document `json:"versions"`
}

type deleteDocumentResponse struct {
	DocumentID       string `json:"document_id"`
	VersionsArchived int    `json:"versions_archived"`
}

type chunkDocumentResponse struct {
	ChunksCreated  int `json:"chunks_created"`
	TotalCharCount int `json:"total_char_count"`
	TotalWordCount int `json:"total_word_count"`
}

type chunkListResponse struct {
	Items   []domchunk.Chunk `json:"items"`
	Total   int              `json:"total"`
	HasMore bool             `json:"has_more"`
}

type deleteChunksResponse struct {
	ChunksDeleted int `json:"chunks_deleted"`
}

type extractAcceptedResponse struct {
	JobID string `json:"job_id"`
}

// progressEvent is one SSE payload for an extraction progress stream.
type progressEvent struct {
	JobID           string                  `json:"job_id"`
	Status          domjob.ExtractionStatus `json:"status"`
	ProgressPercent int                     `json:"progress_percent"`
	PagesProcessed  int                     `json:"pages_processed"`
	TotalPages      int                     `json:"total_pages"`
	StatusText      string                  `json:"status_text,omitempty"`
	ErrorMessage    string                  `json:"error_message,omitempty"`
}

func progressEventFromJob(j domjob.ExtractionJob) progressEvent {
	return progressEvent{
		JobID:           j.ID,
		Status:          j.Status,
		ProgressPercent: j.ProgressPercent,
		PagesProcessed:  j.PagesProcessed,
		TotalPages:      j.TotalPages,
		StatusText:      j.StatusText,
		ErrorMessage:    j.ErrorMessage,
	}
}
