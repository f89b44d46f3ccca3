package job

// ExtractionStatus is the lifecycle state of an extraction job.
type ExtractionStatus string

// Extraction job states. Succeeded and Failed are terminal; a failed job is
// never resumed -- retry means a brand-new job.
const (
	ExtractionQueued     ExtractionStatus = "queued"
	ExtractionProcessing ExtractionStatus = "processing"
	ExtractionSucceeded  ExtractionStatus = "succeeded"
	ExtractionFailed     ExtractionStatus = "failed"
)

// Terminal reports whether no further progress updates can occur.
func (s ExtractionStatus) Terminal() bool {
	return s == ExtractionSucceeded || s == ExtractionFailed
}

// ExtractionJob tracks one asynchronous raw-content extraction run against a
// single (document_id, version) target.
type ExtractionJob struct {
	ID              string           `json:"id"`
	DocumentID      string           `json:"document_id"`
	Version         int              `json:"version"`
	Status          ExtractionStatus `json:"status"`
	ProgressPercent int              `json:"progress_percent"` // 0-100, non-decreasing while processing
	PagesProcessed  int              `json:"pages_processed"`
	TotalPages      int              `json:"total_pages"`
	StatusText      string           `json:"status_text,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	StartedAt       int64            `json:"started_at,omitempty"`   // unix millis
	CompletedAt     int64            `json:"completed_at,omitempty"` // unix millis
}
