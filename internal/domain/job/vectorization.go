package job

// VectorizationStatus is the lifecycle state of a vectorization job.
type VectorizationStatus string

// Vectorization job states. Completed, Failed and Partial are terminal.
// Partial means some chunks were stored and some failed; activation treats
// it as non-qualifying.
const (
	VectorizationPending   VectorizationStatus = "pending"
	VectorizationEmbedding VectorizationStatus = "embedding"
	VectorizationStoring   VectorizationStatus = "storing"
	VectorizationCompleted VectorizationStatus = "completed"
	VectorizationFailed    VectorizationStatus = "failed"
	VectorizationPartial   VectorizationStatus = "partial"
)

// Terminal reports whether no further progress updates can occur.
func (s VectorizationStatus) Terminal() bool {
	return s == VectorizationCompleted || s == VectorizationFailed || s == VectorizationPartial
}

// VectorizationJob tracks one embed-and-store run for a document version.
// ContentHash is captured at job start; activation compares it against the
// version's current hash to detect stale vectors.
type VectorizationJob struct {
	ID             string              `json:"id"`
	DocumentID     string              `json:"document_id"`
	Version        int                 `json:"version"`
	Status         VectorizationStatus `json:"status"`
	Namespace      string              `json:"namespace"`
	ChunksTotal    int                 `json:"chunks_total"`
	ChunksEmbedded int                 `json:"chunks_embedded"`
	ChunksStored   int                 `json:"chunks_stored"`
	FailedCount    int                 `json:"failed_count"`
	ContentHash    string              `json:"content_hash"`
	ErrorMessage   string              `json:"error_message,omitempty"`
	StartedAt      int64               `json:"started_at,omitempty"`   // unix millis
	CompletedAt    int64               `json:"completed_at,omitempty"` // unix millis
}

// Qualifies reports whether this job authorizes activation of a version
// whose current content hash is contentHash.
func (j *VectorizationJob) Qualifies(contentHash string) bool {
	return j.Status == VectorizationCompleted && j.ContentHash == contentHash
}
