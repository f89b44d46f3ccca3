package logger

import "go.uber.org/zap"

// JobFields are the standard fields every background job log line carries.
// Extraction and vectorization coordinators attach them once per run so job
// logs are joinable on job_id and (document_id, version).
func JobFields(jobID, documentID string, version int) []zap.Field {
	return []zap.Field{
		zap.String("job_id", jobID),
		zap.String("document_id", documentID),
		zap.Int("version", version),
	}
}
