package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cropmind/agridex/internal/db"
	"github.com/cropmind/agridex/internal/domain"
	domjob "github.com/cropmind/agridex/internal/domain/job"
)

// store is the consumer interface for job persistence (ISP).
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Repo persists extraction and vectorization job records as Redis JSON,
// plus a latest-job pointer per (document_id, version) for each kind. Job
// records are the only channel between a background job and its observers:
// coordinators write snapshots, pollers and progress streams read them.
type Repo struct {
	store store
}

// New creates a job repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// SaveExtraction writes an extraction job snapshot. The latest marker for
// the target moves only on the job's first save: late snapshots from an
// older job must not reclaim the pointer from a job created after it.
func (r *Repo) SaveExtraction(ctx context.Context, j *domjob.ExtractionJob) error {
	isNew, err := r.isNew(ctx, extKey(j.ID))
	if err != nil {
		return err
	}
	if err := r.save(ctx, extKey(j.ID), j); err != nil {
		return err
	}
	if !isNew {
		return nil
	}
	return r.setLatest(ctx, extLatestKey(j.DocumentID, j.Version), j.ID)
}

// GetExtraction returns an extraction job by ID.
func (r *Repo) GetExtraction(ctx context.Context, jobID string) (domjob.ExtractionJob, error) {
	var j domjob.ExtractionJob
	if err := r.load(ctx, extKey(jobID), &j); err != nil {
		return domjob.ExtractionJob{}, err
	}
	return j, nil
}

// SaveVectorization writes a vectorization job snapshot. The latest marker
// for the target moves only on the job's first save, so a stale in-flight
// job finishing after a newer job was created cannot mask it.
func (r *Repo) SaveVectorization(ctx context.Context, j *domjob.VectorizationJob) error {
	isNew, err := r.isNew(ctx, vecKey(j.ID))
	if err != nil {
		return err
	}
	if err := r.save(ctx, vecKey(j.ID), j); err != nil {
		return err
	}
	if !isNew {
		return nil
	}
	return r.setLatest(ctx, vecLatestKey(j.DocumentID, j.Version), j.ID)
}

// GetVectorization returns a vectorization job by ID.
func (r *Repo) GetVectorization(ctx context.Context, jobID string) (domjob.VectorizationJob, error) {
	var j domjob.VectorizationJob
	if err := r.load(ctx, vecKey(jobID), &j); err != nil {
		return domjob.VectorizationJob{}, err
	}
	return j, nil
}

// LatestVectorization returns the newest vectorization job for a target.
// Older jobs for the same target are never authoritative: activation only
// consults this one.
func (r *Repo) LatestVectorization(ctx context.Context, documentID string, version int) (domjob.VectorizationJob, error) {
	jobID, err := r.getLatest(ctx, vecLatestKey(documentID, version))
	if err != nil {
		return domjob.VectorizationJob{}, err
	}
	return r.GetVectorization(ctx, jobID)
}

// LatestExtraction returns the newest extraction job for a target.
func (r *Repo) LatestExtraction(ctx context.Context, documentID string, version int) (domjob.ExtractionJob, error) {
	jobID, err := r.getLatest(ctx, extLatestKey(documentID, version))
	if err != nil {
		return domjob.ExtractionJob{}, err
	}
	return r.GetExtraction(ctx, jobID)
}

func (r *Repo) save(ctx context.Context, key string, j any) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := r.store.JSONSet(ctx, key, "$", data); err != nil {
		return fmt.Errorf("json.set %s: %w", key, err)
	}
	return nil
}

func (r *Repo) load(ctx context.Context, key string, out any) error {
	raw, err := r.store.JSONGet(ctx, key, "$")
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.ErrJobNotFound
		}
		return fmt.Errorf("json.get %s: %w", key, err)
	}

	// JSON.GET $ wraps the object in an array.
	var wrapped []json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped) > 0 {
		raw = wrapped[0]
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal job %s: %w", key, err)
	}
	return nil
}

// isNew reports whether no record exists yet under key.
func (r *Repo) isNew(ctx context.Context, key string) (bool, error) {
	_, err := r.store.JSONGet(ctx, key, "$")
	if err == nil {
		return false, nil
	}
	if errors.Is(err, db.ErrKeyNotFound) {
		return true, nil
	}
	return false, fmt.Errorf("json.get %s: %w", key, err)
}

func (r *Repo) setLatest(ctx context.Context, key, jobID string) error {
	if err := r.store.Set(ctx, key, []byte(jobID)); err != nil {
		return fmt.Errorf("set latest %s: %w", key, err)
	}
	return nil
}

func (r *Repo) getLatest(ctx context.Context, key string) (string, error) {
	raw, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", domain.ErrJobNotFound
		}
		return "", fmt.Errorf("get latest %s: %w", key, err)
	}
	return string(raw), nil
}

func extKey(jobID string) string { return domain.KeyPrefix + "job:ext:" + jobID }
func vecKey(jobID string) string { return domain.KeyPrefix + "job:vec:" + jobID }

func extLatestKey(documentID string, version int) string {
	return fmt.Sprintf("%sjob:ext:latest:%s:v%d", domain.KeyPrefix, documentID, version)
}

func vecLatestKey(documentID string, version int) string {
	return fmt.Sprintf("%sjob:vec:latest:%s:v%d", domain.KeyPrefix, documentID, version)
}
