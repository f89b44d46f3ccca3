package extraction

import (
	"context"
	"sync"

	"github.com/cropmind/agridex/internal/domain"
	domdoc "github.com/cropmind/agridex/internal/domain/document"
	domjob "github.com/cropmind/agridex/internal/domain/job"
)

// --- Mocks ---

type mockDocRepo struct {
	mu     sync.Mutex
	doc    domdoc.Document
	getErr error
	putErr error
	put    *domdoc.Document
}

func (m *mockDocRepo) Get(_ context.Context, _ string, _ int) (domdoc.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domdoc.Document{}, m.getErr
	}
	return m.doc, nil
}

func (m *mockDocRepo) Put(_ context.Context, doc *domdoc.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	cp := *doc
	m.put = &cp
	return nil
}

func (m *mockDocRepo) putDoc() *domdoc.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put
}

// mockJobRepo records every saved snapshot and closes done on the first
// terminal save, so tests can wait for the background run.
type mockJobRepo struct {
	mu        sync.Mutex
	snapshots []domjob.ExtractionJob
	saveErr   error
	done      chan struct{}
	closed    bool
}

func newMockJobRepo() *mockJobRepo {
	return &mockJobRepo{done: make(chan struct{})}
}

func (m *mockJobRepo) SaveExtraction(_ context.Context, j *domjob.ExtractionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.snapshots = append(m.snapshots, *j)
	if j.Status.Terminal() && !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

func (m *mockJobRepo) GetExtraction(_ context.Context, jobID string) (domjob.ExtractionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		if m.snapshots[i].ID == jobID {
			return m.snapshots[i], nil
		}
	}
	return domjob.ExtractionJob{}, domain.ErrJobNotFound
}

func (m *mockJobRepo) all() []domjob.ExtractionJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domjob.ExtractionJob, len(m.snapshots))
	copy(out, m.snapshots)
	return out
}

type mockExtractor struct {
	fn func(ctx context.Context, in Input, progress ProgressFunc) (Result, error)
}

func (m *mockExtractor) Extract(ctx context.Context, in Input, progress ProgressFunc) (Result, error) {
	return m.fn(ctx, in, progress)
}
