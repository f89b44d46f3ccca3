package vectorization

import (
	"context"
	"sync"

	"github.com/cropmind/agridex/internal/domain"
	domchunk "github.com/cropmind/agridex/internal/domain/chunk"
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

func (m *mockDocRepo) setDoc(doc domdoc.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = doc
}

func (m *mockDocRepo) putDoc() *domdoc.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put
}

type mockVecJobRepo struct {
	mu        sync.Mutex
	snapshots []domjob.VectorizationJob
	latest    *domjob.VectorizationJob
	latestErr error
	saves     int
}

func (m *mockVecJobRepo) SaveVectorization(_ context.Context, j *domjob.VectorizationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, *j)
	m.saves++
	return nil
}

func (m *mockVecJobRepo) GetVectorization(_ context.Context, jobID string) (domjob.VectorizationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		if m.snapshots[i].ID == jobID {
			return m.snapshots[i], nil
		}
	}
	return domjob.VectorizationJob{}, domain.ErrJobNotFound
}

func (m *mockVecJobRepo) LatestVectorization(_ context.Context, _ string, _ int) (domjob.VectorizationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latestErr != nil {
		return domjob.VectorizationJob{}, m.latestErr
	}
	if m.latest == nil {
		return domjob.VectorizationJob{}, domain.ErrJobNotFound
	}
	return *m.latest, nil
}

func (m *mockVecJobRepo) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type mockChunker struct {
	chunks []domchunk.Chunk
	err    error
}

func (m *mockChunker) ChunkDocument(_ context.Context, _ string, _ int) ([]domchunk.Chunk, error) {
	return m.chunks, m.err
}

// mockEmbedder fails for contents listed in failFor.
type mockEmbedder struct {
	dim     int
	failFor map[string]bool
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if m.failFor[text] {
		return domain.EmbeddingResult{}, domain.ErrEmbeddingProviderError
	}
	dim := m.dim
	if dim == 0 {
		dim = 3
	}
	return domain.EmbeddingResult{Embedding: make([]float32, dim)}, nil
}

type mockVectorStore struct {
	mu          sync.Mutex
	stored      []string
	storeErrFor map[string]bool
	deletedNS   []string
	deleteErr   error
}

func (m *mockVectorStore) Store(_ context.Context, namespace string, c *domchunk.Chunk, _ []float32) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeErrFor[c.ID] {
		return "", domain.ErrEmbeddingProviderError
	}
	vectorID := "vec:" + namespace + ":" + c.ID
	m.stored = append(m.stored, vectorID)
	return vectorID, nil
}

func (m *mockVectorStore) DeleteNamespace(_ context.Context, namespace string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	m.deletedNS = append(m.deletedNS, namespace)
	return 0, nil
}

func (m *mockVectorStore) storedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.stored))
	copy(out, m.stored)
	return out
}
