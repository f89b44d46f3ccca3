package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/cropmind/agridex/internal/domain"
	domchunk "github.com/cropmind/agridex/internal/domain/chunk"
	domdoc "github.com/cropmind/agridex/internal/domain/document"
	domjob "github.com/cropmind/agridex/internal/domain/job"
	repodoc "github.com/cropmind/agridex/internal/repository/document"
	chunkinguc "github.com/cropmind/agridex/internal/usecase/chunking"
	documentuc "github.com/cropmind/agridex/internal/usecase/document"
	extractionuc "github.com/cropmind/agridex/internal/usecase/extraction"
	healthuc "github.com/cropmind/agridex/internal/usecase/health"
	vectorizationuc "github.com/cropmind/agridex/internal/usecase/vectorization"
)

// fakeDocRepo keeps document versions in memory. It backs every service
// that reads or writes documents in handler tests.
type fakeDocRepo struct {
	mu       sync.Mutex
	versions map[string]map[int]domdoc.Document
	heads    map[string]int
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{
		versions: make(map[string]map[int]domdoc.Document),
		heads:    make(map[string]int),
	}
}

func (f *fakeDocRepo) Put(_ context.Context, doc *domdoc.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.versions[doc.DocumentID] == nil {
		f.versions[doc.DocumentID] = make(map[int]domdoc.Document)
	}
	f.versions[doc.DocumentID][doc.Version] = *doc
	return nil
}

func (f *fakeDocRepo) Get(_ context.Context, documentID string, version int) (domdoc.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.versions[documentID][version]
	if !ok {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func (f *fakeDocRepo) Head(ctx context.Context, documentID string) (domdoc.Document, error) {
	f.mu.Lock()
	head := f.heads[documentID]
	f.mu.Unlock()
	if head == 0 {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return f.Get(ctx, documentID, head)
}

func (f *fakeDocRepo) HeadVersion(_ context.Context, documentID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heads[documentID], nil
}

func (f *fakeDocRepo) AdvanceHead(_ context.Context, documentID string, expected, next int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.heads[documentID] != expected {
		return domain.NewVersionConflictError(f.heads[documentID])
	}
	f.heads[documentID] = next
	return nil
}

func (f *fakeDocRepo) Versions(_ context.Context, documentID string) ([]domdoc.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vs := f.versions[documentID]
	if len(vs) == 0 {
		return nil, domain.ErrDocumentNotFound
	}
	nums := make([]int, 0, len(vs))
	for v := range vs {
		nums = append(nums, v)
	}
	sort.Ints(nums)
	docs := make([]domdoc.Document, 0, len(nums))
	for _, v := range nums {
		docs = append(docs, vs[v])
	}
	return docs, nil
}

func (f *fakeDocRepo) List(ctx context.Context, filter repodoc.Filter, _ string, limit int) ([]domdoc.Document, string, error) {
	docs, err := f.headDocs(ctx, filter)
	if err != nil {
		return nil, "", err
	}
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, "", nil
}

func (f *fakeDocRepo) Search(ctx context.Context, text string, filter repodoc.Filter, limit int) ([]domdoc.Document, error) {
	docs, err := f.headDocs(ctx, filter)
	if err != nil {
		return nil, err
	}
	var out []domdoc.Document
	for _, d := range docs {
		if strings.Contains(d.Title, text) || strings.Contains(d.Content, text) {
			out = append(out, d)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDocRepo) Count(ctx context.Context, filter repodoc.Filter) (int, error) {
	docs, err := f.headDocs(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (f *fakeDocRepo) headDocs(_ context.Context, filter repodoc.Filter) ([]domdoc.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.heads))
	for id := range f.heads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var docs []domdoc.Document
	for _, id := range ids {
		d := f.versions[id][f.heads[id]]
		if filter.Domain != "" && string(d.Domain) != filter.Domain {
			continue
		}
		if filter.Status != "" && string(d.Status) != filter.Status {
			continue
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// fakeJobRepo holds extraction and vectorization job records in memory.
type fakeJobRepo struct {
	mu        sync.Mutex
	ext       map[string]domjob.ExtractionJob
	vec       map[string]domjob.VectorizationJob
	latestVec map[string]string
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{
		ext:       make(map[string]domjob.ExtractionJob),
		vec:       make(map[string]domjob.VectorizationJob),
		latestVec: make(map[string]string),
	}
}

func jobScope(documentID string, version int) string {
	return fmt.Sprintf("%s:v%d", documentID, version)
}

func (f *fakeJobRepo) SaveExtraction(_ context.Context, j *domjob.ExtractionJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ext[j.ID] = *j
	return nil
}

func (f *fakeJobRepo) GetExtraction(_ context.Context, jobID string) (domjob.ExtractionJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.ext[jobID]
	if !ok {
		return domjob.ExtractionJob{}, domain.ErrJobNotFound
	}
	return j, nil
}

func (f *fakeJobRepo) SaveVectorization(_ context.Context, j *domjob.VectorizationJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Latest pointer moves on the first save only, like the real repo.
	if _, exists := f.vec[j.ID]; !exists {
		f.latestVec[jobScope(j.DocumentID, j.Version)] = j.ID
	}
	f.vec[j.ID] = *j
	return nil
}

func (f *fakeJobRepo) GetVectorization(_ context.Context, jobID string) (domjob.VectorizationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.vec[jobID]
	if !ok {
		return domjob.VectorizationJob{}, domain.ErrJobNotFound
	}
	return j, nil
}

func (f *fakeJobRepo) LatestVectorization(_ context.Context, documentID string, version int) (domjob.VectorizationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.latestVec[jobScope(documentID, version)]
	if !ok {
		return domjob.VectorizationJob{}, domain.ErrJobNotFound
	}
	return f.vec[id], nil
}

// fakeChunkRepo stores chunk sets keyed by document and version.
type fakeChunkRepo struct {
	mu   sync.Mutex
	sets map[string][]domchunk.Chunk
}

func newFakeChunkRepo() *fakeChunkRepo {
	return &fakeChunkRepo{sets: make(map[string][]domchunk.Chunk)}
}

func (f *fakeChunkRepo) Replace(_ context.Context, documentID string, version int, chunks []domchunk.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets[jobScope(documentID, version)] = chunks
	return nil
}

func (f *fakeChunkRepo) GetSet(_ context.Context, documentID string, version int) ([]domchunk.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chunks, ok := f.sets[jobScope(documentID, version)]
	if !ok {
		return nil, domain.ErrChunkNotFound
	}
	return chunks, nil
}

func (f *fakeChunkRepo) GetByID(ctx context.Context, chunkID string) (domchunk.Chunk, error) {
	documentID, version, index, err := domchunk.ParseID(chunkID)
	if err != nil {
		return domchunk.Chunk{}, domain.ErrValidation
	}
	chunks, err := f.GetSet(ctx, documentID, version)
	if err != nil {
		return domchunk.Chunk{}, err
	}
	if index < 0 || index >= len(chunks) {
		return domchunk.Chunk{}, domain.ErrChunkNotFound
	}
	return chunks[index], nil
}

func (f *fakeChunkRepo) Delete(_ context.Context, documentID string, version int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := jobScope(documentID, version)
	n := len(f.sets[key])
	delete(f.sets, key)
	return n, nil
}

// stubExtractor returns canned content.
type stubExtractor struct {
	content string
	err     error
}

func (s *stubExtractor) Extract(_ context.Context, _ extractionuc.Input, progress extractionuc.ProgressFunc) (extractionuc.Result, error) {
	if s.err != nil {
		return extractionuc.Result{}, s.err
	}
	progress(1, 1, "processed page 1 of 1")
	return extractionuc.Result{Content: s.content, Method: "llm:test", Confidence: 1, PageCount: 1}, nil
}

// stubEmbedder returns a fixed-size vector for any input.
type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}, TotalTokens: 1}, nil
}

// fakeVectorStore records stored vectors per namespace.
type fakeVectorStore struct {
	mu     sync.Mutex
	stored map[string][]string
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{stored: make(map[string][]string)}
}

func (f *fakeVectorStore) Store(_ context.Context, namespace string, c *domchunk.Chunk, _ []float32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := "agridex:vec:" + namespace + ":" + c.ID
	f.stored[namespace] = append(f.stored[namespace], id)
	return id, nil
}

func (f *fakeVectorStore) DeleteNamespace(_ context.Context, namespace string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.stored[namespace])
	delete(f.stored, namespace)
	return n, nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return context.DeadlineExceeded }

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

// testAPI bundles the handler under test with its in-memory backends.
type testAPI struct {
	router chi.Router
	docs   *fakeDocRepo
	jobs   *fakeJobRepo
	chunks *fakeChunkRepo
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	docs := newFakeDocRepo()
	jobs := newFakeJobRepo()
	chunks := newFakeChunkRepo()

	pool, err := ants.NewPool(4)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Release)

	log := zap.NewNop()
	chunkSvc := chunkinguc.New(docs, chunks)
	srv := NewServer(
		documentuc.New(docs, jobs),
		extractionuc.New(docs, jobs, &stubExtractor{content: "# Title\n\ncleaned body text"}, log),
		chunkSvc,
		vectorizationuc.New(docs, jobs, chunkSvc, stubEmbedder{}, newFakeVectorStore(), pool, log),
		healthuc.New(okPinger{}, nil),
		log,
		10*time.Millisecond,
	)

	router := chi.NewRouter()
	srv.Routes(router)

	return &testAPI{router: router, docs: docs, jobs: jobs, chunks: chunks}
}

// do runs one request through the router and returns the recorder.
func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return v
}

// seedDocument puts a version into the fake repo and points the head at it.
func (a *testAPI) seedDocument(t *testing.T, doc domdoc.Document) {
	t.Helper()
	if err := a.docs.Put(context.Background(), &doc); err != nil {
		t.Fatalf("seed document: %v", err)
	}
	a.docs.mu.Lock()
	if doc.Version > a.docs.heads[doc.DocumentID] {
		a.docs.heads[doc.DocumentID] = doc.Version
	}
	a.docs.mu.Unlock()
}

func draftDocument(id, content string) domdoc.Document {
	return domdoc.Document{
		DocumentID:  id,
		Version:     1,
		Title:       "Drip Irrigation Guide",
		Domain:      domdoc.DomainIrrigation,
		Content:     content,
		Status:      domdoc.StatusDraft,
		ContentHash: domdoc.Hash(content),
	}
}
