package document

import (
	"context"
	"sort"
	"testing"

	"github.com/cropmind/agridex/internal/domain"
	domdoc "github.com/cropmind/agridex/internal/domain/document"
	domjob "github.com/cropmind/agridex/internal/domain/job"
	repodoc "github.com/cropmind/agridex/internal/repository/document"
)

// --- Mocks ---

// fakeDocRepo is an in-memory Repository. Lifecycle tests need the
// Put/Head/AdvanceHead interplay, so it keeps real state.
type fakeDocRepo struct {
	versions map[string]map[int]domdoc.Document
	heads    map[string]int

	putErr error

	// staleHeadReads makes HeadVersion report 0 that many times, simulating
	// a reader racing another writer's head advance.
	staleHeadReads int

	lastListLimit   int
	lastSearchLimit int
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{
		versions: make(map[string]map[int]domdoc.Document),
		heads:    make(map[string]int),
	}
}

func (f *fakeDocRepo) Put(_ context.Context, doc *domdoc.Document) error {
	if f.putErr != nil {
		return f.putErr
	}
	if f.versions[doc.DocumentID] == nil {
		f.versions[doc.DocumentID] = make(map[int]domdoc.Document)
	}
	f.versions[doc.DocumentID][doc.Version] = *doc
	return nil
}

func (f *fakeDocRepo) Get(_ context.Context, documentID string, version int) (domdoc.Document, error) {
	doc, ok := f.versions[documentID][version]
	if !ok {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func (f *fakeDocRepo) Head(ctx context.Context, documentID string) (domdoc.Document, error) {
	head := f.heads[documentID]
	if head == 0 {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return f.Get(ctx, documentID, head)
}

func (f *fakeDocRepo) HeadVersion(_ context.Context, documentID string) (int, error) {
	if f.staleHeadReads > 0 {
		f.staleHeadReads--
		return 0, nil
	}
	return f.heads[documentID], nil
}

func (f *fakeDocRepo) AdvanceHead(_ context.Context, documentID string, expected, next int) error {
	if f.heads[documentID] != expected {
		return domain.NewVersionConflictError(f.heads[documentID])
	}
	f.heads[documentID] = next
	return nil
}

func (f *fakeDocRepo) Versions(_ context.Context, documentID string) ([]domdoc.Document, error) {
	byVersion := f.versions[documentID]
	if len(byVersion) == 0 {
		return nil, domain.ErrDocumentNotFound
	}
	out := make([]domdoc.Document, 0, len(byVersion))
	for _, doc := range byVersion {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (f *fakeDocRepo) List(_ context.Context, _ repodoc.Filter, _ string, limit int) ([]domdoc.Document, string, error) {
	f.lastListLimit = limit
	return nil, "", nil
}

func (f *fakeDocRepo) Search(_ context.Context, _ string, _ repodoc.Filter, limit int) ([]domdoc.Document, error) {
	f.lastSearchLimit = limit
	return nil, nil
}

func (f *fakeDocRepo) Count(_ context.Context, _ repodoc.Filter) (int, error) {
	return 0, nil
}

type mockVecJobs struct {
	job domjob.VectorizationJob
	err error
}

func (m *mockVecJobs) LatestVectorization(_ context.Context, _ string, _ int) (domjob.VectorizationJob, error) {
	if m.err != nil {
		return domjob.VectorizationJob{}, m.err
	}
	return m.job, nil
}

// --- Helpers ---

func completedJob(doc domdoc.Document) domjob.VectorizationJob {
	return domjob.VectorizationJob{
		ID:          "vec-ok",
		DocumentID:  doc.DocumentID,
		Version:     doc.Version,
		Status:      domjob.VectorizationCompleted,
		ContentHash: doc.ContentHash,
	}
}

func seedDocument(t *testing.T, svc *Service, documentID, content string) domdoc.Document {
	t.Helper()
	doc, err := svc.Create(context.Background(), documentID, "Title", domdoc.DomainSoilHealth, content, domdoc.Metadata{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return doc
}

func stageHead(t *testing.T, svc *Service, documentID string) domdoc.Document {
	t.Helper()
	doc, err := svc.Stage(context.Background(), documentID)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	return doc
}
