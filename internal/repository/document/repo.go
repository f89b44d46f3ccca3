package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cropmind/agridex/internal/db"
	"github.com/cropmind/agridex/internal/domain"
	domdoc "github.com/cropmind/agridex/internal/domain/document"
)

// store is the consumer interface for document persistence (ISP).
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Filter narrows List/Search results. Empty fields match everything.
type Filter struct {
	Domain string
	Status string
	Author string
}

// Repo persists immutable document versions as Redis JSON, with a head
// pointer per document_id tracking the newest version number.
type Repo struct {
	store store
}

// New creates a document repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// IndexName is the FT index over document versions.
func IndexName() string { return domain.KeyPrefix + "doc:idx" }

// EnsureIndex creates the document FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def, err := db.NewIndex(IndexName()).
		OnJSON().
		Prefix(domain.KeyPrefix + "doc:").
		Tag("$.document_id", "document_id").
		Numeric("$.version", "version").
		Tag("$.status", "status").
		Tag("$.domain", "domain").
		Tag("$.metadata.author", "author").
		Text("$.title", "title").
		Text("$.content", "content").
		Numeric("$.updated_at", "updated_at").
		Build()
	if err != nil {
		return fmt.Errorf("build index definition: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create document index: %w", err)
	}
	return nil
}

// Put writes a document version. Versions are append-only: callers only
// overwrite a version to update its status or derived fields.
func (r *Repo) Put(ctx context.Context, doc *domdoc.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	key := versionKey(doc.DocumentID, doc.Version)
	if err := r.store.JSONSet(ctx, key, "$", data); err != nil {
		return fmt.Errorf("json.set %s: %w", key, err)
	}
	return nil
}

// Get returns one document version.
func (r *Repo) Get(ctx context.Context, documentID string, version int) (domdoc.Document, error) {
	raw, err := r.store.JSONGet(ctx, versionKey(documentID, version), "$")
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domdoc.Document{}, domain.ErrDocumentNotFound
		}
		return domdoc.Document{}, fmt.Errorf("json.get %s v%d: %w", documentID, version, err)
	}
	return decodeVersion(raw)
}

// HeadVersion returns the newest version number for a document_id, or 0 if
// the document does not exist.
func (r *Repo) HeadVersion(ctx context.Context, documentID string) (int, error) {
	raw, err := r.store.Get(ctx, headKey(documentID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get head %s: %w", documentID, err)
	}
	head, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("parse head %s: %w", documentID, err)
	}
	return head, nil
}

// Head returns the newest version of a document.
func (r *Repo) Head(ctx context.Context, documentID string) (domdoc.Document, error) {
	head, err := r.HeadVersion(ctx, documentID)
	if err != nil {
		return domdoc.Document{}, err
	}
	if head == 0 {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return r.Get(ctx, documentID, head)
}

// AdvanceHead moves the head pointer from expected to next. Returns a
// VersionConflictError when another writer got there first. The check is
// optimistic read-compare-set; racing writers lose by version number, not
// by corrupting stored versions (those are append-only).
func (r *Repo) AdvanceHead(ctx context.Context, documentID string, expected, next int) error {
	current, err := r.HeadVersion(ctx, documentID)
	if err != nil {
		return err
	}
	if current != expected {
		return domain.NewVersionConflictError(current)
	}
	if err := r.store.Set(ctx, headKey(documentID), []byte(strconv.Itoa(next))); err != nil {
		return fmt.Errorf("set head %s: %w", documentID, err)
	}
	return nil
}

// Versions returns every stored version of a document, ordered by version.
func (r *Repo) Versions(ctx context.Context, documentID string) ([]domdoc.Document, error) {
	head, err := r.HeadVersion(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if head == 0 {
		return nil, domain.ErrDocumentNotFound
	}

	docs := make([]domdoc.Document, 0, head)
	for v := 1; v <= head; v++ {
		doc, err := r.Get(ctx, documentID, v)
		if err != nil {
			if errors.Is(err, domain.ErrDocumentNotFound) {
				continue // versions are dense in practice, but tolerate gaps
			}
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// List returns document versions matching the filter, paginated by an
// offset cursor.
func (r *Repo) List(ctx context.Context, f Filter, cursor string, limit int) (
	[]domdoc.Document, string, error,
) {
	if limit <= 0 {
		limit = 20
	}

	offset := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor %q: %w", cursor, domain.ErrValidation)
		}
		offset = parsed
	}

	query := filterQuery(f)
	result, err := r.store.SearchList(ctx, IndexName(), query, offset, limit+1, []string{"$"})
	if err != nil {
		return nil, "", fmt.Errorf("search list: %w", err)
	}

	docs := decodeEntries(result, limit)

	var nextCursor string
	if len(result.Entries) > limit {
		nextCursor = strconv.Itoa(offset + limit)
	}
	return docs, nextCursor, nil
}

// Search runs a free-text query over titles and content, optionally
// narrowed by the filter.
func (r *Repo) Search(ctx context.Context, text string, f Filter, limit int) ([]domdoc.Document, error) {
	if limit <= 0 {
		limit = 10
	}

	escaped := escapeQuery(text)
	if escaped == "" {
		return nil, fmt.Errorf("empty search query: %w", domain.ErrValidation)
	}

	query := fmt.Sprintf("@title|content:(%s)", escaped)
	if fq := filterQuery(f); fq != "*" {
		query = fq + " " + query
	}

	result, err := r.store.SearchList(ctx, IndexName(), query, 0, limit, []string{"$"})
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	return decodeEntries(result, limit), nil
}

// Count returns the number of indexed versions matching the filter.
func (r *Repo) Count(ctx context.Context, f Filter) (int, error) {
	n, err := r.store.SearchCount(ctx, IndexName(), filterQuery(f))
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

func versionKey(documentID string, version int) string {
	return fmt.Sprintf("%sdoc:%s:v%d", domain.KeyPrefix, documentID, version)
}

func headKey(documentID string) string {
	return domain.KeyPrefix + "dochead:" + documentID
}

// decodeVersion unwraps the JSONPath array that JSON.GET $ returns.
func decodeVersion(raw []byte) (domdoc.Document, error) {
	var docs []domdoc.Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		// Some server versions return the bare object for a root path.
		var doc domdoc.Document
		if err2 := json.Unmarshal(raw, &doc); err2 == nil {
			return doc, nil
		}
		return domdoc.Document{}, fmt.Errorf("unmarshal document: %w", err)
	}
	if len(docs) == 0 {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return docs[0], nil
}

func decodeEntries(result *db.SearchResult, limit int) []domdoc.Document {
	docs := make([]domdoc.Document, 0, limit)
	for i, entry := range result.Entries {
		if i >= limit {
			break
		}
		var doc domdoc.Document
		if err := json.Unmarshal([]byte(entry.Fields["$"]), &doc); err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

// filterQuery builds the FT.SEARCH filter expression.
func filterQuery(f Filter) string {
	var parts []string
	if f.Domain != "" {
		parts = append(parts, fmt.Sprintf("@domain:{%s}", escapeTag(f.Domain)))
	}
	if f.Status != "" {
		parts = append(parts, fmt.Sprintf("@status:{%s}", escapeTag(f.Status)))
	}
	if f.Author != "" {
		parts = append(parts, fmt.Sprintf("@author:{%s}", escapeTag(f.Author)))
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " ")
}

// escapeTag escapes characters with special meaning inside TAG braces.
func escapeTag(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ',', '.', '<', '>', '{', '}', '[', ']', '"', '\'', ':', ';',
			'!', '@', '#', '$', '%', '^', '&', '*', '(', ')', '-', '+',
			'=', '~', '|', ' ', '/', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapeQuery strips FT.SEARCH syntax characters from free text, leaving
// plain terms joined by spaces (implicit AND).
func escapeQuery(s string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '@', '{', '}', '(', ')', '|', '-', '%', '*', '~', '"', '\'',
			':', ';', '!', '$', '^', '&', '[', ']', '=', '+', '<', '>', '\\', '/':
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(clean), " ")
}
