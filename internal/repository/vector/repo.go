package vector

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/cropmind/agridex/internal/db"
	"github.com/cropmind/agridex/internal/domain"
	domchunk "github.com/cropmind/agridex/internal/domain/chunk"
)

// store is the consumer interface for vector persistence (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// HNSWConfig tunes the vector index build parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo writes chunk embeddings into the external vector index: one hash
// per vector, partitioned by namespace, covered by a single HNSW FT index.
type Repo struct {
	store store
	dim   int
	hnsw  HNSWConfig
}

// New creates a vector repository for embeddings of the given dimension.
func New(s store, dim int) *Repo {
	return &Repo{store: s, dim: dim}
}

// WithHNSW overrides HNSW build parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

// IndexName is the FT index over stored vectors.
func IndexName() string { return domain.KeyPrefix + "vec:idx" }

// EnsureIndex creates the vector FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def, err := db.NewIndex(IndexName()).
		Prefix(domain.KeyPrefix+"vec:").
		Tag("namespace", "").
		Tag("document_id", "").
		Numeric("chunk_index", "").
		VectorHNSW("embedding", r.dim, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build vector index definition: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create vector index: %w", err)
	}
	return nil
}

// Store writes one chunk embedding under its namespace and returns the
// vector ID.
func (r *Repo) Store(ctx context.Context, namespace string, c *domchunk.Chunk, embedding []float32) (string, error) {
	if len(embedding) != r.dim {
		return "", fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(embedding), r.dim)
	}

	vectorID := vectorKey(namespace, c.Index)
	fields := map[string]string{
		"namespace":   namespace,
		"document_id": c.DocumentID,
		"version":     strconv.Itoa(c.Version),
		"chunk_id":    c.ID,
		"chunk_index": strconv.Itoa(c.Index),
		"content":     c.Content,
		"embedding":   vectorToBytes(embedding),
	}
	if err := r.store.HSet(ctx, vectorID, fields); err != nil {
		return "", fmt.Errorf("hset %s: %w", vectorID, err)
	}
	return vectorID, nil
}

// Count returns the number of vectors stored under a namespace.
func (r *Repo) Count(ctx context.Context, namespace string) (int, error) {
	query := fmt.Sprintf("@namespace:{%s}", escapeTag(namespace))
	n, err := r.store.SearchCount(ctx, IndexName(), query)
	if err != nil {
		return 0, fmt.Errorf("count namespace %s: %w", namespace, err)
	}
	return n, nil
}

// DeleteNamespace removes every vector in a namespace. Returns the number
// of vectors deleted.
func (r *Repo) DeleteNamespace(ctx context.Context, namespace string) (int, error) {
	keys, err := r.store.Scan(ctx, domain.KeyPrefix+"vec:"+namespace+":*")
	if err != nil {
		return 0, fmt.Errorf("scan namespace %s: %w", namespace, err)
	}
	for _, key := range keys {
		if err := r.store.Del(ctx, key); err != nil {
			return 0, fmt.Errorf("del %s: %w", key, err)
		}
	}
	return len(keys), nil
}

func vectorKey(namespace string, chunkIndex int) string {
	return fmt.Sprintf("%svec:%s:%d", domain.KeyPrefix, namespace, chunkIndex)
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// escapeTag escapes characters with special meaning inside TAG braces.
func escapeTag(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '-', '.', ':', '{', '}', '|', ' ', '@', '(', ')':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
