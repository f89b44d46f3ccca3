package chunk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cropmind/agridex/internal/db"
	"github.com/cropmind/agridex/internal/domain"
	domchunk "github.com/cropmind/agridex/internal/domain/chunk"
)

// store is the consumer interface for chunk persistence (ISP).
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Repo persists the chunk set of a document version as a single JSON array.
// Replacing the whole array in one JSON.SET is what makes a chunking run
// atomic: readers see either the old set or the new set, never a mix.
type Repo struct {
	store store
}

// New creates a chunk repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Replace atomically swaps the chunk set for (documentID, version).
func (r *Repo) Replace(ctx context.Context, documentID string, version int, chunks []domchunk.Chunk) error {
	if chunks == nil {
		chunks = []domchunk.Chunk{}
	}
	data, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("marshal chunk set: %w", err)
	}
	key := setKey(documentID, version)
	if err := r.store.JSONSet(ctx, key, "$", data); err != nil {
		return fmt.Errorf("json.set %s: %w", key, err)
	}
	return nil
}

// GetSet returns the full chunk set for a document version in index order.
func (r *Repo) GetSet(ctx context.Context, documentID string, version int) ([]domchunk.Chunk, error) {
	raw, err := r.store.JSONGet(ctx, setKey(documentID, version), "$")
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrChunkNotFound
		}
		return nil, fmt.Errorf("json.get chunks %s v%d: %w", documentID, version, err)
	}

	// JSON.GET $ wraps the root array in one more array level.
	var sets [][]domchunk.Chunk
	if err := json.Unmarshal(raw, &sets); err != nil {
		var set []domchunk.Chunk
		if err2 := json.Unmarshal(raw, &set); err2 == nil {
			return set, nil
		}
		return nil, fmt.Errorf("unmarshal chunk set: %w", err)
	}
	if len(sets) == 0 {
		return nil, domain.ErrChunkNotFound
	}
	return sets[0], nil
}

// GetByID resolves a single chunk through its canonical identifier.
func (r *Repo) GetByID(ctx context.Context, chunkID string) (domchunk.Chunk, error) {
	documentID, version, index, err := domchunk.ParseID(chunkID)
	if err != nil {
		return domchunk.Chunk{}, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	set, err := r.GetSet(ctx, documentID, version)
	if err != nil {
		return domchunk.Chunk{}, err
	}
	if index < 0 || index >= len(set) {
		return domchunk.Chunk{}, domain.ErrChunkNotFound
	}
	return set[index], nil
}

// Delete removes the chunk set of a document version. Returns how many
// chunks were deleted.
func (r *Repo) Delete(ctx context.Context, documentID string, version int) (int, error) {
	set, err := r.GetSet(ctx, documentID, version)
	if err != nil {
		if errors.Is(err, domain.ErrChunkNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if err := r.store.Del(ctx, setKey(documentID, version)); err != nil {
		return 0, fmt.Errorf("del chunks %s v%d: %w", documentID, version, err)
	}
	return len(set), nil
}

func setKey(documentID string, version int) string {
	return fmt.Sprintf("%schunks:%s:v%d", domain.KeyPrefix, documentID, version)
}
