// Package semantic implements the delegated similarity collaborator over an
// embedded chromem-go vector collection. The ranking engine only sees the
// rank.Similarity interface; everything here is replaceable.
package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/ristretto"
	chromem "github.com/philippgille/chromem-go"

	"github.com/memgate/memgate/internal/embedding"
	"github.com/memgate/memgate/internal/model"
)

// Index scores memories against a query by cosine similarity in embedding
// space. Memory embeddings live in a chromem collection; query embeddings
// are cached so repeated searches skip the embedding call.
type Index struct {
	embedder embedding.Embedder
	col      *chromem.Collection
	cache    *ristretto.Cache
	logger   *slog.Logger

	mu     sync.Mutex
	synced map[string]string // memory id -> embedded text
}

// NewIndex creates an index over the given embedder. cacheSize bounds the
// number of cached query embeddings; <= 0 picks a small default.
func NewIndex(embedder embedding.Embedder, cacheSize int64, logger *slog.Logger) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: nil embedder", model.ErrInvalidArgument)
	}
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}

	db := chromem.NewDB()
	col, err := db.CreateCollection("memories", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cacheSize * 10,
		MaxCost:     cacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &Index{
		embedder: embedder,
		col:      col,
		cache:    cache,
		logger:   logger,
		synced:   map[string]string{},
	}, nil
}

// Score implements rank.Similarity. Memories missing from the collection
// are embedded on the fly; a memory that cannot be embedded scores zero.
func (ix *Index) Score(ctx context.Context, query string, memories []model.Memory) ([]float64, error) {
	if err := ix.sync(ctx, memories); err != nil {
		return nil, err
	}

	queryVec, err := ix.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	// The collection holds every memory ever synced, while the pool is
	// whatever scope filtering left over, so the query must rank the whole
	// collection and then pick the pool's ids out of the results. Capping
	// at the pool size would let out-of-pool documents crowd pooled ones
	// down to a zero score.
	byID := map[string]float64{}
	if n := ix.col.Count(); n > 0 {
		results, err := ix.col.QueryEmbedding(ctx, queryVec, n, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("query collection: %w", err)
		}
		for _, r := range results {
			byID[r.ID] = float64(r.Similarity)
		}
	}

	scores := make([]float64, len(memories))
	for i, m := range memories {
		scores[i] = byID[m.ID]
	}
	return scores, nil
}

// sync embeds memories whose text changed since the last call and adds them
// to the collection.
func (ix *Index) sync(ctx context.Context, memories []model.Memory) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, m := range memories {
		text := m.Title + "\n" + m.ContentText()
		if ix.synced[m.ID] == text {
			continue
		}
		vec, err := ix.embedder.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("embed memory %s: %w", m.ID, err)
		}
		err = ix.col.AddDocument(ctx, chromem.Document{
			ID:        m.ID,
			Content:   text,
			Embedding: vec,
			Metadata:  map[string]string{"branch": m.Branch, "type": string(m.Type)},
		})
		if err != nil {
			return fmt.Errorf("add document %s: %w", m.ID, err)
		}
		ix.synced[m.ID] = text
	}
	return nil
}

func (ix *Index) embedQuery(ctx context.Context, query string) (embedding.Vector, error) {
	if v, ok := ix.cache.Get(query); ok {
		if vec, ok := v.(embedding.Vector); ok {
			return vec, nil
		}
	}
	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	ix.cache.Set(query, vec, 1)
	return vec, nil
}
