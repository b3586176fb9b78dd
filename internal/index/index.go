// Package index builds, persists and verifies the chunk search index and
// answers similarity queries against it.
package index

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"lexa/internal/domain"
	"lexa/internal/logging"
	"lexa/internal/vectorstore/memory"
)

// Index is the read-only search index. It holds the embedder it was built
// with so queries land in the same embedding space as the chunks.
type Index struct {
	store    *memory.Storage
	embedder domain.Embedder
	manifest Manifest
}

// New wraps an already populated store.
func New(store *memory.Storage, embedder domain.Embedder, manifest Manifest) *Index {
	return &Index{store: store, embedder: embedder, manifest: manifest}
}

func (ix *Index) Len() int { return ix.store.Len() }

func (ix *Index) Manifest() Manifest { return ix.manifest }

func (ix *Index) Embedder() domain.Embedder { return ix.embedder }

// Retriever finds the chunks nearest to a query.
type Retriever struct {
	index *Index
	log   *zap.Logger
}

func NewRetriever(ix *Index, log *zap.Logger) *Retriever {
	return &Retriever{index: ix, log: logging.OrNop(log)}
}

// Search returns the k nearest chunks with their distances, closest first.
// An empty index yields no results.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if r.index.Len() == 0 || k <= 0 {
		return nil, nil
	}
	vec, err := r.index.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", domain.ErrRetrieval, err)
	}
	results, err := r.index.store.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrieval, err)
	}
	r.log.Debug("retrieved chunks", zap.Int("k", k), zap.Int("found", len(results)))
	return results, nil
}

// Retrieve returns the k nearest chunks, closest first.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]domain.Chunk, error) {
	results, err := r.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	chunks := make([]domain.Chunk, len(results))
	for i, res := range results {
		chunks[i] = res.Chunk
	}
	return chunks, nil
}
