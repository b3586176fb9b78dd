package memory

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"lexa/internal/domain"
	"lexa/internal/textutil"
	"lexa/internal/vectorstore"
)

// Storage is an in-memory vector store using exact brute-force search.
// Results are ordered by ascending distance; equal distances keep
// insertion order.
type Storage struct {
	mu        sync.RWMutex
	metric    vectorstore.Metric
	dimension int
	vectors   [][]float32
	chunks    []domain.Chunk
}

func NewStorage(metric vectorstore.Metric) *Storage {
	if metric == "" {
		metric = vectorstore.Cosine
	}
	return &Storage{metric: metric}
}

func (s *Storage) Metric() vectorstore.Metric { return s.metric }

func (s *Storage) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

func (s *Storage) Init(dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.vectors = nil
	s.chunks = nil
	return nil
}

func (s *Storage) Upsert(chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range vectors {
		if len(v) != s.dimension {
			return fmt.Errorf("vector dimension mismatch for chunk %s: got %d, want %d",
				chunks[i].ID, len(v), s.dimension)
		}
	}
	s.chunks = append(s.chunks, chunks...)
	s.vectors = append(s.vectors, vectors...)
	return nil
}

func (s *Storage) Search(vector []float32, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.vectors) == 0 || topK <= 0 {
		return nil, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: got %d, want %d", len(vector), s.dimension)
	}
	results := make([]domain.SearchResult, len(s.vectors))
	for i, v := range s.vectors {
		results[i] = domain.SearchResult{Chunk: s.chunks[i], Distance: s.distance(v, vector)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Entries calls fn for every stored chunk in insertion order until fn
// returns false.
func (s *Storage) Entries(fn func(domain.Chunk, []float32) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.chunks {
		if !fn(s.chunks[i], s.vectors[i]) {
			return
		}
	}
}

func (s *Storage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.chunks = nil
	return nil
}

func (s *Storage) distance(a, b []float32) float64 {
	if s.metric == vectorstore.L2 {
		return textutil.L2Distance(a, b)
	}
	return textutil.CosineDistance(a, b)
}
