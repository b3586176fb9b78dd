package vectorstore

import (
	"fmt"

	"lexa/internal/domain"
)

// Storage holds chunk vectors and supports nearest-neighbour search.
type Storage interface {
	Init(dimension int) error
	Upsert(chunks []domain.Chunk, vectors [][]float32) error
	// Search returns at most topK results ordered by ascending distance.
	Search(vector []float32, topK int) ([]domain.SearchResult, error)
	Len() int
	Clear() error
}

// Metric names a distance function.
type Metric string

const (
	Cosine Metric = "cosine"
	L2     Metric = "l2"
)

// ParseMetric validates a configured metric name.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case Cosine, "":
		return Cosine, nil
	case L2:
		return L2, nil
	default:
		return "", fmt.Errorf("unknown metric %q", s)
	}
}
