package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexa/internal/domain"
	"lexa/internal/vectorstore"
)

func chunk(id string) domain.Chunk { return domain.Chunk{ID: id, Text: id} }

func ids(results []domain.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Chunk.ID
	}
	return out
}

func TestInit_InvalidDimension(t *testing.T) {
	assert.Error(t, NewStorage(vectorstore.Cosine).Init(0))
}

func TestUpsert_Validation(t *testing.T) {
	s := NewStorage(vectorstore.Cosine)
	require.NoError(t, s.Init(2))
	assert.Error(t, s.Upsert([]domain.Chunk{chunk("a")}, nil))
	assert.Error(t, s.Upsert([]domain.Chunk{chunk("a")}, [][]float32{{1, 2, 3}}))
	assert.Equal(t, 0, s.Len())
}

func TestSearch_CosineAscendingWithStableTies(t *testing.T) {
	s := NewStorage(vectorstore.Cosine)
	require.NoError(t, s.Init(2))
	require.NoError(t, s.Upsert(
		[]domain.Chunk{chunk("orthogonal"), chunk("tie-first"), chunk("exact"), chunk("tie-second")},
		[][]float32{{0, 1}, {1, 1}, {1, 0}, {1, 1}},
	))

	results, err := s.Search([]float32{1, 0}, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"exact", "tie-first", "tie-second", "orthogonal"}, ids(results))
	assert.InDelta(t, 0, results[0].Distance, 1e-9)
	assert.InDelta(t, results[1].Distance, results[2].Distance, 1e-9)

	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestSearch_L2(t *testing.T) {
	s := NewStorage(vectorstore.L2)
	require.NoError(t, s.Init(1))
	require.NoError(t, s.Upsert([]domain.Chunk{chunk("far"), chunk("near")}, [][]float32{{10}, {1}}))

	results, err := s.Search([]float32{0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "near", results[0].Chunk.ID)
	assert.InDelta(t, 1, results[0].Distance, 1e-9)
}

func TestSearch_EdgeCases(t *testing.T) {
	s := NewStorage("")
	assert.Equal(t, vectorstore.Cosine, s.Metric())

	results, err := s.Search([]float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, s.Init(2))
	require.NoError(t, s.Upsert([]domain.Chunk{chunk("a")}, [][]float32{{1, 0}}))

	results, err = s.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	_, err = s.Search([]float32{1, 0, 0}, 1)
	assert.Error(t, err)

	require.NoError(t, s.Clear())
	assert.Equal(t, 0, s.Len())
}

func TestEntries_InsertionOrder(t *testing.T) {
	s := NewStorage(vectorstore.Cosine)
	require.NoError(t, s.Init(1))
	require.NoError(t, s.Upsert([]domain.Chunk{chunk("a"), chunk("b"), chunk("c")}, [][]float32{{1}, {2}, {3}}))

	var seen []string
	s.Entries(func(c domain.Chunk, v []float32) bool {
		seen = append(seen, c.ID)
		return c.ID != "b"
	})
	assert.Equal(t, []string{"a", "b"}, seen)
}
