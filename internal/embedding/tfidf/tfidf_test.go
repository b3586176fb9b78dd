package tfidf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexa/internal/textutil"
)

var corpus = []string{
	"An offer is a definite promise to be bound on specific terms.",
	"Acceptance must be unconditional and communicated to the offeror.",
	"A certificate of occupancy evidences a statutory right of occupancy over land.",
}

func TestPrepare_EmptyCorpus(t *testing.T) {
	assert.Error(t, NewEmbedder().Prepare(nil))
	assert.Error(t, NewEmbedder().Prepare([]string{"the and of"}))
}

func TestEmbed_NotPrepared(t *testing.T) {
	_, err := NewEmbedder().Embed(context.Background(), "offer")
	assert.Error(t, err)
}

func TestEmbed_NearestIsTopicalDocument(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare(corpus))
	assert.Greater(t, e.Dimension(), 0)

	ctx := context.Background()
	q, err := e.Embed(ctx, "What is a certificate of occupancy?")
	require.NoError(t, err)
	require.Len(t, q, e.Dimension())

	best, bestDist := -1, 2.0
	for i, doc := range corpus {
		v, err := e.Embed(ctx, doc)
		require.NoError(t, err)
		if d := textutil.CosineDistance(q, v); d < bestDist {
			best, bestDist = i, d
		}
	}
	assert.Equal(t, 2, best)
}

func TestEmbed_UnknownTermsGiveZeroVector(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare(corpus))
	v, err := e.Embed(context.Background(), "zzz qqq")
	require.NoError(t, err)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder()
	require.NoError(t, e.Prepare(corpus))
	want, err := e.Embed(ctx, "unconditional acceptance")
	require.NoError(t, err)

	state, err := e.Snapshot()
	require.NoError(t, err)

	restored := NewEmbedder()
	require.NoError(t, restored.Restore(state))
	got, err := restored.Embed(ctx, "unconditional acceptance")
	require.NoError(t, err)

	assert.Equal(t, e.Dimension(), restored.Dimension())
	assert.Equal(t, want, got)
}

func TestRestore_Invalid(t *testing.T) {
	assert.Error(t, NewEmbedder().Restore([]byte("{")))
	assert.Error(t, NewEmbedder().Restore([]byte(`{"terms":["a"],"idf":[]}`)))

	_, err := NewEmbedder().Snapshot()
	assert.Error(t, err)
}
