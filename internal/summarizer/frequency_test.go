package summarizer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexa/internal/domain"
)

const text = "A contract requires offer and acceptance. The weather was pleasant. " +
	"Offer and acceptance form agreement in contract law. Consideration supports the contract."

func TestSummarize_PicksFrequentSentencesInOrder(t *testing.T) {
	out, err := NewFrequencySummarizer().Summarize(text, 2)
	require.NoError(t, err)

	assert.NotContains(t, out, "weather")
	first := strings.Index(out, "A contract requires")
	second := strings.Index(out, "Offer and acceptance form")
	require.GreaterOrEqual(t, first, 0)
	require.Greater(t, second, first)
}

func TestSummarize_Edges(t *testing.T) {
	s := NewFrequencySummarizer()

	out, err := s.Summarize("  ", 3)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = s.Summarize("No terminal punctuation here", 3)
	require.NoError(t, err)
	assert.Equal(t, "No terminal punctuation here", out)

	out, err = s.Summarize(text, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(out, "."))
}

type failing struct{}

func (failing) Summarize(string, int) (string, error) { return "", errors.New("boom") }

func TestDigest(t *testing.T) {
	docs := []domain.LegalDocument{
		{Source: "contract_law_dataset.json", Body: "An offer is a definite promise."},
		{Source: "contract_law_dataset.json", Body: "Acceptance must mirror the offer."},
		{Source: "land_law_dataset.json", Body: "The Land Use Act vests land in the governor."},
	}
	out, err := Digest(NewFrequencySummarizer(), docs, 1)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out,
		"3 documents from 2 sources (contract_law_dataset.json, land_law_dataset.json)."), out)
	assert.Greater(t, len(out), len("3 documents from 2 sources (contract_law_dataset.json, land_law_dataset.json)."))

	out, err = Digest(nil, docs, 1)
	require.NoError(t, err)
	assert.Equal(t, "3 documents from 2 sources (contract_law_dataset.json, land_law_dataset.json).", out)

	_, err = Digest(failing{}, docs, 1)
	assert.Error(t, err)
}
