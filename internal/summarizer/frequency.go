package summarizer

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"lexa/internal/domain"
	"lexa/internal/textutil"
)

// FrequencySummarizer ranks sentences by word frequency (stopwords filtered).
type FrequencySummarizer struct{}

func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{}
}

// Summarize returns the maxSentences highest ranked sentences in their
// original order.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := textutil.Sentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text), nil
	}
	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		tokens[i] = textutil.Tokens(sent)
		for _, tok := range tokens[i] {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i := range sentences {
		score := 0.0
		for _, tok := range tokens[i] {
			score += freq[tok]
		}
		// dampen long sentences
		if l := float64(len(tokens[i])); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = pair{i, score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}
	selected := make([]int, maxSentences)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}

// Digest describes a knowledge base for display: how many documents were
// loaded from which sources, followed by a summary of their bodies.
func Digest(s domain.Summarizer, docs []domain.LegalDocument, maxSentences int) (string, error) {
	var sources []string
	seen := map[string]struct{}{}
	var body strings.Builder
	for _, d := range docs {
		if _, ok := seen[d.Source]; !ok {
			seen[d.Source] = struct{}{}
			sources = append(sources, d.Source)
		}
		body.WriteString(d.Body)
		body.WriteString("\n")
	}
	head := fmt.Sprintf("%d documents from %d sources (%s).", len(docs), len(sources), strings.Join(sources, ", "))
	if s == nil || len(docs) == 0 {
		return head, nil
	}
	summary, err := s.Summarize(body.String(), maxSentences)
	if err != nil {
		return "", err
	}
	if summary == "" {
		return head, nil
	}
	return head + " " + summary, nil
}
