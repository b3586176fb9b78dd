package domain

import (
	"context"
	"strings"
)

// LegalDocument is a single normalized record loaded from a dataset file.
type LegalDocument struct {
	ID       string
	Title    string
	Body     string
	Source   string
	Metadata map[string]any
}

// Chunk is the unit that gets embedded and retrieved. A document body that
// fits the configured chunk size yields exactly one chunk.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Text       string
	Title      string
	Source     string
	Metadata   map[string]any
}

// Content returns the text embedded for the chunk and placed into prompts.
func (c Chunk) Content() string {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		return c.Text
	}
	return title + "\n\n" + c.Text
}

// SearchResult represents a matching chunk with its distance to the query.
// Smaller distances are closer.
type SearchResult struct {
	Chunk    Chunk
	Distance float64
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	// Name identifies the embedding model. Query and corpus vectors are only
	// comparable when produced by embedders with the same name.
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// StatefulEmbedder is an Embedder whose preparation result must travel with
// a persisted index, e.g. a corpus vocabulary.
type StatefulEmbedder interface {
	Embedder
	Snapshot() ([]byte, error)
	Restore(state []byte) error
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	// Name encodes the chunker type and its window parameters.
	Name() string
	Chunk(document LegalDocument) ([]Chunk, error)
}

// Generator sends a composed prompt to a language model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// Assistant is the caller-facing contract consumed by front-ends.
type Assistant interface {
	ProcessQuery(ctx context.Context, query string) (string, error)
	Reset()
	Summary() string
}
