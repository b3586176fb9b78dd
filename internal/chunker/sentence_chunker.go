package chunker

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"lexa/internal/domain"
	"lexa/internal/textutil"
)

// Defaults, in runes.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// SentenceChunker packs whole sentences into windows of at most chunkSize
// runes. Consecutive windows share trailing sentences worth up to
// overlap runes so a fact spanning a window boundary stays retrievable.
type SentenceChunker struct {
	chunkSize int
	overlap   int
}

func NewSentenceChunker(chunkSize, overlap int) *SentenceChunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	return &SentenceChunker{chunkSize: chunkSize, overlap: overlap}
}

func (c *SentenceChunker) Name() string {
	return fmt.Sprintf("sentence:%d:%d", c.chunkSize, c.overlap)
}

// Chunk splits the document body. Bodies within chunkSize yield one chunk.
func (c *SentenceChunker) Chunk(document domain.LegalDocument) ([]domain.Chunk, error) {
	body := strings.TrimSpace(document.Body)
	if body == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(body) <= c.chunkSize {
		return []domain.Chunk{c.newChunk(document, 0, body)}, nil
	}

	var units []string
	for _, s := range textutil.Sentences(body) {
		units = append(units, c.splitLong(s)...)
	}

	var chunks []domain.Chunk
	i := 0
	for i < len(units) {
		end := i
		size := 0
		for end < len(units) {
			n := utf8.RuneCountInString(units[end])
			if size > 0 && size+1+n > c.chunkSize {
				break
			}
			if size > 0 {
				size++
			}
			size += n
			end++
		}
		chunks = append(chunks, c.newChunk(document, len(chunks), strings.Join(units[i:end], " ")))
		if end == len(units) {
			break
		}
		// Step back over trailing sentences that fit in the overlap budget
		// and still leave room for units[end], always moving forward by at
		// least one unit.
		next := end
		room := c.chunkSize - utf8.RuneCountInString(units[end]) - 1
		tail := 0
		for j := end - 1; j > i; j-- {
			if tail > 0 {
				tail++
			}
			tail += utf8.RuneCountInString(units[j])
			if tail > c.overlap || tail > room {
				break
			}
			next = j
		}
		i = next
	}
	return chunks, nil
}

// splitLong cuts a sentence longer than chunkSize into rune windows.
func (c *SentenceChunker) splitLong(s string) []string {
	runes := []rune(s)
	if len(runes) <= c.chunkSize {
		return []string{s}
	}
	step := c.chunkSize - c.overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, strings.TrimSpace(string(runes[start:end])))
		if end == len(runes) {
			break
		}
	}
	return out
}

func (c *SentenceChunker) newChunk(document domain.LegalDocument, idx int, text string) domain.Chunk {
	return domain.Chunk{
		ID:         document.ID + ":" + strconv.Itoa(idx),
		DocumentID: document.ID,
		Index:      idx,
		Text:       text,
		Title:      document.Title,
		Source:     document.Source,
		Metadata:   document.Metadata,
	}
}
