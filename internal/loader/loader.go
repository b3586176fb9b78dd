// Package loader reads legal-topic record files and normalizes their
// heterogeneous field names into domain.LegalDocument values.
package loader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"lexa/internal/domain"
	"lexa/internal/logging"
	"lexa/internal/textutil"
)

// Field preference lists, first non-empty string wins.
var (
	ContentFields = []string{"content", "definition", "text", "summary"}
	TitleFields   = []string{"title", "topic", "name", "term"}
)

// DefaultTitle is used when a record carries none of TitleFields.
const DefaultTitle = "Untitled"

type record = map[string]any

// Loader reads dataset files into normalized documents.
type Loader struct {
	log *zap.Logger
}

// New creates a Loader. A nil logger discards output.
func New(log *zap.Logger) *Loader {
	return &Loader{log: logging.OrNop(log)}
}

// Load reads every path and returns the documents with usable content.
// A file that cannot be read or parsed is logged and skipped; if no path
// yields a document the result is domain.ErrKnowledgeBaseEmpty.
func (l *Loader) Load(ctx context.Context, paths []string) ([]domain.LegalDocument, error) {
	var docs []domain.LegalDocument
	var failures []error
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := datasetKey(p)
		if _, dup := seen[key]; dup {
			l.log.Warn("skipping duplicate dataset", zap.String("path", p))
			continue
		}
		seen[key] = struct{}{}
		records, err := readRecords(p)
		if err != nil {
			l.log.Warn("failed to load dataset", zap.String("path", p), zap.Error(err))
			failures = append(failures, fmt.Errorf("%s: %w", p, err))
			continue
		}
		before := len(docs)
		for i, rec := range records {
			doc, ok := Normalize(rec, p, i)
			if !ok {
				l.log.Warn("skipping record without content",
					zap.String("path", p), zap.Int("record", i))
				continue
			}
			docs = append(docs, doc)
		}
		l.log.Info("loaded dataset", zap.String("path", p),
			zap.Int("records", len(records)), zap.Int("documents", len(docs)-before))
	}
	if len(docs) == 0 {
		if len(failures) > 0 {
			return nil, fmt.Errorf("%w: no usable documents in %d dataset(s): %w",
				domain.ErrKnowledgeBaseEmpty, len(paths), errors.Join(failures...))
		}
		return nil, fmt.Errorf("%w: no usable documents in %d dataset(s)",
			domain.ErrKnowledgeBaseEmpty, len(paths))
	}
	return docs, nil
}

// datasetKey identifies a dataset file independently of how its path was
// spelled.
func datasetKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Normalize converts one record into a document. It reports false when the
// record has no usable content field. The ID is derived from the full
// dataset path; Source keeps only the file name for display.
func Normalize(rec map[string]any, source string, position int) (domain.LegalDocument, bool) {
	contentKey, body := firstString(rec, ContentFields)
	if body == "" {
		return domain.LegalDocument{}, false
	}
	_, title := firstString(rec, TitleFields)
	if title == "" {
		title = DefaultTitle
	}

	base := filepath.Base(source)
	meta := make(map[string]any, len(rec)+1)
	for k, v := range rec {
		if k == contentKey {
			continue
		}
		if s, ok := scalar(v); ok {
			meta[k] = s
		}
	}
	if _, ok := meta["topic"]; !ok {
		meta["topic"] = datasetTopic(base)
	}

	return domain.LegalDocument{
		ID:       textutil.HashString(datasetKey(source) + "#" + strconv.Itoa(position)),
		Title:    title,
		Body:     body,
		Source:   base,
		Metadata: meta,
	}, true
}

func firstString(rec record, keys []string) (string, string) {
	for _, k := range keys {
		if s, ok := rec[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return k, s
			}
		}
	}
	return "", ""
}

// scalar keeps metadata values that survive a JSON round trip. JSON numbers
// keep their exact decimal text.
func scalar(v any) (any, bool) {
	switch x := v.(type) {
	case string, bool, float64, int, int64:
		return x, true
	case json.Number:
		return x.String(), true
	default:
		return nil, false
	}
}

// datasetTopic derives a topic from a file name: contract_law_dataset.json -> contract.
func datasetTopic(base string) string {
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if i := strings.Index(name, "_"); i > 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

func readRecords(path string) ([]record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("dataset is empty")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var recs []record
		if err := yaml.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("invalid dataset format: %w", err)
		}
		return recs, nil
	case ".jsonl":
		return readJSONLines(data)
	default:
		var recs []record
		if err := decodeJSON(data, &recs); err != nil {
			return nil, fmt.Errorf("invalid dataset format: %w", err)
		}
		return recs, nil
	}
}

// decodeJSON decodes exactly one JSON value, keeping numbers as json.Number.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

func readJSONLines(data []byte) ([]record, error) {
	var recs []record
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var rec record
		if err := decodeJSON(text, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		recs = append(recs, rec)
	}
	return recs, sc.Err()
}
