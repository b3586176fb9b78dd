package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"lexa/internal/cache"
	"lexa/internal/chunker"
	"lexa/internal/config"
	"lexa/internal/domain"
	"lexa/internal/embedding/openai"
	"lexa/internal/embedding/tfidf"
	genopenai "lexa/internal/generation/openai"
	"lexa/internal/index"
	"lexa/internal/vectorstore"
)

// checkDatasets verifies every configured dataset exists and is not empty.
// With seeding enabled a missing dataset is created with one placeholder
// record.
func checkDatasets(cfg config.DatasetConfig, log *zap.Logger) error {
	for _, p := range cfg.Paths {
		info, err := os.Stat(p)
		if errors.Is(err, os.ErrNotExist) && cfg.SeedMissing {
			log.Info("creating default dataset", zap.String("path", p))
			if err := seedDataset(p); err != nil {
				return fmt.Errorf("%w: seed dataset %s: %w", domain.ErrConfiguration, p, err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: dataset %s: %w", domain.ErrConfiguration, p, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%w: dataset %s is a directory", domain.ErrConfiguration, p)
		}
		if info.Size() == 0 {
			return fmt.Errorf("%w: dataset %s is empty", domain.ErrConfiguration, p)
		}
	}
	return nil
}

func seedDataset(path string) error {
	topic := filepath.Base(path)
	topic = strings.TrimSuffix(topic, filepath.Ext(topic))
	if i := strings.Index(topic, "_"); i > 0 {
		topic = topic[:i]
	}
	title := topic
	if title != "" {
		title = strings.ToUpper(title[:1]) + title[1:]
	}
	records := []map[string]string{{
		"title":   fmt.Sprintf("Default %s Law", title),
		"content": fmt.Sprintf("This is a default %s law document for testing.", topic),
	}}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// generationKey resolves the chat backend credential: the inline value
// first, then the configured environment variable.
func generationKey(cfg config.GeneratorConfig) (string, error) {
	if k := strings.TrimSpace(cfg.APIKey); k != "" {
		return k, nil
	}
	if k := strings.TrimSpace(os.Getenv(cfg.APIKeyEnv)); k != "" {
		return k, nil
	}
	return "", fmt.Errorf("%w: generation API key not set (generator.api_key or $%s)",
		domain.ErrConfiguration, cfg.APIKeyEnv)
}

func newEmbedder(cfg config.EmbedderConfig, log *zap.Logger) (domain.Embedder, error) {
	switch cfg.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("%w: openai embedder config missing", domain.ErrConfiguration)
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:     cfg.OpenAI.BaseURL,
			APIKeyEnv:   cfg.OpenAI.APIKeyEnv,
			Model:       cfg.OpenAI.Model,
			Timeout:     time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			MaxAttempts: cfg.OpenAI.MaxAttempts,
			Logger:      log.Named("embedder"),
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", domain.ErrConfiguration, cfg.Type)
	}
}

func newChunker(cfg config.ChunkerConfig) (domain.Chunker, error) {
	switch cfg.Type {
	case "sentence", "":
		return chunker.NewSentenceChunker(cfg.ChunkSize, cfg.ChunkOverlap), nil
	default:
		return nil, fmt.Errorf("%w: unknown chunker %q", domain.ErrConfiguration, cfg.Type)
	}
}

func newGenerator(cfg config.GeneratorConfig, log *zap.Logger) (domain.Generator, error) {
	key, err := generationKey(cfg)
	if err != nil {
		return nil, err
	}
	client, err := genopenai.NewClient(genopenai.Config{
		BaseURL:     cfg.BaseURL,
		APIKey:      key,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     time.Duration(cfg.TimeoutSecs) * time.Second,
		MaxAttempts: cfg.MaxAttempts,
		Logger:      log.Named("generator"),
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newCache(cfg config.CacheConfig) (*cache.QueryCache, error) {
	c, err := cache.New(cache.Options{
		Policy:     cache.Policy(cfg.Policy),
		MaxEntries: cfg.MaxEntries,
		TTL:        time.Duration(cfg.TTLSecs) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	return c, nil
}

func newBuilder(cfg *config.AppConfig, emb domain.Embedder, ch domain.Chunker, log *zap.Logger) (*index.Builder, error) {
	metric, err := vectorstore.ParseMetric(cfg.Index.Metric)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	return index.NewBuilder(index.Options{
		Embedder:    emb,
		Chunker:     ch,
		Metric:      metric,
		Dir:         cfg.Index.Dir,
		Checksum:    cfg.Index.Checksum,
		Parallelism: cfg.Index.Parallelism,
		Logger:      log.Named("index"),
	}), nil
}
