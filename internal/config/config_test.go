package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"contract_law_dataset.json", "land_law_dataset.json"}, cfg.Datasets.Paths)
	assert.Equal(t, "tfidf", cfg.Embedder.Type)
	assert.Equal(t, 3, cfg.Retriever.TopK)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.Generator.BaseURL)
	assert.Equal(t, "OPENROUTER_API_KEY", cfg.Generator.APIKeyEnv)
	assert.Equal(t, "mistralai/mixtral-8x7b-instruct", cfg.Generator.Model)
	assert.InDelta(t, 0.3, cfg.Generator.Temperature, 1e-6)
	assert.Equal(t, 500, cfg.Generator.MaxTokens)
	assert.Equal(t, "none", cfg.Cache.Policy)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_AppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
datasets:
  paths: [a.json]
embedder:
  type: openai
  openai:
    model: custom-embed
index:
  checksum: abc123
cache:
  policy: size
  max_entries: 50
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.json"}, cfg.Datasets.Paths)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "custom-embed", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Embedder.OpenAI.BaseURL)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, "abc123", cfg.Index.Checksum)
	assert.Equal(t, "lexa_index", cfg.Index.Dir)
	assert.Equal(t, 50, cfg.Cache.MaxEntries)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("datasets: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Retriever.TopK = 2

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{name: "no datasets", mutate: func(c *AppConfig) { c.Datasets.Paths = nil }, wantErr: "datasets.paths"},
		{name: "unknown embedder", mutate: func(c *AppConfig) { c.Embedder.Type = "bert" }, wantErr: "embedder.type"},
		{name: "openai without section", mutate: func(c *AppConfig) { c.Embedder.Type = "openai" }, wantErr: "embedder.openai"},
		{name: "overlap too large", mutate: func(c *AppConfig) { c.Chunker.ChunkOverlap = c.Chunker.ChunkSize }, wantErr: "chunk_overlap"},
		{name: "unknown metric", mutate: func(c *AppConfig) { c.Index.Metric = "dot" }, wantErr: "index.metric"},
		{name: "size policy without bound", mutate: func(c *AppConfig) { c.Cache.Policy = "size" }, wantErr: "cache.max_entries"},
		{name: "ttl policy without ttl", mutate: func(c *AppConfig) { c.Cache.Policy = "ttl" }, wantErr: "cache.ttl_secs"},
		{name: "zero top k", mutate: func(c *AppConfig) { c.Retriever.TopK = -1 }, wantErr: "retriever.top_k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
