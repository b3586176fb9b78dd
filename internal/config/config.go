package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DatasetConfig lists the legal-topic record files to index.
type DatasetConfig struct {
	Paths []string `yaml:"paths"`
	// SeedMissing writes a one-record placeholder dataset for any missing
	// path instead of failing initialization.
	SeedMissing bool `yaml:"seed_missing"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how document bodies are split into chunks.
// Sizes are measured in runes.
type ChunkerConfig struct {
	Type         string `yaml:"type"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

// IndexConfig configures the search index and its persisted snapshot.
type IndexConfig struct {
	Dir string `yaml:"dir"`
	// Checksum is the expected SHA-256 of the snapshot data file. When set,
	// a snapshot with any other checksum is rebuilt instead of loaded.
	Checksum    string `yaml:"checksum"`
	Metric      string `yaml:"metric"`
	Parallelism int    `yaml:"parallelism"`
}

// RetrieverConfig configures similarity search.
type RetrieverConfig struct {
	TopK int `yaml:"top_k"`
}

// GeneratorConfig configures the chat-completion backend.
type GeneratorConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key,omitempty"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	MaxAttempts int     `yaml:"max_attempts"`
}

// PromptConfig overrides the instruction template. It must contain the
// {{context}} and {{question}} placeholders.
type PromptConfig struct {
	Template string `yaml:"template,omitempty"`
}

// CacheConfig selects the query cache eviction policy.
type CacheConfig struct {
	Policy     string `yaml:"policy"`
	MaxEntries int    `yaml:"max_entries"`
	TTLSecs    int    `yaml:"ttl_secs"`
}

// SummarizerConfig selects and configures the knowledge-base digest.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Datasets   DatasetConfig    `yaml:"datasets"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Index      IndexConfig      `yaml:"index"`
	Retriever  RetrieverConfig  `yaml:"retriever"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Prompt     PromptConfig     `yaml:"prompt"`
	Cache      CacheConfig      `yaml:"cache"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Log        LogConfig        `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/lexa/config.yaml.
// If neither exists, it writes defaults to ~/.config/lexa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects values the components cannot work with.
func (c *AppConfig) Validate() error {
	var errs []error
	if len(c.Datasets.Paths) == 0 {
		errs = append(errs, errors.New("datasets.paths: at least one dataset is required"))
	}
	switch c.Embedder.Type {
	case "tfidf":
	case "openai":
		if c.Embedder.OpenAI == nil {
			errs = append(errs, errors.New("embedder.openai: section missing"))
		}
	default:
		errs = append(errs, fmt.Errorf("embedder.type: unknown embedder %q", c.Embedder.Type))
	}
	if c.Chunker.Type != "sentence" {
		errs = append(errs, fmt.Errorf("chunker.type: unknown chunker %q", c.Chunker.Type))
	}
	if c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		errs = append(errs, errors.New("chunker.chunk_overlap: must be smaller than chunk_size"))
	}
	switch c.Index.Metric {
	case "cosine", "l2":
	default:
		errs = append(errs, fmt.Errorf("index.metric: unknown metric %q", c.Index.Metric))
	}
	if c.Index.Dir == "" {
		errs = append(errs, errors.New("index.dir: required"))
	}
	if c.Retriever.TopK <= 0 {
		errs = append(errs, errors.New("retriever.top_k: must be positive"))
	}
	switch c.Cache.Policy {
	case "none":
	case "size":
		if c.Cache.MaxEntries <= 0 {
			errs = append(errs, errors.New("cache.max_entries: required for size policy"))
		}
	case "ttl":
		if c.Cache.TTLSecs <= 0 {
			errs = append(errs, errors.New("cache.ttl_secs: required for ttl policy"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.policy: unknown policy %q", c.Cache.Policy))
	}
	if c.Summarizer.Type != "frequency" {
		errs = append(errs, fmt.Errorf("summarizer.type: unknown summarizer %q", c.Summarizer.Type))
	}
	return errors.Join(errs...)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "lexa", "config.yaml"), nil
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	cfg := &AppConfig{
		Datasets: DatasetConfig{Paths: []string{"contract_law_dataset.json", "land_law_dataset.json"}},
		Embedder: EmbedderConfig{Type: "tfidf"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.MaxAttempts == 0 {
			cfg.Embedder.OpenAI.MaxAttempts = 3
		}
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "sentence"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.ChunkOverlap == 0 {
		cfg.Chunker.ChunkOverlap = 200
	}
	if cfg.Index.Dir == "" {
		cfg.Index.Dir = "lexa_index"
	}
	if cfg.Index.Metric == "" {
		cfg.Index.Metric = "cosine"
	}
	if cfg.Index.Parallelism == 0 {
		cfg.Index.Parallelism = 4
	}
	if cfg.Retriever.TopK == 0 {
		cfg.Retriever.TopK = 3
	}
	if cfg.Generator.BaseURL == "" {
		cfg.Generator.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Generator.APIKeyEnv == "" {
		cfg.Generator.APIKeyEnv = "OPENROUTER_API_KEY"
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = "mistralai/mixtral-8x7b-instruct"
	}
	if cfg.Generator.Temperature == 0 {
		cfg.Generator.Temperature = 0.3
	}
	if cfg.Generator.MaxTokens == 0 {
		cfg.Generator.MaxTokens = 500
	}
	if cfg.Generator.TimeoutSecs == 0 {
		cfg.Generator.TimeoutSecs = 60
	}
	if cfg.Generator.MaxAttempts == 0 {
		cfg.Generator.MaxAttempts = 3
	}
	if cfg.Cache.Policy == "" {
		cfg.Cache.Policy = "none"
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "frequency"
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
}
