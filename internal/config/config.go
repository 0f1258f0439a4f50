package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	// AllowMissingKey permits keyless local endpoints such as Ollama.
	AllowMissingKey bool `yaml:"allow_missing_key"`
}

// HashingEmbedderConfig configures the offline hashing embedder.
type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type       string                 `yaml:"type"`
	OpenAI     *OpenAIEmbedderConfig  `yaml:"openai,omitempty"`
	Hashing    *HashingEmbedderConfig `yaml:"hashing,omitempty"`
	MaxRetries int                    `yaml:"max_retries"`
}

// GeneratorConfig configures the chat completions provider.
type GeneratorConfig struct {
	Type              string `yaml:"type"`
	BaseURL           string `yaml:"base_url"`
	APIKeyEnv         string `yaml:"api_key_env"`
	Model             string `yaml:"model"`
	SearchModel       string `yaml:"search_model"`
	SearchContextSize string `yaml:"search_context_size"`
	TimeoutSecs       int    `yaml:"timeout_secs"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// VectorStoreConfig selects where the knowledge base is persisted.
type VectorStoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// RouterConfig controls the knowledge base versus web search decision.
type RouterConfig struct {
	SimilarityThreshold *float64 `yaml:"similarity_threshold"`
	TopK                int      `yaml:"top_k"`
	MaxHistory          int      `yaml:"max_history"`
}

// DefaultSimilarityThreshold applies when similarity_threshold is absent.
const DefaultSimilarityThreshold = 0.4

// Threshold returns the configured threshold or the default.
func (r RouterConfig) Threshold() float64 {
	if r.SimilarityThreshold == nil {
		return DefaultSimilarityThreshold
	}
	return *r.SimilarityThreshold
}

// SummarizerConfig configures the scan report summary.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// ServerConfig configures `ragchat serve`.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	BodyLimitMB int    `yaml:"body_limit_mb"`
	// RescanSchedule is a cron schedule; empty disables periodic rescans.
	RescanSchedule string `yaml:"rescan_schedule"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	KnowledgeFolder string            `yaml:"knowledge_folder"`
	Embedder        EmbedderConfig    `yaml:"embedder"`
	Generator       GeneratorConfig   `yaml:"generator"`
	Chunker         ChunkerConfig     `yaml:"chunker"`
	VectorStore     VectorStoreConfig `yaml:"vector_store"`
	Router          RouterConfig      `yaml:"router"`
	Summarizer      SummarizerConfig  `yaml:"summarizer"`
	Server          ServerConfig      `yaml:"server"`
	Log             LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragchat/config.yaml and returns them.
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
	cfg := defaultConfig()
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

// Validate rejects values no component can work with.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "openai", "hashing":
	default:
		return fmt.Errorf("unknown embedder type %q", c.Embedder.Type)
	}
	switch c.Generator.Type {
	case "openai":
	default:
		return fmt.Errorf("unknown generator type %q", c.Generator.Type)
	}
	switch c.VectorStore.Backend {
	case "json", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown vector store backend %q", c.VectorStore.Backend)
	}
	switch c.Generator.SearchContextSize {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("search_context_size must be low, medium or high, got %q", c.Generator.SearchContextSize)
	}
	if t := c.Router.Threshold(); t <= 0 || t > 1 {
		return fmt.Errorf("similarity_threshold must be within (0, 1], got %v", t)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragchat", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.KnowledgeFolder == "" {
		cfg.KnowledgeFolder = "Knowledge Base"
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
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
	}
	if cfg.Embedder.Type == "hashing" {
		if cfg.Embedder.Hashing == nil {
			cfg.Embedder.Hashing = &HashingEmbedderConfig{}
		}
		if cfg.Embedder.Hashing.Dimension == 0 {
			cfg.Embedder.Hashing.Dimension = 512
		}
	}

	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "openai"
	}
	if cfg.Generator.APIKeyEnv == "" {
		cfg.Generator.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = "gpt-4o-mini"
	}
	if cfg.Generator.SearchModel == "" {
		cfg.Generator.SearchModel = "gpt-4o-mini-search-preview"
	}
	if cfg.Generator.SearchContextSize == "" {
		cfg.Generator.SearchContextSize = "medium"
	}
	if cfg.Generator.TimeoutSecs == 0 {
		cfg.Generator.TimeoutSecs = 60
	}

	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 300
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = 50
	}

	if cfg.VectorStore.Backend == "" {
		cfg.VectorStore.Backend = "json"
	}
	if cfg.VectorStore.Path == "" {
		switch cfg.VectorStore.Backend {
		case "sqlite":
			cfg.VectorStore.Path = "vector_store.db"
		default:
			cfg.VectorStore.Path = "vector_store.json"
		}
	}

	if cfg.Router.SimilarityThreshold == nil {
		t := DefaultSimilarityThreshold
		cfg.Router.SimilarityThreshold = &t
	}
	if cfg.Router.TopK == 0 {
		cfg.Router.TopK = 5
	}
	if cfg.Router.MaxHistory == 0 {
		cfg.Router.MaxHistory = 6
	}

	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":3000"
	}
	if cfg.Server.BodyLimitMB == 0 {
		cfg.Server.BodyLimitMB = 20
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
