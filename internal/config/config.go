// Package config provides configuration loading and structs for the kotae server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Index      IndexConfig      `yaml:"index"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Query      QueryConfig      `yaml:"query"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the path of the local document catalog.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// EmbeddingConfig holds settings for the remote embedding provider.
type EmbeddingConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// GenerationConfig holds settings for the remote generation provider.
type GenerationConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// IndexConfig holds settings for the remote vector index service.
// Type selects the store implementation: "pinecone" (default) or "memory"
// (in-process, for development and tests).
type IndexConfig struct {
	Type       string `yaml:"type"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Name       string `yaml:"name"`
	Cloud      string `yaml:"cloud"`
	Region     string `yaml:"region"`
	ControlURL string `yaml:"control_url"`
}

// IngestConfig holds chunking settings.
type IngestConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// QueryConfig holds retrieval settings. ScoreCutoff drops results scoring
// below the cutoff; zero disables filtering.
type QueryConfig struct {
	TopK        int     `yaml:"top_k"`
	ScoreCutoff float64 `yaml:"score_cutoff"`
}

// WatchConfig holds drop-directory ingestion settings. PDFs appearing under
// Directories are ingested for UserID. Disabled when Directories is empty.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	UserID      string   `yaml:"user_id"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Validate checks that required provider credentials are present in the
// environment. Missing required configuration is a fatal startup condition.
func (c *Config) Validate() error {
	if os.Getenv(c.Embedding.APIKeyEnv) == "" {
		return fmt.Errorf("missing embedding provider credential in env %s", c.Embedding.APIKeyEnv)
	}
	if os.Getenv(c.Generation.APIKeyEnv) == "" {
		return fmt.Errorf("missing generation provider credential in env %s", c.Generation.APIKeyEnv)
	}
	if c.Index.Type == "pinecone" && os.Getenv(c.Index.APIKeyEnv) == "" {
		return fmt.Errorf("missing vector index credential in env %s", c.Index.APIKeyEnv)
	}
	if c.Index.Name == "" {
		return fmt.Errorf("index name is required")
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
