// Package config loads MindGraph configuration from a YAML file with
// environment variable overrides.
//
// Configuration resolves in three layers:
//  1. Built-in defaults (lowest)
//  2. YAML config file, if one exists
//  3. Environment variables prefixed with MINDGRAPH_ (highest)
//
// All values have sensible defaults, so Load can be called with an empty
// path and no environment set.
//
// Example:
//
//	cfg, err := config.Load("mindgraph.yaml")
//	if err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//	fmt.Printf("data dir: %s\n", cfg.DataDir)
//
// Environment Variables:
//   - MINDGRAPH_DATA_DIR="./data"
//   - MINDGRAPH_EMBEDDING_PROVIDER="ollama" or "openai"
//   - MINDGRAPH_EMBEDDING_MODEL="mxbai-embed-large"
//   - MINDGRAPH_EMBEDDING_API_URL="http://localhost:11434"
//   - MINDGRAPH_EMBEDDING_API_KEY="sk-..."
//   - MINDGRAPH_EMBEDDING_DIMENSIONS=1024
//   - MINDGRAPH_EMBEDDING_TIMEOUT=30s
//   - MINDGRAPH_AUTO_CONNECT_THRESHOLD=0.5
//   - MINDGRAPH_SEARCH_TOP_K=5
//   - MINDGRAPH_SUGGESTION_LIMIT=5
//   - MINDGRAPH_LOG_LEVEL="info"
//   - MINDGRAPH_LOG_FORMAT="json" or "console"
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all MindGraph settings.
type Config struct {
	// DataDir is the directory for on-disk storage.
	DataDir string `yaml:"data_dir"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Graph configures search and auto-connect behavior.
	Graph GraphConfig `yaml:"graph"`

	// Logging configures the logger.
	Logging LoggingConfig `yaml:"logging"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the backend: "ollama" or "openai".
	Provider string `yaml:"provider"`
	// APIURL is the provider endpoint.
	APIURL string `yaml:"api_url"`
	// APIKey authenticates against hosted providers. Prefer the
	// MINDGRAPH_EMBEDDING_API_KEY environment variable over the file.
	APIKey string `yaml:"api_key"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions is the expected vector size.
	Dimensions int `yaml:"dimensions"`
	// Timeout bounds a single provider call.
	Timeout time.Duration `yaml:"timeout"`
}

// GraphConfig holds graph behavior settings.
type GraphConfig struct {
	// AutoConnectThreshold is the minimum cosine similarity for a
	// suggested connection.
	AutoConnectThreshold float64 `yaml:"auto_connect_threshold"`
	// SearchTopK is the default result count when a search does not
	// specify one.
	SearchTopK int `yaml:"search_top_k"`
	// SuggestionLimit caps suggestions returned per insert.
	SuggestionLimit int `yaml:"suggestion_limit"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format: json or console.
	Format string `yaml:"format"`
}

// Default returns the built-in defaults: a local Ollama provider with
// mxbai-embed-large and conservative graph settings.
func Default() *Config {
	return &Config{
		DataDir: "./data",
		Embedding: EmbeddingConfig{
			Provider:   "ollama",
			APIURL:     "http://localhost:11434",
			Model:      "mxbai-embed-large",
			Dimensions: 1024,
			Timeout:    30 * time.Second,
		},
		Graph: GraphConfig{
			AutoConnectThreshold: 0.5,
			SearchTopK:           5,
			SuggestionLimit:      5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty or the file does not exist), and MINDGRAPH_* environment
// variables, then validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Missing file is fine, defaults plus env apply.
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DataDir = getEnv("MINDGRAPH_DATA_DIR", c.DataDir)

	c.Embedding.Provider = getEnv("MINDGRAPH_EMBEDDING_PROVIDER", c.Embedding.Provider)
	c.Embedding.APIURL = getEnv("MINDGRAPH_EMBEDDING_API_URL", c.Embedding.APIURL)
	c.Embedding.APIKey = getEnv("MINDGRAPH_EMBEDDING_API_KEY", c.Embedding.APIKey)
	c.Embedding.Model = getEnv("MINDGRAPH_EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.Dimensions = getEnvInt("MINDGRAPH_EMBEDDING_DIMENSIONS", c.Embedding.Dimensions)
	c.Embedding.Timeout = getEnvDuration("MINDGRAPH_EMBEDDING_TIMEOUT", c.Embedding.Timeout)

	c.Graph.AutoConnectThreshold = getEnvFloat("MINDGRAPH_AUTO_CONNECT_THRESHOLD", c.Graph.AutoConnectThreshold)
	c.Graph.SearchTopK = getEnvInt("MINDGRAPH_SEARCH_TOP_K", c.Graph.SearchTopK)
	c.Graph.SuggestionLimit = getEnvInt("MINDGRAPH_SUGGESTION_LIMIT", c.Graph.SuggestionLimit)

	c.Logging.Level = getEnv("MINDGRAPH_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("MINDGRAPH_LOG_FORMAT", c.Logging.Format)
}

// Validate checks the configuration for invalid values. Call it before use;
// Load already does.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}

	switch c.Embedding.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unknown embedding provider: %q", c.Embedding.Provider)
	}
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		return fmt.Errorf("openai provider requires an api key")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("invalid embedding dimensions: %d", c.Embedding.Dimensions)
	}
	if c.Embedding.Timeout <= 0 {
		return fmt.Errorf("invalid embedding timeout: %s", c.Embedding.Timeout)
	}

	if c.Graph.AutoConnectThreshold < -1 || c.Graph.AutoConnectThreshold > 1 {
		return fmt.Errorf("auto_connect_threshold must be in [-1, 1], got %g", c.Graph.AutoConnectThreshold)
	}
	if c.Graph.SearchTopK <= 0 {
		return fmt.Errorf("search_top_k must be positive, got %d", c.Graph.SearchTopK)
	}
	if c.Graph.SuggestionLimit <= 0 {
		return fmt.Errorf("suggestion_limit must be positive, got %d", c.Graph.SuggestionLimit)
	}

	return nil
}

// String returns a representation safe for logging: the API key is never
// included.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{DataDir: %s, Provider: %s, Model: %s, Dims: %d, Threshold: %g}",
		c.DataDir,
		c.Embedding.Provider, c.Embedding.Model, c.Embedding.Dimensions,
		c.Graph.AutoConnectThreshold,
	)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

// ZapLevel maps the configured level to a string zap understands, falling
// back to info for unknown values.
func (l LoggingConfig) ZapLevel() string {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
		return strings.ToLower(l.Level)
	default:
		return "info"
	}
}
