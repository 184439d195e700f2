package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "mxbai-embed-large", cfg.Embedding.Model)
	assert.Equal(t, 1024, cfg.Embedding.Dimensions)
	assert.Equal(t, 30*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, 0.5, cfg.Graph.AutoConnectThreshold)
	assert.Equal(t, 5, cfg.Graph.SearchTopK)
	assert.Equal(t, 5, cfg.Graph.SuggestionLimit)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "./data", cfg.DataDir)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mindgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/mindgraph
embedding:
  provider: openai
  api_key: sk-test
  model: text-embedding-3-small
  dimensions: 1536
  timeout: 10s
graph:
  auto_connect_threshold: 0.7
  search_top_k: 3
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/mindgraph", cfg.DataDir)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
	assert.Equal(t, 10*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, 0.7, cfg.Graph.AutoConnectThreshold)
	assert.Equal(t, 3, cfg.Graph.SearchTopK)
	assert.Equal(t, 5, cfg.Graph.SuggestionLimit, "unset fields keep defaults")
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mindgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /from/file\n"), 0o600))

	t.Setenv("MINDGRAPH_DATA_DIR", "/from/env")
	t.Setenv("MINDGRAPH_EMBEDDING_DIMENSIONS", "768")
	t.Setenv("MINDGRAPH_AUTO_CONNECT_THRESHOLD", "0.82")
	t.Setenv("MINDGRAPH_EMBEDDING_TIMEOUT", "45")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.DataDir)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	assert.Equal(t, 0.82, cfg.Graph.AutoConnectThreshold)
	assert.Equal(t, 45*time.Second, cfg.Embedding.Timeout, "bare integers parse as seconds")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "cohere" }, "provider"},
		{"openai without key", func(c *Config) { c.Embedding.Provider = "openai" }, "api key"},
		{"zero dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }, "dimensions"},
		{"threshold out of range", func(c *Config) { c.Graph.AutoConnectThreshold = 1.5 }, "threshold"},
		{"zero top k", func(c *Config) { c.Graph.SearchTopK = 0 }, "top_k"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: [\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestStringOmitsAPIKey(t *testing.T) {
	cfg := Default()
	cfg.Embedding.APIKey = "sk-super-secret"
	assert.False(t, strings.Contains(cfg.String(), "sk-super-secret"))
}
