// Package embed provides embedding provider clients for the memory graph.
//
// The store consumes embeddings through the narrow Embedder interface and
// never inspects the model behind it. Two providers are supported:
//
//   - Ollama: local open-source models (mxbai-embed-large, nomic-embed-text)
//   - OpenAI: cloud API (text-embedding-3-small, text-embedding-3-large)
//
// Providers must report failure as an error; a zero vector is never a valid
// substitute for a failed call. Within a session the same text is assumed to
// produce the same vector.
//
// Example:
//
//	embedder := embed.NewOllama(embed.DefaultOllamaConfig())
//	vec, err := embedder.Embed(ctx, "graph databases store relationships")
//	if err != nil {
//		return err
//	}
//	fmt.Println(len(vec)) // 1024 for mxbai-embed-large
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Embedder generates vector embeddings from text.
//
// Implementations must be safe for concurrent use and must honor context
// cancellation, since callers embed before taking any write locks.
type Embedder interface {
	// Embed generates the embedding for a single text. An empty string is
	// a valid input; the provider decides what vector it maps to.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector length.
	Dimensions() int

	// Model returns the model name.
	Model() string
}

// Config holds embedding provider configuration.
type Config struct {
	Provider   string        // "ollama" or "openai"
	APIURL     string        // base URL, e.g. http://localhost:11434
	APIPath    string        // endpoint path, e.g. /api/embeddings
	APIKey     string        // OpenAI only
	Model      string        // e.g. mxbai-embed-large
	Dimensions int           // expected vector length, validated per response
	Timeout    time.Duration // per-request bound
}

// DefaultOllamaConfig returns configuration for a local Ollama instance
// running mxbai-embed-large (1024 dimensions).
func DefaultOllamaConfig() *Config {
	return &Config{
		Provider:   "ollama",
		APIURL:     "http://localhost:11434",
		APIPath:    "/api/embeddings",
		Model:      "mxbai-embed-large",
		Dimensions: 1024,
		Timeout:    30 * time.Second,
	}
}

// DefaultOpenAIConfig returns configuration for OpenAI's
// text-embedding-3-small (1536 dimensions).
func DefaultOpenAIConfig(apiKey string) *Config {
	return &Config{
		Provider:   "openai",
		APIKey:     apiKey,
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		Timeout:    30 * time.Second,
	}
}

// NewEmbedder creates an Embedder from a Config based on its Provider field.
func NewEmbedder(config *Config) (Embedder, error) {
	if config == nil {
		return nil, fmt.Errorf("embed: config is required")
	}
	switch config.Provider {
	case "ollama":
		return NewOllama(config), nil
	case "openai":
		return NewOpenAI(config), nil
	default:
		return nil, fmt.Errorf("embed: unknown provider %q", config.Provider)
	}
}

// OllamaEmbedder implements Embedder against the Ollama HTTP API.
//
// Safe for concurrent use.
type OllamaEmbedder struct {
	config *Config
	client *http.Client
}

// NewOllama creates an Ollama-backed embedder. A nil config uses
// DefaultOllamaConfig.
func NewOllama(config *Config) *OllamaEmbedder {
	if config == nil {
		config = DefaultOllamaConfig()
	}
	resolved := *config
	if resolved.APIPath == "" {
		resolved.APIPath = "/api/embeddings"
	}
	return &OllamaEmbedder{
		config: &resolved,
		client: &http.Client{Timeout: resolved.Timeout},
	}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates an embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaRequest{Model: e.config.Model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := e.config.APIURL + e.config.APIPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if err := checkDimensions(e.config, decoded.Embedding); err != nil {
		return nil, err
	}
	return decoded.Embedding, nil
}

// EmbedBatch generates embeddings for multiple texts, one request per text.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		results[i] = embedding
	}
	return results, nil
}

// Dimensions returns the configured embedding length.
func (e *OllamaEmbedder) Dimensions() int {
	return e.config.Dimensions
}

// Model returns the model name.
func (e *OllamaEmbedder) Model() string {
	return e.config.Model
}

// checkDimensions validates a provider response against the configured
// vector length. A Dimensions of zero disables the check.
func checkDimensions(config *Config, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("provider returned an empty embedding")
	}
	if config.Dimensions > 0 && len(vec) != config.Dimensions {
		return fmt.Errorf("provider returned %d dimensions, expected %d",
			len(vec), config.Dimensions)
	}
	return nil
}
