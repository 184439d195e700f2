package embed

import (
	"context"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder implements Embedder against the OpenAI embeddings API.
//
// Safe for concurrent use.
type OpenAIEmbedder struct {
	config *Config
	client *openai.Client
}

// NewOpenAI creates an OpenAI-backed embedder. A nil config uses
// DefaultOpenAIConfig with an empty key, which will fail on first call;
// callers should provide a key. APIURL, when set, overrides the default
// base URL for OpenAI-compatible endpoints.
func NewOpenAI(config *Config) *OpenAIEmbedder {
	if config == nil {
		config = DefaultOpenAIConfig("")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.APIURL != "" {
		clientConfig.BaseURL = config.APIURL
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return &OpenAIEmbedder{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

// Embed generates an embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one API call.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.config.Model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs",
			len(resp.Data), len(texts))
	}

	results := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if err := checkDimensions(e.config, data.Embedding); err != nil {
			return nil, err
		}
		results[data.Index] = data.Embedding
	}
	return results, nil
}

// Dimensions returns the configured embedding length.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.config.Dimensions
}

// Model returns the model name.
func (e *OpenAIEmbedder) Model() string {
	return e.config.Model
}
