package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ollamaTestServer(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "/api/embeddings", r.URL.Path)

		vec := make([]float32, dims)
		for i := range vec {
			vec[i] = float32(len(req.Prompt)+i) * 0.01
		}
		json.NewEncoder(w).Encode(ollamaResponse{Embedding: vec})
	}))
}

func TestOllamaEmbed(t *testing.T) {
	t.Run("returns vector of configured length", func(t *testing.T) {
		srv := ollamaTestServer(t, 8)
		defer srv.Close()

		embedder := NewOllama(&Config{
			Provider:   "ollama",
			APIURL:     srv.URL,
			APIPath:    "/api/embeddings",
			Model:      "test-model",
			Dimensions: 8,
			Timeout:    5 * time.Second,
		})

		vec, err := embedder.Embed(context.Background(), "hello graphs")
		require.NoError(t, err)
		assert.Len(t, vec, 8)
	})

	t.Run("empty text still embeds", func(t *testing.T) {
		srv := ollamaTestServer(t, 4)
		defer srv.Close()

		embedder := NewOllama(&Config{
			APIURL: srv.URL, APIPath: "/api/embeddings",
			Model: "test-model", Dimensions: 4, Timeout: 5 * time.Second,
		})

		vec, err := embedder.Embed(context.Background(), "")
		require.NoError(t, err)
		assert.Len(t, vec, 4)
	})

	t.Run("dimension mismatch rejected", func(t *testing.T) {
		srv := ollamaTestServer(t, 4)
		defer srv.Close()

		embedder := NewOllama(&Config{
			APIURL: srv.URL, APIPath: "/api/embeddings",
			Model: "test-model", Dimensions: 16, Timeout: 5 * time.Second,
		})

		_, err := embedder.Embed(context.Background(), "hello")
		assert.ErrorContains(t, err, "expected 16")
	})

	t.Run("server error surfaces", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
		}))
		defer srv.Close()

		embedder := NewOllama(&Config{
			APIURL: srv.URL, APIPath: "/api/embeddings",
			Model: "test-model", Timeout: 5 * time.Second,
		})

		_, err := embedder.Embed(context.Background(), "hello")
		assert.ErrorContains(t, err, "500")
	})

	t.Run("unreachable provider fails rather than returning zeros", func(t *testing.T) {
		embedder := NewOllama(&Config{
			APIURL: "http://127.0.0.1:1", APIPath: "/api/embeddings",
			Model: "test-model", Timeout: 200 * time.Millisecond,
		})

		vec, err := embedder.Embed(context.Background(), "hello")
		assert.Error(t, err)
		assert.Nil(t, vec)
	})

	t.Run("batch embeds each text", func(t *testing.T) {
		srv := ollamaTestServer(t, 4)
		defer srv.Close()

		embedder := NewOllama(&Config{
			APIURL: srv.URL, APIPath: "/api/embeddings",
			Model: "test-model", Dimensions: 4, Timeout: 5 * time.Second,
		})

		vecs, err := embedder.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
		require.NoError(t, err)
		require.Len(t, vecs, 3)
		for _, vec := range vecs {
			assert.Len(t, vec, 4)
		}
	})
}

// openAITestServer mimics the OpenAI embeddings endpoint closely enough for
// the go-openai client.
func openAITestServer(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type datum struct {
			Object    string    `json:"object"`
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]datum, len(req.Input))
		for i, text := range req.Input {
			vec := make([]float32, dims)
			for j := range vec {
				vec[j] = float32(len(text)+j) * 0.01
			}
			data[i] = datum{Object: "embedding", Index: i, Embedding: vec}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
		})
	}))
}

func TestOpenAIEmbed(t *testing.T) {
	t.Run("configured timeout still reaches the endpoint", func(t *testing.T) {
		srv := openAITestServer(t, 8)
		defer srv.Close()

		embedder := NewOpenAI(&Config{
			Provider:   "openai",
			APIURL:     srv.URL,
			APIKey:     "sk-test",
			Model:      "text-embedding-3-small",
			Dimensions: 8,
			Timeout:    5 * time.Second,
		})

		vec, err := embedder.Embed(context.Background(), "hello graphs")
		require.NoError(t, err)
		assert.Len(t, vec, 8)
	})

	t.Run("batch preserves input order", func(t *testing.T) {
		srv := openAITestServer(t, 4)
		defer srv.Close()

		embedder := NewOpenAI(&Config{
			APIURL: srv.URL, APIKey: "sk-test",
			Model: "text-embedding-3-small", Dimensions: 4, Timeout: 5 * time.Second,
		})

		vecs, err := embedder.EmbedBatch(context.Background(), []string{"a", "bb"})
		require.NoError(t, err)
		require.Len(t, vecs, 2)
		assert.NotEqual(t, vecs[0], vecs[1], "vectors track their own input")
	})

	t.Run("dimension mismatch rejected", func(t *testing.T) {
		srv := openAITestServer(t, 4)
		defer srv.Close()

		embedder := NewOpenAI(&Config{
			APIURL: srv.URL, APIKey: "sk-test",
			Model: "text-embedding-3-small", Dimensions: 16, Timeout: 5 * time.Second,
		})

		_, err := embedder.Embed(context.Background(), "hello")
		assert.ErrorContains(t, err, "expected 16")
	})
}

func TestNewEmbedder(t *testing.T) {
	t.Run("ollama", func(t *testing.T) {
		e, err := NewEmbedder(DefaultOllamaConfig())
		require.NoError(t, err)
		assert.IsType(t, &OllamaEmbedder{}, e)
		assert.Equal(t, 1024, e.Dimensions())
		assert.Equal(t, "mxbai-embed-large", e.Model())
	})

	t.Run("openai", func(t *testing.T) {
		e, err := NewEmbedder(DefaultOpenAIConfig("sk-test"))
		require.NoError(t, err)
		assert.IsType(t, &OpenAIEmbedder{}, e)
		assert.Equal(t, 1536, e.Dimensions())
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewEmbedder(&Config{Provider: "carrier-pigeon"})
		assert.ErrorContains(t, err, "unknown provider")
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := NewEmbedder(nil)
		assert.Error(t, err)
	})
}
