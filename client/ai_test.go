package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andrejsstepanovs/docqa/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, provider, baseURL string, cache *EmbeddingCache) *Client {
	t.Helper()
	c, err := New(Options{
		Provider:       provider,
		BaseURL:        baseURL,
		Token:          "hf_test",
		EmbeddingModel: "sentence-transformers/all-MiniLM-L6-v2",
		LLM:            "HuggingFaceTB/SmolLM3-3B",
		ASRModel:       "openai/whisper-large-v3",
		Temperature:    0.6,
		MaxTokens:      500,
		Timeout:        5 * time.Second,
		RetryInterval:  time.Millisecond,
		Cache:          cache,
	})
	require.NoError(t, err)
	return c
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(Options{Provider: "openai"})
	assert.Error(t, err)

	_, err = New(Options{Provider: "openai", BaseURL: "http://localhost"})
	assert.Error(t, err)
}

func TestEmbeddings_Providers(t *testing.T) {
	testCases := []struct {
		name     string
		provider string
		path     string
		respond  func(w http.ResponseWriter, inputs []string)
		decode   func(t *testing.T, body []byte) []string
	}{
		{
			name:     "huggingface feature extraction",
			provider: "huggingface",
			path:     "/hf-inference/models/sentence-transformers/all-MiniLM-L6-v2/pipeline/feature-extraction",
			respond: func(w http.ResponseWriter, inputs []string) {
				out := make([][]float64, len(inputs))
				for i := range inputs {
					out[i] = []float64{float64(i), 1}
				}
				_ = json.NewEncoder(w).Encode(out)
			},
			decode: func(t *testing.T, body []byte) []string {
				var req models.FeatureExtractionRequest
				require.NoError(t, json.Unmarshal(body, &req))
				return req.Inputs
			},
		},
		{
			name:     "litellm data shuffled",
			provider: "litellm",
			path:     "/v1/embeddings",
			respond: func(w http.ResponseWriter, inputs []string) {
				res := models.EmbeddingResponse{}
				for i := len(inputs) - 1; i >= 0; i-- {
					res.Data = append(res.Data, models.EmbeddingData{Index: i, Embedding: models.Embedding{float64(i), 1}})
				}
				_ = json.NewEncoder(w).Encode(res)
			},
			decode: func(t *testing.T, body []byte) []string {
				var req models.EmbeddingRequest
				require.NoError(t, json.Unmarshal(body, &req))
				assert.Equal(t, "sentence-transformers/all-MiniLM-L6-v2", req.Model)
				return req.Input
			},
		},
		{
			name:     "ollama embed",
			provider: "ollama",
			path:     "/api/embed",
			respond: func(w http.ResponseWriter, inputs []string) {
				res := models.EmbeddingResponse{}
				for i := range inputs {
					res.Embeddings = append(res.Embeddings, models.Embedding{float64(i), 1})
				}
				_ = json.NewEncoder(w).Encode(res)
			},
			decode: func(t *testing.T, body []byte) []string {
				var req models.EmbeddingRequest
				require.NoError(t, json.Unmarshal(body, &req))
				return req.Input
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tc.path, r.URL.Path)
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))
				body, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				tc.respond(w, tc.decode(t, body))
			}))
			defer server.Close()

			c := newTestClient(t, tc.provider, server.URL, nil)
			embs, err := c.Embeddings(context.Background(), []string{"first", "second", "third"})
			require.NoError(t, err)
			require.Len(t, embs, 3)
			for i, emb := range embs {
				assert.Equal(t, models.Embedding{float64(i), 1}, emb)
			}
		})
	}
}

func TestEmbeddings_EmptyInput(t *testing.T) {
	c := newTestClient(t, "huggingface", "http://127.0.0.1:1", nil)

	_, err := c.Embeddings(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = c.Embeddings(context.Background(), []string{"ok", ""})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestEmbeddings_UsesCache(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req models.FeatureExtractionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		out := make([][]float64, len(req.Inputs))
		for i := range req.Inputs {
			out[i] = []float64{0.5, 0.25}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer server.Close()

	cache, err := NewEmbeddingCache(t.TempDir())
	require.NoError(t, err)
	c := newTestClient(t, "huggingface", server.URL, cache)

	_, err = c.Embeddings(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	embs, err := c.Embeddings(context.Background(), []string{"beta", "alpha"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "cached texts must not hit the server")
	assert.Equal(t, models.Embedding{0.5, 0.25}, embs[0])
}

func TestEmbeddings_CacheWriteFailureKeepsVectors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([][]float64{{0.5, 0.25}})
	}))
	defer server.Close()

	root := t.TempDir()
	cache, err := NewEmbeddingCache(root)
	require.NoError(t, err)
	// a plain file where the model directory belongs makes every write fail
	blocker := filepath.Join(root, "embeddings", modelDir("sentence-transformers/all-MiniLM-L6-v2"))
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	c := newTestClient(t, "huggingface", server.URL, cache)
	embs, err := c.Embeddings(context.Background(), []string{"alpha"})
	require.NoError(t, err)
	assert.Equal(t, []models.Embedding{{0.5, 0.25}}, embs)
}

func TestEmbeddings_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([][]float64{{1, 2}})
	}))
	defer server.Close()

	c := newTestClient(t, "huggingface", server.URL, nil)
	_, err := c.Embeddings(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "expected 2 embeddings")
}

func TestEmbeddings_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("model not loaded"))
	}))
	defer server.Close()

	c := newTestClient(t, "huggingface", server.URL, nil)
	_, err := c.Embeddings(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req models.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "HuggingFaceTB/SmolLM3-3B", req.Model)
		assert.InDelta(t, 0.6, req.Temperature, 1e-9)
		assert.Equal(t, 500, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "Hello", req.Messages[0].Content)

		_ = json.NewEncoder(w).Encode(models.ChatResponse{
			ID:      "mock-123",
			Choices: []models.ChatChoice{{Message: models.ChatMessage{Role: "assistant", Content: "Hi there!"}}},
		})
	}))
	defer server.Close()

	c := newTestClient(t, "huggingface", server.URL, nil)
	text, err := c.Chat(context.Background(), []models.ChatMessage{{Role: "user", Content: "Hello"}})
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", text)
}

func TestChat_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.ChatResponse{ID: "empty"})
	}))
	defer server.Close()

	c := newTestClient(t, "huggingface", server.URL, nil)
	_, err := c.Chat(context.Background(), []models.ChatMessage{{Role: "user", Content: "Hello"}})
	assert.Error(t, err)
}

func TestTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/hf-inference/models/openai/whisper-large-v3", r.URL.Path)
		assert.Equal(t, "audio/webm", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, []byte("fake-audio"), body)
		_ = json.NewEncoder(w).Encode(models.TranscriptionResponse{Text: "  bonjour tout le monde "})
	}))
	defer server.Close()

	c := newTestClient(t, "huggingface", server.URL, nil)
	text, err := c.Transcribe(context.Background(), []byte("fake-audio"), "audio/webm")
	require.NoError(t, err)
	assert.Equal(t, "bonjour tout le monde", text)
}

func TestTranscribe_Unsupported(t *testing.T) {
	c := newTestClient(t, "ollama", "http://127.0.0.1:1", nil)
	_, err := c.Transcribe(context.Background(), []byte("x"), "audio/webm")
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = c.Transcribe(context.Background(), nil, "audio/webm")
	assert.ErrorIs(t, err, ErrEmptyInput)
}
