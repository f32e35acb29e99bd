package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/andrejsstepanovs/docqa/logging"
	"github.com/andrejsstepanovs/docqa/models"
	fastshot "github.com/opus-domini/fast-shot"
)

var (
	ErrEmptyInput  = errors.New("input cannot be empty")
	ErrUnsupported = errors.New("operation not supported by provider")
)

var defaultBaseURLs = map[string]string{
	"huggingface": "https://router.huggingface.co",
	"litellm":     "http://localhost:4000",
	"ollama":      "http://localhost:11434",
}

// Options configures an inference Client.
type Options struct {
	Provider       string
	BaseURL        string
	Token          string
	EmbeddingModel string
	LLM            string
	ASRModel       string
	Temperature    float64
	MaxTokens      int
	Timeout        time.Duration
	RetryInterval  time.Duration
	Cache          *EmbeddingCache
}

// Client talks to an inference server for embeddings, chat completions and
// speech recognition.
type Client struct {
	opts  Options
	http  fastshot.ClientHttpMethods
	audio fastshot.ClientHttpMethods
}

func New(opts Options) (*Client, error) {
	base := opts.BaseURL
	if base == "" {
		var ok bool
		base, ok = defaultBaseURLs[opts.Provider]
		if !ok {
			return nil, fmt.Errorf("unsupported client: %s", opts.Provider)
		}
	} else if _, ok := defaultBaseURLs[opts.Provider]; !ok {
		return nil, fmt.Errorf("unsupported client: %s", opts.Provider)
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.RetryInterval == 0 {
		opts.RetryInterval = 2 * time.Second
	}
	opts.BaseURL = strings.TrimRight(base, "/")

	return &Client{
		opts:  opts,
		http:  httpClient(opts.BaseURL, opts.Token, opts.Timeout, "application/json"),
		audio: httpClient(opts.BaseURL, opts.Token, opts.Timeout, ""),
	}, nil
}

func httpClient(baseURL, token string, timeout time.Duration, contentType string) fastshot.ClientHttpMethods {
	c := fastshot.NewClient(baseURL)
	if token != "" {
		c.Auth().BearerToken(token)
	}

	c.Config().SetTimeout(timeout).
		Config().SetFollowRedirects(true)
	if contentType != "" {
		c.Header().Add("Content-Type", contentType)
	}
	return c.Build()
}

// Embeddings returns one vector per input text, in input order. Cached vectors
// are reused and only the missing texts are sent to the server.
func (c *Client) Embeddings(ctx context.Context, texts []string) ([]models.Embedding, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	for _, t := range texts {
		if t == "" {
			return nil, ErrEmptyInput
		}
	}

	out := make([]models.Embedding, len(texts))
	var missing []string
	var missingIdx []int
	for i, t := range texts {
		if c.opts.Cache != nil {
			if emb, ok := c.opts.Cache.Get(c.opts.EmbeddingModel, t); ok {
				out[i] = emb
				continue
			}
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.fetchEmbeddings(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(missing) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(missing), len(fetched))
	}

	for j, emb := range fetched {
		out[missingIdx[j]] = emb
		if c.opts.Cache != nil {
			if err := c.opts.Cache.Put(c.opts.EmbeddingModel, missing[j], emb); err != nil {
				logging.Warnf("Failed to cache embedding: %v", err)
			}
		}
	}
	return out, nil
}

func (c *Client) fetchEmbeddings(ctx context.Context, texts []string) ([]models.Embedding, error) {
	var body any
	var path string
	switch c.opts.Provider {
	case "huggingface":
		path = "/hf-inference/models/" + modelPath(c.opts.EmbeddingModel) + "/pipeline/feature-extraction"
		body = models.FeatureExtractionRequest{Inputs: texts}
	case "litellm":
		path = "/v1/embeddings"
		body = models.EmbeddingRequest{Model: c.opts.EmbeddingModel, Input: texts}
	case "ollama":
		path = "/api/embed"
		body = models.EmbeddingRequest{Model: c.opts.EmbeddingModel, Input: texts}
	default:
		return nil, fmt.Errorf("unsupported client: %s", c.opts.Provider)
	}

	resp, err := c.http.
		POST(path).
		Context().Set(ctx).
		Header().Add("Accept", "application/json").
		Retry().SetExponentialBackoff(c.opts.RetryInterval, 4, 2.0).
		Body().AsJSON(body).
		Send()
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body().Close()

	if c.opts.Provider == "huggingface" {
		var res []models.Embedding
		if err := parseHTTPResponse(*resp, &res); err != nil {
			return nil, err
		}
		return res, nil
	}

	var res models.EmbeddingResponse
	if err := parseHTTPResponse(*resp, &res); err != nil {
		return nil, err
	}
	return res.GetEmbeddings(), nil
}

// Chat sends a chat completion request and returns the first choice.
func (c *Client) Chat(ctx context.Context, messages []models.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", ErrEmptyInput
	}

	req := models.ChatRequest{
		Model:       c.opts.LLM,
		Messages:    messages,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	}

	resp, err := c.http.
		POST("/v1/chat/completions").
		Context().Set(ctx).
		Header().Add("Accept", "application/json").
		Retry().SetExponentialBackoff(c.opts.RetryInterval, 3, 2.0).
		Body().AsJSON(req).
		Send()
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body().Close()

	var res models.ChatResponse
	if err := parseHTTPResponse(*resp, &res); err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return res.Choices[0].Message.Content, nil
}

// Transcribe runs automatic speech recognition on an audio payload.
func (c *Client) Transcribe(ctx context.Context, audio []byte, contentType string) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyInput
	}
	if c.opts.Provider != "huggingface" {
		return "", fmt.Errorf("transcription with %s: %w", c.opts.Provider, ErrUnsupported)
	}

	resp, err := c.audio.
		POST("/hf-inference/models/"+modelPath(c.opts.ASRModel)).
		Context().Set(ctx).
		Header().Add("Content-Type", contentType).
		Header().Add("Accept", "application/json").
		Retry().SetExponentialBackoff(c.opts.RetryInterval, 3, 2.0).
		Body().AsReader(bytes.NewReader(audio)).
		Send()
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body().Close()

	var res models.TranscriptionResponse
	if err := parseHTTPResponse(*resp, &res); err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Text), nil
}

func modelPath(model string) string {
	parts := strings.Split(model, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func parseHTTPResponse[T any](resp fastshot.Response, result *T) error {
	if resp.Status().IsError() {
		msg, err := resp.Body().AsString()
		if err != nil {
			return fmt.Errorf("failed to read error response: %w", err)
		}
		return fmt.Errorf("status %d: %s", resp.Status().Code(), msg)
	}

	err := resp.Body().AsJSON(result)
	if err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}
