package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"ragserver/pkg/xerr"
	"ragserver/pkg/zlog"

	"go.uber.org/zap"
)

const maxEmbedRetries = 3

// OllamaService is a hand-rolled HTTP client against a local model
// daemon's embeddings endpoint (Ollama's `/api/embeddings`), grounded
// on the pack's own OpenAI-compatible embeddings client and on the
// local-daemon assumption in the retrieved standalone RAG example.
// It is the process-wide singleton the orchestrator depends on.
type OllamaService struct {
	baseURL string
	model   string
	client  *http.Client

	mu  sync.RWMutex
	dim int
}

// NewOllamaService builds a Service bound to a single model daemon and
// model name. The dimension is unknown until the first successful
// embed call or an explicit WarmUp.
func NewOllamaService(baseURL, model string, timeout time.Duration) *OllamaService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OllamaService{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// WarmUp pays the model-load cost at startup rather than on the first
// request, and establishes Dimension(). A warm-up failure is fatal to
// process startup — the caller is expected to treat a non-nil return
// as such.
func (s *OllamaService) WarmUp(ctx context.Context) error {
	vec, err := s.embedOnce(ctx, "warmup")
	if err != nil {
		return fmt.Errorf("embedding warm-up failed: %w", err)
	}
	s.mu.Lock()
	s.dim = len(vec)
	s.mu.Unlock()
	zlog.Info("embedding service warmed up", zap.String("model", s.model), zap.Int("dim", len(vec)))
	return nil
}

// Ping reports whether the model daemon is reachable.
func (s *OllamaService) Ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Dimension returns the embedding dimension, constant after the first
// successful embed.
func (s *OllamaService) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Embed embeds a single piece of text.
func (s *OllamaService) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedOnce(ctx, text)
	if err != nil {
		return nil, xerr.EmbeddingFailed("embed failed", err)
	}
	s.mu.Lock()
	if s.dim == 0 {
		s.dim = len(vec)
	}
	s.mu.Unlock()
	return vec, nil
}

// EmbedBatch embeds each text in order, preserving input order in the
// output. Ollama's embeddings endpoint takes one prompt per call, so
// this issues them sequentially rather than pretending a batch API
// exists.
func (s *OllamaService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (s *OllamaService) embedOnce(ctx context.Context, text string) ([]float32, error) {
	type reqBody struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}
	type respBody struct {
		Embedding []float32 `json:"embedding"`
	}

	url := s.baseURL + "/api/embeddings"
	var lastErr error
	for attempt := 0; attempt <= maxEmbedRetries; attempt++ {
		data, err := json.Marshal(reqBody{Model: s.model, Prompt: text})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxEmbedRetries {
				time.Sleep(retryDelay(attempt))
				continue
			}
			return nil, lastErr
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("embedding daemon returned %s", resp.Status)
			if attempt < maxEmbedRetries {
				time.Sleep(retryDelay(attempt))
				continue
			}
			return nil, lastErr
		}
		if resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("embedding daemon returned %s", resp.Status)
		}

		payload, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		var out respBody
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, fmt.Errorf("decode embedding response: %w", err)
		}
		if len(out.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding returned")
		}
		return out.Embedding, nil
	}
	return nil, lastErr
}

func retryDelay(attempt int) time.Duration {
	base := 200 * time.Millisecond
	d := base << attempt
	if d > 3*time.Second {
		d = 3 * time.Second
	}
	return d
}
