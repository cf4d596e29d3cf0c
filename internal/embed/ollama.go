package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	fierrors "github.com/Aman-CERP/fileindex/internal/errors"
	"github.com/Aman-CERP/fileindex/pkg/version"
)

const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"

	// OllamaConnectTimeout bounds the startup model lookup.
	OllamaConnectTimeout = 5 * time.Second

	// OllamaPoolSize sizes the HTTP connection pool. Matches the default
	// worker count.
	OllamaPoolSize = 4
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	Host  string
	Model string

	// Dimensions overrides detection when non-zero.
	Dimensions int

	BatchSize int

	// Timeout applies to each HTTP request.
	Timeout time.Duration

	// Retry controls backoff for transient failures.
	Retry fierrors.RetryConfig

	// Breaker fails fast once the service has failed repeatedly. Nil
	// creates one with default settings.
	Breaker *fierrors.CircuitBreaker

	PoolSize int

	// SkipHealthCheck skips model lookup and dimension detection.
	SkipHealthCheck bool
}

// DefaultOllamaConfig returns defaults for a local Ollama.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:      DefaultOllamaHost,
		Model:     DefaultOllamaModel,
		BatchSize: DefaultBatchSize,
		Timeout:   DefaultTimeout,
		Retry:     fierrors.DefaultRetryConfig(),
		PoolSize:  OllamaPoolSize,
	}
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// OllamaEmbedder calls Ollama's /api/embed endpoint.
type OllamaEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    OllamaConfig
	breaker   *fierrors.CircuitBreaker
	modelName string
	dims      int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder connects to Ollama, resolves the model and detects its
// dimension.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	def := DefaultOllamaConfig()
	if cfg.Host == "" {
		cfg.Host = def.Host
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = def.PoolSize
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = def.Retry
	}
	if cfg.Retry.RetryIf == nil {
		cfg.Retry.RetryIf = fierrors.IsRetryable
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize * 2,
		IdleConnTimeout:     30 * time.Second,
	}

	breaker := cfg.Breaker
	if breaker == nil {
		breaker = fierrors.NewCircuitBreaker("ollama")
	}

	e := &OllamaEmbedder{
		// Timeouts are per request via context.
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		breaker:   breaker,
		modelName: cfg.Model,
		dims:      cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, OllamaConnectTimeout+cfg.Timeout)
		defer cancel()

		name, err := e.findModel(checkCtx)
		if err != nil {
			transport.CloseIdleConnections()
			return nil, err
		}
		e.modelName = name

		if e.dims == 0 {
			vecs, err := e.doEmbed(checkCtx, []string{"dimension detection"})
			if err != nil {
				transport.CloseIdleConnections()
				return nil, fmt.Errorf("detect embedding dimensions: %w", err)
			}
			e.dims = len(vecs[0])
		}
	}
	if e.dims == 0 {
		transport.CloseIdleConnections()
		return nil, fierrors.ValidationError("embedding dimensions unknown: set embeddings.dimensions", nil)
	}

	slog.Debug("ollama embedder ready",
		slog.String("host", cfg.Host),
		slog.String("model", e.modelName),
		slog.Int("dimensions", e.dims))
	return e, nil
}

// findModel matches the configured model against /api/tags, accepting the
// base name without a tag ("nomic-embed-text" matches "nomic-embed-text:latest").
func (e *OllamaEmbedder) findModel(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", statusError(resp.StatusCode, body)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return "", fmt.Errorf("decode model list: %w", err)
	}

	want := strings.ToLower(e.config.Model)
	wantBase, _, _ := strings.Cut(want, ":")
	for _, m := range tags.Models {
		name := strings.ToLower(m.Name)
		base, _, _ := strings.Cut(name, ":")
		if name == want || base == want || (want == wantBase && base == wantBase) {
			return m.Name, nil
		}
	}
	return "", fierrors.New(fierrors.ErrCodeModelNotFound,
		fmt.Sprintf("embedding model %q is not installed", e.config.Model), nil).
		WithSuggestion(fmt.Sprintf("Run: ollama pull %s", e.config.Model))
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends non-blank texts in batches of BatchSize. Blank texts get
// zero vectors without a request.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, errClosed
	}

	results := make([][]float32, len(texts))
	var idx []int
	var pending []string
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, e.dims)
			continue
		}
		idx = append(idx, i)
		pending = append(pending, text)
	}

	for start := 0; start < len(pending); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(pending))
		vecs, err := e.embedWithRetry(ctx, pending[start:end])
		if err != nil {
			return nil, err
		}
		for j, vec := range vecs {
			results[idx[start+j]] = vec
		}
	}
	return results, nil
}

// embedWithRetry runs one request through the breaker with backoff.
// An open circuit is not retried.
func (e *OllamaEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	attempt := 0
	vecs, err := fierrors.RetryWithResult(ctx, e.config.Retry, func() ([][]float32, error) {
		attempt++
		out, err := fierrors.CircuitExecute(e.breaker, func() ([][]float32, error) {
			reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
			defer cancel()
			return e.doEmbed(reqCtx, texts)
		})
		if err != nil {
			slog.Debug("embedding attempt failed",
				slog.Int("attempt", attempt),
				slog.Int("texts", len(texts)),
				slog.String("error", err.Error()))
		}
		return out, err
	})
	if err == nil {
		return vecs, nil
	}
	if errors.Is(err, fierrors.ErrCircuitOpen) {
		return nil, fierrors.New(fierrors.ErrCodeNetworkUnavailable, "embedding service circuit open", err)
	}
	if fierrors.GetCode(err) != "" {
		return nil, err
	}
	return nil, fierrors.New(fierrors.ErrCodeEmbeddingFailed, "embedding request failed", err)
}

func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.modelName, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, statusError(resp.StatusCode, respBody)
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		if e.dims != 0 && len(emb) != e.dims {
			return nil, fierrors.New(fierrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("model returned %d dimensions, expected %d", len(emb), e.dims), nil)
		}
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		out[i] = normalizeVector(vec)
	}
	return out, nil
}

// classifyTransportError marks timeouts and refused connections retryable.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fierrors.New(fierrors.ErrCodeNetworkTimeout, "embedding request timed out", err)
	}
	return fierrors.New(fierrors.ErrCodeNetworkUnavailable, "cannot reach embedding service", err).
		WithSuggestion("Start Ollama with: ollama serve")
}

// statusError maps 5xx responses to retryable errors and 404 to a missing model.
func statusError(code int, body []byte) error {
	msg := fmt.Sprintf("embedding service returned %d: %s", code, strings.TrimSpace(string(body)))
	switch {
	case code == http.StatusNotFound:
		return fierrors.New(fierrors.ErrCodeModelNotFound, msg, nil)
	case code >= 500:
		return fierrors.New(fierrors.ErrCodeNetworkUnavailable, msg, nil)
	default:
		return fierrors.New(fierrors.ErrCodeEmbeddingFailed, msg, nil)
	}
}

func (e *OllamaEmbedder) Dimensions() int   { return e.dims }
func (e *OllamaEmbedder) ModelName() string { return e.modelName }

// Space is "ollama/<model>/<dims>", so changing embeddings.dimensions starts
// a fresh space instead of colliding with vectors already stored.
func (e *OllamaEmbedder) Space() string {
	return fmt.Sprintf("ollama/%s/%d", e.modelName, e.dims)
}

// Available reports whether the service answers and the circuit is closed.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed || e.breaker.State() == fierrors.StateOpen {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, OllamaConnectTimeout)
	defer cancel()
	_, err := e.findModel(ctx)
	return err == nil
}

func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		e.transport.CloseIdleConnections()
	}
	return nil
}
