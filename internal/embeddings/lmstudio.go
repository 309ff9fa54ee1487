package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// probeTimeout bounds the connectivity check at construction.
const probeTimeout = 5 * time.Second

// Rate limiter defaults: LM Studio is a local single-user service, so the
// limiter exists to smooth reindex bursts, not to enforce a quota.
const (
	defaultRateLimit = 10.0 // requests per second
	defaultBurst     = 2
)

// LMStudioConfig holds configuration for the LM Studio provider.
type LMStudioConfig struct {
	// BaseURL is the LM Studio server address, e.g. http://localhost:1234.
	BaseURL string
	// Model is the remote embedding model identifier.
	Model string
	// Dimension is the expected embedding dimensionality. LM Studio does
	// not report it, so it comes from configuration.
	Dimension int
	// Timeout bounds each embedding HTTP request.
	Timeout time.Duration
	// BatchSize caps texts per request.
	BatchSize int
}

// LMStudioProvider proxies LM Studio's OpenAI-compatible embeddings API.
//
// The constructor probes the server and fails fast when it is
// unreachable; the factory turns that failure into a FastEmbed fallback.
type LMStudioProvider struct {
	config  LMStudioConfig
	client  *http.Client
	limiter *rate.Limiter
	metrics *Metrics
}

// NewLMStudioProvider creates the provider and validates connectivity.
func NewLMStudioProvider(cfg LMStudioConfig, logger *zap.Logger) (*LMStudioProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 768
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}

	p := &LMStudioProvider{
		config:  cfg,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		metrics: NewMetrics(logger),
	}

	// Connectivity probe: fail construction, not the first embed.
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating probe request: %v", ErrProviderInit, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot connect to LM Studio at %s: %v", ErrProviderInit, cfg.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: LM Studio at %s returned status %d", ErrProviderInit, cfg.BaseURL, resp.StatusCode)
	}

	var models struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&models); err == nil {
		logger.Info("connected to LM Studio",
			zap.String("base_url", cfg.BaseURL),
			zap.Int("available_models", len(models.Data)),
		)
	}

	return p, nil
}

// embeddingRequest is the OpenAI-compatible request body.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse is the OpenAI-compatible response body. Each item
// carries the index of the input it belongs to.
type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedDocuments generates embeddings for multiple texts, issuing one
// request per batch of BatchSize texts.
func (p *LMStudioProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		p.metrics.RecordGeneration(ctx, p.config.Model, "embed_documents", time.Since(start), len(texts), genErr)
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vectors := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += p.config.BatchSize {
		end := i + p.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := p.embedBatch(ctx, texts[i:end])
		if err != nil {
			genErr = err
			return nil, genErr
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *LMStudioProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		p.metrics.RecordGeneration(ctx, p.config.Model, "embed_query", time.Since(start), 1, genErr)
	}()

	if text == "" {
		genErr = fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vectors, err := p.embedBatch(ctx, []string{text})
	if err != nil {
		genErr = err
		return nil, genErr
	}

	return vectors[0], nil
}

// embedBatch issues one embeddings request and restores input order.
func (p *LMStudioProvider) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	body, err := json.Marshal(embeddingRequest{Model: p.config.Model, Input: batch})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.config.BaseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if len(parsed.Data) != len(batch) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrEmbeddingFailed, len(parsed.Data), len(batch))
	}

	// The backend reports an index per item and does not guarantee
	// submission order; place each vector by its index.
	vectors := make([][]float32, len(batch))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(batch) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrEmbeddingFailed, item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("%w: missing embedding for input %d", ErrEmbeddingFailed, i)
		}
	}

	return vectors, nil
}

// Dimension returns the configured embedding dimension.
func (p *LMStudioProvider) Dimension() int {
	return p.config.Dimension
}

// Name returns the provider identifier used in collection names.
func (p *LMStudioProvider) Name() string {
	return "lmstudio/" + p.config.Model
}

// Close is a no-op; the provider holds no persistent connections.
func (p *LMStudioProvider) Close() error {
	return nil
}
