package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPEmbedderConfig configures an HTTPEmbedder.
type HTTPEmbedderConfig struct {
	// BaseURL is the embeddings endpoint root, e.g. "https://api.example.com/v1".
	BaseURL string

	// APIKey is sent as a Bearer token.
	APIKey string

	// Model is the model identifier sent in every request.
	Model string

	// Dimensions is the expected output vector width D. A response
	// whose embeddings don't match this width is an error (triggers a
	// full reindex upstream).
	Dimensions int

	// BatchSize caps how many texts are sent per request.
	BatchSize int

	// Concurrency is the maximum number of in-flight batch requests.
	Concurrency int

	// HTTPClient, if set, replaces the default client (useful for tests).
	HTTPClient *http.Client
}

// HTTPEmbedder is an Embedder backed by a remote HTTP embeddings
// endpoint speaking the {model, input, encoding_format} / {data:
// [{index, embedding}]} wire contract. Concurrency is bounded and
// adaptively throttled by an owned RateController; network-class
// errors are retried with exponential backoff.
type HTTPEmbedder struct {
	cfg        HTTPEmbedderConfig
	httpClient *http.Client
	rate       *RateController
	retryCfg   RetryConfig
}

// NewHTTPEmbedder creates an HTTPEmbedder with its own RateController,
// not a shared singleton.
func NewHTTPEmbedder(cfg HTTPEmbedderConfig) (*HTTPEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embed: BaseURL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embed: APIKey is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embed: Model is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embed: Dimensions must be positive")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}

	return &HTTPEmbedder{
		cfg:        cfg,
		httpClient: httpClient,
		rate:       NewRateController(cfg.Concurrency),
		retryCfg:   DefaultRetryConfig(),
	}, nil
}

type embedRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format"`
}

type embedResponseItem struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type embedResponse struct {
	Data  []embedResponseItem `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// rateLimitedError marks a response that should be handled through the
// RateController's pause/backoff pathway rather than WithRetry.
type rateLimitedError struct {
	status int
	body   string
}

func (e *rateLimitedError) Error() string {
	return fmt.Sprintf("embed: rate limited (status %d): %s", e.status, e.body)
}

// EmbedBatch embeds texts in input order, splitting into at most
// cfg.BatchSize texts per request and running requests through the
// rate controller. onProgress, if non-nil, receives one event per
// completed request batch.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string, onProgress chan<- ProgressEvent) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	completed := 0

	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vectors, err := e.embedOneBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		for i, v := range vectors {
			if len(v) != e.cfg.Dimensions {
				return nil, fmt.Errorf("embed: model returned dimension %d, expected %d (reindex required)", len(v), e.cfg.Dimensions)
			}
			results[start+i] = v
		}

		completed += len(batch)
		if onProgress != nil {
			select {
			case onProgress <- ProgressEvent{Completed: completed, Total: len(texts)}:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return results, nil
}

// embedOneBatch sends a single request, routing rate-limit responses
// through the RateController's pause/backoff and all other
// network-class failures through WithRetry.
func (e *HTTPEmbedder) embedOneBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for {
		var vectors [][]float32
		err := WithRetry(ctx, e.retryCfg, func() error {
			if acqErr := e.rate.Acquire(ctx); acqErr != nil {
				return acqErr
			}
			defer e.rate.Release()

			v, doErr := e.doRequest(ctx, texts)
			if doErr != nil {
				if _, isRateLimit := doErr.(*rateLimitedError); isRateLimit {
					return nil // handled below, outside WithRetry's backoff
				}
				return doErr
			}
			e.rate.ReportSuccess()
			vectors = v
			return nil
		})
		if err != nil {
			return nil, err
		}
		if vectors != nil {
			return vectors, nil
		}

		// The inner call hit a rate-limit response: pause and retry
		// the same batch once the controller resumes.
		if err := e.rate.ReportRateLimited(ctx); err != nil {
			return nil, err
		}
	}
}

func (e *HTTPEmbedder) doRequest(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody, err := json.Marshal(embedRequest{
		Model:          e.cfg.Model,
		Input:          texts,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, fmt.Errorf("embed: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(e.cfg.BaseURL, "/")+"/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("embed: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embed: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embed: read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || isRateLimitedServerError(resp.StatusCode, body) {
		return nil, &rateLimitedError{status: resp.StatusCode, body: string(body)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed: endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed embedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("embed: decode response: %w", err)
	}

	vectors := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			continue
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("embed: response missing embedding for input index %d", i)
		}
	}
	return vectors, nil
}

// isRateLimitedServerError treats a 5xx response whose body mentions
// rate limiting as equivalent to a 429, per the rate-limit detection
// rule: status code alone does not always carry the signal.
func isRateLimitedServerError(status int, body []byte) bool {
	if status < 500 || status > 599 {
		return false
	}
	return strings.Contains(strings.ToLower(string(body)), "rate")
}

func (e *HTTPEmbedder) Dimensions() int { return e.cfg.Dimensions }

func (e *HTTPEmbedder) ModelName() string { return e.cfg.Model }

func (e *HTTPEmbedder) Close() error { return nil }

var _ Embedder = (*HTTPEmbedder)(nil)
