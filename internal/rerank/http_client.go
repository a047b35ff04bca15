package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/lyy0709/contextweaver/internal/embed"
)

// HTTPClientConfig configures an HTTPReranker.
type HTTPClientConfig struct {
	// BaseURL is the rerank endpoint root, e.g. "https://api.example.com/v1".
	BaseURL string

	// APIKey is sent as a Bearer token.
	APIKey string

	// Model is the reranker model identifier sent in every request.
	Model string

	// HTTPClient, if set, replaces the default client (useful for tests).
	HTTPClient *http.Client
}

// HTTPReranker is a Reranker backed by a remote HTTP endpoint speaking
// the {model, query, documents, top_n} / {results: [{index,
// relevance_score}]} wire contract, matching the embedding client's
// HTTP conventions: same per-request timeout, same retry policy for
// network-class errors.
type HTTPReranker struct {
	cfg        HTTPClientConfig
	httpClient *http.Client
	retryCfg   embed.RetryConfig
}

// NewHTTPReranker creates an HTTPReranker.
func NewHTTPReranker(cfg HTTPClientConfig) (*HTTPReranker, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("rerank: BaseURL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("rerank: APIKey is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("rerank: Model is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}

	return &HTTPReranker{
		cfg:        cfg,
		httpClient: httpClient,
		retryCfg:   embed.DefaultRetryConfig(),
	}, nil
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponseItem struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type rerankResponse struct {
	Results []rerankResponseItem `json:"results"`
}

// Rerank sends documents to the remote endpoint and returns results
// sorted by relevance score descending. Network-class errors are
// retried up to embed.DefaultRetryConfig's policy; the caller is
// expected to fall back to NoOpReranker on a returned error, per the
// "reranker failure is non-fatal" contract.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]Result, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	var results []Result
	err := embed.WithRetry(ctx, r.retryCfg, func() error {
		res, doErr := r.doRequest(ctx, query, documents, topN)
		if doErr != nil {
			return doErr
		}
		results = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *HTTPReranker) doRequest(ctx context.Context, query string, documents []string, topN int) ([]Result, error) {
	reqBody, err := json.Marshal(rerankRequest{
		Model:     r.cfg.Model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	})
	if err != nil {
		return nil, fmt.Errorf("rerank: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(r.cfg.BaseURL, "/")+"/rerank", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("rerank: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rerank: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rerank: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank: endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed rerankResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("rerank: decode response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, item := range parsed.Results {
		if item.Index < 0 || item.Index >= len(documents) {
			continue
		}
		results = append(results, Result{Index: item.Index, Score: item.RelevanceScore})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if topN > 0 && topN < len(results) {
		results = results[:topN]
	}
	return results, nil
}

func (r *HTTPReranker) Close() error { return nil }

var _ Reranker = (*HTTPReranker)(nil)
