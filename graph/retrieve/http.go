package retrieve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPRetriever queries a remote retrieval service over HTTP: it POSTs a
// JSON query and expects ranked documents back. Use it when the knowledge
// base lives in a dedicated search service instead of the in-process index.
//
// Request body:  {"query": "...", "k": 5}
// Response body: {"documents": [{"text": "...", "metadata": {...}, "score": 0.8}]}
type HTTPRetriever struct {
	client  *http.Client
	url     string
	headers map[string]string
}

// HTTPOption configures an HTTPRetriever.
type HTTPOption func(*HTTPRetriever)

// WithHTTPClient overrides the default client (useful for custom timeouts
// or transports).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(r *HTTPRetriever) { r.client = c }
}

// WithHeader adds a header to every request, e.g. an Authorization token.
func WithHeader(key, value string) HTTPOption {
	return func(r *HTTPRetriever) { r.headers[key] = value }
}

// NewHTTPRetriever creates a retriever against the given endpoint URL.
func NewHTTPRetriever(url string, opts ...HTTPOption) *HTTPRetriever {
	r := &HTTPRetriever{
		client:  http.DefaultClient,
		url:     url,
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type httpQuery struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type httpResult struct {
	Documents []Document `json:"documents"`
}

// Retrieve implements Retriever.
func (r *HTTPRetriever) Retrieve(ctx context.Context, query string, k int) ([]Document, error) {
	if query == "" {
		return nil, nil
	}
	k = clampK(k)

	payload, err := json.Marshal(httpQuery{Query: query, K: k})
	if err != nil {
		return nil, fmt.Errorf("encode retrieval query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build retrieval request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range r.headers {
		req.Header.Set(key, value)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieval request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("retrieval service returned %d: %s", resp.StatusCode, string(body))
	}

	var result httpResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode retrieval response: %w", err)
	}

	docs := result.Documents
	if k < len(docs) {
		docs = docs[:k]
	}
	return docs, nil
}
