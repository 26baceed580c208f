// Package retrieve supplies grounding documents to workflow nodes.
//
// A Retriever answers a free-text query with the k most relevant documents
// it knows about, ordered by descending relevance. Nodes that ground their
// model calls (skill-gap analysis, coaching) depend on this interface and
// never on a concrete index.
package retrieve

import "context"

// MaxK caps how many documents a single retrieval may return. Queries
// asking for more are clamped, not rejected.
const MaxK = 20

// Document is one retrieved text with its source metadata and relevance.
type Document struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    float64           `json:"score"`
}

// Retriever finds the documents most relevant to a query.
type Retriever interface {
	// Retrieve returns at most k documents ordered by descending Score.
	// k <= 0 defaults to MaxK; k > MaxK is clamped to MaxK. An empty
	// result is not an error.
	Retrieve(ctx context.Context, query string, k int) ([]Document, error)
}

func clampK(k int) int {
	if k <= 0 || k > MaxK {
		return MaxK
	}
	return k
}
