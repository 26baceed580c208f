package retrieve

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

type indexEntry struct {
	id       string
	text     string
	metadata map[string]string
	terms    map[string]float64 // term frequency vector
	norm     float64
}

// MemoryIndex is an in-memory Retriever over a fixed document set.
//
// Documents are scored by cosine similarity between term-frequency vectors
// of the lowercased, tokenized texts. That is deliberately simple: good
// enough for curated knowledge bases (career guides, skill taxonomies)
// without an embedding dependency. Safe for concurrent use; Add and
// Retrieve may interleave.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries []indexEntry
	seen    map[string]bool
}

// NewMemoryIndex creates an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{seen: make(map[string]bool)}
}

// Add indexes one document under a unique id.
func (m *MemoryIndex) Add(id, text string, metadata map[string]string) error {
	if id == "" {
		return fmt.Errorf("document id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.seen[id] {
		return fmt.Errorf("document %q already indexed", id)
	}
	m.seen[id] = true

	terms := termVector(text)
	var meta map[string]string
	if len(metadata) > 0 {
		meta = make(map[string]string, len(metadata))
		for k, v := range metadata {
			meta[k] = v
		}
	}
	m.entries = append(m.entries, indexEntry{
		id:       id,
		text:     text,
		metadata: meta,
		terms:    terms,
		norm:     vectorNorm(terms),
	})
	return nil
}

// Len returns how many documents are indexed.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Retrieve implements Retriever. Ties are broken by document id so results
// are deterministic for a fixed index.
func (m *MemoryIndex) Retrieve(ctx context.Context, query string, k int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k = clampK(k)

	queryTerms := termVector(query)
	queryNorm := vectorNorm(queryTerms)
	if queryNorm == 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		entry indexEntry
		score float64
	}
	matches := make([]scored, 0, len(m.entries))
	for _, ent := range m.entries {
		score := cosine(queryTerms, queryNorm, ent.terms, ent.norm)
		if score > 0 {
			matches = append(matches, scored{ent, score})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].entry.id < matches[j].entry.id
	})
	if k < len(matches) {
		matches = matches[:k]
	}

	out := make([]Document, 0, len(matches))
	for _, match := range matches {
		var meta map[string]string
		if match.entry.metadata != nil {
			meta = make(map[string]string, len(match.entry.metadata))
			for key, v := range match.entry.metadata {
				meta[key] = v
			}
		}
		out = append(out, Document{
			Text:     match.entry.text,
			Metadata: meta,
			Score:    match.score,
		})
	}
	return out, nil
}

func termVector(text string) map[string]float64 {
	terms := make(map[string]float64)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,;:!?()[]{}\"'")
		if tok != "" {
			terms[tok]++
		}
	}
	return terms
}

func vectorNorm(terms map[string]float64) float64 {
	var sum float64
	for _, f := range terms {
		sum += f * f
	}
	return math.Sqrt(sum)
}

func cosine(a map[string]float64, aNorm float64, b map[string]float64, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	for term, f := range a {
		dot += f * b[term]
	}
	return dot / (aNorm * bNorm)
}
