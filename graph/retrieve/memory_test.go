package retrieve

import (
	"context"
	"fmt"
	"testing"
)

func seedIndex(t *testing.T) *MemoryIndex {
	t.Helper()
	idx := NewMemoryIndex()
	docs := map[string]string{
		"go-basics":      "Go programming fundamentals: goroutines, channels, interfaces",
		"k8s-operators":  "Kubernetes operators extend the control plane with custom resources",
		"sql-tuning":     "SQL query tuning: indexes, execution plans, join strategies",
		"go-concurrency": "Advanced Go concurrency patterns: worker pools, pipelines, channels",
	}
	for id, text := range docs {
		if err := idx.Add(id, text, map[string]string{"source": id}); err != nil {
			t.Fatalf("Add(%s) failed: %v", id, err)
		}
	}
	return idx
}

func TestMemoryIndexRetrieveRanksByRelevance(t *testing.T) {
	idx := seedIndex(t)

	docs, err := idx.Retrieve(context.Background(), "Go channels and goroutines", 10)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(docs) == 0 {
		t.Fatal("no documents returned")
	}
	for i := 0; i < len(docs)-1; i++ {
		if docs[i].Score < docs[i+1].Score {
			t.Fatalf("results not ordered by score: %f < %f at %d", docs[i].Score, docs[i+1].Score, i)
		}
	}
	if docs[0].Metadata["source"] != "go-basics" && docs[0].Metadata["source"] != "go-concurrency" {
		t.Errorf("top document = %+v, want a Go document", docs[0])
	}
	for _, d := range docs {
		if d.Metadata["source"] == "sql-tuning" {
			t.Errorf("unrelated document retrieved: %+v", d)
		}
	}
}

func TestMemoryIndexRetrieveClampsK(t *testing.T) {
	idx := NewMemoryIndex()
	for i := 0; i < MaxK+10; i++ {
		if err := idx.Add(fmt.Sprintf("doc-%02d", i), "career coaching advice", nil); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	for _, k := range []int{0, -1, MaxK + 5} {
		docs, err := idx.Retrieve(context.Background(), "career advice", k)
		if err != nil {
			t.Fatalf("Retrieve(k=%d) failed: %v", k, err)
		}
		if len(docs) != MaxK {
			t.Errorf("Retrieve(k=%d) returned %d docs, want %d", k, len(docs), MaxK)
		}
	}

	docs, err := idx.Retrieve(context.Background(), "career advice", 3)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(docs) != 3 {
		t.Errorf("Retrieve(k=3) returned %d docs", len(docs))
	}
}

func TestMemoryIndexRetrieveDeterministic(t *testing.T) {
	idx := seedIndex(t)
	ctx := context.Background()

	first, err := idx.Retrieve(ctx, "Go channels", 5)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	second, err := idx.Retrieve(ctx, "Go channels", 5)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Text != second[i].Text {
			t.Fatalf("order differs at %d: %q vs %q", i, first[i].Text, second[i].Text)
		}
	}
}

func TestMemoryIndexEmptyQueryAndNoMatch(t *testing.T) {
	idx := seedIndex(t)
	ctx := context.Background()

	docs, err := idx.Retrieve(ctx, "   ", 5)
	if err != nil || len(docs) != 0 {
		t.Errorf("blank query = (%v, %v), want empty", docs, err)
	}

	docs, err = idx.Retrieve(ctx, "zymurgy", 5)
	if err != nil || len(docs) != 0 {
		t.Errorf("no-match query = (%v, %v), want empty", docs, err)
	}
}

func TestMemoryIndexRejectsDuplicates(t *testing.T) {
	idx := NewMemoryIndex()
	if err := idx.Add("d1", "text", nil); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	if err := idx.Add("d1", "other", nil); err == nil {
		t.Fatal("duplicate Add should fail")
	}
	if err := idx.Add("", "text", nil); err == nil {
		t.Fatal("empty id Add should fail")
	}
	if idx.Len() != 1 {
		t.Errorf("Len = %d, want 1", idx.Len())
	}
}
