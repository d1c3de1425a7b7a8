// Package reranker refines the fused candidate shortlist into the final
// recommendation set.
//
// The LLM implementation sees the query and each candidate together and
// selects an ordered subset with a one-sentence explanation per item. Its
// output is never trusted blindly: identifiers outside the input shortlist
// are a data-integrity violation and get dropped, and any failure degrades
// to the deterministic fused-order fallback so the pipeline always produces
// a result while the corpus is non-empty.
package reranker

import (
	"context"

	"github.com/hirewise/assessrec/internal/extractor"
)

// FallbackExplanation is attached to results produced by the deterministic
// fallback instead of the LLM.
const FallbackExplanation = "matched by hybrid relevance score"

// Candidate is one shortlist entry joined with its catalog record.
type Candidate struct {
	ID              string
	Name            string
	Document        string
	DurationMinutes int
	FusedScore      float64
}

// Ranked is one selected result in final order.
type Ranked struct {
	ID          string
	Explanation string
}

// Reranker selects and orders at most limit candidates. The returned IDs are
// always a subset of the input candidates.
type Reranker interface {
	Rerank(ctx context.Context, query *extractor.StructuredQuery, candidates []Candidate, limit int) ([]Ranked, error)
}

// Fallback returns the top candidates in fused order, unchanged, with the
// generic explanation. Used whenever the reranking capability degrades.
func Fallback(candidates []Candidate, limit int) []Ranked {
	if limit > len(candidates) {
		limit = len(candidates)
	}
	ranked := make([]Ranked, 0, limit)
	for _, c := range candidates[:limit] {
		ranked = append(ranked, Ranked{ID: c.ID, Explanation: FallbackExplanation})
	}
	return ranked
}
