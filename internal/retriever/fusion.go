package retriever

import (
	"sort"
)

// Candidate is one fused retrieval result for a single request. At most one
// Candidate exists per item identifier after fusion.
type Candidate struct {
	ID          string
	DenseScore  float64
	SparseScore float64
	InDense     bool
	InSparse    bool
	FusedScore  float64
}

// Fuse merges dense and sparse result lists into one ranked, deduplicated
// candidate list. alpha weights the dense contribution:
//
//	fused = alpha*dense + (1-alpha)*sparse
//
// An identifier absent from one list contributes 0 for that list. Ties are
// broken by both-list membership first, then by ascending item name (nameOf),
// then by identifier, so the output order is fully deterministic. Fuse is a
// pure function of its inputs.
func Fuse(dense, sparse []ScoredItem, alpha float64, nameOf func(id string) string) []Candidate {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}

	merged := make(map[string]*Candidate, len(dense)+len(sparse))
	order := make([]string, 0, len(dense)+len(sparse))

	for _, it := range dense {
		c, ok := merged[it.ID]
		if !ok {
			c = &Candidate{ID: it.ID}
			merged[it.ID] = c
			order = append(order, it.ID)
		}
		c.InDense = true
		// Keep the higher score if the backend ever reports duplicates.
		if it.Score > c.DenseScore {
			c.DenseScore = it.Score
		}
	}

	for _, it := range sparse {
		c, ok := merged[it.ID]
		if !ok {
			c = &Candidate{ID: it.ID}
			merged[it.ID] = c
			order = append(order, it.ID)
		}
		c.InSparse = true
		if it.Score > c.SparseScore {
			c.SparseScore = it.Score
		}
	}

	candidates := make([]Candidate, 0, len(order))
	for _, id := range order {
		c := merged[id]
		c.FusedScore = alpha*c.DenseScore + (1-alpha)*c.SparseScore
		candidates = append(candidates, *c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.FusedScore != b.FusedScore {
			return a.FusedScore > b.FusedScore
		}
		aBoth := a.InDense && a.InSparse
		bBoth := b.InDense && b.InSparse
		if aBoth != bBoth {
			return aBoth
		}
		an, bn := nameOf(a.ID), nameOf(b.ID)
		if an != bn {
			return an < bn
		}
		return a.ID < b.ID
	})

	return candidates
}
