package retriever

import (
	"context"
	"fmt"

	"github.com/hirewise/assessrec/internal/embedder"
	"github.com/hirewise/assessrec/internal/extractor"
	"github.com/hirewise/assessrec/internal/vectorindex"
)

// DenseRetriever embeds the query and runs nearest-neighbor search over the
// corpus vectors.
type DenseRetriever struct {
	embedder embedder.Embedder
	index    vectorindex.Index
	topK     int
}

// NewDenseRetriever creates a dense retriever returning at most topK results.
func NewDenseRetriever(emb embedder.Embedder, index vectorindex.Index, topK int) *DenseRetriever {
	if topK <= 0 {
		topK = 20
	}
	return &DenseRetriever{embedder: emb, index: index, topK: topK}
}

// Retrieve embeds the query's search text and returns the nearest items with
// cosine similarity mapped to [0, 1]. An unreachable embedder or index
// yields ErrUnavailable; an empty result set is a valid success.
func (r *DenseRetriever) Retrieve(ctx context.Context, query *extractor.StructuredQuery) ([]ScoredItem, error) {
	if r.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", ErrUnavailable)
	}

	vector, err := r.embedder.Embed(ctx, query.SearchText())
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", ErrUnavailable, err)
	}

	hits, err := r.index.Search(ctx, vector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", ErrUnavailable, err)
	}

	items := make([]ScoredItem, 0, len(hits))
	for _, h := range hits {
		items = append(items, ScoredItem{ID: h.ID, Score: normalizeCosine(h.Score)})
	}
	return items, nil
}

// normalizeCosine maps cosine similarity from [-1, 1] to [0, 1] linearly.
// The map is monotonic and stateless; out-of-range inputs are clamped.
func normalizeCosine(score float32) float64 {
	v := (float64(score) + 1) / 2
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
