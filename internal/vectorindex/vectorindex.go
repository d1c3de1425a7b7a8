// Package vectorindex provides read-oriented nearest-neighbor search over the
// assessment corpus vectors.
package vectorindex

import (
	"context"
)

// Point is one assessment vector keyed by the catalog identifier.
type Point struct {
	ID     string
	Vector []float32
}

// Hit is one nearest-neighbor result. Score is cosine similarity in [-1, 1].
type Hit struct {
	ID    string
	Score float32
}

// Index defines vector search over the corpus. Search is the request path;
// Upsert is only used when (re)building the index from a catalog snapshot.
type Index interface {
	// Search returns the topK nearest points by cosine similarity,
	// ordered by descending score.
	Search(ctx context.Context, vector []float32, topK int) ([]Hit, error)

	// Upsert inserts or replaces points.
	Upsert(ctx context.Context, points []Point) error
}
