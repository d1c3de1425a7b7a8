// Package retriever implements the hybrid candidate retrieval core: dense
// vector search, sparse BM25 search, and weighted score fusion.
package retriever

import "errors"

// ErrUnavailable marks a retriever failure caused by an unreachable backing
// service (embedder or vector index). It is fatal for the request only when
// both retrievers fail with it; "no hits" is never reported this way.
var ErrUnavailable = errors.New("retrieval unavailable")

// ScoredItem is one retrieval result with a normalized score in [0, 1].
type ScoredItem struct {
	ID    string
	Score float64
}
