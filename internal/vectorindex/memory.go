package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is a brute-force in-process cosine index. It serves file-only
// deployments where the corpus ships precomputed embeddings, and tests.
type MemoryIndex struct {
	mu     sync.RWMutex
	points map[string][]float32
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{points: make(map[string][]float32)}
}

// Upsert inserts or replaces points.
func (m *MemoryIndex) Upsert(_ context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		if p.ID == "" || len(p.Vector) == 0 {
			continue
		}
		m.points[p.ID] = p.Vector
	}
	return nil
}

// Len returns the number of indexed points.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}

// Search scans all points and returns the topK by cosine similarity.
func (m *MemoryIndex) Search(_ context.Context, vector []float32, topK int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if topK <= 0 || len(m.points) == 0 {
		return nil, nil
	}

	hits := make([]Hit, 0, len(m.points))
	for id, v := range m.points {
		hits = append(hits, Hit{ID: id, Score: cosine(vector, v)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// cosine computes cosine similarity. Mismatched lengths compare the common
// prefix; a zero vector scores 0.
func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Ensure MemoryIndex implements Index.
var _ Index = (*MemoryIndex)(nil)
