// Package service wires the retrieval pipeline to the corpus and runs one
// workflow instance per recommendation request.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/hirewise/assessrec/internal/catalog"
	"github.com/hirewise/assessrec/internal/embedder"
	"github.com/hirewise/assessrec/internal/reranker"
	"github.com/hirewise/assessrec/internal/retriever"
	"github.com/hirewise/assessrec/internal/vectorindex"
	"github.com/hirewise/assessrec/internal/workflow"
)

// CatalogSource produces a full corpus snapshot on demand. Implemented by
// catalog.FileSource and catalog.PostgresSource.
type CatalogSource interface {
	Load(ctx context.Context) (*catalog.Snapshot, error)
}

// corpus pairs one snapshot with the retrieval structures derived from it,
// so a request never mixes generations.
type corpus struct {
	snapshot *catalog.Snapshot
	sparse   *retriever.SparseRetriever
	index    vectorindex.Index
}

// Config holds the service-level knobs.
type Config struct {
	BM25K1        float64
	BM25B         float64
	FusionAlpha   float64
	RetrieverTopK int
	RerankTopK    int
	MaxResults    int

	RequestDeadline time.Duration

	CacheSize int
	CacheTTL  time.Duration
}

// RecommendService owns the corpus and serves recommendation requests.
type RecommendService struct {
	cfg      Config
	source   CatalogSource
	emb      embedder.Embedder
	ext      workflow.Extractor
	rr       reranker.Reranker
	store    *catalog.Store
	qdrant   *vectorindex.QdrantIndex // nil selects a per-snapshot memory index
	logger   *slog.Logger
	cache    *expirable.LRU[string, *workflow.Result]
	current  atomic.Pointer[corpus]
	reloadMu sync.Mutex
}

// Option is a functional option for configuring RecommendService.
type Option func(*RecommendService)

// WithQdrant routes dense search through a shared Qdrant collection instead
// of a per-snapshot in-process index.
func WithQdrant(index *vectorindex.QdrantIndex) Option {
	return func(s *RecommendService) {
		s.qdrant = index
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *RecommendService) {
		s.logger = logger
	}
}

// NewRecommendService creates the service. Call Reload before serving.
func NewRecommendService(
	cfg Config,
	source CatalogSource,
	emb embedder.Embedder,
	ext workflow.Extractor,
	rr reranker.Reranker,
	opts ...Option,
) *RecommendService {
	if cfg.RequestDeadline <= 0 {
		cfg.RequestDeadline = 2 * time.Minute
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}

	s := &RecommendService{
		cfg:    cfg,
		source: source,
		emb:    emb,
		ext:    ext,
		rr:     rr,
		store:  catalog.NewStore(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = expirable.NewLRU[string, *workflow.Result](cfg.CacheSize, nil, cfg.CacheTTL)

	empty := catalog.NewSnapshot(nil)
	s.current.Store(&corpus{
		snapshot: empty,
		sparse:   retriever.NewSparseRetriever(empty, cfg.BM25K1, cfg.BM25B, cfg.RetrieverTopK),
		index:    vectorindex.NewMemoryIndex(),
	})
	return s
}

// Snapshot returns the corpus generation currently being served.
func (s *RecommendService) Snapshot() *catalog.Snapshot {
	return s.store.Snapshot()
}

// Reload loads the catalog source, rebuilds the sparse index, ensures every
// item is present in the vector index, and atomically swaps the corpus.
// In-flight requests keep the generation they started with.
func (s *RecommendService) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	snap, err := s.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	index, err := s.buildIndex(ctx, snap)
	if err != nil {
		return fmt.Errorf("failed to build vector index: %w", err)
	}

	next := &corpus{
		snapshot: snap,
		sparse:   retriever.NewSparseRetriever(snap, s.cfg.BM25K1, s.cfg.BM25B, s.cfg.RetrieverTopK),
		index:    index,
	}
	s.current.Store(next)
	s.store.Swap(snap)
	s.cache.Purge()

	s.logger.Info("catalog reloaded", "items", snap.Len())
	return nil
}

// buildIndex populates the vector index for a snapshot. Items missing a
// precomputed embedding are embedded here; without an embedder they are
// skipped and only reachable through sparse retrieval.
func (s *RecommendService) buildIndex(ctx context.Context, snap *catalog.Snapshot) (vectorindex.Index, error) {
	var index vectorindex.Index
	if s.qdrant != nil {
		index = s.qdrant
	} else {
		index = vectorindex.NewMemoryIndex()
	}

	items := snap.Items()
	points := make([]vectorindex.Point, 0, len(items))
	var missingIdx []int
	var missingDocs []string

	for i := range items {
		if len(items[i].Embedding) > 0 {
			points = append(points, vectorindex.Point{ID: items[i].ID, Vector: items[i].Embedding})
			continue
		}
		missingIdx = append(missingIdx, i)
		missingDocs = append(missingDocs, items[i].DocumentText())
	}

	if len(missingDocs) > 0 {
		if s.emb == nil {
			s.logger.Warn("items without embeddings and no embedder configured, dense retrieval will miss them",
				"count", len(missingDocs))
		} else {
			vectors, err := s.emb.EmbedBatch(ctx, missingDocs)
			if err != nil {
				return nil, fmt.Errorf("failed to embed catalog items: %w", err)
			}
			for j, i := range missingIdx {
				points = append(points, vectorindex.Point{ID: items[i].ID, Vector: vectors[j]})
			}
		}
	}

	if s.qdrant != nil && len(points) > 0 {
		if err := s.qdrant.EnsureCollection(ctx, len(points[0].Vector)); err != nil {
			return nil, err
		}
	}
	if err := index.Upsert(ctx, points); err != nil {
		return nil, err
	}
	return index, nil
}

// Recommend runs the pipeline for a raw query. Cached results are returned
// as-is; each cache miss gets a fresh workflow instance bounded by the
// request deadline.
func (s *RecommendService) Recommend(ctx context.Context, rawQuery string) (*workflow.Result, error) {
	rawQuery = strings.TrimSpace(rawQuery)
	if rawQuery == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	cacheKey := strings.ToLower(rawQuery)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestDeadline)
	defer cancel()

	c := s.current.Load()
	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID)

	dense := retriever.NewDenseRetriever(s.emb, c.index, s.cfg.RetrieverTopK)
	wf := workflow.New(s.ext, dense, c.sparse, s.rr, c.snapshot, workflow.Config{
		Alpha:      s.cfg.FusionAlpha,
		RerankTopK: s.cfg.RerankTopK,
		MaxResults: s.cfg.MaxResults,
	}, logger)

	start := time.Now()
	result, err := wf.Run(ctx, rawQuery)
	if err != nil {
		return nil, err
	}

	logger.Info("recommendation complete",
		"results", len(result.Recommendations),
		"extraction_degraded", result.ExtractionDegraded,
		"rerank_degraded", result.RerankDegraded,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	// Degraded runs are served but not cached; a later request should get
	// another chance at the full pipeline.
	if !result.ExtractionDegraded && !result.RerankDegraded {
		s.cache.Add(cacheKey, result)
	}
	return result, nil
}
