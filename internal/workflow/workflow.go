// Package workflow sequences one recommendation request through an explicit
// state machine: Start, Extracting, Retrieving, Filtering, then Done, with
// Failed(reason) as the only other terminal state.
//
// Degradations (extraction, reranking) are absorbed at their stage boundary
// and only affect result quality. Retrieval is the one stage that can fail
// the request: both retrievers reporting their backing services unreachable
// means no honest result exists, and that is distinct from "no hits".
package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/hirewise/assessrec/internal/catalog"
	"github.com/hirewise/assessrec/internal/extractor"
	"github.com/hirewise/assessrec/internal/reranker"
	"github.com/hirewise/assessrec/internal/retriever"
)

// State is one state of the per-request machine.
type State string

const (
	StateStart      State = "start"
	StateExtracting State = "extracting"
	StateRetrieving State = "retrieving"
	StateFiltering  State = "filtering"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// FailureReason classifies a terminal failure.
type FailureReason string

const (
	ReasonRetrievalUnavailable FailureReason = "retrieval_unavailable"
	ReasonInternalError        FailureReason = "internal_error"
)

// Error is the single user-visible failure for a request.
type Error struct {
	Reason FailureReason
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return string(e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Extractor derives a structured query from raw text. A non-nil error means
// extraction degraded; the returned query is still usable.
type Extractor interface {
	Extract(ctx context.Context, raw string) (*extractor.StructuredQuery, error)
}

// Retriever produces scored candidates for a structured query.
type Retriever interface {
	Retrieve(ctx context.Context, query *extractor.StructuredQuery) ([]retriever.ScoredItem, error)
}

// Recommendation is one final result entry joined with its catalog record.
type Recommendation struct {
	Assessment  catalog.Assessment
	Score       float64
	Explanation string
}

// Result is the outcome of a completed workflow.
type Result struct {
	Recommendations []Recommendation

	// Degradation markers, for logging and response metadata only.
	ExtractionDegraded bool
	RerankDegraded     bool
}

// Config holds the per-deployment pipeline parameters.
type Config struct {
	// Alpha weights the dense score in fusion.
	Alpha float64
	// RerankTopK is the fused shortlist size handed to the reranker.
	RerankTopK int
	// MaxResults caps the final recommendation list.
	MaxResults int
}

// Workflow drives a single request. It is instantiated fresh per request and
// holds no state across requests; the snapshot it captures stays consistent
// for the request's lifetime even if the corpus is reloaded concurrently.
type Workflow struct {
	extractor Extractor
	dense     Retriever
	sparse    Retriever
	reranker  reranker.Reranker
	snapshot  *catalog.Snapshot
	cfg       Config
	logger    *slog.Logger

	state State
}

// New creates a workflow instance for one request.
func New(
	ext Extractor,
	dense, sparse Retriever,
	rr reranker.Reranker,
	snapshot *catalog.Snapshot,
	cfg Config,
	logger *slog.Logger,
) *Workflow {
	if cfg.RerankTopK <= 0 {
		cfg.RerankTopK = 20
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		extractor: ext,
		dense:     dense,
		sparse:    sparse,
		reranker:  rr,
		snapshot:  snapshot,
		cfg:       cfg,
		logger:    logger,
		state:     StateStart,
	}
}

// State returns the machine's current (or terminal) state.
func (w *Workflow) State() State {
	return w.state
}

func (w *Workflow) transition(to State) {
	w.logger.Debug("workflow transition", "from", w.state, "to", to)
	w.state = to
}

func (w *Workflow) fail(reason FailureReason, err error) *Error {
	w.transition(StateFailed)
	w.logger.Error("workflow failed", "reason", reason, "error", err)
	return &Error{Reason: reason, Err: err}
}

// Run executes the pipeline for rawQuery. A nil error means the machine
// reached Done; the result may legitimately be empty when the corpus has no
// relevant items. A non-nil error is always a *Error with a terminal reason.
func (w *Workflow) Run(ctx context.Context, rawQuery string) (result *Result, err error) {
	// A stage panic outside any degradation policy must not take the
	// process down with it; it fails this request only.
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = w.fail(ReasonInternalError, fmt.Errorf("panic in stage %s: %v", w.state, r))
		}
	}()

	result = &Result{}

	// Extract. Degrades to a raw-text query, never fatal.
	w.transition(StateExtracting)
	query, extractErr := w.extractor.Extract(ctx, rawQuery)
	if extractErr != nil {
		result.ExtractionDegraded = true
		w.logger.Warn("extraction degraded, using raw text", "error", extractErr)
	}

	// Retrieve. Dense and sparse run concurrently and are joined before
	// fusion; each failure is captured individually. The deferred recover
	// above only covers this goroutine, so each retrieval goroutine carries
	// its own; a panic there must fail this request, not the process.
	w.transition(StateRetrieving)
	var (
		denseItems, sparseItems []retriever.ScoredItem
		denseErr, sparseErr     error
		densePanic, sparsePanic error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				densePanic = fmt.Errorf("panic in dense retrieval: %v", r)
			}
		}()
		denseItems, denseErr = w.dense.Retrieve(gctx, query)
		return nil
	})
	g.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				sparsePanic = fmt.Errorf("panic in sparse retrieval: %v", r)
			}
		}()
		sparseItems, sparseErr = w.sparse.Retrieve(gctx, query)
		return nil
	})
	_ = g.Wait()

	if densePanic != nil {
		return nil, w.fail(ReasonInternalError, densePanic)
	}
	if sparsePanic != nil {
		return nil, w.fail(ReasonInternalError, sparsePanic)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		// Partial results are discarded, not partially reported.
		return nil, w.fail(ReasonInternalError, fmt.Errorf("request deadline elapsed: %w", ctxErr))
	}
	if denseErr != nil && sparseErr != nil {
		return nil, w.fail(ReasonRetrievalUnavailable,
			fmt.Errorf("dense: %v; sparse: %v", denseErr, sparseErr))
	}
	if denseErr != nil {
		w.logger.Warn("dense retrieval unavailable, proceeding sparse-only", "error", denseErr)
		denseItems = nil
	}
	if sparseErr != nil {
		w.logger.Warn("sparse retrieval unavailable, proceeding dense-only", "error", sparseErr)
		sparseItems = nil
	}

	fused := retriever.Fuse(denseItems, sparseItems, w.cfg.Alpha, func(id string) string {
		if a := w.snapshot.Get(id); a != nil {
			return a.Name
		}
		return ""
	})

	// Filter. Reranking degrades to the fused order, never fatal.
	w.transition(StateFiltering)
	if len(fused) > w.cfg.RerankTopK {
		fused = fused[:w.cfg.RerankTopK]
	}
	shortlist, fusedByID := w.buildShortlist(fused)

	var ranked []reranker.Ranked
	if len(shortlist) > 0 {
		ranked, err = w.reranker.Rerank(ctx, query, shortlist, w.cfg.MaxResults)
		if err != nil {
			result.RerankDegraded = true
			w.logger.Warn("reranking degraded, falling back to fused order", "error", err)
			ranked = reranker.Fallback(shortlist, w.cfg.MaxResults)
			err = nil
		}
	}

	for _, r := range ranked {
		a := w.snapshot.Get(r.ID)
		if a == nil {
			// The reranker contract guarantees a subset of the shortlist,
			// which came from this snapshot.
			return nil, w.fail(ReasonInternalError,
				fmt.Errorf("ranked identifier %q not present in snapshot", r.ID))
		}
		result.Recommendations = append(result.Recommendations, Recommendation{
			Assessment:  *a,
			Score:       fusedByID[r.ID],
			Explanation: r.Explanation,
		})
	}
	if len(result.Recommendations) > w.cfg.MaxResults {
		result.Recommendations = result.Recommendations[:w.cfg.MaxResults]
	}

	w.transition(StateDone)
	return result, nil
}

// buildShortlist joins fused candidates with their catalog records. An
// identifier the snapshot does not know (a stale index entry) is dropped
// and logged rather than surfaced.
func (w *Workflow) buildShortlist(fused []retriever.Candidate) ([]reranker.Candidate, map[string]float64) {
	shortlist := make([]reranker.Candidate, 0, len(fused))
	fusedByID := make(map[string]float64, len(fused))
	for _, c := range fused {
		a := w.snapshot.Get(c.ID)
		if a == nil {
			w.logger.Warn("fused candidate missing from catalog snapshot, dropping", "id", c.ID)
			continue
		}
		shortlist = append(shortlist, reranker.Candidate{
			ID:              c.ID,
			Name:            a.Name,
			Document:        a.DocumentText(),
			DurationMinutes: a.DurationMinutes,
			FusedScore:      c.FusedScore,
		})
		fusedByID[c.ID] = c.FusedScore
	}
	return shortlist, fusedByID
}
