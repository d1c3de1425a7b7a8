package reranker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/hirewise/assessrec/internal/extractor"
	"github.com/hirewise/assessrec/internal/llm"
)

// LLMReranker selects final recommendations with an LLM that sees the query
// and each candidate document together.
type LLMReranker struct {
	llmClient llm.LLM
	model     string
	logger    *slog.Logger
}

// LLMRerankerOption is a functional option for configuring LLMReranker.
type LLMRerankerOption func(*LLMReranker)

// WithModel sets the model to use for reranking.
func WithModel(model string) LLMRerankerOption {
	return func(r *LLMReranker) {
		r.model = model
	}
}

// WithLogger sets the logger for data-integrity warnings.
func WithLogger(logger *slog.Logger) LLMRerankerOption {
	return func(r *LLMReranker) {
		r.logger = logger
	}
}

// NewLLMReranker creates a new LLM-based reranker.
func NewLLMReranker(llmClient llm.LLM, opts ...LLMRerankerOption) *LLMReranker {
	r := &LLMReranker{
		llmClient: llmClient,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// selection is one entry of the LLM's output schema. Candidates are
// referenced by their list index to keep identifiers out of the generation.
type selection struct {
	Index       int    `json:"index"`
	Explanation string `json:"explanation"`
}

type rerankResponse struct {
	Selections []selection `json:"selections"`
}

// Rerank asks the LLM for an ordered subset of at most limit candidates.
// Selections referencing anything outside the input are dropped and logged;
// a response with no valid selection is an error so the caller can apply
// the fused-order fallback.
func (r *LLMReranker) Rerank(ctx context.Context, query *extractor.StructuredQuery, candidates []Candidate, limit int) ([]Ranked, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if limit > len(candidates) {
		limit = len(candidates)
	}

	prompt := r.buildPrompt(query, candidates, limit)

	response, err := r.llmClient.Generate(ctx, prompt, llm.GenerateOptions{
		Model:       r.model,
		Temperature: 0.0, // Deterministic selection
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, fmt.Errorf("rerank call failed: %w", err)
	}

	var parsed rerankResponse
	if err := json.Unmarshal([]byte(llm.StripCodeFences(response)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse rerank response: %w", err)
	}

	ranked := make([]Ranked, 0, limit)
	used := make(map[int]struct{}, limit)
	for _, sel := range parsed.Selections {
		if sel.Index < 0 || sel.Index >= len(candidates) {
			r.logger.Warn("reranker referenced unknown candidate, dropping",
				"index", sel.Index, "candidates", len(candidates))
			continue
		}
		if _, dup := used[sel.Index]; dup {
			continue
		}
		used[sel.Index] = struct{}{}

		explanation := strings.TrimSpace(sel.Explanation)
		if explanation == "" {
			explanation = FallbackExplanation
		}
		ranked = append(ranked, Ranked{ID: candidates[sel.Index].ID, Explanation: explanation})
		if len(ranked) == limit {
			break
		}
	}

	if len(ranked) == 0 {
		return nil, fmt.Errorf("rerank response contained no valid selections")
	}

	return ranked, nil
}

// buildPrompt lists the candidates with their catalog details and asks for a
// JSON-only ordered selection.
func (r *LLMReranker) buildPrompt(query *extractor.StructuredQuery, candidates []Candidate, limit int) string {
	var sb strings.Builder

	sb.WriteString("You are an assessment selection system. Select the most relevant assessments for the job requirements.\n\n")
	sb.WriteString("Job requirements:\n")
	sb.WriteString(query.SearchText())
	sb.WriteString("\n")
	if query.MaxDurationMinutes > 0 {
		fmt.Fprintf(&sb, "\nTime constraint: assessments should fit within %d minutes. Prioritize assessments within this limit.\n", query.MaxDurationMinutes)
	}

	sb.WriteString("\nCandidate assessments:\n")
	for i, c := range candidates {
		fmt.Fprintf(&sb, "[%d] %s\n%s\n\n", i, c.Name, truncate(c.Document, 500))
	}

	fmt.Fprintf(&sb, `Select at least 1 and at most %d assessments, ordered from most to least relevant.
For each, give a one-sentence explanation of why it matches the job requirements.
Reference assessments ONLY by their [index] number shown above.
Output ONLY valid JSON in this exact format:
{"selections": [{"index": 0, "explanation": "..."}, {"index": 3, "explanation": "..."}]}

Only include assessments that are truly relevant. Output only JSON, no other text:`, limit)

	return sb.String()
}

// truncate cuts s to at most max bytes on a rune boundary, so a multi-byte
// character is never split into invalid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// Ensure LLMReranker implements Reranker interface.
var _ Reranker = (*LLMReranker)(nil)
