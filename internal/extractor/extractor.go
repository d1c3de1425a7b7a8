// Package extractor turns raw job-description text into a structured query
// using an LLM, with a raw-text fallback when the model is unavailable.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hirewise/assessrec/internal/llm"
)

// StructuredQuery is the extraction result for one request. It is immutable
// once produced. RawText is always populated so retrieval can fall back to
// raw-text matching when the structured fields are empty.
type StructuredQuery struct {
	RawText     string
	Role        string
	Skills      []string
	Preferences []string
	TestTypes   []string
	// MaxDurationMinutes is 0 when the query states no time constraint.
	MaxDurationMinutes int
}

// SearchText returns the text used as retrieval input: the structured fields
// when extraction succeeded, concatenated with the raw text.
func (q *StructuredQuery) SearchText() string {
	parts := make([]string, 0, 4)
	if q.Role != "" {
		parts = append(parts, q.Role)
	}
	if len(q.Skills) > 0 {
		parts = append(parts, strings.Join(q.Skills, " "))
	}
	if len(q.Preferences) > 0 {
		parts = append(parts, strings.Join(q.Preferences, " "))
	}
	if len(q.TestTypes) > 0 {
		parts = append(parts, strings.Join(q.TestTypes, " "))
	}
	if len(parts) == 0 {
		return q.RawText
	}
	parts = append(parts, q.RawText)
	return strings.Join(parts, " ")
}

const extractPrompt = `Extract the following structured information from the job description below:
- role (job title or general function)
- skills (list of technologies, concepts, or traits expected)
- preferences (assessment-related preferences like adaptive, coding, remote etc.)
- max_duration_minutes (integer, 0 if no time constraint is mentioned)
- test_types (type of assessments expected like coding, numerical, personality etc.)

Respond ONLY with JSON in this exact format:
{"role": "...", "skills": ["..."], "preferences": ["..."], "max_duration_minutes": 0, "test_types": ["..."]}

Job description:
<job_description>
%s
</job_description>
`

// extractResponse is the LLM's output schema. max_duration_minutes tolerates
// both numbers and strings like "60 minutes".
type extractResponse struct {
	Role               string          `json:"role"`
	Skills             []string        `json:"skills"`
	Preferences        []string        `json:"preferences"`
	MaxDurationMinutes json.RawMessage `json:"max_duration_minutes"`
	TestTypes          []string        `json:"test_types"`
}

// Extractor derives structured queries from raw text via an LLM.
type Extractor struct {
	llmClient llm.LLM
	model     string
}

// Option is a functional option for configuring Extractor.
type Option func(*Extractor)

// WithModel sets the model used for extraction.
func WithModel(model string) Option {
	return func(e *Extractor) {
		e.model = model
	}
}

// New creates an Extractor backed by the given LLM client.
func New(llmClient llm.LLM, opts ...Option) *Extractor {
	e := &Extractor{llmClient: llmClient}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract derives a StructuredQuery from raw text. The returned query is
// always usable: when the LLM call fails or its output cannot be parsed,
// only RawText is populated and the error describes what was skipped.
// Callers log the error and continue; it is never fatal.
func (e *Extractor) Extract(ctx context.Context, raw string) (*StructuredQuery, error) {
	fallback := &StructuredQuery{RawText: raw}

	response, err := e.llmClient.Generate(ctx, fmt.Sprintf(extractPrompt, raw), llm.GenerateOptions{
		Model:       e.model,
		Temperature: 0.0, // Deterministic extraction
		MaxTokens:   512,
	})
	if err != nil {
		return fallback, fmt.Errorf("extraction call failed: %w", err)
	}

	var parsed extractResponse
	if err := json.Unmarshal([]byte(llm.StripCodeFences(response)), &parsed); err != nil {
		return fallback, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	return &StructuredQuery{
		RawText:            raw,
		Role:               strings.TrimSpace(parsed.Role),
		Skills:             cleanList(parsed.Skills),
		Preferences:        cleanList(parsed.Preferences),
		TestTypes:          cleanList(parsed.TestTypes),
		MaxDurationMinutes: parseDuration(parsed.MaxDurationMinutes),
	}, nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// parseDuration reads a duration value that the model may emit as a number,
// a quoted number, or a string like "60 minutes". Negative or absent means 0.
func parseDuration(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		if n < 0 {
			return 0
		}
		return n
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n < 0 {
		return 0
	}
	return n
}
