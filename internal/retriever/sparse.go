package retriever

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/hirewise/assessrec/internal/catalog"
	"github.com/hirewise/assessrec/internal/extractor"
)

// BM25 parameter defaults (standard values).
const (
	DefaultBM25K1 = 1.5
	DefaultBM25B  = 0.75
)

// bm25Doc holds the per-document term statistics.
type bm25Doc struct {
	id     string
	length int
	freq   map[string]int
}

// SparseRetriever scores lexical relevance with BM25 over an inverted
// term-frequency model built once per catalog snapshot. It is immutable
// after construction and safe for concurrent use.
type SparseRetriever struct {
	k1     float64
	b      float64
	topK   int
	docs   []bm25Doc
	df     map[string]int
	avgLen float64
}

// NewSparseRetriever builds the term-frequency model from a snapshot.
func NewSparseRetriever(snap *catalog.Snapshot, k1, b float64, topK int) *SparseRetriever {
	if k1 <= 0 {
		k1 = DefaultBM25K1
	}
	if b < 0 || b > 1 {
		b = DefaultBM25B
	}
	if topK <= 0 {
		topK = 20
	}

	r := &SparseRetriever{
		k1:   k1,
		b:    b,
		topK: topK,
		df:   make(map[string]int),
	}

	var totalLen int
	for _, item := range snap.Items() {
		tokens := Tokenize(item.DocumentText())
		doc := bm25Doc{
			id:     item.ID,
			length: len(tokens),
			freq:   make(map[string]int, len(tokens)),
		}
		for _, tok := range tokens {
			doc.freq[tok]++
		}
		for tok := range doc.freq {
			r.df[tok]++
		}
		totalLen += doc.length
		r.docs = append(r.docs, doc)
	}
	if len(r.docs) > 0 {
		r.avgLen = float64(totalLen) / float64(len(r.docs))
	}

	return r
}

// Retrieve scores the query against the corpus and returns the top matches
// with scores min-max normalized over the returned batch. It never fails:
// an empty corpus or a query with no matching terms returns an empty list.
// ctx is accepted for interface symmetry with the dense retriever.
func (r *SparseRetriever) Retrieve(_ context.Context, query *extractor.StructuredQuery) ([]ScoredItem, error) {
	if len(r.docs) == 0 {
		return nil, nil
	}

	terms := Tokenize(query.SearchText())
	if len(terms) == 0 {
		return nil, nil
	}

	// Deduplicate query terms; BM25 term frequency saturation is on the
	// document side.
	seen := make(map[string]struct{}, len(terms))
	items := make([]ScoredItem, 0, r.topK)
	n := float64(len(r.docs))

	scores := make([]float64, len(r.docs))
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		df := r.df[term]
		if df == 0 {
			continue
		}
		idf := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))

		for i := range r.docs {
			tf := float64(r.docs[i].freq[term])
			if tf == 0 {
				continue
			}
			norm := 1 - r.b + r.b*float64(r.docs[i].length)/r.avgLen
			scores[i] += idf * tf * (r.k1 + 1) / (tf + r.k1*norm)
		}
	}

	for i := range r.docs {
		if scores[i] > 0 {
			items = append(items, ScoredItem{ID: r.docs[i].id, Score: scores[i]})
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
	if len(items) > r.topK {
		items = items[:r.topK]
	}

	return normalizeBatch(items), nil
}

// normalizeBatch min-max scales scores over the batch into [0, 1]. A batch
// with zero variance normalizes to all zeros.
func normalizeBatch(items []ScoredItem) []ScoredItem {
	if len(items) == 0 {
		return items
	}

	min, max := items[0].Score, items[0].Score
	for _, it := range items[1:] {
		if it.Score < min {
			min = it.Score
		}
		if it.Score > max {
			max = it.Score
		}
	}

	span := max - min
	for i := range items {
		if span == 0 {
			items[i].Score = 0
		} else {
			items[i].Score = (items[i].Score - min) / span
		}
	}
	return items
}

// Tokenize splits text into lowercase terms with surrounding punctuation
// stripped. Single-character tokens are dropped.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]{}=<>/")
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
