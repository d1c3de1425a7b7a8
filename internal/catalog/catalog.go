// Package catalog holds the read-only assessment corpus shared by all requests.
//
// The corpus is produced by an external crawler and replaced wholesale on
// refresh. Concurrent requests read a single consistent Snapshot; Reload swaps
// the whole snapshot atomically and never mutates one in place.
package catalog

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// Assessment is one immutable catalog item as produced by the crawler.
type Assessment struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	URL             string    `json:"url"`
	RemoteSupport   bool      `json:"remote_testing_support"`
	AdaptiveSupport bool      `json:"adaptive_irt_support"`
	// DurationMinutes is 0 when the catalog entry does not state a duration.
	DurationMinutes int       `json:"duration_minutes"`
	TestTypes       []string  `json:"test_types"`
	Description     string    `json:"description"`
	// Embedding is the precomputed document vector, present when the crawler
	// ran the embedding step. May be empty for deployments that embed at load.
	Embedding       []float32 `json:"embedding,omitempty"`
}

// DocumentText returns the searchable text for an assessment. The same text
// is used as the embedding input and as the BM25 document, so dense and
// sparse retrieval score the same content.
func (a *Assessment) DocumentText() string {
	var sb strings.Builder
	sb.WriteString(a.Name)
	sb.WriteString(" - ")
	sb.WriteString(a.Description)
	sb.WriteString(" Type: ")
	sb.WriteString(strings.Join(a.TestTypes, ", "))
	sb.WriteString(".")
	if a.DurationMinutes > 0 {
		fmt.Fprintf(&sb, " Duration: %d minutes.", a.DurationMinutes)
	}
	fmt.Fprintf(&sb, " Remote: %s. Adaptive: %s.", yesNo(a.RemoteSupport), yesNo(a.AdaptiveSupport))
	return sb.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Snapshot is one immutable corpus generation.
type Snapshot struct {
	items []Assessment
	byID  map[string]*Assessment
}

// NewSnapshot builds a snapshot from crawler output. Records without an ID or
// name are dropped; a duplicate ID keeps the first record seen.
func NewSnapshot(items []Assessment) *Snapshot {
	s := &Snapshot{
		items: make([]Assessment, 0, len(items)),
		byID:  make(map[string]*Assessment, len(items)),
	}
	for _, it := range items {
		if it.ID == "" || it.Name == "" {
			continue
		}
		if _, dup := s.byID[it.ID]; dup {
			continue
		}
		s.items = append(s.items, it)
	}
	for i := range s.items {
		s.byID[s.items[i].ID] = &s.items[i]
	}
	return s
}

// Get returns the assessment with the given ID, or nil.
func (s *Snapshot) Get(id string) *Assessment {
	return s.byID[id]
}

// Items returns all assessments in insertion order. Callers must not mutate
// the returned slice.
func (s *Snapshot) Items() []Assessment {
	return s.items
}

// Len returns the number of assessments in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.items)
}

// IDs returns all assessment IDs sorted ascending.
func (s *Snapshot) IDs() []string {
	ids := make([]string, 0, len(s.items))
	for i := range s.items {
		ids = append(ids, s.items[i].ID)
	}
	sort.Strings(ids)
	return ids
}

// Store publishes the current snapshot to concurrent readers.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore creates a store holding an empty snapshot.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(NewSnapshot(nil))
	return s
}

// Snapshot returns the current corpus generation. The result stays valid for
// the lifetime of a request even if the store is reloaded concurrently.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Swap atomically replaces the current snapshot.
func (s *Store) Swap(next *Snapshot) {
	s.current.Store(next)
}
