package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// fileRecord mirrors the crawler's JSON output. The crawler writes some
// fields as free-form strings ("Yes"/"No", "35 minutes"); they are coerced
// into the typed Assessment here so the rest of the system never sees them.
type fileRecord struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	URL             string    `json:"url"`
	RemoteSupport   string    `json:"remote_testing_support"`
	AdaptiveSupport string    `json:"adaptive_irt_support"`
	Duration        string    `json:"duration"`
	TestTypes       []string  `json:"test_types"`
	Description     string    `json:"description"`
	Embedding       []float32 `json:"embedding,omitempty"`
}

// FileSource loads the catalog from a crawler JSON file.
type FileSource struct {
	Path string
}

// Load implements the catalog source contract over LoadFile.
func (s FileSource) Load(_ context.Context) (*Snapshot, error) {
	return LoadFile(s.Path)
}

// LoadFile reads crawler output from a JSON file and builds a snapshot.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var records []fileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	items := make([]Assessment, 0, len(records))
	for _, r := range records {
		id := r.ID
		if id == "" {
			// Older crawler output has no explicit ID; the URL is unique.
			id = r.URL
		}
		items = append(items, Assessment{
			ID:              id,
			Name:            r.Name,
			URL:             r.URL,
			RemoteSupport:   parseYes(r.RemoteSupport),
			AdaptiveSupport: parseYes(r.AdaptiveSupport),
			DurationMinutes: parseDuration(r.Duration),
			TestTypes:       r.TestTypes,
			Description:     r.Description,
			Embedding:       r.Embedding,
		})
	}

	return NewSnapshot(items), nil
}

func parseYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true":
		return true
	}
	return false
}

// parseDuration extracts the leading integer from strings like "35 minutes"
// or "35". Returns 0 when no duration is stated.
func parseDuration(s string) int {
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
