package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewSnapshot_DropsInvalidAndDuplicates(t *testing.T) {
	snap := NewSnapshot([]Assessment{
		{ID: "a", Name: "Alpha"},
		{ID: "", Name: "NoID"},
		{ID: "b", Name: ""},
		{ID: "a", Name: "Alpha Dup"},
		{ID: "c", Name: "Gamma"},
	})

	if snap.Len() != 2 {
		t.Fatalf("expected 2 items, got %d", snap.Len())
	}
	if got := snap.Get("a"); got == nil || got.Name != "Alpha" {
		t.Errorf("duplicate ID should keep first record, got %+v", got)
	}
	if snap.Get("missing") != nil {
		t.Error("expected nil for unknown ID")
	}
}

func TestDocumentText(t *testing.T) {
	a := Assessment{
		ID:              "x",
		Name:            "Java Developer Test",
		Description:     "Measures Java programming skill.",
		TestTypes:       []string{"Knowledge & Skills"},
		DurationMinutes: 40,
		RemoteSupport:   true,
	}

	got := a.DocumentText()
	want := "Java Developer Test - Measures Java programming skill. Type: Knowledge & Skills. Duration: 40 minutes. Remote: yes. Adaptive: no."
	if got != want {
		t.Errorf("DocumentText mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestDocumentText_UnknownDuration(t *testing.T) {
	a := Assessment{ID: "x", Name: "N", Description: "D"}
	got := a.DocumentText()
	if want := "N - D Type: . Remote: no. Adaptive: no."; got != want {
		t.Errorf("DocumentText mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestStore_SwapIsVisible(t *testing.T) {
	store := NewStore()
	if store.Snapshot().Len() != 0 {
		t.Fatal("new store should hold an empty snapshot")
	}

	old := store.Snapshot()
	store.Swap(NewSnapshot([]Assessment{{ID: "a", Name: "Alpha"}}))

	if store.Snapshot().Len() != 1 {
		t.Error("swap should publish the new snapshot")
	}
	if old.Len() != 0 {
		t.Error("old snapshot must stay unchanged after swap")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	data := `[
		{"name": "Alpha", "url": "https://example.com/a", "remote_testing_support": "Yes", "adaptive_irt_support": "No", "duration": "35 minutes", "test_types": ["Personality"], "description": "first"},
		{"id": "b1", "name": "Beta", "url": "https://example.com/b", "remote_testing_support": "no", "duration": "", "test_types": [], "description": "second"}
	]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	snap, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if snap.Len() != 2 {
		t.Fatalf("expected 2 items, got %d", snap.Len())
	}

	// Records without an explicit ID fall back to the URL.
	a := snap.Get("https://example.com/a")
	if a == nil {
		t.Fatal("expected item keyed by URL")
	}
	if !a.RemoteSupport || a.AdaptiveSupport {
		t.Errorf("support flags parsed wrong: %+v", a)
	}
	if a.DurationMinutes != 35 {
		t.Errorf("expected duration 35, got %d", a.DurationMinutes)
	}

	b := snap.Get("b1")
	if b == nil {
		t.Fatal("expected item keyed by explicit ID")
	}
	if b.DurationMinutes != 0 {
		t.Errorf("empty duration should parse to 0, got %d", b.DurationMinutes)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"35 minutes", 35},
		{"60", 60},
		{"", 0},
		{"N/A", 0},
		{"about ten", 0},
	}
	for _, tt := range tests {
		if got := parseDuration(tt.in); got != tt.want {
			t.Errorf("parseDuration(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
