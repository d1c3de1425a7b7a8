package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func embeddingHandler(vec []float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(ollamaResponse{Embedding: vec})
	}
}

func newTestEmbedder(url string) *OllamaEmbedder {
	return NewOllamaEmbedder(OllamaConfig{
		BaseURL:     url,
		Model:       "test-model",
		Dimension:   3,
		CallTimeout: 5 * time.Second,
		MaxAttempts: 3,
	})
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(embeddingHandler([]float64{0.1, 0.2, 0.3}))
	defer srv.Close()

	e := newTestEmbedder(srv.URL)
	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3 dimensions, got %d", len(vec))
	}
	if vec[0] != 0.1 || vec[2] != 0.3 {
		t.Errorf("unexpected vector: %v", vec)
	}
}

func TestEmbed_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float64{1}})
	}))
	defer srv.Close()

	e := newTestEmbedder(srv.URL)
	if _, err := e.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("expected retry to recover: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestEmbed_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer srv.Close()

	e := newTestEmbedder(srv.URL)
	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error on 400")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("client errors must not be retried, got %d attempts", got)
	}
}

func TestEmbed_EmptyEmbedding(t *testing.T) {
	srv := httptest.NewServer(embeddingHandler(nil))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, MaxAttempts: 1})
	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Error("expected error on empty embedding")
	}
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		// Echo the text length back so each input maps to a distinct vector.
		_ = json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float64{float64(len(req.Prompt))}})
	}))
	defer srv.Close()

	e := newTestEmbedder(srv.URL)
	out, err := e.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(out))
	}
	for i, want := range []float32{1, 2, 3} {
		if out[i][0] != want {
			t.Errorf("position %d: got %v, want %v", i, out[i][0], want)
		}
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	e := newTestEmbedder("http://unused")
	out, err := e.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty result, got %d", len(out))
	}
}

func TestDefaults(t *testing.T) {
	e := NewOllamaEmbedder(OllamaConfig{})
	if e.ModelName() != DefaultOllamaModel {
		t.Errorf("expected default model, got %s", e.ModelName())
	}
	if e.Dimension() != DefaultOllamaDimension {
		t.Errorf("expected default dimension, got %d", e.Dimension())
	}
}
