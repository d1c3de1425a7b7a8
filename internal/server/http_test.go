package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hirewise/assessrec/internal/catalog"
	"github.com/hirewise/assessrec/internal/workflow"
)

type stubRecommender struct {
	result    *workflow.Result
	err       error
	reloadErr error
	snapshot  *catalog.Snapshot
	lastQuery string
}

func (s *stubRecommender) Recommend(_ context.Context, rawQuery string) (*workflow.Result, error) {
	s.lastQuery = rawQuery
	return s.result, s.err
}

func (s *stubRecommender) Reload(_ context.Context) error {
	return s.reloadErr
}

func (s *stubRecommender) Snapshot() *catalog.Snapshot {
	if s.snapshot == nil {
		return catalog.NewSnapshot(nil)
	}
	return s.snapshot
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(svc Recommender) *HTTPServer {
	return NewHTTPServer(HTTPServerConfig{Port: 0, Logger: quietLogger()}, svc)
}

func doRequest(t *testing.T, s *HTTPServer, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleRecommend_OK(t *testing.T) {
	svc := &stubRecommender{
		result: &workflow.Result{
			Recommendations: []workflow.Recommendation{
				{
					Assessment: catalog.Assessment{
						ID:              "a1",
						Name:            "Java Test",
						URL:             "https://example.com/java",
						RemoteSupport:   true,
						DurationMinutes: 40,
						TestTypes:       []string{"Knowledge & Skills"},
					},
					Score:       0.91,
					Explanation: "covers core java",
				},
			},
		},
	}
	s := newTestServer(svc)

	rec := doRequest(t, s, http.MethodPost, "/v1/recommend", `{"query": "java developer"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastQuery != "java developer" {
		t.Errorf("query not forwarded: %q", svc.lastQuery)
	}

	var resp struct {
		Recommendations []struct {
			Name        string  `json:"name"`
			URL         string  `json:"url"`
			Remote      bool    `json:"remote_testing_support"`
			Duration    int     `json:"duration_minutes"`
			Explanation string  `json:"explanation"`
			Score       float64 `json:"score"`
		} `json:"recommendations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if len(resp.Recommendations) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(resp.Recommendations))
	}
	got := resp.Recommendations[0]
	if got.Name != "Java Test" || !got.Remote || got.Duration != 40 || got.Explanation != "covers core java" {
		t.Errorf("unexpected entry: %+v", got)
	}
}

func TestHandleRecommend_EmptyResultIsOK(t *testing.T) {
	s := newTestServer(&stubRecommender{result: &workflow.Result{}})

	rec := doRequest(t, s, http.MethodPost, "/v1/recommend", `{"query": "obscure role"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty result, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"recommendations":[]`) {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestHandleRecommend_BadJSON(t *testing.T) {
	s := newTestServer(&stubRecommender{})

	rec := doRequest(t, s, http.MethodPost, "/v1/recommend", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandleRecommend_MissingQuery(t *testing.T) {
	s := newTestServer(&stubRecommender{})

	rec := doRequest(t, s, http.MethodPost, "/v1/recommend", `{"query": ""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandleRecommend_RetrievalUnavailable(t *testing.T) {
	s := newTestServer(&stubRecommender{
		err: &workflow.Error{Reason: workflow.ReasonRetrievalUnavailable, Err: errors.New("both sides down")},
	})

	rec := doRequest(t, s, http.MethodPost, "/v1/recommend", `{"query": "java"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "retrieval_unavailable") {
		t.Errorf("expected reason in body, got %s", rec.Body.String())
	}
}

func TestHandleRecommend_InternalError(t *testing.T) {
	s := newTestServer(&stubRecommender{
		err: &workflow.Error{Reason: workflow.ReasonInternalError, Err: errors.New("boom")},
	})

	rec := doRequest(t, s, http.MethodPost, "/v1/recommend", `{"query": "java"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestHandleRecommend_ValidationError(t *testing.T) {
	s := newTestServer(&stubRecommender{err: errors.New("query too long")})

	rec := doRequest(t, s, http.MethodPost, "/v1/recommend", `{"query": "x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-workflow error, got %d", rec.Code)
	}
}

func TestHandleReload(t *testing.T) {
	snap := catalog.NewSnapshot([]catalog.Assessment{
		{ID: "a1", Name: "One"},
		{ID: "a2", Name: "Two"},
	})
	s := newTestServer(&stubRecommender{snapshot: snap})

	rec := doRequest(t, s, http.MethodPost, "/v1/reload", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"items":2`) {
		t.Errorf("expected item count, got %s", rec.Body.String())
	}
}

func TestHandleReload_Failure(t *testing.T) {
	s := newTestServer(&stubRecommender{reloadErr: errors.New("source down")})

	rec := doRequest(t, s, http.MethodPost, "/v1/reload", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestHandleListAssessments(t *testing.T) {
	snap := catalog.NewSnapshot([]catalog.Assessment{{ID: "a1", Name: "One"}})
	s := newTestServer(&stubRecommender{snapshot: snap})

	rec := doRequest(t, s, http.MethodGet, "/v1/assessments", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"count":1`) {
		t.Errorf("expected count, got %s", rec.Body.String())
	}
}

func TestHandleGetAssessment(t *testing.T) {
	snap := catalog.NewSnapshot([]catalog.Assessment{{ID: "a1", Name: "One"}})
	s := newTestServer(&stubRecommender{snapshot: snap})

	rec := doRequest(t, s, http.MethodGet, "/v1/assessments/a1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"name":"One"`) {
		t.Errorf("expected assessment body, got %s", rec.Body.String())
	}
}

func TestHandleGetAssessment_NotFound(t *testing.T) {
	s := newTestServer(&stubRecommender{})

	rec := doRequest(t, s, http.MethodGet, "/v1/assessments/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(&stubRecommender{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(t, s, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestRateLimit(t *testing.T) {
	s := NewHTTPServer(HTTPServerConfig{
		Port:           0,
		Logger:         quietLogger(),
		RateLimitRPS:   1,
		RateLimitBurst: 1,
	}, &stubRecommender{})

	first := doRequest(t, s, http.MethodGet, "/healthz", "")
	if first.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", first.Code)
	}
	second := doRequest(t, s, http.MethodGet, "/healthz", "")
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request should be limited, got %d", second.Code)
	}
}
