package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"transfer-ever/internal/journal"
)

func seededStore(t *testing.T, n int) *journal.MemoryStore {
	t.Helper()
	store := journal.NewMemoryStore()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		run := &journal.Run{
			ID:        fmt.Sprintf("run-%02d", i),
			AssetCode: "EVER",
			Amount:    "150",
			State:     "DONE",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Save(context.Background(), run); err != nil {
			t.Fatalf("seed run: %v", err)
		}
	}
	return store
}

func TestHandleRunDetail(t *testing.T) {
	server := NewServer(":0", seededStore(t, 2))
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/run-01", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusOK)
	}
	var run journal.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.ID != "run-01" || run.State != "DONE" {
		t.Fatalf("unexpected run %+v", run)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleListRuns(t *testing.T) {
	handler := NewServer(":0", seededStore(t, 5)).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var runs []journal.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-04" || runs[1].ID != "run-03" {
		t.Fatalf("expected newest two runs, got %+v", runs)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestListRunsEmptyIsArray(t *testing.T) {
	handler := NewServer(":0", journal.NewMemoryStore()).Handler()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %q", rec.Body.String())
	}
}

type failingReader struct{}

func (failingReader) Get(context.Context, string) (*journal.Run, error) {
	return nil, errors.New("connection refused")
}

func (failingReader) ListLatest(context.Context, int) ([]*journal.Run, error) {
	return nil, errors.New("connection refused")
}

func TestRunEndpointsReportFailures(t *testing.T) {
	handler := NewServer(":0", failingReader{}).Handler()
	for _, path := range []string{"/api/v1/runs", "/api/v1/runs/x"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s: expected 500, got %d", path, rec.Code)
		}
		if strings.Contains(rec.Body.String(), "connection refused") {
			t.Fatalf("%s: internal error leaked: %s", path, rec.Body.String())
		}
	}

	unconfigured := NewServer(":0", nil).Handler()
	rec := httptest.NewRecorder()
	unconfigured.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without journal, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	handler := NewServer(":0", nil).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "transferd_http_request_duration_seconds") {
		t.Fatalf("metrics endpoint missing http histogram")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestWithContextRejectsAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	handler := withContext(ctx, NewServer(":0", nil).Handler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 after shutdown, got %d", rec.Code)
	}
}
