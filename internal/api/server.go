package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"transfer-ever/internal/journal"
	"transfer-ever/internal/observability/metrics"
	"transfer-ever/pkg/logger"
)

// RunReader is the part of the journal the API needs.
type RunReader interface {
	Get(ctx context.Context, id string) (*journal.Run, error)
	ListLatest(ctx context.Context, limit int) ([]*journal.Run, error)
}

// Server serves the operator endpoints.
type Server struct {
	addr string
	runs RunReader
}

// NewServer builds a Server. runs may be nil, in which case the run
// endpoints answer 503.
func NewServer(addr string, runs RunReader) *Server {
	return &Server{addr: addr, runs: runs}
}

// Handler returns the routed handler with metrics instrumentation.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", instrument("healthz", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /metrics", instrument("metrics", metrics.Handler()))
	mux.Handle("GET /api/v1/runs", instrument("runs_list", http.HandlerFunc(s.handleListRuns)))
	mux.Handle("GET /api/v1/runs/{id}", instrument("runs_detail", http.HandlerFunc(s.handleRunDetail)))
	return mux
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.L().Info("ops api listening", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run journal not configured")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	runs, err := s.runs.ListLatest(r.Context(), journal.NormalizeLimit(limit))
	if err != nil {
		logger.L().Error("list runs failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*journal.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run journal not configured")
		return
	}
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "run id is required")
		return
	}
	run, err := s.runs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		logger.L().Error("load run failed", slog.Any("error", err), slog.String("run_id", id))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.ObserveHTTPRequest(name, r.Method, rec.status, time.Since(start))
	})
}

// withContext refuses requests once the root context is done.
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			writeError(w, http.StatusServiceUnavailable, "service shutting down")
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
