// Package server exposes the pipeline over HTTP. The server owns the
// per-request deadline around the pipeline and keeps no state across
// requests.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skillbridge-labs/fedsql/internal/decompose"
	"github.com/skillbridge-labs/fedsql/internal/llm"
	"github.com/skillbridge-labs/fedsql/internal/pipeline"
)

// Version reported by the health endpoint.
const Version = "1.0.0"

// Answerer is the pipeline capability the server depends on.
type Answerer interface {
	Answer(ctx context.Context, question string, maxRows int) (*pipeline.Result, error)
}

// Server wraps the pipeline with an HTTP API.
type Server struct {
	answerer       Answerer
	logger         *slog.Logger
	requestTimeout time.Duration
	batchMaxRows   int
}

// Option configures a Server.
type Option func(*Server)

// WithRequestTimeout bounds how long one pipeline run may take. The merge
// sandbox has no internal timeout; this deadline is what stops it.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithBatchMaxRows sets the per-question row cap applied to batch requests
// that do not supply one.
func WithBatchMaxRows(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.batchMaxRows = n
		}
	}
}

// New creates a Server.
func New(answerer Answerer, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		answerer:       answerer,
		logger:         logger,
		requestTimeout: 60 * time.Second,
		batchMaxRows:   pipeline.DefaultBatchMaxRows,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/query", s.handleQuery)
	r.Post("/api/query/batch", s.handleBatch)
	r.Get("/api/examples", s.handleExamples)

	return r
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// corsMiddleware allows browser frontends on other origins to call the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type queryRequest struct {
	Query   string `json:"query"`
	MaxRows int    `json:"max_rows"`
}

type batchRequest struct {
	Queries []string `json:"queries"`
	MaxRows int      `json:"max_rows"`
}

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorType string `json:"error_type,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "fedsql",
		"version": Version,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query is required in request body"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	res, err := s.answerer.Answer(ctx, req.Query, req.MaxRows)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"query":         req.Query,
		"request_id":    res.RequestID,
		"decomposition": res.Decomposition,
		"results": map[string]any{
			"course": res.Course,
			"job":    res.Job,
			"merged": res.Merged,
		},
		"final_answer": res.Answer,
	})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if len(req.Queries) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "queries array is required"})
		return
	}
	maxRows := req.MaxRows
	if maxRows <= 0 {
		maxRows = s.batchMaxRows
	}

	// Batch is N independent pipeline runs; one question failing does not
	// fail the batch.
	results := make([]map[string]any, 0, len(req.Queries))
	for _, q := range req.Queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
		res, err := s.answerer.Answer(ctx, q, maxRows)
		cancel()
		if err != nil {
			results = append(results, map[string]any{
				"success": false,
				"query":   q,
				"error":   err.Error(),
			})
			continue
		}

		results = append(results, map[string]any{
			"success":    true,
			"query":      q,
			"course_sql": res.Decomposition.CourseSQL,
			"job_sql":    res.Decomposition.JobSQL,
			"row_counts": map[string]int{
				"course": res.Course.RowCount,
				"job":    res.Job.RowCount,
				"merged": res.Merged.RowCount,
			},
			"final_answer": res.Answer,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"total_queries": len(results),
		"results":       results,
	})
}

// ExampleQuestions are preset questions offered as starters by the API and
// the interactive shell.
var ExampleQuestions = []string{
	"courses that teach React and frontend jobs requiring React",
	"compare courses that teach cloud skills with jobs requiring cloud integrations",
	"which courses map to frontend jobs requiring TypeScript and 3 to 5 years experience",
	"list courses for BTech graduates and roles that accept BTech",
	"compare salaries between backend roles and frontend roles for candidates with 5 years experience",
	"which courses help frontend developers become full stack engineers and what openings match that transition",
	"top skills taught in courses that match job postings requiring Vue.js or React",
	"jobs with remote work and courses offering online delivery",
}

func (s *Server) handleExamples(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"examples": ExampleQuestions,
	})
}

// writeError maps pipeline failures onto HTTP statuses: an unreachable
// model is a service error, a failed decomposition is the request's fault.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var unavailable *llm.UnavailableError
	if errors.As(err, &unavailable) {
		s.logger.Error("llm unavailable", slog.Any("error", err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:     fmt.Sprintf("language model unavailable: %v", unavailable.Err),
			ErrorType: "llm_error",
		})
		return
	}

	var dErr *decompose.Error
	if errors.As(err, &dErr) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:     dErr.Error(),
			ErrorType: "decomposition_error",
		})
		return
	}

	s.logger.Error("request failed", slog.Any("error", err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:     err.Error(),
		ErrorType: "server_error",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
