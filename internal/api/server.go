// Package api exposes sync, scoring, and job-status operations over HTTP.
// Handlers stay thin: parameter parsing and status mapping here, everything
// else in the services they wrap.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/primary-workspace/pulseai-hackshodh/internal/carescore"
	"github.com/primary-workspace/pulseai-hackshodh/internal/ingest"
	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
	"github.com/primary-workspace/pulseai-hackshodh/internal/resilience"
)

// maxScoreBody caps the score request body at 1 MiB.
const maxScoreBody = 1 << 20

// SyncService triggers an export sync for one user.
type SyncService interface {
	Sync(ctx context.Context, userID int64) (*model.Job, error)
}

// ScoreService computes a risk score from caller-supplied signal values.
type ScoreService interface {
	Compute(ctx context.Context, userID int64, current map[string]float64, symptoms []string) (*model.Score, error)
}

// QueryStore is the read surface the handlers need.
type QueryStore interface {
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	LatestScore(ctx context.Context, userID int64) (*model.Score, error)
	Ping(ctx context.Context) error
}

// Server wires the HTTP routes to the sync and scoring services.
type Server struct {
	sync   SyncService
	scores ScoreService
	store  QueryStore
}

func NewServer(sync SyncService, scores ScoreService, store QueryStore) *Server {
	return &Server{sync: sync, scores: scores, store: store}
}

// Router builds the handler tree with the standard middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/users/{userID}/sync", s.handleSync)
		r.Post("/users/{userID}/score", s.handleScore)
		r.Get("/users/{userID}/score/latest", s.handleLatestScore)
		r.Get("/jobs/{jobID}", s.handleJob)
	})
	return r
}

// requestLogger emits one structured line per request after the response is
// written.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		zap.L().Error("health check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	job, err := s.sync.Sync(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxScoreBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unable to read request body")
		return
	}
	req, err := carescore.ParseRequest(body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	score, err := s.scores.Compute(r.Context(), userID, req.Current, req.Symptoms)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *Server) handleLatestScore(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	score, err := s.store.LatestScore(r.Context(), userID)
	if err != nil {
		zap.L().Error("latest score lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if score == nil {
		writeError(w, http.StatusNotFound, "no score recorded")
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := s.store.GetJob(r.Context(), jobID)
	if err != nil {
		zap.L().Error("job lookup failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func userIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
}

// writeServiceError maps service failures onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var invalid *carescore.ValidationError
	var unknown *carescore.UnknownUserError
	switch {
	case errors.As(err, &invalid):
		writeError(w, http.StatusUnprocessableEntity, invalid.Detail)
	case errors.As(err, &unknown):
		writeError(w, http.StatusNotFound, "no baseline data for user")
	case errors.Is(err, ingest.ErrSyncBusy):
		writeError(w, http.StatusConflict, "sync already in progress")
	case resilience.IsTransient(err):
		zap.L().Warn("source unavailable", zap.Error(err))
		writeError(w, http.StatusBadGateway, "source temporarily unavailable")
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
