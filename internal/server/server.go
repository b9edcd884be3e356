package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/user/vistela-backend/internal/model"
	"github.com/user/vistela-backend/internal/storage"
	"github.com/user/vistela-backend/internal/store"
	"github.com/user/vistela-backend/internal/upload"
)

// maxUploadBytes bounds the multipart form memory footprint per request.
const maxUploadBytes = 32 << 20

// Metrics for Prometheus
var (
	videosTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vistela_videos_total",
		Help: "Total number of video records in the database",
	})

	uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vistela_uploads_total",
		Help: "Total number of upload operations",
	}, []string{"status"})

	uploadDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vistela_upload_duration_seconds",
		Help:    "Duration of upload operations in seconds",
		Buckets: prometheus.DefBuckets,
	})

	errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vistela_errors_total",
		Help: "Total number of errors",
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(videosTotal)
	prometheus.MustRegister(uploadsTotal)
	prometheus.MustRegister(uploadDurationSeconds)
	prometheus.MustRegister(errorsTotal)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
}

// Server handles HTTP requests for health checks, metrics and video routes
type Server struct {
	store     store.Store
	uploads   *upload.Service
	limiter   *rate.Limiter
	router    *http.ServeMux
	server    *http.Server
	startTime time.Time
}

// NewServer creates a new HTTP server instance. uploadRate bounds how many
// upload requests per second are admitted.
func NewServer(s store.Store, uploads *upload.Service, uploadRate float64) *Server {
	srv := &Server{
		store:     s,
		uploads:   uploads,
		limiter:   rate.NewLimiter(rate.Limit(uploadRate), 1),
		router:    http.NewServeMux(),
		startTime: time.Now(),
	}

	srv.setupRoutes()
	return srv
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.Handle("GET /metrics", promhttp.Handler())

	s.router.HandleFunc("POST /videos", s.handleUpload)
	s.router.HandleFunc("GET /videos", s.handleList)
	s.router.HandleFunc("GET /videos/{id}", s.handleGet)
	s.router.HandleFunc("PATCH /videos/{id}/status", s.handleUpdateStatus)
	s.router.HandleFunc("DELETE /videos/{id}", s.handleDelete)
}

// Start begins listening on the specified port
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Int("port", port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Info().Msg("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler returns the route handler (for testing purposes)
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth returns JSON with status, database connectivity, and uptime
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbStatus := "healthy"
	if err := s.store.Ping(ctx); err != nil {
		dbStatus = fmt.Sprintf("unhealthy: %v", err)
	}

	uptime := time.Since(s.startTime).Round(time.Second).String()

	status := "healthy"
	if dbStatus != "healthy" {
		status = "unhealthy"
	}

	response := HealthResponse{
		Status:   status,
		Database: dbStatus,
		Uptime:   uptime,
	}

	w.Header().Set("Content-Type", "application/json")
	if status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to encode health response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleUpload accepts a multipart upload with a "file" part and a
// "user_id" field, stores the bytes and records the video.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		errorsTotal.WithLabelValues("rate_limited").Inc()
		http.Error(w, "Too many upload requests", http.StatusTooManyRequests)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	userID := r.FormValue("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file part is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	start := time.Now()
	record, err := s.uploads.UploadVideo(r.Context(), userID, header.Filename, file)
	uploadDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		uploadsTotal.WithLabelValues("failed").Inc()
		s.writeError(w, err)
		return
	}
	uploadsTotal.WithLabelValues("success").Inc()

	if count, err := s.store.Count(r.Context()); err == nil {
		videosTotal.Set(float64(count))
	}

	s.writeJSON(w, http.StatusCreated, record)
}

// handleGet returns a single video record by ID
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("id")

	record, err := s.store.Get(r.Context(), videoID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if record == nil {
		http.Error(w, "Video not found", http.StatusNotFound)
		return
	}

	s.writeJSON(w, http.StatusOK, record)
}

// handleList returns video records filtered by user_id and status query
// parameters, newest first, capped by limit.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	filter := store.ListFilter{
		UserID: r.URL.Query().Get("user_id"),
		Status: model.VideoStatus(r.URL.Query().Get("status")),
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	records, err := s.store.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if records == nil {
		records = []*model.VideoRecord{}
	}

	s.writeJSON(w, http.StatusOK, records)
}

// statusUpdateRequest is the PATCH /videos/{id}/status body
type statusUpdateRequest struct {
	Status model.VideoStatus `json:"status"`
}

// handleUpdateStatus moves a video to a new status
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("id")

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		http.Error(w, "status is required", http.StatusBadRequest)
		return
	}

	if err := s.store.UpdateStatus(r.Context(), videoID, req.Status); err != nil {
		s.writeError(w, err)
		return
	}

	record, err := s.store.Get(r.Context(), videoID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, record)
}

// handleDelete removes a video record and its stored object
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("id")

	if err := s.uploads.DeleteVideo(r.Context(), videoID); err != nil {
		s.writeError(w, err)
		return
	}

	if count, err := s.store.Count(r.Context()); err == nil {
		videosTotal.Set(float64(count))
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeJSON encodes v as the response body with the given status code
func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps data-layer errors onto HTTP status codes, preserving
// the classification instead of downgrading everything to 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		errorsTotal.WithLabelValues("conflict").Inc()
		http.Error(w, "Video already exists", http.StatusConflict)
	case errors.Is(err, store.ErrNotFound):
		errorsTotal.WithLabelValues("not_found").Inc()
		http.Error(w, "Video not found", http.StatusNotFound)
	case errors.Is(err, store.ErrInvalidTransition):
		errorsTotal.WithLabelValues("invalid_transition").Inc()
		http.Error(w, "Illegal status transition", http.StatusConflict)
	case errors.Is(err, store.ErrNotConfigured), errors.Is(err, storage.ErrNotConfigured):
		errorsTotal.WithLabelValues("configuration").Inc()
		log.Error().Err(err).Msg("Configuration error")
		http.Error(w, "Service misconfigured", http.StatusInternalServerError)
	case errors.Is(err, storage.ErrAccessDenied), errors.Is(err, storage.ErrBucketNotFound),
		errors.Is(err, storage.ErrTransient):
		errorsTotal.WithLabelValues("storage").Inc()
		log.Error().Err(err).Msg("Object store error")
		http.Error(w, "Object store unavailable", http.StatusBadGateway)
	default:
		errorsTotal.WithLabelValues("internal").Inc()
		log.Error().Err(err).Msg("Unexpected error")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
