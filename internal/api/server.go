package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/framesight/framesight/internal/detection"
	"github.com/framesight/framesight/internal/events"
	"github.com/framesight/framesight/internal/model"
	"github.com/framesight/framesight/internal/pipeline"
	"github.com/framesight/framesight/internal/storage"
)

// Server exposes the detection pipeline over HTTP. Runs execute
// asynchronously; clients poll run status or subscribe over WebSocket.
type Server struct {
	pipeline *pipeline.Pipeline
	registry *model.Registry
	db       *storage.DB
	bus      *events.Bus // nil disables event publishing
	hub      *Hub
	logger   *slog.Logger

	screenshotsDir string

	mu   sync.RWMutex
	jobs map[string]*Job
}

// Job tracks one asynchronous pipeline run.
type Job struct {
	ID        string           `json:"id"`
	VideoPath string           `json:"video_path"`
	Status    string           `json:"status"` // "running", "completed", "degraded", "failed"
	Error     string           `json:"error,omitempty"`
	Result    *pipeline.Result `json:"result,omitempty"`
	StartedAt time.Time        `json:"started_at"`
}

// NewServer creates the API server. bus may be nil.
func NewServer(p *pipeline.Pipeline, registry *model.Registry, db *storage.DB, bus *events.Bus, screenshotsDir string) *Server {
	return &Server{
		pipeline:       p,
		registry:       registry,
		db:             db,
		bus:            bus,
		hub:            NewHub(),
		logger:         slog.Default().With("component", "api"),
		screenshotsDir: screenshotsDir,
		jobs:           make(map[string]*Job),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/api/health", s.handleHealth)

	r.Route("/api/runs", func(r chi.Router) {
		r.Post("/", s.handleSubmitRun)
		r.Get("/", s.handleListRuns)
		r.Get("/{runID}", s.handleGetRun)
		r.Get("/{runID}/detections", s.handleGetDetections)
	})

	r.Route("/api/models", func(r chi.Router) {
		r.Get("/", s.handleListModels)
		r.Post("/active", s.handleSetActiveModel)
	})

	if s.screenshotsDir != "" {
		r.Handle("/api/screenshots/*", http.StripPrefix("/api/screenshots/",
			http.FileServer(http.Dir(s.screenshotsDir))))
	}

	r.Get("/ws", s.hub.ServeHTTP)

	return r
}

// Hub returns the WebSocket hub, for broadcasting from other
// components.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	running := 0
	for _, j := range s.jobs {
		if j.Status == "running" {
			running++
		}
	}
	s.mu.RUnlock()

	OK(w, map[string]any{
		"status":       "ok",
		"running_jobs": running,
		"ws_clients":   s.hub.ClientCount(),
	})
}

type submitRunRequest struct {
	VideoPath string              `json:"video_path"`
	Config    *pipeline.RunConfig `json:"config,omitempty"`
}

func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req submitRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.VideoPath == "" {
		BadRequest(w, "video_path is required")
		return
	}

	job := &Job{
		ID:        uuid.New().String(),
		VideoPath: req.VideoPath,
		Status:    "running",
		StartedAt: time.Now(),
	}

	// Snapshot before the worker goroutine can touch the job; handlers
	// must never hand the live pointer to the JSON encoder.
	snap := *job

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	go s.runJob(job, req.Config)

	Accepted(w, snap)
}

// runJob executes the pipeline and records the outcome.
func (s *Server) runJob(job *Job, cfg *pipeline.RunConfig) {
	s.publish(events.SubjectRunStarted, map[string]string{
		"job_id":     job.ID,
		"video_path": job.VideoPath,
	})
	s.hub.Broadcast(MessageTypeRunStarted, job)

	result, err := s.pipeline.ProcessVideo(context.Background(), job.VideoPath, cfg)

	if err != nil {
		s.mu.Lock()
		job.Status = "failed"
		job.Error = err.Error()
		job.Result = result
		snap := *job
		s.mu.Unlock()

		s.logger.Error("Run failed", "job_id", snap.ID, "video", snap.VideoPath, "error", err)
		s.publish(events.SubjectRunFinished, snap)
		s.hub.Broadcast(MessageTypeRunFinished, snap)
		return
	}

	// Persist before exposing the terminal status, so a client that
	// sees the finished job can always fetch the stored run.
	if s.db != nil {
		if dbErr := s.db.SaveResult(context.Background(), result); dbErr != nil {
			s.logger.Error("Persisting run failed", "run_id", result.RunID, "error", dbErr)
		}
	}

	s.mu.Lock()
	job.Status = string(result.State)
	job.Result = result
	snap := *job
	s.mu.Unlock()

	for _, det := range result.Detections {
		s.publish(events.SubjectDetection, det)
		s.hub.Broadcast(MessageTypeDetection, det)
	}

	s.publish(events.SubjectRunFinished, snap)
	s.hub.Broadcast(MessageTypeRunFinished, snap)
}

func (s *Server) publish(subject string, payload any) {
	if s.bus == nil {
		return
	}
	_ = s.bus.Publish(subject, payload)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	// In-flight jobs first, then persisted history.
	s.mu.RLock()
	active := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if j.Status == "running" {
			active = append(active, *j)
		}
	}
	s.mu.RUnlock()

	var history []storage.RunRecord
	if s.db != nil {
		var err error
		history, err = s.db.ListRuns(r.Context(), 50)
		if err != nil {
			InternalError(w, err.Error())
			return
		}
	}

	OK(w, map[string]any{
		"active":  active,
		"history": history,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	s.mu.RLock()
	job, ok := s.jobs[runID]
	var snap Job
	if ok {
		snap = *job
	}
	s.mu.RUnlock()
	if ok {
		OK(w, snap)
		return
	}

	if s.db != nil {
		rec, err := s.db.GetRun(r.Context(), runID)
		if err == nil {
			OK(w, rec)
			return
		}
		if !errors.Is(err, sql.ErrNoRows) {
			InternalError(w, err.Error())
			return
		}
	}

	NotFound(w, "run not found: "+runID)
}

func (s *Server) handleGetDetections(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	// Completed in-memory jobs carry their result directly.
	s.mu.RLock()
	job, ok := s.jobs[runID]
	var result *pipeline.Result
	if ok {
		result = job.Result
	}
	s.mu.RUnlock()
	if result != nil {
		OK(w, result.Detections)
		return
	}

	if s.db != nil {
		dets, err := s.db.GetDetections(r.Context(), runID)
		if err != nil {
			InternalError(w, err.Error())
			return
		}
		if len(dets) > 0 {
			OK(w, dets)
			return
		}
		// A run with zero detections is a valid outcome; only an
		// unknown run is a 404.
		if _, err := s.db.GetRun(r.Context(), runID); err == nil {
			OK(w, []detection.Detection{})
			return
		} else if !errors.Is(err, sql.ErrNoRows) {
			InternalError(w, err.Error())
			return
		}
	}

	NotFound(w, "run not found: "+runID)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	names, active := s.registry.Names()
	OK(w, map[string]any{
		"models": names,
		"active": active,
	})
}

func (s *Server) handleSetActiveModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if err := s.registry.SetActive(req.Name); err != nil {
		if errors.Is(err, model.ErrModelUnavailable) {
			NotFound(w, err.Error())
			return
		}
		InternalError(w, err.Error())
		return
	}

	s.logger.Info("Active model changed", "model", req.Name)
	OK(w, map[string]string{"active": req.Name})
}
