package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/unais0397/Resume-NER-Parser-Backend/internal/config"
	"github.com/unais0397/Resume-NER-Parser-Backend/internal/model"
	"github.com/unais0397/Resume-NER-Parser-Backend/internal/ner"
	"github.com/unais0397/Resume-NER-Parser-Backend/internal/pipeline"
)

// ModelController is the part of the model manager the API drives.
type ModelController interface {
	Get() (*model.Handle, error)
	Unload() bool
	Status() model.Status
}

// Server is the HTTP API server for resume entity extraction.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	worker       *pipeline.Worker
	models       ModelController
	stats        *ner.InferenceStats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. The worker serves
// synchronous extraction; the orchestrator serves queued jobs.
func NewServer(orch *pipeline.Orchestrator, worker *pipeline.Worker, models ModelController, stats *ner.InferenceStats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		worker:       worker,
		models:       models,
		stats:        stats,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/extract", s.handleExtract)

		r.Post("/jobs", s.handleSubmitJob)
		r.Get("/jobs/{jobID}", s.handleJobStatus)

		r.Get("/model", s.handleModelStatus)
		r.Post("/model/load", s.handleModelLoad)
		r.Delete("/model", s.handleModelUnload)

		r.Get("/stats", s.handleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"model_loaded": s.models.Status().Loaded,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
