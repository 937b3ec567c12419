// Package api exposes audit runs over HTTP: starting runs, polling status,
// fetching reports and streaming step progress.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/yaserfarook1/SentinalLens/internal/audit"
	"github.com/yaserfarook1/SentinalLens/internal/models"
	"github.com/yaserfarook1/SentinalLens/internal/store"
	"github.com/yaserfarook1/SentinalLens/internal/workspace"
)

// Options configures the API server.
type Options struct {
	Workspace    workspace.Workspace
	Store        *store.Store
	Region       string
	Concurrency  int
	LookbackDays int
	ExcludeTable func(name string) bool
	Logger       *slog.Logger
	// RunTimeout bounds a background audit run.
	RunTimeout time.Duration
}

// Server routes audit API requests and owns the background runs it starts.
type Server struct {
	opts Options
	hub  *progressHub
}

// New validates options and builds the server.
func New(opts Options) (*Server, error) {
	if opts.Workspace == nil {
		return nil, errors.New("api: workspace is required")
	}
	if opts.Store == nil {
		return nil, errors.New("api: store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 90
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 15 * time.Minute
	}
	return &Server{opts: opts, hub: newProgressHub()}, nil
}

// Router builds the chi router for the audit API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1/audits", func(r chi.Router) {
		r.Post("/", s.handleStartAudit)
		r.Get("/", s.handleListRuns)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", s.handleGetRun)
			r.Get("/report", s.handleGetReport)
			r.Get("/events", s.handleEvents)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

type startAuditRequest struct {
	WorkspaceID  string `json:"workspace_id"`
	LookbackDays int    `json:"lookback_days"`
}

type startAuditResponse struct {
	RunID  string           `json:"run_id"`
	Status models.RunStatus `json:"status"`
}

func (s *Server) handleStartAudit(w http.ResponseWriter, r *http.Request) {
	var req startAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WorkspaceID == "" {
		writeError(w, http.StatusBadRequest, "workspace_id is required")
		return
	}
	if req.LookbackDays <= 0 {
		req.LookbackDays = s.opts.LookbackDays
	}

	run := &models.AuditRun{
		ID:           uuid.NewString(),
		WorkspaceID:  req.WorkspaceID,
		LookbackDays: req.LookbackDays,
		Status:       models.RunQueued,
	}
	if err := s.opts.Store.SaveRun(r.Context(), run); err != nil {
		s.opts.Logger.Error("queueing run failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to queue run")
		return
	}

	go s.executeRun(run)

	writeJSON(w, http.StatusAccepted, startAuditResponse{RunID: run.ID, Status: run.Status})
}

// executeRun drives one audit in the background, detached from the request
// context, and closes the run's event stream when it finishes.
func (s *Server) executeRun(run *models.AuditRun) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.RunTimeout)
	defer cancel()
	defer s.hub.closeRun(run.ID)

	runner, err := audit.NewRunner(audit.Options{
		Workspace:    s.opts.Workspace,
		Store:        s.opts.Store,
		Region:       s.opts.Region,
		Concurrency:  s.opts.Concurrency,
		ExcludeTable: s.opts.ExcludeTable,
		Progress:     s.hub.publish,
		Logger:       s.opts.Logger,
	})
	if err != nil {
		s.opts.Logger.Error("building runner failed", slog.String("error", err.Error()))
		return
	}

	if err := runner.Execute(ctx, run); err != nil {
		// Execute already recorded failure state on the run.
		s.opts.Logger.Warn("background run failed",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.opts.Store.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	// The status endpoint stays small; the report has its own endpoint.
	run.Report = nil
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.opts.Store.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	if run.Status != models.RunCompleted || run.Report == nil {
		writeError(w, http.StatusNotFound, "report not available")
		return
	}
	writeJSON(w, http.StatusOK, run.Report)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.opts.Store.ListRuns(r.Context(), r.URL.Query().Get("workspace_id"), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	for _, run := range runs {
		run.Report = nil
	}
	if runs == nil {
		runs = []*models.AuditRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("encoding response failed", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
