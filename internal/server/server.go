// Package server provides the HTTP API for resumatch.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/resumatch/internal/analytics"
	"github.com/hyperjump/resumatch/internal/config"
	"github.com/hyperjump/resumatch/internal/documents"
	"github.com/hyperjump/resumatch/internal/evaluation"
	"github.com/hyperjump/resumatch/internal/storage"
	"github.com/hyperjump/resumatch/pkg/utils"
)

// Deps are the services the API is built on.
type Deps struct {
	Store       storage.Storage
	Evaluations *evaluation.Service
	Analytics   *analytics.Service
	Documents   *documents.Service
	// Driver is the storage driver name reported by the status endpoint.
	Driver string
	// DataPaths are sized for the status endpoint, keyed by a display name.
	DataPaths map[string]string
}

// Server is the HTTP server for the resumatch API.
type Server struct {
	deps   Deps
	config *config.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{deps: deps, config: cfg, logger: utils.OrNop(logger)}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/match", s.handleMatch)

		r.Route("/evaluations", func(r chi.Router) {
			r.Get("/", s.handleListEvaluations)
			r.Get("/user/{user_id}", s.handleEvaluationsByUser)
			r.Get("/admin/{admin_id}", s.handleEvaluationsByAdmin)
			r.Post("/compare/user/{user_id}/jd/{jd_id}", s.handleCompareResumesToJD)
			r.Post("/compare/resume/{resume_id}/admin/{admin_id}", s.handleCompareJDsToResume)
			r.Post("/link/{resume_id}/{jd_id}", s.handleLinkEvaluation)
			r.Post("/{resume_id}/{jd_id}", s.handleCreateEvaluation)
			r.Get("/{id}", s.handleGetEvaluation)
			r.Put("/{id}", s.handleUpdateEvaluation)
			r.Delete("/{id}", s.handleDeleteEvaluation)
			r.Get("/{id}/feedback", s.handleFeedback)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/evaluations", s.handleAnalyticsEvaluations)
			r.Get("/score-distribution", s.handleReport(s.deps.Analytics.ScoreDistribution))
			r.Get("/verdict-breakdown", s.handleReport(s.deps.Analytics.VerdictBreakdown))
			r.Get("/timeline", s.handleReport(s.deps.Analytics.Timeline))
			r.Get("/avg-score-per-jd", s.handleReport(s.deps.Analytics.AvgScorePerJD))
			r.Get("/export", s.handleExport)
			r.Get("/resumes", s.handleResumesByDate)
			r.Get("/jds", s.handleJDsByDate)
		})

		r.Route("/users/{user_id}/resumes", func(r chi.Router) {
			r.Post("/", s.handleUploadResume)
			r.Get("/", s.handleListResumes)
			r.Get("/search", s.handleSearchResumes)
			r.Get("/{id}", s.handleGetResume)
			r.Put("/{id}", s.handleReplaceResume)
			r.Delete("/{id}", s.handleDeleteResume)
		})

		r.Route("/admins/{admin_id}/jds", func(r chi.Router) {
			r.Post("/", s.handleUploadJD)
			r.Get("/", s.handleListJDs)
			r.Get("/search", s.handleSearchJDs)
			r.Get("/{id}", s.handleGetJD)
			r.Put("/{id}", s.handleReplaceJD)
			r.Delete("/{id}", s.handleDeleteJD)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
