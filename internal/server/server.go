// Package server provides the HTTP API of the exam analyzer.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/p-n-ai/exam-analyzer/internal/ai"
	"github.com/p-n-ai/exam-analyzer/internal/jobs"
	"github.com/p-n-ai/exam-analyzer/internal/pipeline"
	"github.com/p-n-ai/exam-analyzer/internal/progress"
	"github.com/p-n-ai/exam-analyzer/internal/taxonomy"
)

const defaultMaxUpload = 50 << 20

// Runner analyzes one upload.
type Runner interface {
	Run(ctx context.Context, up pipeline.Upload) (*pipeline.Outcome, error)
}

// JobGetter looks up job records.
type JobGetter interface {
	Get(ctx context.Context, id string) (jobs.Job, error)
}

// ReferenceStats reports the loaded reference taxonomies.
type ReferenceStats interface {
	Stats(ctx context.Context) ([]taxonomy.Stat, error)
}

// Checker is a dependency checked by /readyz.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Config holds the dependencies and limits of the HTTP API.
type Config struct {
	Pipeline   Runner
	Jobs       JobGetter
	References ReferenceStats
	Models     []ai.ModelInfo
	Broker     *progress.Broker   // nil disables the progress stream
	Checks     map[string]Checker // checked by /readyz

	OutputDir      string
	MaxUploadBytes int64 // default 50 MB
}

// Server is the HTTP API.
type Server struct {
	pipeline   Runner
	jobs       JobGetter
	references ReferenceStats
	models     []ai.ModelInfo
	broker     *progress.Broker
	checks     map[string]Checker
	outputDir  string
	maxUpload  int64
}

// New creates a server.
func New(cfg Config) *Server {
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Server{
		pipeline:   cfg.Pipeline,
		jobs:       cfg.Jobs,
		references: cfg.References,
		models:     cfg.Models,
		broker:     cfg.Broker,
		checks:     cfg.Checks,
		outputDir:  cfg.OutputDir,
		maxUpload:  maxUpload,
	}
}

// Handler returns the router with every route and middleware installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Access-Control-Allow-Origin", "*"))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/health", s.handleHealth)

	r.Post("/analyze", s.handleAnalyze)
	r.Get("/download/{filename}", s.handleDownload)
	r.Get("/models", s.handleModels)
	r.Get("/reference-stats", s.handleReferenceStats)
	r.Get("/jobs/{id}", s.handleGetJob)

	if s.broker != nil {
		r.Get("/ws/progress/{uploadID}", s.handleProgress)
	}
	return r
}
