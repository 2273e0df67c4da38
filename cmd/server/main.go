package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p-n-ai/exam-analyzer/internal/ai"
	"github.com/p-n-ai/exam-analyzer/internal/analysis"
	"github.com/p-n-ai/exam-analyzer/internal/extract"
	"github.com/p-n-ai/exam-analyzer/internal/jobs"
	"github.com/p-n-ai/exam-analyzer/internal/match"
	"github.com/p-n-ai/exam-analyzer/internal/pipeline"
	"github.com/p-n-ai/exam-analyzer/internal/platform/cache"
	"github.com/p-n-ai/exam-analyzer/internal/platform/config"
	"github.com/p-n-ai/exam-analyzer/internal/platform/database"
	"github.com/p-n-ai/exam-analyzer/internal/progress"
	"github.com/p-n-ai/exam-analyzer/internal/server"
	"github.com/p-n-ai/exam-analyzer/internal/taxonomy"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	handler, cleanup, err := buildApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Analyses run synchronously inside the request, hence the long write timeout.
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// buildApp wires every component and returns the HTTP handler with a
// function releasing the connections it opened.
func buildApp(ctx context.Context, cfg *config.Config) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (http.Handler, func(), error) {
		cleanup()
		return nil, nil, err
	}
	checks := make(map[string]server.Checker)

	var (
		jobStore jobs.Store       = jobs.NewMemoryStore()
		events   jobs.EventLogger = jobs.NopEventLogger{}
		db       *database.DB
	)
	if cfg.Database.Enabled() {
		var err error
		db, err = database.New(ctx, cfg.Database)
		if err != nil {
			return fail(fmt.Errorf("connect database: %w", err))
		}
		closers = append(closers, db.Close)
		checks["database"] = db

		pgJobs, err := jobs.NewPostgresStore(db.Pool)
		if err != nil {
			return fail(err)
		}
		jobStore = pgJobs
		events = jobs.NewPostgresEventLogger(db.Pool)
	}

	source, err := taxonomySource(cfg, db)
	if err != nil {
		return fail(err)
	}
	references := taxonomy.NewStore(source)
	matcher := match.NewMatcher(references, match.WithThreshold(cfg.Match.Threshold))

	var results pipeline.ResultCache
	if cfg.Cache.Enabled() {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			slog.Warn("result cache unavailable, continuing without it", "error", err)
		} else {
			closers = append(closers, func() { _ = c.Close() })
			checks["cache"] = c
			results = pipeline.NewRedisResultCache(c, cfg.Cache.TTL)
		}
	}

	router := newAIRouter(cfg.AI)
	classifier := ai.NewRetrier(router,
		ai.RetryPolicy{
			MaxRetries:     cfg.AI.MaxRetries,
			Delay:          cfg.AI.TextDelay,
			AttemptTimeout: cfg.AI.TextTimeout,
		},
		ai.WithTaskPolicy(ai.TaskVisionClassification, ai.RetryPolicy{
			MaxRetries:     cfg.AI.MaxRetries,
			Delay:          cfg.AI.VisionDelay,
			AttemptTimeout: cfg.AI.VisionTimeout,
		}),
	)
	orchestrator := analysis.NewOrchestrator(classifier, analysis.Config{
		MaxChunkChars:   cfg.Analysis.MaxChunkChars,
		PagesPerChunk:   cfg.Analysis.PagesPerChunk,
		TextMaxTokens:   cfg.AI.TextTokens,
		VisionMaxTokens: cfg.AI.VisionTokens,
		Temperature:     cfg.AI.Temperature,
	})
	extractor := extract.NewExtractor(extract.Config{
		MaxPages: cfg.Analysis.MaxPages,
		DPI:      cfg.Analysis.DPI,
	}, nil)

	models := router.Models()
	broker := progress.NewBroker()
	svc := pipeline.NewService(pipeline.ServiceConfig{
		Extractor:    extractor,
		Analyzer:     orchestrator,
		Matcher:      matcher,
		Jobs:         jobStore,
		Events:       events,
		Progress:     broker,
		Cache:        results,
		DefaultMode:  extract.Mode(cfg.Analysis.Mode),
		DefaultModel: cfg.AI.DefaultModel,
		Models:       models,
		WorkDir:      cfg.Storage.WorkDir,
		OutputDir:    cfg.Storage.OutputDir,
	})

	srv := server.New(server.Config{
		Pipeline:       svc,
		Jobs:           jobStore,
		References:     references,
		Models:         models,
		Broker:         broker,
		Checks:         checks,
		OutputDir:      cfg.Storage.OutputDir,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
	})

	slog.Info("exam analyzer ready",
		"taxonomy_source", cfg.Taxonomy.Source,
		"database", cfg.Database.Enabled(),
		"result_cache", results != nil,
		"mode", cfg.Analysis.Mode,
		"default_model", cfg.AI.DefaultModel,
		"match_threshold", cfg.Match.Threshold,
	)
	return srv.Handler(), cleanup, nil
}

func taxonomySource(cfg *config.Config, db *database.DB) (taxonomy.Source, error) {
	switch cfg.Taxonomy.Source {
	case "postgres":
		if db == nil {
			return nil, errors.New("postgres taxonomy source needs a database")
		}
		src, err := taxonomy.NewPostgresSource(db.Pool)
		if err != nil {
			return nil, err
		}
		return src, nil
	case "dir", "":
		return taxonomy.NewDirSource(cfg.Taxonomy.Dir), nil
	default:
		return nil, fmt.Errorf("unknown taxonomy source %q", cfg.Taxonomy.Source)
	}
}

// newAIRouter registers every configured provider, OpenRouter first.
func newAIRouter(cfg config.AIConfig) *ai.Router {
	router := ai.NewRouter()
	if cfg.OpenRouter.APIKey != "" {
		opts := []ai.OpenRouterOption{ai.WithOpenRouterBaseURL(cfg.OpenRouter.BaseURL)}
		if cfg.OpenRouter.Referer != "" {
			opts = append(opts, ai.WithOpenRouterReferer(cfg.OpenRouter.Referer))
		}
		router.Register("openrouter", ai.NewOpenRouterProvider(cfg.OpenRouter.APIKey, opts...))
		slog.Info("AI provider registered", "provider", "openrouter")
	}
	if cfg.OpenAI.APIKey != "" {
		router.Register("openai", ai.NewOpenAIProvider(cfg.OpenAI.APIKey, ai.WithBaseURL(cfg.OpenAI.BaseURL)))
		slog.Info("AI provider registered", "provider", "openai")
	}
	return router
}
