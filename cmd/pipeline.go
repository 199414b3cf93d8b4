package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/aggregator"
	"github.com/spigell/cv-ranker/internal/ai"
	"github.com/spigell/cv-ranker/internal/ai/gemini"
	"github.com/spigell/cv-ranker/internal/ai/vertex"
	"github.com/spigell/cv-ranker/internal/documents"
	"github.com/spigell/cv-ranker/internal/extract"
	"github.com/spigell/cv-ranker/internal/intake"
	"github.com/spigell/cv-ranker/internal/jobstore"
	"github.com/spigell/cv-ranker/internal/metrics"
	"github.com/spigell/cv-ranker/internal/orchestrator"
	"github.com/spigell/cv-ranker/internal/secrets"
	"github.com/spigell/cv-ranker/internal/tracing"
	"github.com/spigell/cv-ranker/internal/worker"
)

// pipeline holds every long-lived component of a running instance.
type pipeline struct {
	orchestrator *orchestrator.Orchestrator
	intake       *intake.Intake
	metrics      *metrics.Metrics
	closers      []func(context.Context) error
}

func buildPipeline(ctx context.Context, config *Config, logger *zap.Logger) (*pipeline, error) {
	p := &pipeline{metrics: metrics.New()}
	fail := func(err error) (*pipeline, error) {
		p.closeAll(ctx)
		return nil, err
	}

	shutdownTracing, err := tracing.Init(ctx, app, config.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	p.closers = append(p.closers, shutdownTracing)

	docs, err := newDocumentStore(ctx, config.Storage)
	if err != nil {
		return fail(fmt.Errorf("building document store: %w", err))
	}

	jobs, err := newJobStore(config.Store)
	if err != nil {
		return fail(fmt.Errorf("building job store: %w", err))
	}
	p.closers = append(p.closers, func(context.Context) error { return jobs.Close() })

	generator, err := newGenerator(ctx, config.AI, logger, p.metrics)
	if err != nil {
		return fail(fmt.Errorf("building ai generator: %w", err))
	}
	if closer, ok := generator.(interface{ Close() error }); ok {
		p.closers = append(p.closers, func(context.Context) error { return closer.Close() })
	}

	aiLogger := logger.With(zap.String("ai_model", generator.Model()))

	w := worker.New(config.Worker, worker.Deps{
		Documents: docs,
		Extractor: extract.New(logger),
		Analyzer:  gemini.NewAnalyzer(generator, aiLogger, config.AI.MaxLogLength),
		Logger:    logger,
		Metrics:   p.metrics,
	})

	recommender := gemini.NewRecommender(generator, config.AI.RecommendationLanguage, aiLogger, config.AI.MaxLogLength)

	p.orchestrator = orchestrator.New(config.Orchestrator, orchestrator.Deps{
		Store:      jobs,
		Processor:  w,
		Aggregator: aggregator.New(recommender, jobs, logger, p.metrics),
		Logger:     logger,
		Metrics:    p.metrics,
	})

	p.intake = intake.New(docs, intake.DefaultFilters(config.Intake), logger)

	return p, nil
}

// Close waits for in-flight batches and releases every resource.
func (p *pipeline) Close(ctx context.Context) error {
	var errs []error
	if p.orchestrator != nil {
		if err := p.orchestrator.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown orchestrator: %w", err))
		}
	}
	if err := p.closeAll(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (p *pipeline) closeAll(ctx context.Context) error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

func newDocumentStore(ctx context.Context, cfg StorageConfig) (documents.Store, error) {
	switch backend := strings.ToLower(strings.TrimSpace(cfg.Backend)); backend {
	case "", "fs":
		return documents.NewFSStore(cfg.Dir)
	case "minio":
		return documents.NewMinIOStore(ctx, cfg.MinIO)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

func newJobStore(cfg StoreConfig) (jobstore.Store, error) {
	switch backend := strings.ToLower(strings.TrimSpace(cfg.Backend)); backend {
	case "", "memory":
		return jobstore.NewMemoryStore(), nil
	case "sqlite":
		return jobstore.NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported job store backend: %s", cfg.Backend)
	}
}

func newGenerator(ctx context.Context, cfg AIConfig, logger *zap.Logger, m *metrics.Metrics) (ai.Generator, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))

	switch provider {
	case "", gemini.Provider:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.Gemini.APIKey,
			File:  cfg.Gemini.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
		}

		return gemini.NewGenerator(ctx, apiKey, gemini.Options{
			Model:             cfg.Gemini.Model,
			MaxRetries:        cfg.Gemini.MaxRetries,
			RequestsPerMinute: cfg.Gemini.RequestsPerMinute,
			Logger:            logger,
			Metrics:           m,
		})
	case vertex.Provider:
		return vertex.NewGenerator(ctx, vertex.Options{
			Project:           cfg.Vertex.Project,
			Location:          cfg.Vertex.Location,
			Model:             cfg.Vertex.Model,
			MaxRetries:        cfg.Vertex.MaxRetries,
			RequestsPerMinute: cfg.Vertex.RequestsPerMinute,
			Logger:            logger,
			Metrics:           m,
		})
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}
