package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/ai"
	"github.com/spigell/cv-ranker/internal/logger"
	"github.com/spigell/cv-ranker/internal/metrics"
	"github.com/spigell/cv-ranker/internal/models"
	"github.com/spigell/cv-ranker/internal/tracing"
	"github.com/spigell/cv-ranker/internal/utils"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 5 * time.Second
	defaultMultiplier     = 2
)

var (
	wait = utils.WaitFor

	errEmptyText = errors.New("could not extract text from document")
)

type Config struct {
	MaxAttempts    int           `mapstructure:"max-attempts"`
	InitialBackoff time.Duration `mapstructure:"initial-backoff"`
	Multiplier     float64       `mapstructure:"backoff-multiplier"`
}

// DocumentReader reads and removes stored documents.
type DocumentReader interface {
	Get(ctx context.Context, ref models.DocumentRef) ([]byte, error)
	Delete(ctx context.Context, ref models.DocumentRef) error
}

type TextExtractor interface {
	Extract(content []byte) string
}

// Deps aggregates the collaborators of a Worker.
type Deps struct {
	Documents DocumentReader
	Extractor TextExtractor
	Analyzer  ai.Analyzer
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// Worker turns one stored document into a candidate profile.
type Worker struct {
	cfg       Config
	documents DocumentReader
	extractor TextExtractor
	analyzer  ai.Analyzer
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func New(cfg Config, deps Deps) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = defaultMultiplier
	}

	return &Worker{
		cfg:       cfg,
		documents: deps.Documents,
		extractor: deps.Extractor,
		analyzer:  deps.Analyzer,
		logger:    logger.WithFields(deps.Logger, zap.String("component", "worker")),
		metrics:   deps.Metrics,
	}
}

// Process reads, extracts and analyzes one document. It always returns a
// profile: when every attempt fails a degraded profile carries the last error.
// The document is deleted once the outcome is final.
func (w *Worker) Process(ctx context.Context, ref models.DocumentRef, jobDescription string) models.CandidateProfile {
	ctx, span := tracing.StartSpan(ctx, "worker.process", tracing.Document(ref.Key))
	defer span.End()

	log := w.logger.With(logger.JobFields("", ref.Key)...)
	defer w.cleanup(ctx, log, ref)
	defer w.metrics.Inc(metrics.ItemsProcessed)

	var lastErr error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		profile, err := w.attempt(ctx, ref, jobDescription)
		if err == nil {
			log.Debug("document processed", zap.Int("attempt", attempt), zap.String("candidate", profile.FullName))
			return profile
		}

		lastErr = err
		log.Warn("document processing attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", w.cfg.MaxAttempts),
			zap.Error(err),
		)

		if attempt == w.cfg.MaxAttempts {
			break
		}

		w.metrics.Inc(metrics.ItemAttemptsRetried)
		if werr := wait(ctx, utils.Backoff(w.cfg.InitialBackoff, w.cfg.Multiplier, attempt)); werr != nil {
			lastErr = fmt.Errorf("%w (retry aborted: %v)", lastErr, werr)
			break
		}
	}

	log.Error("document processing failed, using degraded profile", zap.Error(lastErr))
	w.metrics.Inc(metrics.ProfilesDegraded)

	return models.DegradedProfile(lastErr.Error())
}

// attempt runs one read, extract and analyze pass. Panics become errors.
func (w *Worker) attempt(ctx context.Context, ref models.DocumentRef, jobDescription string) (profile models.CandidateProfile, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing document: %v", r)
		}
	}()

	content, err := w.documents.Get(ctx, ref)
	if err != nil {
		return models.CandidateProfile{}, fmt.Errorf("read document: %w", err)
	}

	text := w.extractor.Extract(content)
	if text == "" {
		return models.CandidateProfile{}, errEmptyText
	}

	return w.analyzer.Analyze(ctx, text, jobDescription), nil
}

func (w *Worker) cleanup(ctx context.Context, log *zap.Logger, ref models.DocumentRef) {
	if err := w.documents.Delete(context.WithoutCancel(ctx), ref); err != nil {
		log.Warn("failed to delete processed document", zap.Error(err))
	}
}
