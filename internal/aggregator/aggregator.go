package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/ai"
	"github.com/spigell/cv-ranker/internal/jobstore"
	"github.com/spigell/cv-ranker/internal/logger"
	"github.com/spigell/cv-ranker/internal/metrics"
	"github.com/spigell/cv-ranker/internal/models"
	"github.com/spigell/cv-ranker/internal/ranking"
	"github.com/spigell/cv-ranker/internal/tracing"
)

const recommendationFallback = "Could not generate recommendation: "

// Aggregator ranks the profiles of a finished batch, asks for a
// recommendation and records the report as the job result.
type Aggregator struct {
	recommender ai.Recommender
	store       jobstore.Store
	logger      *zap.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func New(recommender ai.Recommender, store jobstore.Store, log *zap.Logger, m *metrics.Metrics) *Aggregator {
	return &Aggregator{
		recommender: recommender,
		store:       store,
		logger:      logger.WithFields(log, zap.String("component", "aggregator")),
		metrics:     m,
		now:         time.Now,
	}
}

// Aggregate builds the consolidated report and writes it to the store.
// A recommendation failure is folded into the report text. When the job
// already has a report, that stored report is returned unchanged.
func (a *Aggregator) Aggregate(ctx context.Context, jobID string, profiles []models.CandidateProfile, jobDescription string) (models.ConsolidatedReport, error) {
	ctx, span := tracing.StartSpan(ctx, "aggregator.aggregate", tracing.JobID(jobID))
	defer span.End()

	log := a.logger.With(logger.JobFields(jobID, "")...)

	ranked := ranking.Rank(profiles)

	report := models.ConsolidatedReport{
		JobDescription:  models.TruncateJobDescription(jobDescription),
		TotalCandidates: len(ranked),
		Ranking:         ranked,
		Recommendation:  a.recommend(ctx, log, ranked, jobDescription),
		GeneratedAt:     a.now().UTC(),
	}

	stored, won, err := a.store.Complete(ctx, jobID, report)
	if err != nil {
		span.RecordError(err)
		return models.ConsolidatedReport{}, fmt.Errorf("store report for job %s: %w", jobID, err)
	}

	if !won {
		a.metrics.Inc(metrics.DuplicateCompletion)
		log.Info("job already completed, keeping stored report")
		return stored, nil
	}

	a.metrics.Inc(metrics.JobsSucceeded)
	log.Info("job completed", zap.Int("candidates", report.TotalCandidates))

	return stored, nil
}

func (a *Aggregator) recommend(ctx context.Context, log *zap.Logger, ranked []models.RankedCandidate, jobDescription string) string {
	if a.recommender == nil {
		return recommendationFallback + errors.New("no recommender configured").Error()
	}

	text, err := a.recommender.Recommend(ctx, ranked, jobDescription)
	if err != nil {
		log.Warn("recommendation failed", zap.Error(err))
		return recommendationFallback + err.Error()
	}

	return text
}
