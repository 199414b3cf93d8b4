package aggregator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/jobstore"
	"github.com/spigell/cv-ranker/internal/metrics"
	"github.com/spigell/cv-ranker/internal/models"
)

type stubRecommender struct {
	text  string
	err   error
	calls int
}

func (s *stubRecommender) Recommend(context.Context, []models.RankedCandidate, string) (string, error) {
	s.calls++
	return s.text, s.err
}

func newAggregator(t *testing.T, rec *stubRecommender) (*Aggregator, *jobstore.MemoryStore, *metrics.Metrics) {
	t.Helper()
	store := jobstore.NewMemoryStore()
	if _, err := store.Create(context.Background(), "job-1"); err != nil {
		t.Fatalf("create job: %v", err)
	}
	m := metrics.New()
	a := New(rec, store, zap.NewNop(), m)
	a.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return a, store, m
}

func profiles() []models.CandidateProfile {
	return []models.CandidateProfile{
		{FullName: "A", MatchScore: 80, Seniority: models.SeniorityPleno},
		{FullName: "B", MatchScore: 80, Seniority: models.SeniorityPleno},
		{FullName: "C", MatchScore: 95, Seniority: models.SenioritySenior},
	}
}

func TestAggregateBuildsAndStoresReport(t *testing.T) {
	rec := &stubRecommender{text: "Interview C and A."}
	a, store, m := newAggregator(t, rec)

	jd := strings.Repeat("x", 120)
	report, err := a.Aggregate(context.Background(), "job-1", profiles(), jd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.TotalCandidates != 3 || len(report.Ranking) != 3 {
		t.Fatalf("unexpected totals: %+v", report)
	}
	order := []string{report.Ranking[0].Candidate.FullName, report.Ranking[1].Candidate.FullName, report.Ranking[2].Candidate.FullName}
	if strings.Join(order, "") != "CAB" {
		t.Fatalf("unexpected order %v", order)
	}
	if report.JobDescription != strings.Repeat("x", 100)+"..." {
		t.Fatalf("job description not truncated: %q", report.JobDescription)
	}
	if report.Recommendation != "Interview C and A." {
		t.Fatalf("unexpected recommendation %q", report.Recommendation)
	}

	job, _, err := store.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.State != models.JobSucceeded || job.Report == nil || job.Report.TotalCandidates != 3 {
		t.Fatalf("unexpected stored job: %+v", job)
	}
	if m.Snapshot()[metrics.JobsSucceeded] != 1 {
		t.Fatalf("expected succeeded counter to be 1")
	}
}

func TestAggregateFallsBackWhenRecommendationFails(t *testing.T) {
	a, _, _ := newAggregator(t, &stubRecommender{err: errors.New("quota exceeded")})

	report, err := a.Aggregate(context.Background(), "job-1", profiles(), "jd")
	if err != nil {
		t.Fatalf("recommendation failure must not fail aggregation: %v", err)
	}
	if report.Recommendation != "Could not generate recommendation: quota exceeded" {
		t.Fatalf("unexpected recommendation %q", report.Recommendation)
	}
}

func TestAggregateDuplicateReturnsStoredReport(t *testing.T) {
	rec := &stubRecommender{text: "first"}
	a, _, m := newAggregator(t, rec)

	if _, err := a.Aggregate(context.Background(), "job-1", profiles(), "jd"); err != nil {
		t.Fatalf("first aggregate: %v", err)
	}

	rec.text = "second"
	report, err := a.Aggregate(context.Background(), "job-1", profiles()[:1], "jd")
	if err != nil {
		t.Fatalf("duplicate aggregate: %v", err)
	}
	if report.Recommendation != "first" || report.TotalCandidates != 3 {
		t.Fatalf("duplicate must return the stored report, got %+v", report)
	}

	snap := m.Snapshot()
	if snap[metrics.DuplicateCompletion] != 1 || snap[metrics.JobsSucceeded] != 1 {
		t.Fatalf("unexpected metrics: %v", snap)
	}
}

func TestAggregateWithoutRecommender(t *testing.T) {
	store := jobstore.NewMemoryStore()
	a := New(nil, store, nil, nil)

	report, err := a.Aggregate(context.Background(), "job-x", profiles(), "jd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(report.Recommendation, "Could not generate recommendation: ") {
		t.Fatalf("unexpected recommendation %q", report.Recommendation)
	}
}
