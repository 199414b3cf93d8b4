package jobstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spigell/cv-ranker/internal/models"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "jobs.db"))
			if err != nil {
				t.Fatalf("open sqlite store: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func sampleReport(rec string) models.ConsolidatedReport {
	return models.ConsolidatedReport{
		JobDescription:  "Go engineer",
		TotalCandidates: 1,
		Ranking: []models.RankedCandidate{{
			Rank:      1,
			Candidate: models.CandidateProfile{FullName: "Ana", Seniority: models.SenioritySenior, MatchScore: 90},
			Score:     90,
		}},
		Recommendation: rec,
		GeneratedAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestStoreLifecycle(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			ctx := context.Background()

			if _, found, err := store.Get(ctx, "missing"); err != nil || found {
				t.Fatalf("expected unknown job, found=%v err=%v", found, err)
			}

			job, err := store.Create(ctx, "job-1")
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if job.State != models.JobPending {
				t.Fatalf("expected PENDING, got %s", job.State)
			}
			if _, err := store.Create(ctx, "job-1"); !errors.Is(err, ErrJobExists) {
				t.Fatalf("expected ErrJobExists, got %v", err)
			}

			if err := store.SetRunning(ctx, "job-1"); err != nil {
				t.Fatalf("set running: %v", err)
			}
			got, _, err := store.Get(ctx, "job-1")
			if err != nil || got.State != models.JobRunning {
				t.Fatalf("expected RUNNING, got %s (%v)", got.State, err)
			}

			stored, won, err := store.Complete(ctx, "job-1", sampleReport("first"))
			if err != nil || !won {
				t.Fatalf("first completion should win: won=%v err=%v", won, err)
			}
			if stored.Recommendation != "first" {
				t.Fatalf("unexpected stored report: %+v", stored)
			}

			stored, won, err = store.Complete(ctx, "job-1", sampleReport("second"))
			if err != nil {
				t.Fatalf("duplicate completion: %v", err)
			}
			if won || stored.Recommendation != "first" {
				t.Fatalf("duplicate completion must return the first report, won=%v rec=%q", won, stored.Recommendation)
			}

			failed, err := store.Fail(ctx, "job-1", "late failure")
			if err != nil || failed {
				t.Fatalf("fail after success must be ignored: failed=%v err=%v", failed, err)
			}

			got, found, err := store.Get(ctx, "job-1")
			if err != nil || !found {
				t.Fatalf("get: found=%v err=%v", found, err)
			}
			if got.State != models.JobSucceeded || got.Report == nil || got.Report.Recommendation != "first" {
				t.Fatalf("unexpected final job: %+v", got)
			}
			if !got.Report.GeneratedAt.Equal(sampleReport("").GeneratedAt) {
				t.Fatalf("generated_at not preserved: %v", got.Report.GeneratedAt)
			}

			if err := store.SetRunning(ctx, "job-1"); !errors.Is(err, ErrAlreadyTerminal) {
				t.Fatalf("expected ErrAlreadyTerminal, got %v", err)
			}
		})
	}
}

func TestStoreFailure(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			ctx := context.Background()

			if _, err := store.Create(ctx, "job-2"); err != nil {
				t.Fatalf("create: %v", err)
			}

			failed, err := store.Fail(ctx, "job-2", "no candidate profiles were produced")
			if err != nil || !failed {
				t.Fatalf("fail: failed=%v err=%v", failed, err)
			}

			if _, _, err := store.Complete(ctx, "job-2", sampleReport("x")); !errors.Is(err, ErrAlreadyTerminal) {
				t.Fatalf("expected ErrAlreadyTerminal, got %v", err)
			}

			job, _, err := store.Get(ctx, "job-2")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if job.State != models.JobFailed || job.FailureReason != "no candidate profiles were produced" {
				t.Fatalf("unexpected job: %+v", job)
			}
		})
	}
}

func TestSetRunningUnknownJob(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := open(t).SetRunning(context.Background(), "nope"); !errors.Is(err, ErrJobNotFound) {
				t.Fatalf("expected ErrJobNotFound, got %v", err)
			}
		})
	}
}

func TestConcurrentCompletionHasOneWinner(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			ctx := context.Background()
			if _, err := store.Create(ctx, "job-3"); err != nil {
				t.Fatalf("create: %v", err)
			}

			const writers = 8
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				wins int
			)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, won, err := store.Complete(ctx, "job-3", sampleReport("r"))
					if err != nil {
						t.Errorf("complete: %v", err)
						return
					}
					if won {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			if wins != 1 {
				t.Fatalf("expected exactly one winner, got %d", wins)
			}
		})
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	ctx := context.Background()

	first, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := first.Create(ctx, "job-4"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := first.Complete(ctx, "job-4", sampleReport("kept")); err != nil {
		t.Fatalf("complete: %v", err)
	}
	first.Close()

	second, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	job, found, err := second.Get(ctx, "job-4")
	if err != nil || !found {
		t.Fatalf("get after reopen: found=%v err=%v", found, err)
	}
	if job.Report == nil || job.Report.Recommendation != "kept" {
		t.Fatalf("unexpected job after reopen: %+v", job)
	}
}
