package jobstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spigell/cv-ranker/internal/models"
)

type memoryRecord struct {
	state   models.JobState
	created time.Time
	updated time.Time
	payload []byte
}

// MemoryStore keeps jobs in process memory. Payloads are stored in their
// encoded record form so both backends share one decode path.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*memoryRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*memoryRecord)}
}

func (s *MemoryStore) Create(_ context.Context, id string) (models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; ok {
		return models.Job{}, fmt.Errorf("%w: %s", ErrJobExists, id)
	}

	ts := now()
	s.jobs[id] = &memoryRecord{state: models.JobPending, created: ts, updated: ts}

	return models.Job{ID: id, State: models.JobPending, CreatedAt: ts, UpdatedAt: ts}, nil
}

func (s *MemoryStore) SetRunning(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	switch rec.state {
	case models.JobPending:
		rec.state = models.JobRunning
		rec.updated = now()
		return nil
	case models.JobRunning:
		return nil
	default:
		return fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, id, rec.state)
	}
}

func (s *MemoryStore) Complete(_ context.Context, id string, report models.ConsolidatedReport) (models.ConsolidatedReport, bool, error) {
	payload, err := models.EncodeReport(report)
	if err != nil {
		return models.ConsolidatedReport{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		ts := now()
		rec = &memoryRecord{state: models.JobPending, created: ts}
		s.jobs[id] = rec
	}

	switch rec.state {
	case models.JobSucceeded:
		stored, err := models.DecodeReport(rec.payload)
		if err != nil {
			return models.ConsolidatedReport{}, false, fmt.Errorf("job %s: %w", id, err)
		}
		return stored, false, nil
	case models.JobFailed:
		return models.ConsolidatedReport{}, false, fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, id, rec.state)
	}

	rec.state = models.JobSucceeded
	rec.payload = payload
	rec.updated = now()

	return report, true, nil
}

func (s *MemoryStore) Fail(_ context.Context, id string, reason string) (bool, error) {
	payload, err := models.EncodeFailure(reason)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		rec = &memoryRecord{state: models.JobPending, created: now()}
		s.jobs[id] = rec
	}

	if rec.state.Terminal() {
		return false, nil
	}

	rec.state = models.JobFailed
	rec.payload = payload
	rec.updated = now()

	return true, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.Job, bool, error) {
	s.mu.RLock()
	rec, ok := s.jobs[id]
	if !ok {
		s.mu.RUnlock()
		return models.Job{}, false, nil
	}
	state, created, updated, payload := rec.state, rec.created, rec.updated, rec.payload
	s.mu.RUnlock()

	job, err := buildJob(id, state, created, updated, payload)
	if err != nil {
		return models.Job{}, true, err
	}
	return job, true, nil
}

func (s *MemoryStore) Close() error { return nil }
