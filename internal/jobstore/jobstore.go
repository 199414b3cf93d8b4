package jobstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spigell/cv-ranker/internal/models"
)

var (
	// ErrAlreadyTerminal is returned when a transition targets a job that already finished differently.
	ErrAlreadyTerminal = errors.New("job is already in a terminal state")
	// ErrJobExists is returned by Create for a duplicate identifier.
	ErrJobExists = errors.New("job already exists")
	// ErrJobNotFound is returned by SetRunning for an unknown identifier.
	ErrJobNotFound = errors.New("job not found")
)

// Store keeps the status of submitted jobs. Terminal transitions are
// first-writer-wins: once a job is SUCCEEDED or FAILED it never changes.
type Store interface {
	Create(ctx context.Context, id string) (models.Job, error)
	SetRunning(ctx context.Context, id string) error
	// Complete marks the job SUCCEEDED with report. When the job already
	// succeeded, the stored report is returned and won is false.
	Complete(ctx context.Context, id string, report models.ConsolidatedReport) (stored models.ConsolidatedReport, won bool, err error)
	// Fail marks the job FAILED. It returns false when the job was already terminal.
	Fail(ctx context.Context, id string, reason string) (bool, error)
	// Get returns the job and whether it exists.
	Get(ctx context.Context, id string) (models.Job, bool, error)
	Close() error
}

var now = time.Now

// buildJob decodes a stored payload according to the job state.
func buildJob(id string, state models.JobState, created, updated time.Time, payload []byte) (models.Job, error) {
	job := models.Job{ID: id, State: state, CreatedAt: created, UpdatedAt: updated}

	switch state {
	case models.JobSucceeded:
		report, err := models.DecodeReport(payload)
		if err != nil {
			return models.Job{}, fmt.Errorf("job %s: %w", id, err)
		}
		job.Report = &report
	case models.JobFailed:
		reason, err := models.DecodeFailure(payload)
		if err != nil {
			return models.Job{}, fmt.Errorf("job %s: %w", id, err)
		}
		job.FailureReason = reason
	}

	return job, nil
}
