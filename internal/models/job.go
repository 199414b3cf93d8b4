package models

import "time"

type JobState string

const (
	JobPending   JobState = "PENDING"
	JobRunning   JobState = "RUNNING"
	JobSucceeded JobState = "SUCCEEDED"
	JobFailed    JobState = "FAILED"
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// Job is the status record of one submitted batch.
type Job struct {
	ID            string
	State         JobState
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Report        *ConsolidatedReport
	FailureReason string
}
