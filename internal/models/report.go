package models

import (
	"strings"
	"time"
)

const jobDescriptionDisplayLimit = 100

// RankedCandidate is one entry of the final ordering.
type RankedCandidate struct {
	Rank      int              `json:"rank"`
	Candidate CandidateProfile `json:"candidate"`
	Score     float64          `json:"score"`
}

// ConsolidatedReport is the single output of a completed batch.
type ConsolidatedReport struct {
	JobDescription  string            `json:"job_description"`
	TotalCandidates int               `json:"total_candidates"`
	Ranking         []RankedCandidate `json:"ranking"`
	Recommendation  string            `json:"recommendation"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

// TruncateJobDescription shortens a job description for display in a report.
func TruncateJobDescription(jd string) string {
	jd = strings.TrimSpace(jd)
	runes := []rune(jd)
	if len(runes) <= jobDescriptionDisplayLimit {
		return jd
	}
	return string(runes[:jobDescriptionDisplayLimit]) + "..."
}

// DocumentRef points to one stored upload.
type DocumentRef struct {
	Key      string `json:"key"`
	Filename string `json:"filename"`
}
