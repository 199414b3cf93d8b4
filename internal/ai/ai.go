package ai

import (
	"context"

	"github.com/spigell/cv-ranker/internal/models"
)

// Generator sends a prompt to a language model and returns its text response.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Analyzer turns resume text into a candidate profile. It never fails: when
// the model cannot produce a usable profile a degraded one is returned.
type Analyzer interface {
	Analyze(ctx context.Context, text, jobDescription string) models.CandidateProfile
}

// Recommender writes the hiring recommendation for a ranked batch.
type Recommender interface {
	Recommend(ctx context.Context, ranked []models.RankedCandidate, jobDescription string) (string, error)
}
