package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/models"
	"github.com/spigell/cv-ranker/internal/utils"
)

//go:embed recommend_prompt.md
var recommendPromptTemplate string

const defaultLanguage = "Portuguese"

// Recommender asks a language model for a hiring recommendation over a ranking.
type Recommender struct {
	generator contentGenerator
	language  string
	logger    *zap.Logger
	maxLogLen int
}

func NewRecommender(generator contentGenerator, language string, logger *zap.Logger, maxLogLength int) *Recommender {
	if language = strings.TrimSpace(language); language == "" {
		language = defaultLanguage
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Recommender{
		generator: generator,
		language:  language,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (r *Recommender) Recommend(ctx context.Context, ranked []models.RankedCandidate, jobDescription string) (string, error) {
	if r.generator == nil {
		return "", errors.New("recommender has no generator")
	}

	prompt := buildRecommendPrompt(ranked, jobDescription, r.language)

	r.logger.Debug("gemini generate content request",
		zap.Int("candidates", len(ranked)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, r.maxLogLen)),
	)

	text, err := r.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty recommendation")
	}

	r.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(text)),
		zap.String("response_preview", utils.TruncateForLog(text, r.maxLogLen)),
	)

	return text, nil
}

func buildRecommendPrompt(ranked []models.RankedCandidate, jobDescription, language string) string {
	template := recommendPromptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Job description:\n{{JOB_DESCRIPTION}}\n\nRanked candidates:\n{{CANDIDATES}}\n\nWrite a hiring recommendation in {{LANGUAGE}}."
	}

	prompt := strings.ReplaceAll(template, "{{JOB_DESCRIPTION}}", strings.TrimSpace(jobDescription))
	prompt = strings.ReplaceAll(prompt, "{{CANDIDATES}}", summarizeCandidates(ranked))
	prompt = strings.ReplaceAll(prompt, "{{LANGUAGE}}", language)
	return prompt
}

func summarizeCandidates(ranked []models.RankedCandidate) string {
	var b strings.Builder
	for i, rc := range ranked {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s (Score: %.1f, Seniority: %s)\n", rc.Rank, rc.Candidate.FullName, rc.Score, rc.Candidate.Seniority)
		strengths := strings.Join(rc.Candidate.Strengths, ", ")
		if strengths == "" {
			strengths = "none listed"
		}
		fmt.Fprintf(&b, "   Strengths: %s", strengths)
	}
	return b.String()
}
