package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/models"
	"github.com/spigell/cv-ranker/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

//go:embed analyze_prompt.md
var analyzePromptTemplate string

const defaultMaxLogLength = 200

var requiredProfileKeys = []string{"full_name", "years_of_experience", "seniority"}

// Analyzer extracts a candidate profile from resume text with a language model.
type Analyzer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewAnalyzer(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Analyzer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Analyzer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Analyze returns the candidate profile for text. Request errors and
// malformed model output produce a degraded profile instead of an error.
func (a *Analyzer) Analyze(ctx context.Context, text, jobDescription string) models.CandidateProfile {
	profile, err := a.analyze(ctx, text, jobDescription)
	if err != nil {
		a.logger.Warn("resume analysis failed, using degraded profile", zap.Error(err))
		return models.DegradedProfile(err.Error())
	}
	return profile
}

func (a *Analyzer) analyze(ctx context.Context, text, jobDescription string) (models.CandidateProfile, error) {
	if a.generator == nil {
		return models.CandidateProfile{}, errors.New("analyzer has no generator")
	}
	if strings.TrimSpace(text) == "" {
		return models.CandidateProfile{}, errors.New("resume text is empty")
	}

	prompt := buildAnalyzePrompt(text, jobDescription)

	a.logger.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, a.maxLogLen)),
	)

	raw, err := a.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return models.CandidateProfile{}, err
	}

	a.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)

	return parseProfile(raw)
}

func buildAnalyzePrompt(text, jobDescription string) string {
	template := analyzePromptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Job description:\n{{JOB_DESCRIPTION}}\n\nResume:\n{{RESUME_TEXT}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{JOB_DESCRIPTION}}", strings.TrimSpace(jobDescription))
	prompt = strings.ReplaceAll(prompt, "{{RESUME_TEXT}}", strings.TrimSpace(text))
	return prompt
}

// parseProfile decodes the model answer into a profile. Missing required keys
// and values that fail validation are errors; numbers are clamped.
func parseProfile(raw string) (models.CandidateProfile, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return models.CandidateProfile{}, fmt.Errorf("parse gemini response: %w", err)
	}

	var missing []string
	for _, key := range requiredProfileKeys {
		if v, ok := data[key]; !ok || v == nil {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return models.CandidateProfile{}, fmt.Errorf("gemini response is missing %s", strings.Join(missing, ", "))
	}

	var profile models.CandidateProfile
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &profile,
	})
	if err != nil {
		return models.CandidateProfile{}, err
	}
	if err := decoder.Decode(data); err != nil {
		return models.CandidateProfile{}, fmt.Errorf("decode gemini response: %w", err)
	}

	profile.FullName = strings.TrimSpace(profile.FullName)
	profile.Normalize()

	if err := profile.Validate(false); err != nil {
		return models.CandidateProfile{}, fmt.Errorf("invalid candidate profile: %w", err)
	}

	return profile, nil
}

// extractJSON strips markdown fences and any prose around the outermost JSON object.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start != -1 && end > start {
		raw = raw[start : end+1]
	}

	return strings.TrimSpace(raw)
}
