package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/cv-ranker/internal/models"
)

type stubGenerator struct {
	response string
	err      error
	prompts  []string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

const validProfileJSON = "```json\n" + `{
  "full_name": "Maria Souza",
  "email": "maria@example.com",
  "phone": null,
  "years_of_experience": "6.5",
  "skills": ["Go", "PostgreSQL"],
  "last_role": "Backend Engineer",
  "companies": ["Acme"],
  "education": [{"institution": "USP", "degree": "BSc", "field": "Computer Science"}],
  "seniority": "senior",
  "summary": "Backend engineer",
  "strengths": ["distributed systems"],
  "weaknesses": ["frontend"],
  "match_score": 120,
  "ranking_justification": "Strong Go background",
  "confidence": "high"
}` + "\n```"

func TestAnalyzeParsesProfile(t *testing.T) {
	gen := &stubGenerator{response: validProfileJSON}
	a := NewAnalyzer(gen, zap.NewNop(), 0)

	p := a.Analyze(context.Background(), "resume text", "Go developer")

	if p.FullName != "Maria Souza" || p.Email != "maria@example.com" || p.Phone != "" {
		t.Fatalf("unexpected identity fields: %+v", p)
	}
	if p.YearsOfExperience != 6.5 {
		t.Fatalf("expected 6.5 years, got %v", p.YearsOfExperience)
	}
	if p.Seniority != models.SenioritySenior {
		t.Fatalf("expected SENIOR, got %s", p.Seniority)
	}
	if p.MatchScore != 100 {
		t.Fatalf("expected score clamped to 100, got %v", p.MatchScore)
	}
	if len(p.Education) != 1 || p.Education[0].Institution != "USP" {
		t.Fatalf("unexpected education: %+v", p.Education)
	}

	prompt := gen.prompts[0]
	if !strings.Contains(prompt, "Go developer") || !strings.Contains(prompt, "resume text") {
		t.Fatalf("prompt is missing inputs: %s", prompt)
	}
	if strings.Contains(prompt, "{{") {
		t.Fatalf("prompt has unreplaced placeholders: %s", prompt)
	}
}

func TestAnalyzeDefaultsMissingScore(t *testing.T) {
	gen := &stubGenerator{response: `{"full_name": "Joana Lima", "years_of_experience": 3, "seniority": "pleno", "skills": ["Go"]}`}
	a := NewAnalyzer(gen, zap.NewNop(), 0)

	p := a.Analyze(context.Background(), "resume text", "Go developer")

	if p.IsDegraded() {
		t.Fatalf("a missing score must not degrade the profile: %+v", p)
	}
	if p.FullName != "Joana Lima" || p.Seniority != models.SeniorityPleno || len(p.Skills) != 1 {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if p.MatchScore != 0 || p.RankingJustification != "" {
		t.Fatalf("expected zero score and empty justification, got %v %q", p.MatchScore, p.RankingJustification)
	}
}

func TestAnalyzeDegradesOnFailures(t *testing.T) {
	tests := []struct {
		name   string
		gen    *stubGenerator
		text   string
		reason string
	}{
		{name: "request error", gen: &stubGenerator{err: errors.New("deadline exceeded")}, text: "cv", reason: "deadline exceeded"},
		{name: "not json", gen: &stubGenerator{response: "I cannot help with that"}, text: "cv", reason: "parse gemini response"},
		{name: "missing keys", gen: &stubGenerator{response: `{"full_name": "X"}`}, text: "cv", reason: "missing years_of_experience"},
		{name: "empty name", gen: &stubGenerator{response: `{"full_name": " ", "years_of_experience": 1, "seniority": "JUNIOR", "match_score": 10}`}, text: "cv", reason: "full_name is empty"},
		{name: "empty text", gen: &stubGenerator{}, text: "  ", reason: "resume text is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, observed := observer.New(zapcore.WarnLevel)
			a := NewAnalyzer(tt.gen, zap.New(core), 50)

			p := a.Analyze(context.Background(), tt.text, "jd")

			if !p.IsDegraded() {
				t.Fatalf("expected degraded profile, got %+v", p)
			}
			if p.Seniority != models.SeniorityJunior || p.YearsOfExperience != 0 {
				t.Fatalf("unexpected degraded values: %+v", p)
			}
			if !strings.Contains(p.Summary, tt.reason) {
				t.Fatalf("expected summary to mention %q, got %q", tt.reason, p.Summary)
			}
			if observed.Len() != 1 {
				t.Fatalf("expected one warning, got %d", observed.Len())
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"Here you go: {\"a\":1} Thanks!", `{"a":1}`},
		{"  {\"a\":{\"b\":2}}  ", `{"a":{"b":2}}`},
		{"no json here", "no json here"},
	}

	for _, tt := range tests {
		if got := extractJSON(tt.in); got != tt.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
