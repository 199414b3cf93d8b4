package models

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSeniorityForYears(t *testing.T) {
	tests := []struct {
		years float64
		want  Seniority
	}{
		{0, SeniorityJunior},
		{1.9, SeniorityJunior},
		{2, SeniorityPleno},
		{4.5, SeniorityPleno},
		{5, SenioritySenior},
		{12, SenioritySenior},
	}

	for _, tt := range tests {
		if got := SeniorityForYears(tt.years); got != tt.want {
			t.Errorf("SeniorityForYears(%v) = %s, want %s", tt.years, got, tt.want)
		}
	}
}

func TestDegradedProfile(t *testing.T) {
	p := DegradedProfile("could not extract text")

	if p.FullName != DegradedName {
		t.Fatalf("unexpected name %q", p.FullName)
	}
	if p.Seniority != SeniorityJunior || p.YearsOfExperience != 0 || p.MatchScore != 0 {
		t.Fatalf("unexpected degraded values: %+v", p)
	}
	if p.Summary != "Failed to process resume: could not extract text" {
		t.Fatalf("unexpected summary %q", p.Summary)
	}
	if p.Skills == nil || len(p.Skills) != 0 {
		t.Fatalf("expected empty skills, got %#v", p.Skills)
	}
	if !p.IsDegraded() {
		t.Fatalf("expected profile to be reported as degraded")
	}
	if err := p.Validate(true); err != nil {
		t.Fatalf("degraded profile should validate: %v", err)
	}
}

func TestNormalizeClampsValues(t *testing.T) {
	p := CandidateProfile{FullName: "Ana", YearsOfExperience: -3, MatchScore: 140, Seniority: "senior"}
	p.Normalize()

	if p.YearsOfExperience != 0 {
		t.Fatalf("expected experience clamped to 0, got %v", p.YearsOfExperience)
	}
	if p.MatchScore != 100 {
		t.Fatalf("expected score clamped to 100, got %v", p.MatchScore)
	}
	if p.Seniority != SenioritySenior {
		t.Fatalf("expected seniority normalized to SENIOR, got %s", p.Seniority)
	}

	p = CandidateProfile{FullName: "Bia", YearsOfExperience: 3, MatchScore: -1, Seniority: "lead"}
	p.Normalize()
	if p.MatchScore != 0 {
		t.Fatalf("expected score clamped to 0, got %v", p.MatchScore)
	}
	if p.Seniority != SeniorityPleno {
		t.Fatalf("expected seniority derived from experience, got %s", p.Seniority)
	}
}

func TestValidate(t *testing.T) {
	p := CandidateProfile{FullName: "Caio", YearsOfExperience: 6, Seniority: SeniorityJunior, MatchScore: 50}
	if err := p.Validate(false); err != nil {
		t.Fatalf("non-strict validation should accept analyzer seniority: %v", err)
	}
	if err := p.Validate(true); err == nil {
		t.Fatalf("strict validation should reject inconsistent seniority")
	}

	bad := CandidateProfile{MatchScore: 101, Seniority: "X"}
	err := bad.Validate(false)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"full_name", "match_score", "seniority"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got %v", want, err)
		}
	}
}

func TestTruncateJobDescription(t *testing.T) {
	short := "Go developer"
	if got := TruncateJobDescription(short); got != short {
		t.Fatalf("short description changed: %q", got)
	}

	exact := strings.Repeat("é", 100)
	if got := TruncateJobDescription(exact); got != exact {
		t.Fatalf("a 100 rune description must not get an ellipsis: %q", got)
	}

	long := strings.Repeat("a", 150)
	got := TruncateJobDescription(long)
	if got != strings.Repeat("a", 100)+"..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
}

func TestReportRecordRoundTrip(t *testing.T) {
	report := ConsolidatedReport{
		JobDescription:  "Backend engineer",
		TotalCandidates: 1,
		Ranking: []RankedCandidate{{
			Rank:      1,
			Candidate: DegradedProfile("boom"),
			Score:     0,
		}},
		Recommendation: "Interview nobody",
		GeneratedAt:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	data, err := EncodeReport(report)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := DecodeReport(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.GeneratedAt.Equal(report.GeneratedAt) {
		t.Fatalf("generated_at mismatch: %v", got.GeneratedAt)
	}
	if len(got.Ranking) != 1 || got.Ranking[0].Candidate.FullName != DegradedName {
		t.Fatalf("unexpected ranking: %+v", got.Ranking)
	}
}

func TestDecodeRejectsMalformedRecords(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		version bool
	}{
		{name: "unknown version", payload: `{"version":2,"reason":"x"}`, version: true},
		{name: "missing version", payload: `{"reason":"x"}`, version: true},
		{name: "unknown field", payload: `{"version":1,"reason":"x","extra":true}`},
		{name: "missing field", payload: `{"version":1}`},
		{name: "not json", payload: `nope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFailure([]byte(tt.payload))
			if err == nil {
				t.Fatalf("expected error")
			}
			if tt.version && !errors.Is(err, ErrUnsupportedRecordVersion) {
				t.Fatalf("expected ErrUnsupportedRecordVersion, got %v", err)
			}
		})
	}
}

func TestDecodeFailure(t *testing.T) {
	data, err := EncodeFailure("no candidate profiles were produced")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	reason, err := DecodeFailure(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reason != "no candidate profiles were produced" {
		t.Fatalf("unexpected reason %q", reason)
	}
}
