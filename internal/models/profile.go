package models

import (
	"errors"
	"fmt"
	"strings"
)

// Seniority is the experience band assigned to a candidate.
type Seniority string

const (
	SeniorityJunior Seniority = "JUNIOR"
	SeniorityPleno  Seniority = "PLENO"
	SenioritySenior Seniority = "SENIOR"
)

// DegradedName is the placeholder name used for profiles that could not be built.
const DegradedName = "Unknown (Parse Error)"

const degradedSummaryPrefix = "Failed to process resume: "

// Valid reports whether s is one of the known seniority bands.
func (s Seniority) Valid() bool {
	switch s {
	case SeniorityJunior, SeniorityPleno, SenioritySenior:
		return true
	}
	return false
}

// SeniorityForYears maps years of experience to a band: [0,2) JUNIOR, [2,5) PLENO, 5+ SENIOR.
func SeniorityForYears(years float64) Seniority {
	switch {
	case years >= 5:
		return SenioritySenior
	case years >= 2:
		return SeniorityPleno
	default:
		return SeniorityJunior
	}
}

// ParseSeniority normalizes a free-form seniority label.
func ParseSeniority(value string) (Seniority, bool) {
	s := Seniority(strings.ToUpper(strings.TrimSpace(value)))
	return s, s.Valid()
}

type Education struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Field       string `json:"field"`
}

// CandidateProfile is the structured result of analyzing one resume.
type CandidateProfile struct {
	FullName             string      `json:"full_name"`
	Email                string      `json:"email"`
	Phone                string      `json:"phone"`
	YearsOfExperience    float64     `json:"years_of_experience"`
	Skills               []string    `json:"skills"`
	LastRole             string      `json:"last_role"`
	Companies            []string    `json:"companies"`
	Education            []Education `json:"education"`
	Seniority            Seniority   `json:"seniority"`
	Summary              string      `json:"summary"`
	Strengths            []string    `json:"strengths"`
	Weaknesses           []string    `json:"weaknesses"`
	MatchScore           float64     `json:"match_score"`
	RankingJustification string      `json:"ranking_justification"`
}

// DegradedProfile returns the placeholder profile emitted when a document could not be processed.
func DegradedProfile(reason string) CandidateProfile {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown error"
	}

	return CandidateProfile{
		FullName:             DegradedName,
		YearsOfExperience:    0,
		Skills:               []string{},
		Companies:            []string{},
		Education:            []Education{},
		Seniority:            SeniorityJunior,
		Summary:              degradedSummaryPrefix + reason,
		Strengths:            []string{},
		Weaknesses:           []string{},
		MatchScore:           0,
		RankingJustification: "Candidate could not be evaluated.",
	}
}

// IsDegraded reports whether the profile is a placeholder for a failed document.
func (p CandidateProfile) IsDegraded() bool {
	return p.FullName == DegradedName && strings.HasPrefix(p.Summary, degradedSummaryPrefix)
}

// Normalize clamps the numeric fields into their valid ranges and fills a missing seniority.
func (p *CandidateProfile) Normalize() {
	if p.YearsOfExperience < 0 || p.YearsOfExperience != p.YearsOfExperience {
		p.YearsOfExperience = 0
	}

	switch {
	case p.MatchScore != p.MatchScore, p.MatchScore < 0:
		p.MatchScore = 0
	case p.MatchScore > 100:
		p.MatchScore = 100
	}

	if s, ok := ParseSeniority(string(p.Seniority)); ok {
		p.Seniority = s
	} else {
		p.Seniority = SeniorityForYears(p.YearsOfExperience)
	}

	if p.Skills == nil {
		p.Skills = []string{}
	}
	if p.Companies == nil {
		p.Companies = []string{}
	}
	if p.Education == nil {
		p.Education = []Education{}
	}
	if p.Strengths == nil {
		p.Strengths = []string{}
	}
	if p.Weaknesses == nil {
		p.Weaknesses = []string{}
	}
}

// Validate checks the range invariants of a profile. Seniority is checked for
// consistency with experience only when strict is set.
func (p CandidateProfile) Validate(strict bool) error {
	var errs []error

	if strings.TrimSpace(p.FullName) == "" {
		errs = append(errs, errors.New("full_name is empty"))
	}
	if p.YearsOfExperience < 0 {
		errs = append(errs, fmt.Errorf("years_of_experience %.2f is negative", p.YearsOfExperience))
	}
	if p.MatchScore < 0 || p.MatchScore > 100 {
		errs = append(errs, fmt.Errorf("match_score %.2f is outside [0,100]", p.MatchScore))
	}
	if !p.Seniority.Valid() {
		errs = append(errs, fmt.Errorf("seniority %q is unknown", p.Seniority))
	} else if strict && p.Seniority != SeniorityForYears(p.YearsOfExperience) {
		errs = append(errs, fmt.Errorf("seniority %s does not match %.1f years of experience", p.Seniority, p.YearsOfExperience))
	}

	return errors.Join(errs...)
}
