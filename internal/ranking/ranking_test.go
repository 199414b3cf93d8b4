package ranking

import (
	"testing"

	"github.com/spigell/cv-ranker/internal/models"
)

func TestRankOrdersByScoreAndKeepsTies(t *testing.T) {
	profiles := []models.CandidateProfile{
		{FullName: "A", MatchScore: 80},
		{FullName: "B", MatchScore: 80},
		{FullName: "C", MatchScore: 95},
		{FullName: "D", MatchScore: 10},
	}

	ranked := Rank(profiles)

	want := []string{"C", "A", "B", "D"}
	if len(ranked) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(ranked))
	}
	for i, name := range want {
		if ranked[i].Candidate.FullName != name {
			t.Errorf("position %d: got %s, want %s", i, ranked[i].Candidate.FullName, name)
		}
		if ranked[i].Rank != i+1 {
			t.Errorf("position %d: rank %d", i, ranked[i].Rank)
		}
		if ranked[i].Score != ranked[i].Candidate.MatchScore {
			t.Errorf("position %d: score %v does not mirror candidate", i, ranked[i].Score)
		}
	}

	if profiles[0].FullName != "A" || profiles[2].FullName != "C" {
		t.Fatalf("input slice was reordered")
	}
}

func TestRankEmpty(t *testing.T) {
	if got := Rank(nil); len(got) != 0 {
		t.Fatalf("expected empty ranking, got %v", got)
	}
}
