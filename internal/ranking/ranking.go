package ranking

import (
	"sort"

	"github.com/spigell/cv-ranker/internal/models"
)

// Rank orders profiles by match score, highest first, and assigns ranks 1..N.
// Profiles with equal scores keep their input order.
func Rank(profiles []models.CandidateProfile) []models.RankedCandidate {
	ordered := make([]models.CandidateProfile, len(profiles))
	copy(ordered, profiles)

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].MatchScore > ordered[j].MatchScore
	})

	ranked := make([]models.RankedCandidate, 0, len(ordered))
	for i, p := range ordered {
		ranked = append(ranked, models.RankedCandidate{
			Rank:      i + 1,
			Candidate: p,
			Score:     p.MatchScore,
		})
	}

	return ranked
}
