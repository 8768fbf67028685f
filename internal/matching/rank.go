package matching

import (
	"sort"

	"github.com/buildquote/leadmatch/internal/model"
)

// Ranking weights. Distance dominates so nearby professionals win; the
// rating term breaks up clusters at similar distances.
const (
	DefaultDistanceWeight = 0.7
	DefaultRatingWeight   = 0.3
)

// rankScore computes the composite score for one candidate. Lower is better:
// the rating term is inverted against a 5-point scale so a 5.0-rated
// professional contributes zero penalty.
func rankScore(distanceMiles, rating, distanceWeight, ratingWeight float64) float64 {
	return distanceWeight*distanceMiles + ratingWeight*(5.0-rating)
}

// rankAndCap sorts candidates by ascending score, breaking ties by profile
// id, and truncates to the per-role cap.
func rankAndCap(candidates []model.MatchedProfessional, distanceWeight, ratingWeight float64, limit int) []model.MatchedProfessional {
	sort.Slice(candidates, func(i, j int) bool {
		si := rankScore(candidates[i].DistanceMiles, candidates[i].Profile.Rating, distanceWeight, ratingWeight)
		sj := rankScore(candidates[j].DistanceMiles, candidates[j].Profile.Rating, distanceWeight, ratingWeight)
		if si != sj {
			return si < sj
		}
		return candidates[i].Profile.ID < candidates[j].Profile.ID
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}
