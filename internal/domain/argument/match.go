package argument

import "math"

// DefaultSimilarityThreshold is the cosine similarity at or above which a
// claim ADU joins an existing canonical claim.
const DefaultSimilarityThreshold = 0.75

const similarityEpsilon = 1e-9

// BestMatch picks the strongest candidate. Exactly equal similarities go to the
// claim with more discussions, then to the older claim, so established claims
// absorb new duplicates instead of fragmenting.
func BestMatch(cands []ClaimMatch) (ClaimMatch, bool) {
	if len(cands) == 0 {
		return ClaimMatch{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if better(c, best) {
			best = c
		}
	}
	return best, true
}

func better(a, b ClaimMatch) bool {
	if math.Abs(a.Similarity-b.Similarity) > similarityEpsilon {
		return a.Similarity > b.Similarity
	}
	if a.DiscussionCount != b.DiscussionCount {
		return a.DiscussionCount > b.DiscussionCount
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// Matches reports whether sim clears threshold.
func Matches(sim, threshold float64) bool {
	return sim+similarityEpsilon >= threshold
}
