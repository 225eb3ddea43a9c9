// internal/dedup/recommendation.go
package dedup

// Recommendation is the action suggested for a candidate record.
type Recommendation string

const (
	RecommendProceed        Recommendation = "PROCEED"
	RecommendReviewRequired Recommendation = "REVIEW_REQUIRED"
	RecommendReject         Recommendation = "REJECT"
	RecommendError          Recommendation = "ERROR"
)

// HighConfidenceThreshold is the top-match similarity at which a candidate
// is rejected outright, independent of the request threshold.
const HighConfidenceThreshold = 0.9

// Recommend maps the best match to an action. matches must be sorted by
// descending similarity, as Scan returns them.
func Recommend(matches []DuplicateMatch, threshold float64) Recommendation {
	if len(matches) == 0 {
		return RecommendProceed
	}

	top := matches[0].Similarity
	switch {
	case top >= HighConfidenceThreshold:
		return RecommendReject
	case top >= threshold:
		return RecommendReviewRequired
	default:
		return RecommendProceed
	}
}
