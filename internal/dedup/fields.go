// internal/dedup/fields.go
package dedup

// DefaultProbeFields is checked, in order, against the candidate when a
// request names no match fields. It is shared by every entity type: a
// household record carrying firstName is compared on firstName too.
var DefaultProbeFields = []string{
	"firstName",
	"lastName",
	"psn",
	"dateOfBirth",
	"email",
	"phoneNumber",
	"householdNumber",
	"address",
}

// fieldMatchFloor is the similarity a compared field must exceed to be
// reported as a FieldMatch.
const fieldMatchFloor = 0.5

// FieldMatch explains one field's contribution to a duplicate decision.
type FieldMatch struct {
	Field          string  `json:"field"`
	CandidateValue Value   `json:"candidateValue"`
	ExistingValue  Value   `json:"existingValue"`
	Similarity     float64 `json:"similarity"`
	Reason         string  `json:"reason"`
}

// MatchReason buckets a field similarity into a human readable label.
func MatchReason(similarity float64) string {
	switch {
	case similarity >= 0.95:
		return "Exact match"
	case similarity >= 0.85:
		return "Very high similarity"
	case similarity >= 0.75:
		return "High similarity"
	case similarity >= 0.65:
		return "Moderate similarity"
	default:
		return "Low similarity"
	}
}

// SelectFields returns the fields a comparison runs over: the explicit list
// with repeats removed, or the probe fields present on the candidate.
func SelectFields(candidate Record, explicit []string) []string {
	if len(explicit) > 0 {
		seen := make(map[string]struct{}, len(explicit))
		fields := make([]string, 0, len(explicit))
		for _, f := range explicit {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			fields = append(fields, f)
		}
		return fields
	}

	fields := make([]string, 0, len(DefaultProbeFields))
	for _, f := range DefaultProbeFields {
		if candidate.Has(f) {
			fields = append(fields, f)
		}
	}
	return fields
}

// CompareFields scores candidate against existing field by field. Fields
// absent or null on either side are skipped rather than counted as
// mismatches. score is the mean over compared fields, 0 when none were.
func CompareFields(candidate, existing Record, explicit []string, alg Algorithm) (score float64, matches []FieldMatch, compared int) {
	return compareSelected(candidate, existing, SelectFields(candidate, explicit), alg)
}

func compareSelected(candidate, existing Record, fields []string, alg Algorithm) (float64, []FieldMatch, int) {
	scores := make([]float64, 0, len(fields))
	var matches []FieldMatch

	for _, field := range fields {
		cv, ok := candidate.Get(field)
		if !ok {
			continue
		}
		ev, ok := existing.Get(field)
		if !ok {
			continue
		}

		sim := Similarity(cv.String(), ev.String(), alg)
		scores = append(scores, sim)

		if sim > fieldMatchFloor {
			matches = append(matches, FieldMatch{
				Field:          field,
				CandidateValue: cv,
				ExistingValue:  ev,
				Similarity:     sim,
				Reason:         MatchReason(sim),
			})
		}
	}

	return Mean(scores), matches, len(scores)
}
