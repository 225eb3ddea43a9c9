// internal/dedup/scorer.go
package dedup

// RecordScore is the outcome of comparing one candidate with one existing
// record.
type RecordScore struct {
	Score          float64
	FieldMatches   []FieldMatch
	ComparedFields int
	SelectedFields []string
}

// SharesAll reports whether every selected field was compared.
func (s RecordScore) SharesAll() bool {
	return s.ComparedFields == len(s.SelectedFields)
}

// ScoreRecord compares candidate and existing over the selected fields and
// aggregates the per-field similarities with Mean.
func ScoreRecord(candidate, existing Record, fields []string, alg Algorithm) RecordScore {
	selected := SelectFields(candidate, fields)
	score, matches, compared := compareSelected(candidate, existing, selected, alg)
	return RecordScore{
		Score:          score,
		FieldMatches:   matches,
		ComparedFields: compared,
		SelectedFields: selected,
	}
}

// Mean is the aggregation rule for field similarities: the arithmetic mean,
// or 0 for no scores.
func Mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
