// internal/dedup/scanner.go
package dedup

import (
	"fmt"
	"sort"
)

// Entry is one stored record of the corpus.
type Entry struct {
	ID     string `json:"id"`
	Record Record `json:"record"`
}

// DuplicateMatch is an existing record that scored at or above the request
// threshold.
type DuplicateMatch struct {
	ExistingID     string       `json:"existingId"`
	Similarity     float64      `json:"similarity"`
	Algorithm      Algorithm    `json:"algorithm"`
	FieldMatches   []FieldMatch `json:"fieldMatches"`
	ExistingRecord Record       `json:"existingRecord"`
}

// ScanError reports a scan that could not finish. ExistingID names the
// corpus record being scored when it failed, empty if the corpus itself
// could not be loaded.
type ScanError struct {
	ExistingID string
	Err        error
}

func (e *ScanError) Error() string {
	if e.ExistingID == "" {
		return fmt.Sprintf("duplicate scan failed: %v", e.Err)
	}
	return fmt.Sprintf("duplicate scan failed at record %q: %v", e.ExistingID, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Scan scores req.Record against every corpus entry and returns the matches
// at or above req.Threshold, best first, at most req.MaxResults of them.
// The corpus is only read. Any failure scoring one entry fails the whole
// scan; a partial list is never returned.
func Scan(req MatchRequest, corpus []Entry) ([]DuplicateMatch, error) {
	matches := make([]DuplicateMatch, 0)

	for _, entry := range corpus {
		score, err := scoreEntry(req, entry)
		if err != nil {
			return nil, &ScanError{ExistingID: entry.ID, Err: err}
		}

		if score.ComparedFields == 0 {
			continue
		}
		if !req.IncludePartial && !score.SharesAll() {
			continue
		}
		if score.Score < req.Threshold {
			continue
		}

		matches = append(matches, DuplicateMatch{
			ExistingID:     entry.ID,
			Similarity:     score.Score,
			Algorithm:      req.Algorithm,
			FieldMatches:   score.FieldMatches,
			ExistingRecord: entry.Record.Clone(),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if req.MaxResults > 0 && len(matches) > req.MaxResults {
		matches = matches[:req.MaxResults]
	}
	return matches, nil
}

func scoreEntry(req MatchRequest, entry Entry) (score RecordScore, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while scoring: %v", r)
		}
	}()

	if entry.ID == "" {
		return RecordScore{}, fmt.Errorf("corpus entry has no id")
	}
	return ScoreRecord(req.Record, entry.Record, req.MatchFields, req.Algorithm), nil
}
