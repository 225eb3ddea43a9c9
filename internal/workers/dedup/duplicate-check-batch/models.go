package duplicatecheckbatch

import "registry-workers/internal/dedup"

type Candidate struct {
	CandidateID string                 `json:"candidateId"`
	Record      map[string]interface{} `json:"record"`
}

// Input options apply to every candidate in the batch.
type Input struct {
	EntityType     string      `json:"entityType"`
	Records        []Candidate `json:"records"`
	MatchFields    []string    `json:"matchFields,omitempty"`
	Threshold      *float64    `json:"threshold,omitempty"`
	MaxResults     *int        `json:"maxResults,omitempty"`
	IncludePartial *bool       `json:"includePartial,omitempty"`
	Algorithm      string      `json:"algorithm,omitempty"`
}

type ItemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ItemResult carries a result, an error, or both when a scan failed and
// produced an ERROR result.
type ItemResult struct {
	CandidateID string             `json:"candidateId"`
	Result      *dedup.MatchResult `json:"result,omitempty"`
	Error       *ItemError         `json:"error,omitempty"`
}

type Summary struct {
	Proceed int `json:"proceed"`
	Review  int `json:"review"`
	Reject  int `json:"reject"`
	Error   int `json:"error"`
}

type Output struct {
	Results          []ItemResult `json:"results"`
	Summary          Summary      `json:"summary"`
	ProcessingTimeMs int64        `json:"processingTimeMs"`
}
