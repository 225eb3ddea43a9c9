package duplicatecheck

import "registry-workers/internal/dedup"

// Input is read from the job variables. Optional settings are pointers so
// an absent variable falls back to the worker defaults.
type Input struct {
	EntityType     string                 `json:"entityType"`
	Record         map[string]interface{} `json:"record"`
	MatchFields    []string               `json:"matchFields,omitempty"`
	Threshold      *float64               `json:"threshold,omitempty"`
	MaxResults     *int                   `json:"maxResults,omitempty"`
	IncludePartial *bool                  `json:"includePartial,omitempty"`
	Algorithm      string                 `json:"algorithm,omitempty"`
}

// Output becomes the job's result variables.
type Output struct {
	dedup.MatchResult
}
