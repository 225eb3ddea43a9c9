package duplicatestatistics

import "time"

type Input struct {
	ResolvedCount int `json:"resolvedCount,omitempty"`
}

type Output struct {
	TotalFound      int64     `json:"totalFound"`
	TotalResolved   int64     `json:"totalResolved"`
	Pending         int64     `json:"pending"`
	LastProcessedAt time.Time `json:"lastProcessedAt"`
	// Processed is false until the first successful scan.
	Processed bool `json:"processed"`
}
