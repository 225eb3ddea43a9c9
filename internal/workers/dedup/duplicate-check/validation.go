package duplicatecheck

import "registry-workers/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"entityType", "record"},
		Properties: map[string]validation.Property{
			"entityType": {
				Type:        "string",
				Description: "Entity type whose corpus is scanned",
				MinLength:   validation.IntPtr(1),
				MaxLength:   validation.IntPtr(100),
			},
			"record": {
				Type:                 "object",
				Description:          "Candidate record of primitive values",
				AdditionalProperties: validation.ScalarValue(),
			},
			"matchFields": {
				Type:        "array",
				Description: "Fields to compare; defaults to the probe list",
				Items:       &validation.Property{Type: "string", MinLength: validation.IntPtr(1)},
			},
			"threshold": {
				Type:        "number",
				Description: "Minimum similarity for a match",
				Minimum:     validation.FloatPtr(0),
				Maximum:     validation.FloatPtr(1),
			},
			"maxResults": {
				Type:        "integer",
				Description: "Maximum matches returned",
				Minimum:     validation.FloatPtr(0),
			},
			"includePartial": {
				Type:        "boolean",
				Description: "Whether records missing selected fields may match",
			},
			"algorithm": {
				Type:        "string",
				Description: "EXACT, FUZZY, PHONETIC or LEVENSHTEIN",
			},
		},
		// Job variables include the whole process scope.
		AdditionalProperties: true,
	}
}
