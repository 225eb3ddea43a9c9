package duplicatecheckbatch

import "registry-workers/internal/common/validation"

func GetInputSchema(maxBatchSize int) validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"entityType", "records"},
		Properties: map[string]validation.Property{
			"entityType": {
				Type:      "string",
				MinLength: validation.IntPtr(1),
				MaxLength: validation.IntPtr(100),
			},
			"records": {
				Type:        "array",
				Description: "Candidates to check against the same corpus snapshot",
				MinItems:    validation.IntPtr(1),
				MaxItems:    validation.IntPtr(maxBatchSize),
				Items: &validation.Property{
					Type:     "object",
					Required: []string{"candidateId", "record"},
					Properties: map[string]validation.Property{
						"candidateId": {Type: "string", MinLength: validation.IntPtr(1)},
						"record": {
							Type:                 "object",
							AdditionalProperties: validation.ScalarValue(),
						},
					},
				},
			},
			"matchFields": {
				Type:  "array",
				Items: &validation.Property{Type: "string", MinLength: validation.IntPtr(1)},
			},
			"threshold": {
				Type:    "number",
				Minimum: validation.FloatPtr(0),
				Maximum: validation.FloatPtr(1),
			},
			"maxResults": {
				Type:    "integer",
				Minimum: validation.FloatPtr(0),
			},
			"includePartial": {Type: "boolean"},
			"algorithm":      {Type: "string"},
		},
		AdditionalProperties: true,
	}
}
