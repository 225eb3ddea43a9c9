package duplicatestatistics

import "registry-workers/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"resolvedCount": {
				Type:        "integer",
				Description: "Duplicates resolved by a reviewer since the last report",
				Minimum:     validation.FloatPtr(0),
			},
		},
		AdditionalProperties: true,
	}
}
