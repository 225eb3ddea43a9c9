package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestSchema() JSONSchema {
	return JSONSchema{
		Type:     "object",
		Required: []string{"entityType", "record"},
		Properties: map[string]Property{
			"entityType": {Type: "string", MinLength: IntPtr(1)},
			"record": {
				Type:                 "object",
				MinProperties:        IntPtr(1),
				AdditionalProperties: ScalarValue(),
			},
			"threshold":  {Type: "number", Minimum: FloatPtr(0), Maximum: FloatPtr(1)},
			"maxResults": {Type: "integer", Minimum: FloatPtr(0)},
			"matchFields": {
				Type:  "array",
				Items: &Property{Type: "string"},
			},
		},
		AdditionalProperties: true,
	}
}

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name      string
		input     map[string]interface{}
		wantValid bool
		field     string
		code      string
	}{
		{
			name: "valid input",
			input: map[string]interface{}{
				"entityType": "INDIVIDUAL",
				"record":     map[string]interface{}{"firstName": "Juan"},
				"threshold":  0.75,
			},
			wantValid: true,
		},
		{
			name: "unrelated process variables are allowed",
			input: map[string]interface{}{
				"entityType":    "INDIVIDUAL",
				"record":        map[string]interface{}{"firstName": "Juan"},
				"applicationId": "app-1",
			},
			wantValid: true,
		},
		{
			name:      "missing entity type",
			input:     map[string]interface{}{"record": map[string]interface{}{"firstName": "Juan"}},
			wantValid: false,
			field:     "entityType",
			code:      "REQUIRED_FIELD_MISSING",
		},
		{
			name: "empty entity type",
			input: map[string]interface{}{
				"entityType": "",
				"record":     map[string]interface{}{"firstName": "Juan"},
			},
			wantValid: false,
			field:     "entityType",
			code:      "MIN_LENGTH_VIOLATION",
		},
		{
			name: "threshold above one",
			input: map[string]interface{}{
				"entityType": "INDIVIDUAL",
				"record":     map[string]interface{}{"firstName": "Juan"},
				"threshold":  1.5,
			},
			wantValid: false,
			field:     "threshold",
			code:      "MAXIMUM_VIOLATION",
		},
		{
			name: "threshold wrong type",
			input: map[string]interface{}{
				"entityType": "INDIVIDUAL",
				"record":     map[string]interface{}{"firstName": "Juan"},
				"threshold":  "high",
			},
			wantValid: false,
			field:     "threshold",
			code:      "INVALID_TYPE",
		},
		{
			name: "fractional max results",
			input: map[string]interface{}{
				"entityType": "INDIVIDUAL",
				"record":     map[string]interface{}{"firstName": "Juan"},
				"maxResults": 2.5,
			},
			wantValid: false,
			field:     "maxResults",
			code:      "INVALID_TYPE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateInput(tt.input, createTestSchema())

			assert.Equal(t, tt.wantValid, result.Valid, result.GetErrorMessages())
			if !tt.wantValid {
				require.True(t, result.HasErrors(tt.field), result.GetErrorMessages())
				assert.Equal(t, tt.code, result.GetErrorsForField(tt.field)[0].Code)
			}
		})
	}
}

func TestValidateInput_NestedRecordValues(t *testing.T) {
	result := ValidateInput(map[string]interface{}{
		"entityType": "INDIVIDUAL",
		"record": map[string]interface{}{
			"firstName": "Juan",
			"address":   map[string]interface{}{"city": "Lima"},
		},
	}, createTestSchema())

	assert.False(t, result.Valid)
	require.True(t, result.HasErrors("record.address"), result.GetErrorMessages())
	assert.Equal(t, "INVALID_TYPE", result.GetErrorsForField("record.address")[0].Code)
}

func TestValidateInput_DisallowsExtraFieldsWhenClosed(t *testing.T) {
	schema := JSONSchema{
		Type:       "object",
		Properties: map[string]Property{"resolvedCount": {Type: "integer"}},
	}

	result := ValidateInput(map[string]interface{}{"resolvedCount": 1, "other": true}, schema)

	assert.False(t, result.Valid)
	require.True(t, result.HasErrors("other"), result.GetErrorMessages())
	assert.Equal(t, "EXTRA_FIELD", result.GetErrorsForField("other")[0].Code)
}

func TestGetSchemaFromJSON(t *testing.T) {
	schema, err := GetSchemaFromJSON(`{"type":"object","required":["entityType"],"properties":{"entityType":{"type":"string"}}}`)
	require.NoError(t, err)

	result := ValidateInput(map[string]interface{}{}, schema)
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"entityType: entityType is required"}, result.GetErrorMessages())
}
