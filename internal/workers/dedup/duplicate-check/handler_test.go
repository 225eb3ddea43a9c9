package duplicatecheck

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"registry-workers/internal/common/config"
	"registry-workers/internal/common/errors"
	"registry-workers/internal/common/logger"
	"registry-workers/internal/corpus"
	"registry-workers/internal/dedup"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Engine Implementation
// ==========================

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Check(ctx context.Context, req dedup.MatchRequest) (*dedup.MatchResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dedup.MatchResult), args.Error(1)
}

type failingCorpus struct{}

func (failingCorpus) RecordsForType(context.Context, string) ([]dedup.Entry, error) {
	return nil, stderrors.New("connection refused")
}

// ==========================
// Mock Job Helper
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	activatedJob := &pb.ActivatedJob{
		Key:                      key,
		Type:                     TaskType,
		ProcessInstanceKey:       key * 10,
		BpmnProcessId:            "registry-ingestion",
		ProcessDefinitionVersion: 1,
		ProcessDefinitionKey:     1,
		ElementId:                "Activity_CheckDuplicate",
		ElementInstanceKey:       1,
		CustomHeaders:            "{}",
		Worker:                   "test-worker",
		Retries:                  3,
		Deadline:                 0,
		Variables:                string(variablesJSON),
	}

	return entities.Job{ActivatedJob: activatedJob}
}

// ==========================
// Test Helpers
// ==========================

func createValidConfig() *Config {
	return &Config{
		Enabled:           true,
		MaxJobsActive:     5,
		Timeout:           10 * time.Second,
		DefaultThreshold:  0.8,
		DefaultMaxResults: 10,
		DefaultAlgorithm:  "FUZZY",
	}
}

func createTestRecord(firstName string) map[string]interface{} {
	return map[string]interface{}{
		"firstName": firstName,
		"lastName":  "Dela Cruz",
		"psn":       "1234-5678-0001",
	}
}

func createTestHandler(t *testing.T, engine Checker) *Handler {
	handler, err := NewHandler(HandlerOptions{
		CustomConfig: createValidConfig(),
		Engine:       engine,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return handler
}

func createTestEngine(t *testing.T, provider dedup.CorpusProvider) *dedup.Engine {
	return dedup.NewEngine(dedup.EngineOptions{Corpus: provider, Logger: logger.NewTestLogger(t)})
}

func createSeededEngine(t *testing.T) *dedup.Engine {
	store := corpus.NewMemory()
	existing, err := dedup.RecordFromMap(createTestRecord("Jon"))
	require.NoError(t, err)
	require.NoError(t, store.Put("INDIVIDUAL", "rec-1", existing))
	return createTestEngine(t, store)
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }
func boolPtr(b bool) *bool        { return &b }

// ==========================
// Handler Creation Tests
// ==========================

func TestHandler_NewHandler(t *testing.T) {
	tests := []struct {
		name    string
		opts    HandlerOptions
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid configuration",
			opts: HandlerOptions{
				CustomConfig: createValidConfig(),
				Engine:       &MockEngine{},
				Logger:       logger.NewNoOpLogger(),
			},
		},
		{
			name: "default logger created when not provided",
			opts: HandlerOptions{
				CustomConfig: createValidConfig(),
				Engine:       &MockEngine{},
			},
		},
		{
			name:    "missing engine",
			opts:    HandlerOptions{CustomConfig: createValidConfig()},
			wantErr: true,
			errMsg:  "engine is required",
		},
		{
			name: "invalid timeout",
			opts: HandlerOptions{
				CustomConfig: func() *Config { c := createValidConfig(); c.Timeout = -time.Second; return c }(),
				Engine:       &MockEngine{},
			},
			wantErr: true,
			errMsg:  "timeout must be positive",
		},
		{
			name: "invalid default threshold",
			opts: HandlerOptions{
				CustomConfig: func() *Config { c := createValidConfig(); c.DefaultThreshold = 1.2; return c }(),
				Engine:       &MockEngine{},
			},
			wantErr: true,
			errMsg:  "default_threshold",
		},
		{
			name: "unknown default algorithm",
			opts: HandlerOptions{
				CustomConfig: func() *Config { c := createValidConfig(); c.DefaultAlgorithm = "COSINE"; return c }(),
				Engine:       &MockEngine{},
			},
			wantErr: true,
			errMsg:  "unknown default_algorithm",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, err := NewHandler(tt.opts)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, handler)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, handler)
				assert.NotNil(t, handler.service)
				assert.Equal(t, TaskType, handler.GetTaskType())
			}
		})
	}
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	appConfig := &config.Config{
		Workers: map[string]config.WorkerConfig{
			TaskType: {Enabled: false, MaxJobsActive: 3, Timeout: 5000},
		},
		Dedup: config.DedupConfig{
			DefaultThreshold:  0.7,
			DefaultMaxResults: 5,
			DefaultAlgorithm:  "PHONETIC",
		},
	}

	cfg := createConfigFromAppConfig(appConfig, nil)

	assert.False(t, cfg.Enabled)
	assert.Equal(t, 3, cfg.MaxJobsActive)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 0.7, cfg.DefaultThreshold)
	assert.Equal(t, 5, cfg.DefaultMaxResults)
	assert.Equal(t, "PHONETIC", cfg.DefaultAlgorithm)

	assert.Equal(t, DefaultConfig(), createConfigFromAppConfig(&config.Config{}, nil))
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	handler := createTestHandler(t, &MockEngine{})

	tests := []struct {
		name      string
		variables map[string]interface{}
		errCode   string
		validate  func(*testing.T, *Input)
	}{
		{
			name: "all fields",
			variables: map[string]interface{}{
				"entityType":     "INDIVIDUAL",
				"record":         createTestRecord("Juan"),
				"matchFields":    []interface{}{"firstName", "psn"},
				"threshold":      0.6,
				"maxResults":     3,
				"includePartial": false,
				"algorithm":      "phonetic",
				"applicationId":  "app-77",
			},
			validate: func(t *testing.T, input *Input) {
				assert.Equal(t, "INDIVIDUAL", input.EntityType)
				assert.Equal(t, "Juan", input.Record["firstName"])
				assert.Equal(t, []string{"firstName", "psn"}, input.MatchFields)
				assert.Equal(t, 0.6, *input.Threshold)
				assert.Equal(t, 3, *input.MaxResults)
				assert.False(t, *input.IncludePartial)
				assert.Equal(t, "phonetic", input.Algorithm)
			},
		},
		{
			name: "minimal input leaves options unset",
			variables: map[string]interface{}{
				"entityType": "HOUSEHOLD",
				"record":     map[string]interface{}{"householdNumber": "HH-1", "members": 4, "urban": true, "notes": nil},
			},
			validate: func(t *testing.T, input *Input) {
				assert.Nil(t, input.Threshold)
				assert.Nil(t, input.MaxResults)
				assert.Nil(t, input.IncludePartial)
				assert.Empty(t, input.Algorithm)
				assert.Len(t, input.Record, 4)
			},
		},
		{
			name:      "missing entity type",
			variables: map[string]interface{}{"record": createTestRecord("Juan")},
			errCode:   "VALIDATION_FAILED",
		},
		{
			name:      "missing record",
			variables: map[string]interface{}{"entityType": "INDIVIDUAL"},
			errCode:   "VALIDATION_FAILED",
		},
		{
			name: "nested record value",
			variables: map[string]interface{}{
				"entityType": "INDIVIDUAL",
				"record":     map[string]interface{}{"address": map[string]interface{}{"city": "Cebu"}},
			},
			errCode: "VALIDATION_FAILED",
		},
		{
			name: "threshold out of range",
			variables: map[string]interface{}{
				"entityType": "INDIVIDUAL",
				"record":     createTestRecord("Juan"),
				"threshold":  1.5,
			},
			errCode: "VALIDATION_FAILED",
		},
		{
			name: "negative max results",
			variables: map[string]interface{}{
				"entityType": "INDIVIDUAL",
				"record":     createTestRecord("Juan"),
				"maxResults": -1,
			},
			errCode: "VALIDATION_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := handler.parseInput(createMockJob(12345, tt.variables))

			if tt.errCode != "" {
				require.Error(t, err)
				stdErr, ok := errors.AsStandardError(err)
				require.True(t, ok, "error should be StandardError")
				assert.Equal(t, errors.ErrorCode(tt.errCode), stdErr.Code)
				return
			}

			require.NoError(t, err)
			tt.validate(t, input)
		})
	}
}

func TestHandler_ParseInput_MalformedVariables(t *testing.T) {
	handler := createTestHandler(t, &MockEngine{})
	job := entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 1, Variables: "{not json"}}

	_, err := handler.parseInput(job)
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeInputParsingFailed, stdErr.Code)
}

// ==========================
// Request Building Tests
// ==========================

func TestService_BuildRequest(t *testing.T) {
	handler := createTestHandler(t, &MockEngine{})
	ctx := context.Background()

	req, err := handler.service.BuildRequest(ctx, &Input{EntityType: "INDIVIDUAL", Record: createTestRecord("Juan")})
	require.NoError(t, err)
	assert.Equal(t, 0.8, req.Threshold)
	assert.Equal(t, 10, req.MaxResults)
	assert.True(t, req.IncludePartial)
	assert.Equal(t, dedup.AlgorithmFuzzy, req.Algorithm)

	req, err = handler.service.BuildRequest(ctx, &Input{
		EntityType:     "INDIVIDUAL",
		Record:         createTestRecord("Juan"),
		Threshold:      floatPtr(0),
		MaxResults:     intPtr(2),
		IncludePartial: boolPtr(false),
		Algorithm:      "exact",
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, req.Threshold)
	assert.Equal(t, 2, req.MaxResults)
	assert.False(t, req.IncludePartial)
	assert.Equal(t, dedup.AlgorithmExact, req.Algorithm)
}

func TestService_BuildRequest_UnknownAlgorithmFallsBackToLevenshtein(t *testing.T) {
	handler := createTestHandler(t, &MockEngine{})

	req, err := handler.service.BuildRequest(context.Background(), &Input{
		EntityType: "INDIVIDUAL",
		Record:     createTestRecord("Juan"),
		Algorithm:  "COSINE",
	})

	require.NoError(t, err)
	assert.Equal(t, dedup.AlgorithmLevenshtein, req.Algorithm)
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute_FlagsNearDuplicate(t *testing.T) {
	handler := createTestHandler(t, createSeededEngine(t))

	output, err := handler.Execute(context.Background(), &Input{
		EntityType: "INDIVIDUAL",
		Record:     createTestRecord("Juan"),
	})
	require.NoError(t, err)

	assert.True(t, output.HasDuplicates)
	assert.Equal(t, 1, output.TotalMatches)
	require.Len(t, output.Matches, 1)
	assert.Equal(t, "rec-1", output.Matches[0].ExistingID)
	assert.InDelta(t, 0.9167, output.Matches[0].Similarity, 0.001)
	assert.Equal(t, dedup.RecommendReject, output.Recommendation)
	assert.NotEmpty(t, output.RequestID)
}

func TestHandler_Execute_NoDuplicates(t *testing.T) {
	handler := createTestHandler(t, createSeededEngine(t))

	output, err := handler.Execute(context.Background(), &Input{
		EntityType: "INDIVIDUAL",
		Record:     map[string]interface{}{"firstName": "Zoltan", "lastName": "Kovacs", "psn": "9999-0000-1111"},
	})
	require.NoError(t, err)

	assert.False(t, output.HasDuplicates)
	assert.Empty(t, output.Matches)
	assert.Equal(t, dedup.RecommendProceed, output.Recommendation)
}

func TestHandler_Execute_OutputVariables(t *testing.T) {
	handler := createTestHandler(t, createSeededEngine(t))

	output, err := handler.Execute(context.Background(), &Input{
		EntityType: "INDIVIDUAL",
		Record:     createTestRecord("Juan"),
	})
	require.NoError(t, err)

	data, err := json.Marshal(output)
	require.NoError(t, err)

	var vars map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &vars))
	for _, key := range []string{"hasDuplicates", "totalMatches", "matches", "recommendation", "processingTimeMs", "requestId", "entityType"} {
		assert.Contains(t, vars, key)
	}
	assert.Equal(t, "REJECT", vars["recommendation"])
	assert.NotContains(t, vars, "error")
}

func TestHandler_Execute_ErrorMapping(t *testing.T) {
	brokenStore := corpus.NewMemory()
	brokenStore.Replace("INDIVIDUAL", []dedup.Entry{{ID: "", Record: dedup.Record{"firstName": dedup.String("Jon")}}})

	tests := []struct {
		name      string
		engine    Checker
		input     *Input
		code      errors.ErrorCode
		retryable bool
		outcome   bool
	}{
		{
			name:      "corpus unavailable",
			engine:    createTestEngine(t, failingCorpus{}),
			input:     &Input{EntityType: "INDIVIDUAL", Record: createTestRecord("Juan")},
			code:      errors.ErrCodeCorpusLoadFailed,
			retryable: true,
			outcome:   true,
		},
		{
			name:      "scan failure",
			engine:    createTestEngine(t, brokenStore),
			input:     &Input{EntityType: "INDIVIDUAL", Record: createTestRecord("Juan")},
			code:      errors.ErrCodeDuplicateScanFailed,
			retryable: true,
			outcome:   true,
		},
		{
			name:   "engine rejects request",
			engine: createSeededEngine(t),
			input: &Input{
				EntityType: "INDIVIDUAL",
				Record:     createTestRecord("Juan"),
				MaxResults: intPtr(-1),
			},
			code: errors.ErrCodeInvalidMatchRequest,
		},
		{
			name:   "unsupported record value",
			engine: createSeededEngine(t),
			input: &Input{
				EntityType: "INDIVIDUAL",
				Record:     map[string]interface{}{"tags": []interface{}{"a"}},
			},
			code: errors.ErrCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := createTestHandler(t, tt.engine)

			output, err := handler.Execute(context.Background(), tt.input)
			assert.Nil(t, output)

			stdErr, ok := errors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, stdErr.Code)
			assert.Equal(t, tt.retryable, stdErr.Retryable)

			if tt.outcome {
				assert.Equal(t, "ERROR", stdErr.Metadata["recommendation"])
				assert.Equal(t, false, stdErr.Metadata["hasDuplicates"])
				assert.Equal(t, 0, stdErr.Metadata["totalMatches"])
				assert.Equal(t, "INDIVIDUAL", stdErr.Metadata["entityType"])
				assert.NotEmpty(t, stdErr.Metadata["requestId"])

				bpmnErr := errors.ConvertToBPMNError(stdErr)
				assert.Equal(t, "ERROR", bpmnErr.ErrorVariables["recommendation"])
				assert.Greater(t, bpmnErr.Retries, 0)
			}
		})
	}
}

func TestHandler_Execute_PassesRequestToEngine(t *testing.T) {
	engine := &MockEngine{}
	handler := createTestHandler(t, engine)

	engine.On("Check", mock.Anything, mock.MatchedBy(func(req dedup.MatchRequest) bool {
		return req.EntityType == "INDIVIDUAL" &&
			req.Threshold == 0.5 &&
			req.Algorithm == dedup.AlgorithmPhonetic &&
			len(req.MatchFields) == 1 && req.MatchFields[0] == "lastName"
	})).Return(&dedup.MatchResult{
		Matches:        []dedup.DuplicateMatch{},
		Recommendation: dedup.RecommendProceed,
		RequestID:      "req-1",
		EntityType:     "INDIVIDUAL",
	}, nil)

	output, err := handler.Execute(context.Background(), &Input{
		EntityType:  "INDIVIDUAL",
		Record:      createTestRecord("Juan"),
		MatchFields: []string{"lastName"},
		Threshold:   floatPtr(0.5),
		Algorithm:   "PHONETIC",
	})

	require.NoError(t, err)
	assert.Equal(t, "req-1", output.RequestID)
	engine.AssertExpectations(t)
}
