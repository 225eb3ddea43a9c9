package duplicatecheck

import (
	"context"
	stderrors "errors"

	"registry-workers/internal/common/errors"
	"registry-workers/internal/common/logger"
	"registry-workers/internal/dedup"
)

// Checker is the engine surface the worker needs.
type Checker interface {
	Check(ctx context.Context, req dedup.MatchRequest) (*dedup.MatchResult, error)
}

type ServiceDependencies struct {
	Engine Checker
	Logger logger.Logger
}

type Service struct {
	config    *Config
	engine    Checker
	logger    logger.Logger
	algorithm dedup.Algorithm
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	alg, _ := dedup.ParseAlgorithm(config.DefaultAlgorithm)
	return &Service{
		config:    config,
		engine:    deps.Engine,
		logger:    deps.Logger,
		algorithm: alg,
	}
}

// BuildRequest applies the worker defaults to input. Unknown algorithm names
// fall back to Levenshtein.
func (s *Service) BuildRequest(ctx context.Context, input *Input) (dedup.MatchRequest, error) {
	record, err := dedup.RecordFromMap(input.Record)
	if err != nil {
		return dedup.MatchRequest{}, errors.NewValidationFailedError(err.Error())
	}

	req := dedup.NewMatchRequest(input.EntityType, record)
	req.MatchFields = input.MatchFields
	req.Threshold = s.config.DefaultThreshold
	req.MaxResults = s.config.DefaultMaxResults
	req.Algorithm = s.algorithm

	if input.Threshold != nil {
		req.Threshold = *input.Threshold
	}
	if input.MaxResults != nil {
		req.MaxResults = *input.MaxResults
	}
	if input.IncludePartial != nil {
		req.IncludePartial = *input.IncludePartial
	}
	if input.Algorithm != "" {
		alg, ok := dedup.ParseAlgorithm(input.Algorithm)
		if !ok {
			s.logger.WithContext(ctx).Warn("unknown algorithm, falling back", map[string]interface{}{
				"algorithm": input.Algorithm,
				"fallback":  alg.String(),
			})
		}
		req.Algorithm = alg
	}

	return req, nil
}

func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	req, err := s.BuildRequest(ctx, input)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Check(ctx, req)
	if err != nil {
		return nil, ClassifyCheckError(req.EntityType, result, err)
	}

	s.logger.WithContext(ctx).Info("duplicate check completed", map[string]interface{}{
		"requestId":      result.RequestID,
		"entityType":     result.EntityType,
		"recommendation": string(result.Recommendation),
		"totalMatches":   result.TotalMatches,
	})

	return &Output{MatchResult: *result}, nil
}

// ClassifyCheckError maps an engine error to the worker error taxonomy. The
// ERROR outcome travels in the error metadata so the process can route on it.
func ClassifyCheckError(entityType string, result *dedup.MatchResult, err error) *errors.StandardError {
	if stderrors.Is(err, dedup.ErrInvalidRequest) {
		return errors.NewInvalidMatchRequestError(err)
	}

	var stdErr *errors.StandardError
	if stderrors.Is(err, dedup.ErrCorpusUnavailable) {
		stdErr = errors.NewCorpusLoadFailedError(entityType, err)
	} else {
		stdErr = errors.NewDuplicateScanFailedError(entityType, err)
	}

	metadata := map[string]interface{}{
		"recommendation": string(dedup.RecommendError),
		"hasDuplicates":  false,
		"totalMatches":   0,
	}
	if result != nil {
		metadata["requestId"] = result.RequestID
	}
	return stdErr.WithMetadata(metadata)
}
