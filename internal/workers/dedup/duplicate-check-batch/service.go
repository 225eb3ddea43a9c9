package duplicatecheckbatch

import (
	"context"
	stderrors "errors"
	"time"

	"registry-workers/internal/common/errors"
	"registry-workers/internal/common/logger"
	"registry-workers/internal/dedup"
	duplicatecheck "registry-workers/internal/workers/dedup/duplicate-check"
)

// Runner checks a batch of requests and returns results in input order.
type Runner interface {
	CheckAll(ctx context.Context, reqs []dedup.MatchRequest) []dedup.BatchResult
}

type ServiceDependencies struct {
	Runner Runner
	Logger logger.Logger
}

type Service struct {
	config    *Config
	runner    Runner
	logger    logger.Logger
	algorithm dedup.Algorithm
	now       func() time.Time
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	alg, _ := dedup.ParseAlgorithm(config.DefaultAlgorithm)
	return &Service{
		config:    config,
		runner:    deps.Runner,
		logger:    deps.Logger,
		algorithm: alg,
		now:       time.Now,
	}
}

// template builds the request shared by every candidate, without a record.
func (s *Service) template(ctx context.Context, input *Input) dedup.MatchRequest {
	req := dedup.NewMatchRequest(input.EntityType, nil)
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
	return req
}

// Execute checks every candidate. Per-candidate failures are reported in
// the output; the job itself only fails when no candidate could be scanned
// because the corpus was unavailable.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	start := s.now()
	template := s.template(ctx, input)

	output := &Output{Results: make([]ItemResult, len(input.Records))}

	reqs := make([]dedup.MatchRequest, 0, len(input.Records))
	positions := make([]int, 0, len(input.Records))

	for i, candidate := range input.Records {
		output.Results[i].CandidateID = candidate.CandidateID

		record, err := dedup.RecordFromMap(candidate.Record)
		if err != nil {
			output.Results[i].Error = itemError(errors.NewValidationFailedError(err.Error()))
			continue
		}

		req := template
		req.Record = record
		reqs = append(reqs, req)
		positions = append(positions, i)
	}

	corpusFailures := 0
	var lastErr *errors.StandardError
	if len(reqs) > 0 {
		for j, br := range s.runner.CheckAll(ctx, reqs) {
			item := &output.Results[positions[j]]
			item.Result = br.Result
			if br.Err != nil {
				stdErr := duplicatecheck.ClassifyCheckError(input.EntityType, br.Result, br.Err)
				item.Error = itemError(stdErr)
				if stderrors.Is(br.Err, dedup.ErrCorpusUnavailable) {
					corpusFailures++
					lastErr = stdErr
				}
			}
		}
	}

	if len(reqs) > 0 && corpusFailures == len(input.Records) {
		return nil, lastErr
	}

	for _, item := range output.Results {
		switch {
		case item.Error != nil:
			output.Summary.Error++
		case item.Result == nil:
			output.Summary.Error++
		case item.Result.Recommendation == dedup.RecommendReject:
			output.Summary.Reject++
		case item.Result.Recommendation == dedup.RecommendReviewRequired:
			output.Summary.Review++
		default:
			output.Summary.Proceed++
		}
	}
	output.ProcessingTimeMs = s.now().Sub(start).Milliseconds()

	s.logger.WithContext(ctx).Info("batch duplicate check completed", map[string]interface{}{
		"entityType": input.EntityType,
		"candidates": len(input.Records),
		"proceed":    output.Summary.Proceed,
		"review":     output.Summary.Review,
		"reject":     output.Summary.Reject,
		"errors":     output.Summary.Error,
	})

	return output, nil
}

func itemError(stdErr *errors.StandardError) *ItemError {
	return &ItemError{
		Code:    string(stdErr.Code),
		Message: stdErr.Message,
		Details: stdErr.Details,
	}
}
