package duplicatestatistics

import (
	"context"

	"registry-workers/internal/common/logger"
	"registry-workers/internal/dedup"
)

// Tracker is the statistics surface the worker needs.
type Tracker interface {
	RecordResolved(n int)
	Snapshot() dedup.Statistics
}

type ServiceDependencies struct {
	Tracker Tracker
	Logger  logger.Logger
}

type Service struct {
	tracker Tracker
	logger  logger.Logger
}

func NewService(deps ServiceDependencies) *Service {
	return &Service{tracker: deps.Tracker, logger: deps.Logger}
}

func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ResolvedCount > 0 {
		s.tracker.RecordResolved(input.ResolvedCount)
		s.logger.WithContext(ctx).Info("duplicates resolved", map[string]interface{}{
			"resolvedCount": input.ResolvedCount,
		})
	}

	stats := s.tracker.Snapshot()
	return &Output{
		TotalFound:      stats.TotalFound,
		TotalResolved:   stats.TotalResolved,
		Pending:         stats.Pending,
		LastProcessedAt: stats.LastProcessedAt,
		Processed:       !stats.LastProcessedAt.IsZero(),
	}, nil
}
