// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"fmt"
	"time"

	"registry-workers/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// WorkerOptions controls a single job worker subscription.
type WorkerOptions struct {
	TaskType      string
	MaxJobsActive int
	Timeout       time.Duration
}

// OpenWorker subscribes handler to a task type.
func OpenWorker(client zbc.Client, opts WorkerOptions, handler worker.JobHandler, log logger.Logger) worker.JobWorker {
	builder := client.NewJobWorker().
		JobType(opts.TaskType).
		Handler(handler).
		Name(fmt.Sprintf("%s-worker", opts.TaskType))

	if opts.MaxJobsActive > 0 {
		builder = builder.MaxJobsActive(opts.MaxJobsActive)
	}
	if opts.Timeout > 0 {
		builder = builder.Timeout(opts.Timeout)
	}

	jobWorker := builder.Open()

	log.Info("worker registered", map[string]interface{}{
		"taskType":      opts.TaskType,
		"maxJobsActive": opts.MaxJobsActive,
		"timeout":       opts.Timeout.String(),
	})

	return jobWorker
}

// CompleteJob completes job with variables, retrying transient gateway errors.
func CompleteJob(ctx context.Context, client worker.JobClient, job entities.Job, variables interface{}) error {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(variables)
	if err != nil {
		return fmt.Errorf("failed to create complete job command: %w", err)
	}

	_, err = ExecuteWithRetry(ctx, DefaultRetryConfig, "CompleteJob", func(ctx context.Context) (*pb.CompleteJobResponse, error) {
		return request.Send(ctx)
	})
	return err
}
