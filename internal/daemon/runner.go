// Package daemon orchestrates one polling iteration: claim pending tasks,
// drive their providers, report outcomes, then do the same for cleanup
// tasks.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"publishd/internal/metrics"
	perrors "publishd/internal/pkg/errors"
	"publishd/internal/pkg/logger"
	"publishd/internal/provider"
	"publishd/internal/scheduler"
)

// API is the slice of the scheduler client the runner needs.
type API interface {
	FetchTasks(ctx context.Context, limit int, queue string) ([]scheduler.PublishTask, error)
	UpdateTask(ctx context.Context, taskID string, req scheduler.UpdateTaskRequest) (bool, error)
	CompleteCleanup(ctx context.Context, taskID string, req scheduler.CompleteCleanupRequest) (bool, error)
}

// Runner converts provider outcomes into scheduler API updates.
type Runner struct {
	api       API
	registry  *provider.Registry
	rec       *metrics.Recorder
	batchSize int
	log       *logger.Logger
}

// NewRunner wires a runner.
func NewRunner(api API, registry *provider.Registry, rec *metrics.Recorder, batchSize int, log *logger.Logger) *Runner {
	return &Runner{
		api:       api,
		registry:  registry,
		rec:       rec,
		batchSize: batchSize,
		log:       log.WithComponent("runner"),
	}
}

// RunIteration fetches one batch of pending tasks and one batch of cleanup
// tasks and processes each sequentially, pending strictly before cleanup.
// Sequential processing bounds outbound bandwidth and keeps partial-failure
// reasoning simple. A failed fetch aborts its half of the iteration only.
func (r *Runner) RunIteration(ctx context.Context) (int, error) {
	processed := 0
	var errs []error

	pending, err := r.api.FetchTasks(ctx, r.batchSize, scheduler.QueuePending)
	if err != nil {
		r.log.Error("fetching pending tasks failed", "error", err.Error())
		errs = append(errs, fmt.Errorf("fetch pending: %w", err))
	} else {
		for _, task := range pending {
			r.ProcessTask(ctx, task)
			processed++
		}
	}

	cleanups, err := r.api.FetchTasks(ctx, r.batchSize, scheduler.QueueCleanup)
	if err != nil {
		r.log.Error("fetching cleanup tasks failed", "error", err.Error())
		errs = append(errs, fmt.Errorf("fetch cleanup: %w", err))
	} else {
		for _, task := range cleanups {
			r.ProcessCleanupTask(ctx, task)
			processed++
		}
	}

	return processed, errors.Join(errs...)
}

// ProcessTask runs one pending task through its provider and reports the
// outcome. Every path records a metric.
func (r *Runner) ProcessTask(ctx context.Context, task scheduler.PublishTask) {
	start := time.Now()
	log := r.log.WithTaskID(task.ID).WithPlatform(task.Platform)
	log.Info("processing publish task")

	p, err := r.registry.Scheduler(task.Platform)
	if err != nil {
		// An unknown platform is a terminal misconfiguration.
		r.reportFailure(ctx, task, err, start)
		return
	}

	result, err := p.Schedule(ctx, task)
	if err != nil {
		r.reportFailure(ctx, task, err, start)
		return
	}

	r.acknowledgeScheduled(ctx, task, result, log)
	r.rec.RecordSuccess(time.Since(start))
	log.Info("publish task scheduled",
		"provider_task_id", result.ProviderTaskID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// acknowledgeScheduled reports a successful schedule. If the status update
// itself fails the upload is not lost: a secondary retry-status update asks
// the scheduler to revisit the task. If that also fails we can only log,
// since another attempt here risks a duplicate upload on the next poll.
func (r *Runner) acknowledgeScheduled(ctx context.Context, task scheduler.PublishTask, result provider.Result, log *logger.Logger) {
	_, err := r.api.UpdateTask(ctx, task.ID, scheduler.UpdateTaskRequest{
		Status:         scheduler.StatusScheduled,
		ProviderTaskID: result.ProviderTaskID,
	})
	if err == nil {
		return
	}

	log.Error("schedule acknowledgement failed, escalating to retry", "error", err.Error())

	_, err = r.api.UpdateTask(ctx, task.ID, scheduler.UpdateTaskRequest{
		Status: scheduler.StatusRetry,
		Error:  fmt.Sprintf("Scheduling update failed: %v", err),
	})
	if err != nil {
		log.Error("retry escalation also failed, task state is unacknowledged", "error", err.Error())
	}
}

// reportFailure classifies the provider error and reports retry or failed.
// Untyped errors are terminal.
func (r *Runner) reportFailure(ctx context.Context, task scheduler.PublishTask, cause error, start time.Time) {
	log := r.log.WithTaskID(task.ID).WithPlatform(task.Platform)

	status := scheduler.StatusFailed
	var providerResponse map[string]any

	var perr *perrors.Error
	if perrors.As(cause, &perr) {
		if perr.Retryable {
			status = scheduler.StatusRetry
		}
		providerResponse = map[string]any{
			"errorCode": string(perr.Code),
			"retryable": perr.Retryable,
		}
		for k, v := range perr.Fields {
			providerResponse[k] = v
		}
	}

	log.Error("publish task failed",
		"status", string(status),
		"code", string(perrors.GetCode(cause)),
		"error", cause.Error(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if _, err := r.api.UpdateTask(ctx, task.ID, scheduler.UpdateTaskRequest{
		Status:           status,
		Error:            cause.Error(),
		ProviderResponse: providerResponse,
	}); err != nil {
		log.Error("failure report did not reach the scheduler", "error", err.Error())
	}

	r.rec.RecordFailure(time.Since(start))
}

// ProcessCleanupTask retracts one previously scheduled publish. A platform
// without a cleanup provider completes as a graceful no-op.
func (r *Runner) ProcessCleanupTask(ctx context.Context, task scheduler.PublishTask) {
	log := r.log.WithTaskID(task.ID).WithPlatform(task.Platform)
	log.Info("processing cleanup task")

	cleaner := r.registry.Cleaner(task.Platform)
	if cleaner == nil {
		log.Warn("no cleanup provider registered, completing as no-op")
		r.completeCleanup(ctx, task, scheduler.CompleteCleanupRequest{Status: scheduler.StatusDone}, log)
		return
	}

	if err := cleaner.Cleanup(ctx, task); err != nil {
		log.Error("cleanup failed", "error", err.Error())
		r.completeCleanup(ctx, task, scheduler.CompleteCleanupRequest{
			Status: scheduler.StatusFailed,
			Error:  err.Error(),
		}, log)
		return
	}

	r.completeCleanup(ctx, task, scheduler.CompleteCleanupRequest{Status: scheduler.StatusDone}, log)
	log.Info("cleanup task completed")
}

func (r *Runner) completeCleanup(ctx context.Context, task scheduler.PublishTask, req scheduler.CompleteCleanupRequest, log *logger.Logger) {
	if _, err := r.api.CompleteCleanup(ctx, task.ID, req); err != nil {
		log.Error("cleanup completion did not reach the scheduler", "error", err.Error())
	}
}
