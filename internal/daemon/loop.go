package daemon

import (
	"context"
	"time"

	"publishd/internal/pkg/logger"
)

// minSleep is the floor between iterations: even when an iteration overruns
// the poll interval, the loop always yields before polling again.
const minSleep = 200 * time.Millisecond

// Loop drives the runner at the configured cadence.
type Loop struct {
	runner   *Runner
	interval time.Duration
	log      *logger.Logger
}

// NewLoop wires the poll loop.
func NewLoop(runner *Runner, interval time.Duration, log *logger.Logger) *Loop {
	return &Loop{
		runner:   runner,
		interval: interval,
		log:      log.WithComponent("loop"),
	}
}

// Run polls until ctx is canceled. Cancellation is cooperative: it is
// checked before each iteration and during the pacing sleep, so an in-flight
// iteration always finishes rather than aborting mid-upload. An iteration
// error is logged and never stops the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("poll loop started", "poll_interval_ms", l.interval.Milliseconds())

	for {
		select {
		case <-ctx.Done():
			l.log.Info("poll loop stopping")
			return ctx.Err()
		default:
		}

		start := time.Now()

		// Iterations run on a fresh context so loop shutdown does not
		// cancel in-flight provider calls; per-request timeouts still
		// bound every call individually.
		processed, err := l.runner.RunIteration(context.WithoutCancel(ctx))
		elapsed := time.Since(start)

		if err != nil {
			l.log.Error("iteration finished with errors",
				"error", err.Error(),
				"processed", processed,
				"duration_ms", elapsed.Milliseconds(),
			)
		} else if processed > 0 {
			l.log.Info("iteration completed",
				"processed", processed,
				"duration_ms", elapsed.Milliseconds(),
			)
		}

		sleep := l.interval - elapsed
		if sleep < minSleep {
			sleep = minSleep
		}

		select {
		case <-ctx.Done():
			l.log.Info("poll loop stopping")
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}
