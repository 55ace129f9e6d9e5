package graceful

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Laisky/zap"

	"github.com/didgateway/llm-gateway/common/logger"
)

// Tracks in-flight relay requests and post-response critical work such as
// billing delivery, so shutdown can drain both before the process exits.

var (
	inFlight atomic.Int64
	draining atomic.Bool
	critical sync.WaitGroup
)

// BeginRequest marks one relay request in flight; the returned func ends it.
// Use with defer at the top of the handler.
func BeginRequest() func() {
	inFlight.Add(1)
	return func() { inFlight.Add(-1) }
}

// GoCritical runs fn in a tracked goroutine. Drain waits for tracked work, so
// billing records started before shutdown still reach the hook.
func GoCritical(ctx context.Context, name string, fn func(context.Context)) {
	critical.Go(func() {
		start := time.Now()
		fn(ctx)
		logger.Logger.Debug("critical task done",
			zap.String("name", name),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// Drain blocks until critical tasks finish and in-flight requests reach zero,
// or the context expires.
func Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		critical.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		logger.Logger.Error("drain timeout waiting for critical tasks",
			zap.Int64("in_flight_requests", inFlight.Load()))
		return ctx.Err()
	case <-done:
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for inFlight.Load() != 0 {
		select {
		case <-ctx.Done():
			logger.Logger.Error("drain timeout waiting for requests",
				zap.Int64("in_flight_requests", inFlight.Load()))
			return ctx.Err()
		case <-ticker.C:
		}
	}

	logger.Logger.Info("graceful drain complete")
	return nil
}

// SetDraining flips the refuse-new-work flag; relay handlers answer 503 from
// then on. The flag is one-way.
func SetDraining() { draining.Store(true) }

// IsDraining reports whether shutdown has begun.
func IsDraining() bool { return draining.Load() }
