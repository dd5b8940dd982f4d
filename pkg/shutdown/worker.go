package shutdown

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PeriodicWorker runs a function on an interval until stopped
type PeriodicWorker struct {
	name     string
	interval time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewPeriodicWorker creates a worker; nothing runs until Start
func NewPeriodicWorker(name string, interval time.Duration, logger *zap.Logger) *PeriodicWorker {
	return &PeriodicWorker{
		name:     name,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start runs work every interval. The first run happens after one interval.
func (pw *PeriodicWorker) Start(work func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())
	pw.cancel = cancel

	go func() {
		defer close(pw.done)

		ticker := time.NewTicker(pw.interval)
		defer ticker.Stop()

		pw.logger.Info("Periodic worker started",
			zap.String("worker", pw.name),
			zap.Duration("interval", pw.interval),
		)

		for {
			select {
			case <-ctx.Done():
				pw.logger.Info("Periodic worker stopped", zap.String("worker", pw.name))
				return
			case <-ticker.C:
				work(ctx)
			}
		}
	}()
}

// Shutdown cancels the worker and waits for the current run or ctx
func (pw *PeriodicWorker) Shutdown(ctx context.Context) error {
	if pw.cancel == nil {
		return nil
	}
	pw.once.Do(pw.cancel)

	select {
	case <-pw.done:
		return nil
	case <-ctx.Done():
		pw.logger.Warn("Periodic worker shutdown timeout", zap.String("worker", pw.name))
		return ctx.Err()
	}
}
