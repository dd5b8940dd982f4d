package shutdown

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// InFlightTracker tracks in-flight work so shutdown can wait for it, and
// optionally allows at most one piece of work per key at a time
type InFlightTracker struct {
	wg         sync.WaitGroup
	mu         sync.Mutex
	keys       map[string]struct{}
	shutdownCh chan struct{}
	closeOnce  sync.Once
	logger     *zap.Logger
	name       string
}

// NewInFlightTracker creates a new in-flight work tracker
func NewInFlightTracker(name string, logger *zap.Logger) *InFlightTracker {
	return &InFlightTracker{
		keys:       make(map[string]struct{}),
		shutdownCh: make(chan struct{}),
		logger:     logger,
		name:       name,
	}
}

// Add registers one unit of work. Returns false once shutdown has started.
func (ift *InFlightTracker) Add() bool {
	ift.mu.Lock()
	defer ift.mu.Unlock()

	if ift.isShuttingDown() {
		return false
	}
	ift.wg.Add(1)
	return true
}

// Done completes a unit registered with Add
func (ift *InFlightTracker) Done() {
	ift.wg.Done()
}

// Acquire registers work for key. It returns false if key already has work
// in flight or shutdown has started; otherwise the caller must call Release.
func (ift *InFlightTracker) Acquire(key string) bool {
	ift.mu.Lock()
	defer ift.mu.Unlock()

	if ift.isShuttingDown() {
		return false
	}
	if _, busy := ift.keys[key]; busy {
		return false
	}
	ift.keys[key] = struct{}{}
	ift.wg.Add(1)
	return true
}

// Release completes work registered with Acquire
func (ift *InFlightTracker) Release(key string) {
	ift.mu.Lock()
	delete(ift.keys, key)
	ift.mu.Unlock()
	ift.wg.Done()
}

// Active returns the number of keys with work in flight
func (ift *InFlightTracker) Active() int {
	ift.mu.Lock()
	defer ift.mu.Unlock()
	return len(ift.keys)
}

// Shutdown rejects new work and waits for in-flight work or ctx
func (ift *InFlightTracker) Shutdown(ctx context.Context) error {
	ift.mu.Lock()
	ift.closeOnce.Do(func() { close(ift.shutdownCh) })
	ift.mu.Unlock()

	ift.logger.Info("Waiting for in-flight work to complete",
		zap.String("tracker", ift.name),
	)

	done := make(chan struct{})
	go func() {
		ift.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ift.logger.Info("All in-flight work completed",
			zap.String("tracker", ift.name),
		)
		return nil
	case <-ctx.Done():
		ift.logger.Warn("Shutdown timeout - some work may be incomplete",
			zap.String("tracker", ift.name),
		)
		return ctx.Err()
	}
}

// IsShuttingDown returns true if shutdown has been initiated
func (ift *InFlightTracker) IsShuttingDown() bool {
	ift.mu.Lock()
	defer ift.mu.Unlock()
	return ift.isShuttingDown()
}

func (ift *InFlightTracker) isShuttingDown() bool {
	select {
	case <-ift.shutdownCh:
		return true
	default:
		return false
	}
}
