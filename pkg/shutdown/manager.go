package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	shutdownDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "donation_shutdown_duration_seconds",
		Help:    "Total time taken to shut down gracefully",
		Buckets: []float64{1, 5, 10, 15, 20, 25, 30},
	})

	componentShutdownDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "donation_component_shutdown_duration_seconds",
		Help:    "Time taken to shut down individual components",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 20, 25, 30},
	}, []string{"component"})

	shutdownErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donation_shutdown_errors_total",
		Help: "Total number of shutdown errors by component",
	}, []string{"component"})
)

// ShutdownFunc shuts down one component
type ShutdownFunc func(context.Context) error

// Component is a registered shutdown step
type Component struct {
	Name         string
	ShutdownFunc ShutdownFunc
}

// Manager shuts components down one at a time in REVERSE registration order.
// Register the DB pool first and HTTP servers last so requests drain before
// the store goes away.
type Manager struct {
	logger     *zap.Logger
	components []Component
	mu         sync.Mutex
	timeout    time.Duration
	once       sync.Once
}

// NewManager creates a new shutdown manager
func NewManager(logger *zap.Logger, timeout time.Duration) *Manager {
	return &Manager{
		logger:  logger,
		timeout: timeout,
	}
}

// Register adds a shutdown step
func (sm *Manager) Register(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.components = append(sm.components, Component{Name: name, ShutdownFunc: fn})

	sm.logger.Debug("Registered shutdown component",
		zap.String("component", name),
		zap.Int("registration_order", len(sm.components)),
	)
}

// WaitForShutdown blocks until SIGINT/SIGTERM or ctx is done, then shuts down
func (sm *Manager) WaitForShutdown(ctx context.Context) map[string]error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	sm.logger.Info("Received shutdown signal - initiating graceful shutdown",
		zap.Duration("timeout", sm.timeout),
	)

	return sm.Shutdown()
}

// Shutdown runs every registered step once and returns failures by component.
// Steps still pending when the timeout expires are skipped.
func (sm *Manager) Shutdown() map[string]error {
	failures := make(map[string]error)

	sm.once.Do(func() {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
		defer cancel()

		sm.mu.Lock()
		components := make([]Component, len(sm.components))
		copy(components, sm.components)
		sm.mu.Unlock()

		sm.logger.Info("Starting graceful shutdown",
			zap.Int("component_count", len(components)),
			zap.Duration("timeout", sm.timeout),
		)

		for i := len(components) - 1; i >= 0; i-- {
			comp := components[i]
			if ctx.Err() != nil {
				failures[comp.Name] = ctx.Err()
				shutdownErrors.WithLabelValues(comp.Name).Inc()
				sm.logger.Warn("Shutdown timeout exceeded - skipping component",
					zap.String("component", comp.Name),
				)
				continue
			}
			if err := sm.shutdownComponent(ctx, comp); err != nil {
				failures[comp.Name] = err
			}
		}

		elapsed := time.Since(start)
		shutdownDuration.Observe(elapsed.Seconds())

		if len(failures) > 0 {
			sm.logger.Error("Graceful shutdown completed with errors",
				zap.Int("error_count", len(failures)),
				zap.Duration("elapsed", elapsed),
			)
			return
		}
		sm.logger.Info("Graceful shutdown completed successfully",
			zap.Duration("elapsed", elapsed),
		)
	})

	return failures
}

func (sm *Manager) shutdownComponent(ctx context.Context, comp Component) error {
	start := time.Now()
	sm.logger.Info("Shutting down component", zap.String("component", comp.Name))

	err := comp.ShutdownFunc(ctx)
	componentShutdownDuration.WithLabelValues(comp.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		shutdownErrors.WithLabelValues(comp.Name).Inc()
		sm.logger.Error("Component shutdown failed",
			zap.String("component", comp.Name),
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)),
		)
		return err
	}

	sm.logger.Info("Component shut down successfully",
		zap.String("component", comp.Name),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// RegisterHTTPServer registers an *http.Server or anything with Shutdown(ctx)
func (sm *Manager) RegisterHTTPServer(name string, server interface{ Shutdown(context.Context) error }) {
	sm.Register(name, server.Shutdown)
}

// RegisterCloser registers a component with Close() error
func (sm *Manager) RegisterCloser(name string, closer interface{ Close() error }) {
	sm.Register(name, func(context.Context) error {
		return closer.Close()
	})
}

// RegisterNoErr registers a shutdown function that cannot fail
func (sm *Manager) RegisterNoErr(name string, fn func()) {
	sm.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}
