package observability

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewMetricsHandler serves /metrics, /health and /ready
func NewMetricsHandler(healthChecker *HealthChecker) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	if healthChecker != nil {
		mux.HandleFunc("GET /health", healthChecker.HealthHandler())
		mux.HandleFunc("GET /ready", healthChecker.ReadyHandler())
	}
	return mux
}

// StartMetricsServer starts the operational HTTP server on its own port
func StartMetricsServer(host string, port int, healthChecker *HealthChecker, logger *zap.Logger) *http.Server {
	server := &http.Server{
		Addr:         net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:      NewMetricsHandler(healthChecker),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		logger.Info("Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	return server
}
