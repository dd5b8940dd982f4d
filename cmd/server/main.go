package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kevin07696/donation-service/internal/adapters/database"
	"github.com/kevin07696/donation-service/internal/adapters/dpo"
	"github.com/kevin07696/donation-service/internal/adapters/ports"
	"github.com/kevin07696/donation-service/internal/adapters/tokenstore"
	"github.com/kevin07696/donation-service/internal/config"
	donationHandler "github.com/kevin07696/donation-service/internal/handlers/donation"
	internalmw "github.com/kevin07696/donation-service/internal/middleware"
	donationService "github.com/kevin07696/donation-service/internal/services/donation"
	pkghttp "github.com/kevin07696/donation-service/pkg/http"
	"github.com/kevin07696/donation-service/pkg/middleware"
	"github.com/kevin07696/donation-service/pkg/observability"
	"github.com/kevin07696/donation-service/pkg/resilience"
	"github.com/kevin07696/donation-service/pkg/shutdown"
)

const (
	shutdownTimeout = 30 * time.Second
	purgeInterval   = 5 * time.Minute
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logger)
	defer logger.Sync()

	logger.Info("Starting donation service",
		zap.String("environment", cfg.Environment),
		zap.String("public_base_url", cfg.Server.PublicBaseURL),
		zap.String("token_store", cfg.Donation.TokenStore),
	)
	if !cfg.Logger.Development && !strings.HasPrefix(cfg.Server.PublicBaseURL, "https://") {
		logger.Warn("PUBLIC_BASE_URL is not https; the reference cookie will not be marked Secure")
	}

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(logger, shutdownTimeout)

	secretManager := initSecretManager(ctx, cfg, logger, shutdownMgr)
	resolveCompanyToken(ctx, secretManager, cfg, logger)

	metrics := observability.NewDonationMetrics()

	httpClient := pkghttp.NewHTTPClient(pkghttp.GatewayClientConfig(), cfg.Gateway.RequestTimeout())
	gateway := dpo.NewTokenAdapter(dpo.NewConfig(&cfg.Gateway), httpClient, logger.Named("dpo"), dpo.WithObserver(metrics))

	timeouts := resilience.NewTimeoutConfig(cfg.Gateway.RequestTimeout())
	if err := timeouts.Validate(); err != nil {
		logger.Fatal("Invalid timeout hierarchy", zap.Error(err))
	}

	store, db := initTokenStore(ctx, cfg, timeouts, logger, shutdownMgr)

	service := donationService.NewService(gateway, store, donationService.Config{
		Currency:         cfg.Donation.Currency,
		ReferencePrefix:  cfg.Donation.ReferencePrefix,
		ReturnURL:        cfg.Server.ReturnURL(),
		BackURL:          cfg.Server.BackURL(),
		PaymentTimeLimit: cfg.Gateway.PaymentTimeLimit(),
	}, logger.Named("donation"), donationService.WithMetrics(metrics))

	checkoutGuard := shutdown.NewInFlightTracker("checkout", logger)
	handler := donationHandler.NewHandler(service, checkoutGuard, donationHandler.Config{
		Currency:      cfg.Donation.Currency,
		Presets:       cfg.Donation.Presets,
		SecureCookies: strings.HasPrefix(cfg.Server.PublicBaseURL, "https://"),
		CookieMaxAge:  cfg.Gateway.PaymentTimeLimit(),
	}, logger.Named("http"))

	mux := http.NewServeMux()
	handler.Register(mux)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger)
	securityHeaders := internalmw.NewSecurityHeaders(cfg.Logger.Development, internalmw.OriginOf(cfg.Gateway.PaymentPageURL))

	httpServer := &http.Server{
		Addr: net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler: middleware.Chain(observability.HTTPMetrics(mux),
			middleware.Recovery(logger),
			middleware.RequestLogger(logger),
			securityHeaders.Middleware,
			rateLimiter.Middleware,
			timeouts.Middleware,
		),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      timeouts.WriteTimeout(),
		IdleTimeout:       60 * time.Second,
	}

	var pinger observability.Pinger
	if db != nil {
		pinger = db.Pool()
	}
	healthChecker := observability.NewHealthChecker(pinger, func() string {
		return gateway.CircuitState().String()
	})
	metricsServer := observability.StartMetricsServer(cfg.Server.Host, cfg.Server.MetricsPort, healthChecker, logger)

	go func() {
		logger.Info("HTTP server listening",
			zap.String("addr", httpServer.Addr),
			zap.String("return_url", cfg.Server.ReturnURL()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Shutdown runs in reverse: readiness flips first, secrets close last
	shutdownMgr.RegisterNoErr("rate-limiter", rateLimiter.Shutdown)
	shutdownMgr.RegisterHTTPServer("metrics-server", metricsServer)
	shutdownMgr.Register("checkout-guard", checkoutGuard.Shutdown)
	shutdownMgr.RegisterHTTPServer("http-server", httpServer)
	shutdownMgr.RegisterNoErr("readiness", func() { healthChecker.SetReady(false) })

	shutdownMgr.WaitForShutdown(ctx)
}

func initLogger(cfg config.LoggerConfig) *zap.Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = level

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		return zap.NewNop()
	}
	return logger
}

// initTokenStore returns the configured store and, for postgres, the adapter
// owning the pool
func initTokenStore(ctx context.Context, cfg *config.Config, timeouts *resilience.TimeoutConfig, logger *zap.Logger, shutdownMgr *shutdown.Manager) (ports.TokenStore, *database.PostgreSQLAdapter) {
	ttl := cfg.Gateway.PaymentTimeLimit()

	if cfg.Donation.TokenStore != "postgres" {
		memCfg := tokenstore.DefaultMemoryStoreConfig()
		memCfg.DefaultTTL = ttl
		store := tokenstore.NewMemoryStore(memCfg, logger.Named("tokenstore"))
		shutdownMgr.RegisterCloser("token-store", store)
		logger.Info("Using in-memory token store; pending checkouts are lost on restart")
		return store, nil
	}

	dbCfg := database.DefaultPostgreSQLConfig(cfg.Database.URL)
	dbCfg.MaxConns = cfg.Database.MaxConns
	dbCfg.MinConns = cfg.Database.MinConns
	dbCfg.QueryTimeout = timeouts.StoreQuery

	db, err := database.NewPostgreSQLAdapter(ctx, dbCfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	shutdownMgr.RegisterNoErr("database", db.Close)

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	db.StartPoolMonitoring(monitorCtx, time.Minute)
	shutdownMgr.RegisterNoErr("pool-monitor", stopMonitor)

	store := tokenstore.NewPostgresStore(db.Pool(), ttl, db.QueryTimeout(), logger.Named("tokenstore"))

	purger := shutdown.NewPeriodicWorker("token-purge", purgeInterval, logger)
	purger.Start(func(ctx context.Context) {
		n, err := store.Purge(ctx)
		if err != nil {
			logger.Warn("Failed to purge expired tokens", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Info("Purged expired tokens", zap.Int("count", n))
		}
	})
	shutdownMgr.Register("token-purge", purger.Shutdown)

	return store, db
}
