package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kevin07696/donation-service/internal/adapters/database"
	"github.com/kevin07696/donation-service/internal/adapters/dpo"
	"github.com/kevin07696/donation-service/internal/adapters/ports"
	"github.com/kevin07696/donation-service/internal/adapters/secrets"
	"github.com/kevin07696/donation-service/internal/adapters/tokenstore"
	"github.com/kevin07696/donation-service/internal/config"
	donationService "github.com/kevin07696/donation-service/internal/services/donation"
	pkghttp "github.com/kevin07696/donation-service/pkg/http"
)

// errNoSharedStore stops create-token from issuing a token the server's
// /payment-complete could never find
var errNoSharedStore = errors.New("create-token and verify-token need TOKEN_STORE=postgres so the server and the CLI share pending tokens")

// app carries what the commands share. Tests replace the hooks.
type app struct {
	loadConfig   func() *config.Config
	selectAmount func(presets []string, currency string) (string, error)
	openURL      func(url string) error
	openStore    func(ctx context.Context) (ports.TokenStore, func(), error)

	verbose bool
	cfg     *config.Config
	logger  *zap.Logger
}

func newApp() *app {
	a := &app{
		loadConfig:   config.Read,
		selectAmount: promptAmount,
		openURL:      browser.OpenURL,
	}
	a.openStore = a.sharedStore
	return a
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "donatectl",
		Short:         "Operate DPO Pay donation tokens",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log gateway calls to stderr")

	rootCmd.AddCommand(createTokenCmd(a))
	rootCmd.AddCommand(verifyTokenCmd(a))
	rootCmd.AddCommand(paymentURLCmd(a))

	return rootCmd
}

func (a *app) init() error {
	if a.cfg == nil {
		a.cfg = a.loadConfig()
	}
	if a.logger != nil {
		return nil
	}

	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if a.verbose {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	a.logger = logger
	return nil
}

// gateway resolves the company token and builds the same adapter the server uses
func (a *app) gateway(ctx context.Context) (*dpo.TokenAdapter, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}

	if a.cfg.Gateway.CompanyToken == "" {
		sm, err := secrets.New(ctx, a.cfg.Secrets, a.logger.Named("secrets"))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize secret manager: %w", err)
		}
		defer secrets.Close(sm)

		if err := secrets.ResolveCompanyToken(ctx, sm, &a.cfg.Gateway); err != nil {
			return nil, err
		}
	}

	client := pkghttp.NewHTTPClient(pkghttp.CLIClientConfig(), a.cfg.Gateway.RequestTimeout())
	return dpo.NewTokenAdapter(dpo.NewConfig(&a.cfg.Gateway), client, a.logger.Named("dpo")), nil
}

// sharedStore opens the server's postgres token store. The in-memory store
// lives inside the server process, so the CLI refuses to run against it.
func (a *app) sharedStore(ctx context.Context) (ports.TokenStore, func(), error) {
	if a.cfg.Donation.TokenStore != "postgres" {
		return nil, nil, errNoSharedStore
	}

	dbCfg := database.DefaultPostgreSQLConfig(a.cfg.Database.URL)
	dbCfg.MaxConns = 2
	dbCfg.MinConns = 0
	db, err := database.NewPostgreSQLAdapter(ctx, dbCfg, a.logger.Named("database"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open token store: %w", err)
	}

	store := tokenstore.NewPostgresStore(db.Pool(), a.cfg.Gateway.PaymentTimeLimit(), db.QueryTimeout(), a.logger.Named("tokenstore"))
	return store, db.Close, nil
}

// service wraps the gateway in the donation service over the store the
// server reads, so /payment-complete can finish a token issued here
func (a *app) service(ctx context.Context) (*donationService.Service, func(), error) {
	gateway, err := a.gateway(ctx)
	if err != nil {
		return nil, nil, err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	svc := donationService.NewService(gateway, store, donationService.Config{
		Currency:         a.cfg.Donation.Currency,
		ReferencePrefix:  a.cfg.Donation.ReferencePrefix,
		ReturnURL:        a.cfg.Server.ReturnURL(),
		BackURL:          a.cfg.Server.BackURL(),
		PaymentTimeLimit: a.cfg.Gateway.PaymentTimeLimit(),
	}, a.logger.Named("donation"))

	return svc, closeStore, nil
}
