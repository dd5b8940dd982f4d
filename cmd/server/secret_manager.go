package main

import (
	"context"

	"github.com/kevin07696/donation-service/internal/adapters/ports"
	"github.com/kevin07696/donation-service/internal/adapters/secrets"
	"github.com/kevin07696/donation-service/internal/config"
	"github.com/kevin07696/donation-service/pkg/shutdown"
	"go.uber.org/zap"
)

// initSecretManager initializes the secret manager selected by SECRET_MANAGER
// Supports:
//   - env (default): DPO_COMPANY_TOKEN and friends straight from the environment
//   - local: files under LOCAL_SECRETS_PATH (development only)
//   - aws: AWS Secrets Manager (AWS_REGION, optional AWS_PROFILE / AWS_SECRETS_ENDPOINT)
//   - vault: HashiCorp Vault KV v2 (VAULT_ADDR, VAULT_TOKEN or VAULT_ROLE_ID + VAULT_SECRET_ID)
//   - gcp: Google Cloud Secret Manager (GCP_PROJECT_ID, GOOGLE_APPLICATION_CREDENTIALS)
//
// Values are cached for SECRET_CACHE_TTL_MINUTES (default: 5).
func initSecretManager(ctx context.Context, cfg *config.Config, logger *zap.Logger, shutdownMgr *shutdown.Manager) ports.SecretManagerAdapter {
	sm, err := secrets.New(ctx, cfg.Secrets, logger.Named("secrets"))
	if err != nil {
		logger.Fatal("Failed to initialize secret manager",
			zap.String("secret_manager", cfg.Secrets.Backend),
			zap.Error(err),
		)
	}

	shutdownMgr.Register("secret-manager", func(context.Context) error { return secrets.Close(sm) })

	logger.Info("Secret manager initialized",
		zap.String("secret_manager", cfg.Secrets.Backend),
		zap.Duration("cache_ttl", cfg.Secrets.CacheTTL),
	)
	return sm
}

// resolveCompanyToken loads the DPO company token when it is configured by
// secret path rather than directly
func resolveCompanyToken(ctx context.Context, sm ports.SecretManagerAdapter, cfg *config.Config, logger *zap.Logger) {
	if err := secrets.ResolveCompanyToken(ctx, sm, &cfg.Gateway); err != nil {
		logger.Fatal("Failed to resolve DPO company token",
			zap.String("secret_path", cfg.Gateway.CompanyTokenSecretPath),
			zap.Error(err),
		)
	}
}
