package secrets

import (
	"context"
	"fmt"
	"io"

	"github.com/kevin07696/donation-service/internal/adapters/ports"
	"github.com/kevin07696/donation-service/internal/config"
	"go.uber.org/zap"
)

// New builds the secret manager selected by cfg.Backend, wrapped in the TTL cache
// Supports:
//   - env (default): environment variables
//   - local: files under LOCAL_SECRETS_PATH (development only)
//   - aws: AWS Secrets Manager (AWS_REGION, optional AWS_PROFILE / AWS_SECRETS_ENDPOINT)
//   - vault: HashiCorp Vault KV v2 (VAULT_ADDR + VAULT_TOKEN or VAULT_ROLE_ID/VAULT_SECRET_ID)
//   - gcp: Google Cloud Secret Manager (GCP_PROJECT_ID)
func New(ctx context.Context, cfg config.SecretsConfig, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	var (
		backend ports.SecretManagerAdapter
		err     error
	)

	switch cfg.Backend {
	case "", "env":
		backend = NewEnvSecretManager(logger)
	case "local":
		logger.Warn("Using local filesystem secret manager - NOT for production use!",
			zap.String("path", cfg.LocalPath),
		)
		backend = NewLocalSecretManager(cfg.LocalPath, logger)
	case "aws":
		awsCfg := DefaultAWSSecretsManagerConfig(cfg.AWSRegion)
		awsCfg.Profile = cfg.AWSProfile
		awsCfg.Endpoint = cfg.AWSEndpoint
		backend, err = NewAWSSecretsManagerAdapter(ctx, awsCfg, logger)
	case "vault":
		vaultCfg := DefaultVaultConfig(cfg.VaultAddress)
		vaultCfg.MountPath = cfg.VaultMountPath
		if cfg.VaultRoleID != "" {
			vaultCfg.AuthMethod = "approle"
			vaultCfg.RoleID = cfg.VaultRoleID
			vaultCfg.SecretID = cfg.VaultSecretID
		} else {
			vaultCfg.Token = cfg.VaultToken
		}
		backend, err = NewVaultAdapter(ctx, vaultCfg, logger)
	case "gcp":
		backend, err = NewGCPSecretManager(ctx, cfg.GCPProjectID, logger)
	default:
		return nil, fmt.Errorf("unknown SECRET_MANAGER %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s secret manager: %w", cfg.Backend, err)
	}

	return NewCachedSecretManager(backend, cfg.CacheTTL, logger), nil
}

// Close releases backend clients that hold connections
func Close(sm ports.SecretManagerAdapter) error {
	if cached, ok := sm.(*cachedSecretManager); ok {
		sm = cached.backend
	}
	if closer, ok := sm.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// ResolveCompanyToken fills gw.CompanyToken from the secret manager when a
// secret path is configured. An explicit DPO_COMPANY_TOKEN is left as is.
func ResolveCompanyToken(ctx context.Context, sm ports.SecretManagerAdapter, gw *config.GatewayConfig) error {
	if gw.CompanyToken != "" || gw.CompanyTokenSecretPath == "" {
		return nil
	}

	var (
		secret *ports.Secret
		err    error
	)
	if gw.CompanyTokenSecretVersion != "" {
		secret, err = sm.GetSecretVersion(ctx, gw.CompanyTokenSecretPath, gw.CompanyTokenSecretVersion)
	} else {
		secret, err = sm.GetSecret(ctx, gw.CompanyTokenSecretPath)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve DPO company token: %w", err)
	}
	if secret.Value == "" {
		return fmt.Errorf("DPO company token secret %s is empty", gw.CompanyTokenSecretPath)
	}

	gw.CompanyToken = secret.Value
	return nil
}
