package secrets

import (
	"context"
	"fmt"
	"strconv"
	"time"

	vault "github.com/hashicorp/vault/api"
	"github.com/kevin07696/donation-service/internal/adapters/ports"
	"go.uber.org/zap"
)

// VaultConfig contains configuration for HashiCorp Vault adapter
type VaultConfig struct {
	// Vault server address (e.g., "https://vault.example.com:8200")
	Address string

	// Authentication method: "token" or "approle"
	AuthMethod string

	// Token for token authentication
	Token string

	// AppRole credentials (if using AppRole auth)
	RoleID   string
	SecretID string

	// KV v2 secrets engine mount path (default: "secret")
	MountPath string

	// Key inside the KV entry holding the value (default: "value")
	ValueKey string
}

// DefaultVaultConfig returns default configuration for Vault adapter
func DefaultVaultConfig(address string) *VaultConfig {
	return &VaultConfig{
		Address:    address,
		AuthMethod: "token",
		MountPath:  "secret",
		ValueKey:   "value",
	}
}

// vaultAdapter implements the SecretManagerAdapter port for HashiCorp Vault KV v2
type vaultAdapter struct {
	kv     *vault.KVv2
	config *VaultConfig
	logger *zap.Logger
}

// NewVaultAdapter creates a new HashiCorp Vault adapter
func NewVaultAdapter(ctx context.Context, cfg *VaultConfig, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	if err := authenticateVault(ctx, client, cfg); err != nil {
		return nil, fmt.Errorf("failed to authenticate with Vault: %w", err)
	}

	logger.Info("Vault adapter initialized",
		zap.String("address", cfg.Address),
		zap.String("auth_method", cfg.AuthMethod),
		zap.String("mount_path", cfg.MountPath),
	)

	return &vaultAdapter{
		kv:     client.KVv2(cfg.MountPath),
		config: cfg,
		logger: logger,
	}, nil
}

// authenticateVault handles authentication with Vault
func authenticateVault(ctx context.Context, client *vault.Client, cfg *VaultConfig) error {
	switch cfg.AuthMethod {
	case "token":
		if cfg.Token == "" {
			return fmt.Errorf("token is required for token auth")
		}
		client.SetToken(cfg.Token)
		return nil

	case "approle":
		if cfg.RoleID == "" || cfg.SecretID == "" {
			return fmt.Errorf("role_id and secret_id are required for AppRole auth")
		}
		data := map[string]interface{}{
			"role_id":   cfg.RoleID,
			"secret_id": cfg.SecretID,
		}
		resp, err := client.Logical().WriteWithContext(ctx, "auth/approle/login", data)
		if err != nil {
			return fmt.Errorf("AppRole login failed: %w", err)
		}
		if resp == nil || resp.Auth == nil {
			return fmt.Errorf("AppRole login returned no auth info")
		}
		client.SetToken(resp.Auth.ClientToken)
		return nil

	default:
		return fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
}

// GetSecret retrieves the latest version of a secret
// Path format: "donation-service/dpo"
func (a *vaultAdapter) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	startTime := time.Now()
	kvSecret, err := a.kv.Get(ctx, path)
	if err != nil {
		a.logger.Error("Failed to retrieve secret from Vault",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to read secret from Vault: %w", err)
	}

	a.logger.Info("Secret retrieved from Vault",
		zap.String("path", path),
		zap.Duration("elapsed", time.Since(startTime)),
	)

	return a.toSecret(path, kvSecret)
}

// GetSecretVersion retrieves a specific numbered version of a secret
func (a *vaultAdapter) GetSecretVersion(ctx context.Context, path string, version string) (*ports.Secret, error) {
	n, err := strconv.Atoi(version)
	if err != nil {
		return nil, fmt.Errorf("vault secret version must be numeric, got %q", version)
	}

	kvSecret, err := a.kv.GetVersion(ctx, path, n)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret version from Vault: %w", err)
	}

	return a.toSecret(path, kvSecret)
}

func (a *vaultAdapter) toSecret(path string, kvSecret *vault.KVSecret) (*ports.Secret, error) {
	if kvSecret == nil || kvSecret.Data == nil {
		return nil, fmt.Errorf("secret not found: %s", path)
	}

	value, ok := kvSecret.Data[a.config.ValueKey].(string)
	if !ok || value == "" {
		return nil, fmt.Errorf("secret %s has no %q key", path, a.config.ValueKey)
	}

	result := &ports.Secret{
		Value:    value,
		Metadata: make(map[string]string),
	}
	if md := kvSecret.VersionMetadata; md != nil {
		result.Version = strconv.Itoa(md.Version)
		result.CreatedAt = md.CreatedTime.Format(time.RFC3339)
	}
	for k, v := range kvSecret.Data {
		if str, ok := v.(string); ok && k != a.config.ValueKey {
			result.Metadata[k] = str
		}
	}

	return result, nil
}
