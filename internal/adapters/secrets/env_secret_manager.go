package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kevin07696/donation-service/internal/adapters/ports"
	"go.uber.org/zap"
)

// envSecretManager reads secrets from process environment variables.
// Paths like "donation-service/dpo/company-token" map to DONATION_SERVICE_DPO_COMPANY_TOKEN.
type envSecretManager struct {
	lookup func(string) (string, bool)
	logger *zap.Logger
}

// NewEnvSecretManager creates a secret manager backed by environment variables
func NewEnvSecretManager(logger *zap.Logger) ports.SecretManagerAdapter {
	return &envSecretManager{
		lookup: os.LookupEnv,
		logger: logger,
	}
}

// GetSecret reads the variable named by path
func (m *envSecretManager) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	name := envName(path)

	m.logger.Debug("Reading secret from environment", zap.String("variable", name))

	value, ok := m.lookup(name)
	if !ok || value == "" {
		return nil, fmt.Errorf("secret not found: environment variable %s is not set", name)
	}

	return &ports.Secret{
		Value:    value,
		Version:  "env",
		Metadata: map[string]string{"variable": name},
	}, nil
}

// GetSecretVersion ignores version; the environment holds a single value
func (m *envSecretManager) GetSecretVersion(ctx context.Context, path string, version string) (*ports.Secret, error) {
	return m.GetSecret(ctx, path)
}

func envName(path string) string {
	name := strings.ToUpper(path)
	return strings.NewReplacer("/", "_", "-", "_", ".", "_").Replace(name)
}
