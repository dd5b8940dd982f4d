package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevin07696/donation-service/internal/adapters/ports"
	"go.uber.org/zap"
)

// localSecretManager implements SecretManagerAdapter using local filesystem
// WARNING: This is for development only. Use AWS Secrets Manager, Vault or GCP in production.
type localSecretManager struct {
	basePath string
	logger   *zap.Logger
}

// NewLocalSecretManager creates a new local filesystem secret manager
func NewLocalSecretManager(basePath string, logger *zap.Logger) ports.SecretManagerAdapter {
	return &localSecretManager{
		basePath: basePath,
		logger:   logger,
	}
}

// GetSecret retrieves a secret from the local filesystem
func (m *localSecretManager) GetSecret(ctx context.Context, secretPath string) (*ports.Secret, error) {
	filePath, err := m.resolve(secretPath)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("Reading secret from filesystem",
		zap.String("path", secretPath),
	)

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("secret not found: %s", secretPath)
		}
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	// Support both plain text and JSON format
	var secretData struct {
		Value     string            `json:"value"`
		Version   string            `json:"version"`
		Tags      map[string]string `json:"tags"`
		CreatedAt string            `json:"created_at"`
	}
	if err := json.Unmarshal(data, &secretData); err == nil && secretData.Value != "" {
		version := secretData.Version
		if version == "" {
			version = "v1"
		}
		return &ports.Secret{
			Value:     secretData.Value,
			Version:   version,
			Metadata:  secretData.Tags,
			CreatedAt: secretData.CreatedAt,
		}, nil
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		return nil, fmt.Errorf("secret %s is empty", secretPath)
	}

	return &ports.Secret{
		Value:   value,
		Version: "v1",
	}, nil
}

// GetSecretVersion retrieves a specific version of a secret
// For local filesystem, we only support "latest" version
func (m *localSecretManager) GetSecretVersion(ctx context.Context, path string, version string) (*ports.Secret, error) {
	return m.GetSecret(ctx, path)
}

// resolve keeps lookups inside basePath
func (m *localSecretManager) resolve(secretPath string) (string, error) {
	filePath := filepath.Join(m.basePath, secretPath)
	rel, err := filepath.Rel(m.basePath, filePath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("secret path %q escapes secrets directory", secretPath)
	}
	return filePath, nil
}
