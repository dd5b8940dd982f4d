package secrets

import (
	"context"
	"fmt"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/kevin07696/donation-service/internal/adapters/ports"
	"go.uber.org/zap"
)

// GCPSecretManager implements ports.SecretManagerAdapter for Google Cloud Secret Manager
type GCPSecretManager struct {
	client    *secretmanager.Client
	projectID string
	logger    *zap.Logger
}

// NewGCPSecretManager creates a new GCP Secret Manager adapter.
// Credentials come from GOOGLE_APPLICATION_CREDENTIALS, workload identity
// or the default application credentials.
func NewGCPSecretManager(ctx context.Context, projectID string, logger *zap.Logger) (*GCPSecretManager, error) {
	if projectID == "" {
		return nil, fmt.Errorf("GCP project ID is required")
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
	}

	logger.Info("GCP Secret Manager initialized",
		zap.String("project_id", projectID),
	)

	return &GCPSecretManager{
		client:    client,
		projectID: projectID,
		logger:    logger,
	}, nil
}

// Close closes the GCP Secret Manager client
func (sm *GCPSecretManager) Close() error {
	return sm.client.Close()
}

// GetSecret retrieves the latest version of a secret
// GCP name: projects/{project_id}/secrets/{path}/versions/latest
func (sm *GCPSecretManager) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	return sm.GetSecretVersion(ctx, path, "latest")
}

// GetSecretVersion retrieves a specific version of a secret
func (sm *GCPSecretManager) GetSecretVersion(ctx context.Context, path string, version string) (*ports.Secret, error) {
	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", sm.projectID, path, version)

	result, err := sm.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		sm.logger.Error("Failed to access GCP secret",
			zap.String("path", path),
			zap.String("version", version),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to access GCP secret %s version %s: %w", path, version, err)
	}

	sm.logger.Info("Secret fetched from GCP",
		zap.String("path", path),
		zap.String("version", version),
	)

	return &ports.Secret{
		Value:   string(result.GetPayload().GetData()),
		Version: versionFromName(result.GetName(), version),
		Metadata: map[string]string{
			"gcp_project_id": sm.projectID,
			"gcp_secret":     path,
		},
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// versionFromName extracts the trailing version from a resource name
func versionFromName(name, fallback string) string {
	if i := strings.LastIndex(name, "/versions/"); i >= 0 {
		return name[i+len("/versions/"):]
	}
	return fallback
}
