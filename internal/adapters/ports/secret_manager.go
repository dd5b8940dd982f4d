package ports

import (
	"context"
)

// Secret represents a retrieved secret with metadata
type Secret struct {
	Value     string            // The secret value (e.g., DPO company token)
	Version   string            // Secret version identifier
	Metadata  map[string]string // Additional secret metadata
	CreatedAt string            // When this version was created
}

// SecretManagerAdapter defines the port for retrieving secrets from a secret management service
// Supports multiple backends: environment, local files, AWS Secrets Manager, HashiCorp Vault,
// GCP Secret Manager
type SecretManagerAdapter interface {
	// GetSecret retrieves the latest version of a secret by its path/name
	// Path format depends on implementation:
	//   - env: "DPO_COMPANY_TOKEN" (variable name)
	//   - local: relative file path under the base directory
	//   - AWS: "donation-service/dpo/company-token" or full ARN
	//   - GCP: secret name within the configured project
	//   - Vault: "donation-service/dpo" under the KV mount
	GetSecret(ctx context.Context, path string) (*Secret, error)

	// GetSecretVersion retrieves a specific version of a secret
	// Backends without versioning return the current value
	GetSecretVersion(ctx context.Context, path string, version string) (*Secret, error)
}
