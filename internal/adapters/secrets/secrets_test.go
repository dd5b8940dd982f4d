package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kevin07696/donation-service/internal/adapters/ports"
	"github.com/kevin07696/donation-service/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type countingBackend struct {
	calls   int
	value   string
	err     error
	version string
}

func (b *countingBackend) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	return &ports.Secret{Value: b.value, Version: "latest"}, nil
}

func (b *countingBackend) GetSecretVersion(ctx context.Context, path, version string) (*ports.Secret, error) {
	b.calls++
	b.version = version
	return &ports.Secret{Value: b.value + "@" + version, Version: version}, nil
}

func TestEnvSecretManager(t *testing.T) {
	t.Setenv("DONATION_SERVICE_DPO_COMPANY_TOKEN", "env-token")
	sm := NewEnvSecretManager(zap.NewNop())

	secret, err := sm.GetSecret(context.Background(), "donation-service/dpo/company-token")
	require.NoError(t, err)
	assert.Equal(t, "env-token", secret.Value)

	_, err = sm.GetSecret(context.Background(), "donation-service/dpo/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DONATION_SERVICE_DPO_MISSING")
}

func TestLocalSecretManager(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dpo"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dpo", "plain"), []byte("plain-token\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dpo", "json"),
		[]byte(`{"value":"json-token","version":"v3","tags":{"owner":"finance"}}`), 0o600))

	sm := NewLocalSecretManager(dir, zaptest.NewLogger(t))
	ctx := context.Background()

	t.Run("plain_text", func(t *testing.T) {
		secret, err := sm.GetSecret(ctx, "dpo/plain")
		require.NoError(t, err)
		assert.Equal(t, "plain-token", secret.Value)
		assert.Equal(t, "v1", secret.Version)
	})

	t.Run("json", func(t *testing.T) {
		secret, err := sm.GetSecret(ctx, "dpo/json")
		require.NoError(t, err)
		assert.Equal(t, "json-token", secret.Value)
		assert.Equal(t, "v3", secret.Version)
		assert.Equal(t, "finance", secret.Metadata["owner"])
	})

	t.Run("not_found", func(t *testing.T) {
		_, err := sm.GetSecret(ctx, "dpo/absent")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret not found")
	})

	t.Run("path_escape", func(t *testing.T) {
		_, err := sm.GetSecret(ctx, "../etc/passwd")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "escapes")
	})
}

func TestCachedSecretManager(t *testing.T) {
	backend := &countingBackend{value: "cached-token"}
	sm := NewCachedSecretManager(backend, time.Minute, zap.NewNop()).(*cachedSecretManager)

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sm.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		secret, err := sm.GetSecret(ctx, "dpo")
		require.NoError(t, err)
		assert.Equal(t, "cached-token", secret.Value)
	}
	assert.Equal(t, 1, backend.calls, "fresh entries should be served from cache")

	now = now.Add(2 * time.Minute)
	_, err := sm.GetSecret(ctx, "dpo")
	require.NoError(t, err)
	assert.Equal(t, 2, backend.calls, "expired entries should be refetched")

	sm.Invalidate("dpo")
	_, err = sm.GetSecret(ctx, "dpo")
	require.NoError(t, err)
	assert.Equal(t, 3, backend.calls)

	_, err = sm.GetSecretVersion(ctx, "dpo", "2")
	require.NoError(t, err)
	assert.Equal(t, 4, backend.calls, "pinned versions bypass the cache")
}

func TestCachedSecretManager_DoesNotCacheErrors(t *testing.T) {
	backend := &countingBackend{err: errors.New("throttled")}
	sm := NewCachedSecretManager(backend, time.Minute, zap.NewNop())

	_, err := sm.GetSecret(context.Background(), "dpo")
	require.Error(t, err)
	_, err = sm.GetSecret(context.Background(), "dpo")
	require.Error(t, err)
	assert.Equal(t, 2, backend.calls)
}

func TestNewCachedSecretManager_ZeroTTLReturnsBackend(t *testing.T) {
	backend := &countingBackend{}
	assert.Same(t, backend, NewCachedSecretManager(backend, 0, zap.NewNop()))
}

func TestResolveCompanyToken(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit_token_wins", func(t *testing.T) {
		backend := &countingBackend{value: "from-secret"}
		gw := &config.GatewayConfig{CompanyToken: "explicit", CompanyTokenSecretPath: "dpo"}
		require.NoError(t, ResolveCompanyToken(ctx, backend, gw))
		assert.Equal(t, "explicit", gw.CompanyToken)
		assert.Equal(t, 0, backend.calls)
	})

	t.Run("latest", func(t *testing.T) {
		backend := &countingBackend{value: "from-secret"}
		gw := &config.GatewayConfig{CompanyTokenSecretPath: "dpo"}
		require.NoError(t, ResolveCompanyToken(ctx, backend, gw))
		assert.Equal(t, "from-secret", gw.CompanyToken)
	})

	t.Run("pinned_version", func(t *testing.T) {
		backend := &countingBackend{value: "from-secret"}
		gw := &config.GatewayConfig{CompanyTokenSecretPath: "dpo", CompanyTokenSecretVersion: "7"}
		require.NoError(t, ResolveCompanyToken(ctx, backend, gw))
		assert.Equal(t, "from-secret@7", gw.CompanyToken)
		assert.Equal(t, "7", backend.version)
	})

	t.Run("backend_error", func(t *testing.T) {
		backend := &countingBackend{err: errors.New("denied")}
		gw := &config.GatewayConfig{CompanyTokenSecretPath: "dpo"}
		err := ResolveCompanyToken(ctx, backend, gw)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "denied")
	})
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), config.SecretsConfig{Backend: "keychain"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keychain")
}

func TestNew_EnvBackend(t *testing.T) {
	t.Setenv("DPO_COMPANY_TOKEN", "abc")
	sm, err := New(context.Background(), config.SecretsConfig{Backend: "env", CacheTTL: time.Minute}, zap.NewNop())
	require.NoError(t, err)

	secret, err := sm.GetSecret(context.Background(), "DPO_COMPANY_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "abc", secret.Value)
	assert.NoError(t, Close(sm))
}
