package secrets

import (
	"context"
	"sync"
	"time"

	"github.com/kevin07696/donation-service/internal/adapters/ports"
	"go.uber.org/zap"
)

type cacheEntry struct {
	secret    *ports.Secret
	expiresAt time.Time
}

// cachedSecretManager wraps a backend with an in-memory, per-instance TTL cache.
// Only latest-version reads are cached; pinned versions are immutable upstream
// but rarely read, so they go straight through.
type cachedSecretManager struct {
	backend ports.SecretManagerAdapter
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

// NewCachedSecretManager returns backend unchanged when ttl is not positive
func NewCachedSecretManager(backend ports.SecretManagerAdapter, ttl time.Duration, logger *zap.Logger) ports.SecretManagerAdapter {
	if ttl <= 0 {
		return backend
	}
	return &cachedSecretManager{
		backend: backend,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*cacheEntry),
	}
}

// GetSecret returns the cached secret while fresh, otherwise fetches and caches it
func (c *cachedSecretManager) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	c.mu.RLock()
	entry, ok := c.entries[path]
	c.mu.RUnlock()

	if ok && c.now().Before(entry.expiresAt) {
		c.logger.Debug("Secret cache hit", zap.String("path", path))
		return entry.secret, nil
	}

	secret, err := c.backend.GetSecret(ctx, path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[path] = &cacheEntry{
		secret:    secret,
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()

	return secret, nil
}

// GetSecretVersion always reads through to the backend
func (c *cachedSecretManager) GetSecretVersion(ctx context.Context, path string, version string) (*ports.Secret, error) {
	return c.backend.GetSecretVersion(ctx, path, version)
}

// Invalidate drops a cached path so the next read hits the backend
func (c *cachedSecretManager) Invalidate(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}
