package tokenstore

import (
	"context"
	"sync"
	"time"

	"github.com/kevin07696/donation-service/internal/adapters/ports"
	"github.com/kevin07696/donation-service/internal/domain"
	"github.com/kevin07696/donation-service/pkg/timeutil"
	"go.uber.org/zap"
)

// MemoryStoreConfig configures the in-process token store
type MemoryStoreConfig struct {
	// TTL applied when a token arrives without ExpiresAt
	DefaultTTL time.Duration
	// JanitorInterval is how often expired tokens are purged; 0 disables the janitor
	JanitorInterval time.Duration
}

// DefaultMemoryStoreConfig matches the default 60 minute payment time limit
func DefaultMemoryStoreConfig() MemoryStoreConfig {
	return MemoryStoreConfig{
		DefaultTTL:      60 * time.Minute,
		JanitorInterval: time.Minute,
	}
}

// MemoryStoreOption configures a MemoryStore
type MemoryStoreOption func(*MemoryStore)

// WithClock overrides the clock used for defaults and expiry
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) { s.now = now }
}

// MemoryStore is a single-instance TokenStore. Tokens are lost on restart,
// which only strands donors that are mid-payment.
type MemoryStore struct {
	mu      sync.Mutex
	tokens  map[string]domain.PendingToken
	byToken map[string]string // gateway token -> reference
	config  MemoryStoreConfig
	logger  *zap.Logger
	now     func() time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

var _ ports.TokenStore = (*MemoryStore)(nil)

// NewMemoryStore creates the store and starts its janitor
func NewMemoryStore(config MemoryStoreConfig, logger *zap.Logger, opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		tokens:  make(map[string]domain.PendingToken),
		byToken: make(map[string]string),
		config:  config,
		logger:  logger,
		now:     timeutil.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if config.JanitorInterval > 0 {
		go s.janitor(config.JanitorInterval)
	} else {
		close(s.done)
	}

	return s
}

// Put stores a pending token, replacing any existing entry for the reference
func (s *MemoryStore) Put(ctx context.Context, token *domain.PendingToken) error {
	if token == nil || token.Reference == "" || token.Token == "" {
		return domain.NewDomainError(domain.ErrorCodeValidationFailed, "pending token requires reference and token")
	}

	entry := *token
	now := s.now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.ExpiresAt.IsZero() {
		entry.ExpiresAt = now.Add(s.config.DefaultTTL)
	}

	s.mu.Lock()
	if old, ok := s.tokens[entry.Reference]; ok && s.byToken[old.Token] == entry.Reference {
		delete(s.byToken, old.Token)
	}
	s.tokens[entry.Reference] = entry
	s.byToken[entry.Token] = entry.Reference
	s.mu.Unlock()

	return nil
}

// Take returns and removes the token for reference
func (s *MemoryStore) Take(ctx context.Context, reference string) (*domain.PendingToken, error) {
	s.mu.Lock()
	entry, ok := s.removeLocked(reference)
	s.mu.Unlock()

	if !ok || entry.IsExpired(s.now()) {
		return nil, missingToken(reference)
	}

	return &entry, nil
}

// TakeByToken returns and removes the entry holding token
func (s *MemoryStore) TakeByToken(ctx context.Context, token string) (*domain.PendingToken, error) {
	s.mu.Lock()
	reference, ok := s.byToken[token]
	var entry domain.PendingToken
	if ok {
		entry, ok = s.removeLocked(reference)
	}
	s.mu.Unlock()

	if !ok || entry.IsExpired(s.now()) {
		return nil, unknownToken()
	}

	return &entry, nil
}

func (s *MemoryStore) removeLocked(reference string) (domain.PendingToken, bool) {
	entry, ok := s.tokens[reference]
	if ok {
		delete(s.tokens, reference)
		if s.byToken[entry.Token] == reference {
			delete(s.byToken, entry.Token)
		}
	}
	return entry, ok
}

// Purge removes expired tokens
func (s *MemoryStore) Purge(ctx context.Context) (int, error) {
	now := s.now()
	purged := 0

	s.mu.Lock()
	for ref, entry := range s.tokens {
		if entry.IsExpired(now) {
			s.removeLocked(ref)
			purged++
		}
	}
	s.mu.Unlock()

	return purged, nil
}

// Len returns the number of stored tokens, including expired ones not yet purged
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// Close stops the janitor and waits for it to exit
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

func (s *MemoryStore) janitor(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n, _ := s.Purge(context.Background()); n > 0 {
				s.logger.Debug("Purged expired pending tokens", zap.Int("count", n))
			}
		}
	}
}

// unknownToken never echoes the token back into error details
func unknownToken() error {
	return domain.NewDomainError(domain.ErrorCodeTokenMissing, "token is not pending or was already verified")
}

func missingToken(reference string) error {
	return domain.NewDomainError(domain.ErrorCodeTokenMissing, "no pending token for this checkout").
		WithDetail("reference", reference)
}
