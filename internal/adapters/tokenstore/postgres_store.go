package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kevin07696/donation-service/internal/adapters/ports"
	"github.com/kevin07696/donation-service/internal/domain"
	"github.com/kevin07696/donation-service/pkg/timeutil"
	"go.uber.org/zap"
)

// DBTX is the subset of *pgxpool.Pool the store needs
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	upsertPendingToken = `
INSERT INTO pending_tokens (reference, token, amount, currency, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (reference) DO UPDATE
SET token = EXCLUDED.token,
    amount = EXCLUDED.amount,
    currency = EXCLUDED.currency,
    created_at = EXCLUDED.created_at,
    expires_at = EXCLUDED.expires_at`

	// A single DELETE ... RETURNING makes consumption atomic across replicas
	takePendingToken = `
DELETE FROM pending_tokens
WHERE reference = $1
RETURNING reference, token, amount, currency, created_at, expires_at`

	takePendingTokenByToken = `
DELETE FROM pending_tokens
WHERE token = $1
RETURNING reference, token, amount, currency, created_at, expires_at`

	purgePendingTokens = `DELETE FROM pending_tokens WHERE expires_at <= $1`
)

// PostgresStore is a TokenStore shared by every service replica
type PostgresStore struct {
	db           DBTX
	logger       *zap.Logger
	defaultTTL   time.Duration
	queryTimeout time.Duration
	now          func() time.Time
}

var _ ports.TokenStore = (*PostgresStore)(nil)

// NewPostgresStore creates a store over an existing pool
func NewPostgresStore(db DBTX, defaultTTL, queryTimeout time.Duration, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:           db,
		logger:       logger,
		defaultTTL:   defaultTTL,
		queryTimeout: queryTimeout,
		now:          timeutil.Now,
	}
}

// Put upserts a pending token
func (s *PostgresStore) Put(ctx context.Context, token *domain.PendingToken) error {
	if token == nil || token.Reference == "" || token.Token == "" {
		return domain.NewDomainError(domain.ErrorCodeValidationFailed, "pending token requires reference and token")
	}

	now := s.now().UTC()
	createdAt, expiresAt := token.CreatedAt, token.ExpiresAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if expiresAt.IsZero() {
		expiresAt = now.Add(s.defaultTTL)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.Exec(ctx, upsertPendingToken,
		token.Reference, token.Token, token.Amount, token.Currency, createdAt, expiresAt,
	); err != nil {
		s.logger.Error("Failed to store pending token",
			zap.String("reference", token.Reference),
			zap.Error(err),
		)
		return fmt.Errorf("store pending token: %w", err)
	}

	return nil
}

// Take deletes and returns the row for reference
func (s *PostgresStore) Take(ctx context.Context, reference string) (*domain.PendingToken, error) {
	if reference == "" {
		return nil, missingToken(reference)
	}
	return s.take(ctx, takePendingToken, "reference", reference)
}

// TakeByToken deletes and returns the row holding token
func (s *PostgresStore) TakeByToken(ctx context.Context, token string) (*domain.PendingToken, error) {
	if token == "" {
		return nil, unknownToken()
	}
	pending, err := s.take(ctx, takePendingTokenByToken, "token", token)
	if domain.IsDomainError(err, domain.ErrorCodeTokenMissing) {
		return nil, unknownToken()
	}
	return pending, err
}

func (s *PostgresStore) take(ctx context.Context, query, keyName, key string) (*domain.PendingToken, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var token domain.PendingToken
	err := s.db.QueryRow(ctx, query, key).Scan(
		&token.Reference,
		&token.Token,
		&token.Amount,
		&token.Currency,
		&token.CreatedAt,
		&token.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, missingToken(key)
	}
	if err != nil {
		s.logger.Error("Failed to take pending token",
			zap.String("key", keyName),
			zap.Error(err),
		)
		return nil, fmt.Errorf("take pending token: %w", err)
	}

	token.CreatedAt = timeutil.ToUTC(token.CreatedAt)
	token.ExpiresAt = timeutil.ToUTC(token.ExpiresAt)
	if token.IsExpired(s.now()) {
		return nil, missingToken(token.Reference)
	}

	return &token, nil
}

// Purge deletes expired rows
func (s *PostgresStore) Purge(ctx context.Context) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.db.Exec(ctx, purgePendingTokens, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge pending tokens: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}
