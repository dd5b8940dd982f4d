package ports

import (
	"context"

	"github.com/kevin07696/donation-service/internal/domain"
)

// TokenStore holds pending transaction tokens between the redirect to the
// hosted payment page and the donor's return, keyed by merchant reference
type TokenStore interface {
	// Put stores a pending token, replacing any existing entry for the reference
	Put(ctx context.Context, token *domain.PendingToken) error

	// Take atomically reads and removes the token for a reference.
	// Returns MissingToken when absent or expired; a token is never returned twice.
	Take(ctx context.Context, reference string) (*domain.PendingToken, error)

	// TakeByToken is Take keyed by the gateway token instead of the reference.
	// Consuming by either key removes the entry for both.
	TakeByToken(ctx context.Context, token string) (*domain.PendingToken, error)

	// Purge removes expired tokens and returns how many were dropped
	Purge(ctx context.Context) (int, error)
}
