package tokenstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kevin07696/donation-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestMemoryStore(t *testing.T) (*MemoryStore, *time.Time) {
	t.Helper()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(MemoryStoreConfig{DefaultTTL: time.Hour}, zaptest.NewLogger(t),
		WithClock(func() time.Time { return now }),
	)
	t.Cleanup(func() { _ = store.Close() })
	return store, &now
}

func TestMemoryStore_PutTake(t *testing.T) {
	store, now := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &domain.PendingToken{
		Reference: "DON-1",
		Token:     "TOKEN-1",
		Amount:    "25.00",
		Currency:  "USD",
	}))

	got, err := store.Take(ctx, "DON-1")
	require.NoError(t, err)
	assert.Equal(t, "TOKEN-1", got.Token)
	assert.Equal(t, "25.00", got.Amount)
	assert.Equal(t, *now, got.CreatedAt)
	assert.Equal(t, now.Add(time.Hour), got.ExpiresAt)
}

func TestMemoryStore_TakeIsSingleUse(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &domain.PendingToken{Reference: "DON-1", Token: "T"}))

	_, err := store.Take(ctx, "DON-1")
	require.NoError(t, err)

	_, err = store.Take(ctx, "DON-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTokenMissing))
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_ConcurrentTakeYieldsOneWinner(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, &domain.PendingToken{Reference: "DON-1", Token: "T"}))

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Take(ctx, "DON-1"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryStore_ExpiredTokenIsMissing(t *testing.T) {
	store, now := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &domain.PendingToken{Reference: "DON-1", Token: "T"}))
	*now = now.Add(61 * time.Minute)

	_, err := store.Take(ctx, "DON-1")
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeTokenMissing))
	assert.Equal(t, 0, store.Len(), "expired token is removed on take")
}

func TestMemoryStore_Purge(t *testing.T) {
	store, now := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &domain.PendingToken{Reference: "old", Token: "T1", ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, store.Put(ctx, &domain.PendingToken{Reference: "new", Token: "T2", ExpiresAt: now.Add(time.Hour)}))

	*now = now.Add(2 * time.Minute)
	purged, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
	assert.Equal(t, 1, store.Len())

	_, err = store.Take(ctx, "new")
	assert.NoError(t, err)
}

func TestMemoryStore_PutValidation(t *testing.T) {
	store, _ := newTestMemoryStore(t)

	err := store.Put(context.Background(), &domain.PendingToken{Reference: "DON-1"})
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeValidationFailed))

	err = store.Put(context.Background(), nil)
	assert.Error(t, err)
}

func TestMemoryStore_JanitorPurges(t *testing.T) {
	store := NewMemoryStore(MemoryStoreConfig{DefaultTTL: time.Hour, JanitorInterval: 10 * time.Millisecond}, zaptest.NewLogger(t))
	defer store.Close()

	require.NoError(t, store.Put(context.Background(), &domain.PendingToken{
		Reference: "DON-1",
		Token:     "T",
		ExpiresAt: time.Now().Add(-time.Second),
	}))

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestMemoryStore_CloseIsIdempotent(t *testing.T) {
	store := NewMemoryStore(DefaultMemoryStoreConfig(), zaptest.NewLogger(t))
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestMemoryStore_TakeByToken(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &domain.PendingToken{Reference: "DON-1", Token: "TOKEN-1", Amount: "25.00"}))

	got, err := store.TakeByToken(ctx, "TOKEN-1")
	require.NoError(t, err)
	assert.Equal(t, "DON-1", got.Reference)

	_, err = store.TakeByToken(ctx, "TOKEN-1")
	assert.True(t, errors.Is(err, domain.ErrTokenMissing))
	_, err = store.Take(ctx, "DON-1")
	assert.True(t, errors.Is(err, domain.ErrTokenMissing), "taking by token consumes the reference too")
}

func TestMemoryStore_TakeByReferenceClearsToken(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &domain.PendingToken{Reference: "DON-1", Token: "TOKEN-1"}))
	_, err := store.Take(ctx, "DON-1")
	require.NoError(t, err)

	_, err = store.TakeByToken(ctx, "TOKEN-1")
	assert.True(t, errors.Is(err, domain.ErrTokenMissing))
}

func TestMemoryStore_ReplacedEntryDropsOldToken(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &domain.PendingToken{Reference: "DON-1", Token: "OLD"}))
	require.NoError(t, store.Put(ctx, &domain.PendingToken{Reference: "DON-1", Token: "NEW"}))

	_, err := store.TakeByToken(ctx, "OLD")
	assert.True(t, errors.Is(err, domain.ErrTokenMissing))
	got, err := store.TakeByToken(ctx, "NEW")
	require.NoError(t, err)
	assert.Equal(t, "DON-1", got.Reference)
}

func TestMemoryStore_TakeByTokenExpired(t *testing.T) {
	store, now := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &domain.PendingToken{Reference: "DON-1", Token: "TOKEN-1"}))
	*now = now.Add(2 * time.Hour)

	_, err := store.TakeByToken(ctx, "TOKEN-1")
	assert.True(t, errors.Is(err, domain.ErrTokenMissing))
	assert.NotContains(t, err.Error(), "TOKEN-1")
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_ClockAppliesToExplicitExpiry(t *testing.T) {
	past := time.Date(2020, 6, 1, 8, 0, 0, 0, time.UTC)
	store := NewMemoryStore(MemoryStoreConfig{DefaultTTL: time.Hour}, zaptest.NewLogger(t),
		WithClock(func() time.Time { return past }),
	)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, &domain.PendingToken{
		Reference: "DON-1",
		Token:     "T",
		CreatedAt: past,
		ExpiresAt: past.Add(time.Hour),
	}))

	_, err := store.Take(ctx, "DON-1")
	assert.NoError(t, err, "expiry is judged on the injected clock, not wall time")
}
