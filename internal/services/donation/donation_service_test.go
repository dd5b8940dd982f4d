package donation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kevin07696/donation-service/internal/adapters/dpo"
	"github.com/kevin07696/donation-service/internal/adapters/ports"
	"github.com/kevin07696/donation-service/internal/adapters/tokenstore"
	"github.com/kevin07696/donation-service/internal/domain"
	"github.com/kevin07696/donation-service/internal/testutil/dpotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

type recordedMetrics struct {
	mu            sync.Mutex
	tokenRequests []string
	verifications []string
}

func (m *recordedMetrics) RecordTokenRequest(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenRequests = append(m.tokenRequests, outcome)
}

func (m *recordedMetrics) RecordVerification(state string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications = append(m.verifications, state)
}

func testConfig() Config {
	return Config{
		Currency:         "USD",
		ReferencePrefix:  "DON",
		ReturnURL:        "https://donate.example.org/payment-complete",
		BackURL:          "https://donate.example.org/donation?cancelled=1",
		PaymentTimeLimit: time.Hour,
	}
}

type fixture struct {
	gw      *dpotest.Server
	store   *tokenstore.MemoryStore
	metrics *recordedMetrics
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gw := dpotest.NewServer(t)
	cfg := dpo.DefaultConfig()
	cfg.APIURL = gw.APIURL()
	cfg.PaymentPageURL = gw.PaymentPageURL()
	cfg.CompanyToken = "TEST-COMPANY-TOKEN"
	adapter := dpo.NewTokenAdapter(cfg, gw.Client(), zaptest.NewLogger(t))

	clock := func() time.Time { return testNow }
	store := tokenstore.NewMemoryStore(tokenstore.MemoryStoreConfig{DefaultTTL: time.Hour}, zaptest.NewLogger(t),
		tokenstore.WithClock(clock),
	)
	t.Cleanup(func() { _ = store.Close() })

	metrics := &recordedMetrics{}
	svc := NewService(adapter, store, testConfig(), zaptest.NewLogger(t),
		WithMetrics(metrics),
		WithClock(clock),
	)

	return &fixture{gw: gw, store: store, metrics: metrics, svc: svc}
}

func TestStartDonation_Success(t *testing.T) {
	f := newFixture(t)
	f.gw.RespondCreateToken("000", "Transaction created", "TOKEN-ABC")

	checkout, err := f.svc.StartDonation(context.Background(), DonationInput{
		Amount: "$1,250.5",
		Name:   "Ada Lovelace King",
		Email:  "ada@example.org",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(checkout.Reference, "DON-"))
	assert.Equal(t, "TOKEN-ABC", checkout.Token)
	assert.Equal(t, f.gw.PaymentPageURL()+"?ID=TOKEN-ABC", checkout.PaymentURL)
	assert.Equal(t, "1250.50", checkout.Amount)
	assert.Equal(t, "USD", checkout.Currency)
	assert.Equal(t, domain.CheckoutStateRedirecting, checkout.State)
	assert.Equal(t, testNow.Add(time.Hour), checkout.ExpiresAt)

	req := f.gw.LastRequest()
	assert.Equal(t, "1250.50", req.Amount)
	assert.Equal(t, checkout.Reference, req.CompanyRef)
	assert.Equal(t, "Ada", req.CustomerFirstName)
	assert.Equal(t, "Lovelace King", req.CustomerLastName)
	assert.Equal(t, "ada@example.org", req.CustomerEmail)

	assert.Equal(t, 1, f.store.Len())
	assert.Equal(t, []string{"success"}, f.metrics.tokenRequests)
}

func TestStartDonation_InvalidAmountSkipsGateway(t *testing.T) {
	f := newFixture(t)

	for _, amount := range []string{"", "abc", "0", "-5", "0.001"} {
		checkout, err := f.svc.StartDonation(context.Background(), DonationInput{Amount: amount})
		require.Error(t, err, amount)
		assert.Nil(t, checkout)
		assert.True(t, errors.Is(err, domain.ErrValidationAmountInvalid), amount)
	}

	assert.Equal(t, 0, f.gw.RequestCount())
	assert.Equal(t, 0, f.store.Len())
}

func TestStartDonation_InvalidEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.StartDonation(context.Background(), DonationInput{Amount: "10", Email: "not-an-email"})
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeValidationFailed))
	assert.Equal(t, 0, f.gw.RequestCount())
}

func TestStartDonation_Declined(t *testing.T) {
	f := newFixture(t)
	f.gw.RespondCreateToken("801", "Request missing company token", "")

	checkout, err := f.svc.StartDonation(context.Background(), DonationInput{Amount: "25"})
	require.Error(t, err)
	require.NotNil(t, checkout)

	assert.Equal(t, domain.CheckoutStateDeclined, checkout.State)
	assert.Empty(t, checkout.Token)
	assert.Equal(t, "Request missing company token", domain.UserMessage(err))
	assert.Equal(t, "801", domain.ResultCode(err))
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, []string{"gateway_declined"}, f.metrics.tokenRequests)
}

func TestStartDonation_TransportFailure(t *testing.T) {
	f := newFixture(t)
	f.gw.RespondAll(503, "unavailable")

	checkout, err := f.svc.StartDonation(context.Background(), DonationInput{Amount: "25"})
	require.Error(t, err)
	assert.Equal(t, domain.CheckoutStateTransportFailed, checkout.State)
	assert.True(t, errors.Is(err, domain.ErrGatewayTransport))
	assert.Equal(t, 0, f.store.Len())
}

func TestStartDonation_CurrencyOverride(t *testing.T) {
	f := newFixture(t)

	checkout, err := f.svc.StartDonation(context.Background(), DonationInput{Amount: "5", Currency: "kes"})
	require.NoError(t, err)
	assert.Equal(t, "KES", checkout.Currency)
	assert.Equal(t, "KES", f.gw.LastRequest().Currency)
}

func TestCompleteDonation_Verified(t *testing.T) {
	f := newFixture(t)
	f.gw.RespondCreateToken("000", "Transaction created", "TOKEN-OK")
	f.gw.RespondVerifyToken("000", "Transaction paid", map[string]string{
		"CustomerName":        "Ada Lovelace",
		"TransactionApproval": "938204",
	})

	checkout, err := f.svc.StartDonation(context.Background(), DonationInput{Amount: "25"})
	require.NoError(t, err)

	v, err := f.svc.CompleteDonation(context.Background(), checkout.Reference)
	require.NoError(t, err)
	assert.True(t, v.Paid())
	assert.Equal(t, domain.CheckoutStateVerified, v.State)
	assert.Equal(t, "000", v.Result)
	assert.Equal(t, "Transaction paid", v.Explanation)
	assert.Equal(t, "938204", v.Details["transactionApproval"])
	assert.Equal(t, "TOKEN-OK", f.gw.LastRequest().TransactionToken)
	assert.Equal(t, []string{"verified"}, f.metrics.verifications)
}

func TestCompleteDonation_NotPaidIsOutcome(t *testing.T) {
	f := newFixture(t)
	f.gw.RespondVerifyToken("901", "Transaction declined", nil)

	checkout, err := f.svc.StartDonation(context.Background(), DonationInput{Amount: "25"})
	require.NoError(t, err)

	v, err := f.svc.CompleteDonation(context.Background(), checkout.Reference)
	require.NoError(t, err)
	assert.False(t, v.Paid())
	assert.Equal(t, domain.CheckoutStateVerificationFailed, v.State)
	assert.Equal(t, "Transaction declined", v.Explanation)
}

func TestCompleteDonation_TokenConsumedOnce(t *testing.T) {
	f := newFixture(t)

	checkout, err := f.svc.StartDonation(context.Background(), DonationInput{Amount: "25"})
	require.NoError(t, err)

	_, err = f.svc.CompleteDonation(context.Background(), checkout.Reference)
	require.NoError(t, err)
	calls := f.gw.RequestCount()

	v, err := f.svc.CompleteDonation(context.Background(), checkout.Reference)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTokenMissing))
	assert.Equal(t, domain.CheckoutStateVerificationFailed, v.State)
	assert.Equal(t, calls, f.gw.RequestCount(), "no gateway call without a token")
}

func TestCompleteDonation_TokenClearedOnTransportFailure(t *testing.T) {
	f := newFixture(t)

	checkout, err := f.svc.StartDonation(context.Background(), DonationInput{Amount: "25"})
	require.NoError(t, err)

	f.gw.RespondAll(500, "boom")
	v, err := f.svc.CompleteDonation(context.Background(), checkout.Reference)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGatewayTransport))
	assert.Equal(t, domain.CheckoutStateVerificationFailed, v.State)
	assert.Equal(t, 0, f.store.Len())
}

func TestCompleteDonation_EmptyReference(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CompleteDonation(context.Background(), "  ")
	assert.True(t, errors.Is(err, domain.ErrTokenMissing))
	assert.Equal(t, 0, f.gw.RequestCount())
}

func TestVerifyToken_Explicit(t *testing.T) {
	f := newFixture(t)
	f.gw.RespondCreateToken("000", "Transaction created", "TOKEN-X")

	checkout, err := f.svc.StartDonation(context.Background(), DonationInput{Amount: "25"})
	require.NoError(t, err)

	v, err := f.svc.VerifyToken(context.Background(), " TOKEN-X ")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStateVerified, v.State)
	assert.Equal(t, checkout.Reference, v.Reference)
	assert.Equal(t, "TOKEN-X", f.gw.LastRequest().TransactionToken)
	assert.Equal(t, 0, f.store.Len())

	_, err = f.svc.VerifyToken(context.Background(), "")
	assert.True(t, errors.Is(err, domain.ErrTokenMissing))
}

func TestVerifyToken_UnknownTokenSkipsGateway(t *testing.T) {
	f := newFixture(t)

	v, err := f.svc.VerifyToken(context.Background(), "TOKEN-NEVER-ISSUED")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTokenMissing))
	assert.Equal(t, domain.CheckoutStateVerificationFailed, v.State)
	assert.Equal(t, 0, f.gw.RequestCount())
}

func TestVerifyToken_AfterCompleteIsMissing(t *testing.T) {
	f := newFixture(t)
	f.gw.RespondCreateToken("000", "Transaction created", "TOKEN-PAID")

	checkout, err := f.svc.StartDonation(context.Background(), DonationInput{Amount: "25"})
	require.NoError(t, err)
	_, err = f.svc.CompleteDonation(context.Background(), checkout.Reference)
	require.NoError(t, err)
	calls := f.gw.RequestCount()

	_, err = f.svc.VerifyToken(context.Background(), "TOKEN-PAID")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTokenMissing))
	assert.Equal(t, calls, f.gw.RequestCount(), "verified token must not reach the gateway again")
}

func TestVerifyToken_ConsumesForComplete(t *testing.T) {
	f := newFixture(t)
	f.gw.RespondCreateToken("000", "Transaction created", "TOKEN-ONCE")

	checkout, err := f.svc.StartDonation(context.Background(), DonationInput{Amount: "25"})
	require.NoError(t, err)
	_, err = f.svc.VerifyToken(context.Background(), "TOKEN-ONCE")
	require.NoError(t, err)
	calls := f.gw.RequestCount()

	_, err = f.svc.VerifyToken(context.Background(), "TOKEN-ONCE")
	assert.True(t, errors.Is(err, domain.ErrTokenMissing))
	_, err = f.svc.CompleteDonation(context.Background(), checkout.Reference)
	assert.True(t, errors.Is(err, domain.ErrTokenMissing))
	assert.Equal(t, calls, f.gw.RequestCount())
}

func TestCompleteDonation_UsesStoreClock(t *testing.T) {
	f := newFixture(t)

	checkout, err := f.svc.StartDonation(context.Background(), DonationInput{Amount: "25"})
	require.NoError(t, err)
	require.True(t, checkout.ExpiresAt.Before(time.Now()), "fixture clock is in the past")

	v, err := f.svc.CompleteDonation(context.Background(), checkout.Reference)
	require.NoError(t, err, "entry stamped by the fixture clock is still live on the same clock")
	assert.Equal(t, domain.CheckoutStateVerified, v.State)
}

// mockGateway covers the failure paths the fake gateway cannot produce
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateToken(ctx context.Context, req *ports.CreateTokenRequest) (*ports.CreateTokenResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*ports.CreateTokenResponse)
	return resp, args.Error(1)
}

func (m *mockGateway) VerifyToken(ctx context.Context, token string) (*ports.VerifyTokenResponse, error) {
	args := m.Called(ctx, token)
	resp, _ := args.Get(0).(*ports.VerifyTokenResponse)
	return resp, args.Error(1)
}

func (m *mockGateway) PaymentURL(token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}

type failingStore struct {
	ports.TokenStore
	err error
}

func (s failingStore) Put(context.Context, *domain.PendingToken) error { return s.err }

func (s failingStore) Take(context.Context, string) (*domain.PendingToken, error) { return nil, s.err }

func (s failingStore) TakeByToken(context.Context, string) (*domain.PendingToken, error) {
	return nil, s.err
}

func TestStartDonation_StoreFailure(t *testing.T) {
	gw := new(mockGateway)
	gw.On("CreateToken", mock.Anything, mock.Anything).
		Return(&ports.CreateTokenResponse{Result: "000", TransToken: "T1", Amount: "25.00"}, nil)
	gw.On("PaymentURL", "T1").Return("https://pay.example/?ID=T1", nil)

	svc := NewService(gw, failingStore{err: errors.New("disk full")}, testConfig(), zaptest.NewLogger(t))

	checkout, err := svc.StartDonation(context.Background(), DonationInput{Amount: "25"})
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeInternalError))
	assert.Equal(t, domain.CheckoutStateTransportFailed, checkout.State)
	gw.AssertExpectations(t)
}

func TestStartDonation_PaymentURLFailure(t *testing.T) {
	gw := new(mockGateway)
	gw.On("CreateToken", mock.Anything, mock.Anything).
		Return(&ports.CreateTokenResponse{Result: "000", TransToken: "T1", Amount: "25.00"}, nil)
	gw.On("PaymentURL", "T1").Return("", domain.ProtocolError("paymentURL", "page URL is not absolute"))

	store := tokenstore.NewMemoryStore(tokenstore.MemoryStoreConfig{}, zaptest.NewLogger(t))
	defer store.Close()
	svc := NewService(gw, store, testConfig(), zaptest.NewLogger(t))

	_, err := svc.StartDonation(context.Background(), DonationInput{Amount: "25"})
	require.Error(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestCompleteDonation_StoreFailureIsInternal(t *testing.T) {
	gw := new(mockGateway)
	svc := NewService(gw, failingStore{err: errors.New("connection reset")}, testConfig(), zaptest.NewLogger(t))

	_, err := svc.CompleteDonation(context.Background(), "DON-1")
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeInternalError))
	gw.AssertNotCalled(t, "VerifyToken", mock.Anything, mock.Anything)
}

func TestVerifyToken_StoreFailureIsInternal(t *testing.T) {
	gw := new(mockGateway)
	svc := NewService(gw, failingStore{err: errors.New("connection reset")}, testConfig(), zaptest.NewLogger(t))

	_, err := svc.VerifyToken(context.Background(), "T1")
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeInternalError))
	gw.AssertNotCalled(t, "VerifyToken", mock.Anything, mock.Anything)
}
