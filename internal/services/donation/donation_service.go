// Package donation runs one donation attempt through the gateway token flow:
// request a token, send the donor to the hosted page, verify on return.
package donation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kevin07696/donation-service/internal/adapters/ports"
	"github.com/kevin07696/donation-service/internal/domain"
	"github.com/kevin07696/donation-service/pkg/timeutil"
	"go.uber.org/zap"
)

// Config holds the per-deployment values the service stamps onto every donation
type Config struct {
	Currency         string
	ReferencePrefix  string
	ReturnURL        string
	BackURL          string
	PaymentTimeLimit time.Duration
}

// Metrics receives business outcomes. Labels are low-cardinality strings.
type Metrics interface {
	RecordTokenRequest(outcome string, elapsed time.Duration)
	RecordVerification(state string, elapsed time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordTokenRequest(string, time.Duration) {}
func (noopMetrics) RecordVerification(string, time.Duration) {}

// DonationInput is what the donor submitted
type DonationInput struct {
	Amount   string
	Currency string // empty uses the configured currency
	Name     string
	Email    string
}

// Checkout is the result of StartDonation
type Checkout struct {
	Reference  string
	Token      string
	PaymentURL string
	Amount     string
	Currency   string
	State      domain.CheckoutState
	ExpiresAt  time.Time
}

// Verification is the result of CompleteDonation / VerifyToken
type Verification struct {
	Reference   string
	Token       string
	State       domain.CheckoutState
	Result      string
	Explanation string
	Details     map[string]string
}

// Paid reports whether the gateway confirmed payment
func (v *Verification) Paid() bool {
	return v.State == domain.CheckoutStateVerified
}

// Option configures a Service
type Option func(*Service)

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service implements the donation checkout flow
type Service struct {
	gateway ports.TokenGateway
	store   ports.TokenStore
	config  Config
	metrics Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a new donation service
func NewService(gateway ports.TokenGateway, store ports.TokenStore, cfg Config, logger *zap.Logger, opts ...Option) *Service {
	if cfg.Currency == "" {
		cfg.Currency = domain.DefaultCurrency
	}
	s := &Service{
		gateway: gateway,
		store:   store,
		config:  cfg,
		metrics: noopMetrics{},
		logger:  logger,
		now:     timeutil.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartDonation requests a transaction token and remembers it under a fresh
// reference. Validation errors return a nil Checkout and never reach the
// gateway. Gateway failures return a Checkout carrying the terminal state
// (Declined or TransportFailed) alongside the error.
func (s *Service) StartDonation(ctx context.Context, in DonationInput) (*Checkout, error) {
	state, err := domain.CheckoutStateIdle.Transition(domain.CheckoutStateRequesting)
	if err != nil {
		return nil, err
	}

	currency := in.Currency
	if strings.TrimSpace(currency) == "" {
		currency = s.config.Currency
	}

	reference := domain.NewReference(s.config.ReferencePrefix)
	donation, err := domain.NewDonation(in.Amount, currency, reference, s.config.ReturnURL, s.config.BackURL, in.Name, in.Email)
	if err != nil {
		s.metrics.RecordTokenRequest(outcome(err), 0)
		s.logger.Info("Donation rejected before token request",
			zap.String("amount", in.Amount),
			zap.String("code", string(domain.GetErrorCode(err))),
		)
		return nil, err
	}

	checkout := &Checkout{
		Reference: reference,
		Amount:    donation.FormattedAmount(),
		Currency:  donation.Currency,
		State:     state,
	}

	startTime := s.now()
	resp, err := s.gateway.CreateToken(ctx, &ports.CreateTokenRequest{
		Amount:        checkout.Amount,
		Currency:      donation.Currency,
		CompanyRef:    reference,
		RedirectURL:   donation.ReturnURL,
		BackURL:       donation.BackURL,
		CustomerFirst: donation.FirstName(),
		CustomerLast:  donation.LastName(),
		CustomerEmail: donation.DonorEmail,
	})
	if err != nil {
		return s.failCheckout(checkout, err, startTime)
	}

	paymentURL, err := s.gateway.PaymentURL(resp.TransToken)
	if err != nil {
		return s.failCheckout(checkout, err, startTime)
	}

	now := s.now()
	pending := &domain.PendingToken{
		Reference: reference,
		Token:     resp.TransToken,
		Amount:    checkout.Amount,
		Currency:  checkout.Currency,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.PaymentTimeLimit),
	}
	if err := s.store.Put(ctx, pending); err != nil {
		return s.failCheckout(checkout, domain.WrapError(domain.ErrorCodeInternalError, "failed to store transaction token", err), startTime)
	}

	checkout.State, _ = checkout.State.Transition(domain.CheckoutStateRedirecting)
	checkout.Token = resp.TransToken
	checkout.PaymentURL = paymentURL
	checkout.ExpiresAt = pending.ExpiresAt

	s.metrics.RecordTokenRequest("success", s.now().Sub(startTime))
	s.logger.Info("Donation checkout started",
		zap.String("reference", reference),
		zap.String("amount", checkout.Amount),
		zap.String("currency", checkout.Currency),
	)

	return checkout, nil
}

func (s *Service) failCheckout(checkout *Checkout, err error, startTime time.Time) (*Checkout, error) {
	checkout.State, _ = checkout.State.Transition(domain.FailureState(err))
	s.metrics.RecordTokenRequest(outcome(err), s.now().Sub(startTime))
	s.logger.Warn("Donation checkout failed",
		zap.String("reference", checkout.Reference),
		zap.String("state", string(checkout.State)),
		zap.String("code", string(domain.GetErrorCode(err))),
		zap.String("result", domain.ResultCode(err)),
		zap.Error(err),
	)
	return checkout, err
}

// CompleteDonation verifies the token stored under reference. The token is
// removed before the gateway is asked, so a reload cannot verify twice.
// A non-success gateway result is an outcome (VerificationFailed), not an error.
func (s *Service) CompleteDonation(ctx context.Context, reference string) (*Verification, error) {
	reference = strings.TrimSpace(reference)
	verification := &Verification{
		Reference: reference,
		State:     domain.CheckoutStateVerifying,
	}

	if reference == "" {
		return s.failVerification(verification, domain.ErrTokenMissing, s.now())
	}

	pending, err := s.store.Take(ctx, reference)
	if err != nil {
		if !errors.Is(err, domain.ErrTokenMissing) {
			err = domain.WrapError(domain.ErrorCodeInternalError, "failed to load transaction token", err)
		}
		return s.failVerification(verification, err, s.now())
	}

	verification.Token = pending.Token
	return s.verify(ctx, verification)
}

// VerifyToken verifies an explicit token. It consumes the same pending entry
// CompleteDonation does, so a token verified by either path is gone for both.
func (s *Service) VerifyToken(ctx context.Context, token string) (*Verification, error) {
	verification := &Verification{
		Token: strings.TrimSpace(token),
		State: domain.CheckoutStateVerifying,
	}

	if verification.Token == "" {
		return s.failVerification(verification, domain.ErrTokenMissing, s.now())
	}

	pending, err := s.store.TakeByToken(ctx, verification.Token)
	if err != nil {
		if !errors.Is(err, domain.ErrTokenMissing) {
			err = domain.WrapError(domain.ErrorCodeInternalError, "failed to load transaction token", err)
		}
		return s.failVerification(verification, err, s.now())
	}

	verification.Reference = pending.Reference
	return s.verify(ctx, verification)
}

func (s *Service) verify(ctx context.Context, v *Verification) (*Verification, error) {
	startTime := s.now()

	resp, err := s.gateway.VerifyToken(ctx, v.Token)
	if err != nil {
		return s.failVerification(v, err, startTime)
	}

	v.Result = resp.Result
	v.Explanation = resp.ResultExplanation
	v.Details = resp.Details()
	if resp.IsPaid() {
		v.State, _ = v.State.Transition(domain.CheckoutStateVerified)
	} else {
		v.State, _ = v.State.Transition(domain.CheckoutStateVerificationFailed)
	}

	s.metrics.RecordVerification(string(v.State), s.now().Sub(startTime))
	s.logger.Info("Donation verified",
		zap.String("reference", v.Reference),
		zap.String("state", string(v.State)),
		zap.String("result", v.Result),
	)

	return v, nil
}

func (s *Service) failVerification(v *Verification, err error, startTime time.Time) (*Verification, error) {
	v.State, _ = v.State.Transition(domain.CheckoutStateVerificationFailed)
	s.metrics.RecordVerification(outcome(err), s.now().Sub(startTime))
	s.logger.Warn("Donation verification failed",
		zap.String("reference", v.Reference),
		zap.String("code", string(domain.GetErrorCode(err))),
		zap.Error(err),
	)
	return v, err
}

// outcome maps an error onto a metrics label
func outcome(err error) string {
	code := domain.GetErrorCode(err)
	if code == "" {
		return "internal_error"
	}
	return strings.ToLower(string(code))
}
