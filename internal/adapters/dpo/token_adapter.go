package dpo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kevin07696/donation-service/internal/adapters/ports"
	"github.com/kevin07696/donation-service/internal/config"
	"github.com/kevin07696/donation-service/internal/domain"
	"github.com/kevin07696/donation-service/pkg/timeutil"
	"go.uber.org/zap"
)

// maxResponseBytes caps how much of a gateway response is read
const maxResponseBytes = 1 << 20

// Config contains configuration for the DPO API3G token adapter
type Config struct {
	// API3G v6 endpoint
	// Production: https://secure.3gdirectpay.com/API/v6/
	APIURL string

	// Hosted payment page; the token is appended as ?ID=
	PaymentPageURL string

	// Merchant credential sent in every request. Never logged.
	CompanyToken string

	ServiceType        int
	ServiceDescription string

	// PTL is the payment time limit in minutes
	PTL int

	// PageTimeout adds &timeout= to the payment URL when positive
	PageTimeout int

	// HTTP client timeout
	Timeout time.Duration

	CircuitBreaker CircuitBreakerConfig
}

// DefaultConfig returns production endpoints and the donation service line
func DefaultConfig() *Config {
	return &Config{
		APIURL:             "https://secure.3gdirectpay.com/API/v6/",
		PaymentPageURL:     "https://secure.3gdirectpay.com/dpopayment.php",
		ServiceType:        3854,
		ServiceDescription: "Donation",
		PTL:                60,
		Timeout:            30 * time.Second,
		CircuitBreaker:     DefaultCircuitBreakerConfig(),
	}
}

// NewConfig builds adapter configuration from application config
func NewConfig(g *config.GatewayConfig) *Config {
	cfg := DefaultConfig()
	cfg.APIURL = g.APIURL
	cfg.PaymentPageURL = g.PaymentPageURL
	cfg.CompanyToken = g.CompanyToken
	cfg.ServiceType = g.ServiceType
	cfg.ServiceDescription = g.ServiceDescription
	cfg.PTL = g.PTLMinutes
	cfg.PageTimeout = g.PageTimeout
	cfg.Timeout = g.RequestTimeout()
	return cfg
}

// Observer receives gateway call outcomes, typically for metrics
type Observer interface {
	ObserveGatewayCall(operation, outcome string, elapsed time.Duration)
	ObserveCircuitState(state string)
}

// Option customises a TokenAdapter
type Option func(*TokenAdapter)

// WithObserver registers an observer for call outcomes and circuit transitions
func WithObserver(o Observer) Option {
	return func(a *TokenAdapter) { a.observer = o }
}

// WithClock overrides the clock used for ServiceDate
func WithClock(now func() time.Time) Option {
	return func(a *TokenAdapter) { a.now = now }
}

// TokenAdapter implements ports.TokenGateway against DPO API3G over XML/HTTPS
type TokenAdapter struct {
	config         *Config
	httpClient     ports.HTTPClient
	logger         *zap.Logger
	circuitBreaker *CircuitBreaker
	observer       Observer
	now            func() time.Time
}

var _ ports.TokenGateway = (*TokenAdapter)(nil)

// NewTokenAdapter creates a new DPO token adapter
func NewTokenAdapter(cfg *Config, httpClient ports.HTTPClient, logger *zap.Logger, opts ...Option) *TokenAdapter {
	a := &TokenAdapter{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger,
		now:        timeutil.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	breakerConfig := cfg.CircuitBreaker
	if breakerConfig.MaxFailures == 0 {
		breakerConfig = DefaultCircuitBreakerConfig()
	}
	breakerConfig.OnStateChange = func(from, to CircuitState) {
		a.logger.Warn("DPO circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		if a.observer != nil {
			a.observer.ObserveCircuitState(to.String())
		}
	}
	a.circuitBreaker = NewCircuitBreaker(breakerConfig)

	return a
}

// CircuitState exposes the breaker state for health checks
func (a *TokenAdapter) CircuitState() CircuitState {
	return a.circuitBreaker.State()
}

// CreateToken requests a transaction token for the hosted payment page
func (a *TokenAdapter) CreateToken(ctx context.Context, req *ports.CreateTokenRequest) (*ports.CreateTokenResponse, error) {
	amount, err := domain.FormatAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if err := validateCreateTokenRequest(req); err != nil {
		return nil, err
	}

	a.logger.Info("Requesting DPO transaction token",
		zap.String("company_ref", req.CompanyRef),
		zap.String("amount", amount),
		zap.String("currency", req.Currency),
	)

	payload, err := encodeDocument(a.buildCreateTokenDocument(req, amount))
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "failed to encode createToken request", err)
	}

	startTime := time.Now()
	doc, err := a.exchange(ctx, requestCreateToken, payload)
	if err != nil {
		return nil, err
	}

	if doc.Result != ResultSuccess {
		explanation := doc.ResultExplanation
		if explanation == "" {
			if info, ok := LookupResultCode(requestCreateToken, doc.Result); ok {
				explanation = info.Description
			} else {
				explanation = fmt.Sprintf("Payment request failed (result %s)", doc.Result)
			}
		}
		category := ResultCategory(requestCreateToken, doc.Result)
		a.observe(requestCreateToken, category, startTime)

		a.logger.Warn("DPO createToken declined",
			zap.String("company_ref", req.CompanyRef),
			zap.String("result", doc.Result),
			zap.String("result_explanation", doc.ResultExplanation),
			zap.String("category", category),
		)
		return nil, domain.GatewayDeclined(doc.Result, explanation)
	}

	if doc.TransToken == "" {
		a.observe(requestCreateToken, "protocol_error", startTime)
		return nil, domain.ProtocolError(requestCreateToken, "success result without TransToken")
	}

	a.observe(requestCreateToken, CategorySuccess, startTime)
	a.logger.Info("DPO transaction token created",
		zap.String("company_ref", req.CompanyRef),
		zap.String("trans_ref", doc.TransRef),
		zap.Duration("elapsed", time.Since(startTime)),
	)

	return &ports.CreateTokenResponse{
		Result:            doc.Result,
		ResultExplanation: doc.ResultExplanation,
		TransToken:        doc.TransToken,
		TransRef:          doc.TransRef,
		Amount:            amount,
	}, nil
}

// VerifyToken asks the gateway for the payment status of a token.
// A well-formed non-success result is returned as a response, not an error.
func (a *TokenAdapter) VerifyToken(ctx context.Context, token string) (*ports.VerifyTokenResponse, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrTokenMissing
	}

	payload, err := encodeDocument(&verifyTokenDocument{
		CompanyToken:     a.config.CompanyToken,
		Request:          requestVerifyToken,
		TransactionToken: token,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "failed to encode verifyToken request", err)
	}

	startTime := time.Now()
	doc, err := a.exchange(ctx, requestVerifyToken, payload)
	if err != nil {
		return nil, err
	}

	explanation := doc.ResultExplanation
	if explanation == "" {
		if info, ok := LookupResultCode(requestVerifyToken, doc.Result); ok {
			explanation = info.Description
		}
	}

	category := ResultCategory(requestVerifyToken, doc.Result)
	a.observe(requestVerifyToken, category, startTime)
	a.logger.Info("DPO token verified",
		zap.String("result", doc.Result),
		zap.String("category", category),
		zap.Duration("elapsed", time.Since(startTime)),
	)

	return &ports.VerifyTokenResponse{
		Result:                    doc.Result,
		ResultExplanation:         explanation,
		CustomerName:              doc.CustomerName,
		TransactionApproval:       doc.TransactionApproval,
		TransactionAmount:         doc.TransactionAmount,
		TransactionCurrency:       doc.TransactionCurrency,
		TransactionNetAmount:      doc.TransactionNetAmount,
		FraudAlert:                doc.FraudAlert,
		FraudExplanation:          doc.FraudExplnation,
		TransactionSettlementDate: doc.TransactionSettlementDate,
	}, nil
}

// exchange POSTs an API3G document through the circuit breaker and decodes
// the reply. Transport and HTTP status failures trip the breaker; a decoded
// document, whatever its Result, counts as a healthy gateway. A cancelled ctx
// is still a transport error for the caller but never counts against API3G.
func (a *TokenAdapter) exchange(ctx context.Context, operation string, payload []byte) (*responseDocument, error) {
	var body []byte
	startTime := time.Now()

	err := a.circuitBreaker.Execute(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.APIURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/xml")
		httpReq.Header.Set("Accept", "application/xml")

		httpResp, err := a.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
		defer httpResp.Body.Close()

		body, err = io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		a.logger.Debug("Received DPO response",
			zap.String("operation", operation),
			zap.Int("status_code", httpResp.StatusCode),
			zap.Duration("elapsed", time.Since(startTime)),
			zap.Int("body_length", len(body)),
		)

		if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
			return fmt.Errorf("unexpected HTTP status %d", httpResp.StatusCode)
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests):
			a.logger.Warn("Circuit breaker is open, rejecting DPO request",
				zap.String("operation", operation),
				zap.String("circuit_state", a.circuitBreaker.State().String()),
			)
		case classifyCall(ctx, err) == outcomeAbandoned:
			a.logger.Info("DPO request abandoned by caller",
				zap.String("operation", operation),
				zap.Duration("elapsed", time.Since(startTime)),
			)
		default:
			a.logger.Error("DPO request failed",
				zap.String("operation", operation),
				zap.Duration("elapsed", time.Since(startTime)),
				zap.Error(err),
			)
		}
		a.observe(operation, "transport_error", startTime)
		return nil, domain.TransportError(operation, err)
	}

	doc, err := decodeResponse(body)
	if err != nil {
		a.logger.Error("Failed to parse DPO response",
			zap.String("operation", operation),
			zap.Error(err),
			zap.String("body", truncate(string(body), 512)),
		)
		a.observe(operation, "protocol_error", startTime)
		return nil, domain.ProtocolError(operation, "unparseable response: "+err.Error())
	}
	if doc.Result == "" {
		a.observe(operation, "protocol_error", startTime)
		return nil, domain.ProtocolError(operation, "response missing Result")
	}

	return doc, nil
}

func (a *TokenAdapter) buildCreateTokenDocument(req *ports.CreateTokenRequest, amount string) *createTokenDocument {
	return &createTokenDocument{
		CompanyToken: a.config.CompanyToken,
		Request:      requestCreateToken,
		Transaction: transactionBlock{
			PaymentAmount:     amount,
			PaymentCurrency:   strings.ToUpper(req.Currency),
			CompanyRef:        req.CompanyRef,
			RedirectURL:       req.RedirectURL,
			BackURL:           req.BackURL,
			CompanyRefUnique:  0,
			PTL:               a.config.PTL,
			CustomerFirstName: req.CustomerFirst,
			CustomerLastName:  req.CustomerLast,
			CustomerEmail:     req.CustomerEmail,
		},
		Services: []serviceBlock{{
			ServiceType:        a.config.ServiceType,
			ServiceDescription: a.config.ServiceDescription,
			ServiceDate:        timeutil.FormatDate(a.now()),
		}},
	}
}

func (a *TokenAdapter) observe(operation, outcome string, startTime time.Time) {
	if a.observer != nil {
		a.observer.ObserveGatewayCall(operation, outcome, time.Since(startTime))
	}
}

func validateCreateTokenRequest(req *ports.CreateTokenRequest) error {
	var missing []string
	if req.Currency == "" {
		missing = append(missing, "currency")
	}
	if req.CompanyRef == "" {
		missing = append(missing, "company reference")
	}
	if req.RedirectURL == "" {
		missing = append(missing, "redirect URL")
	}
	if req.BackURL == "" {
		missing = append(missing, "back URL")
	}
	if len(missing) > 0 {
		return domain.NewDomainError(domain.ErrorCodeValidationFailed,
			"missing required fields: "+strings.Join(missing, ", "))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
