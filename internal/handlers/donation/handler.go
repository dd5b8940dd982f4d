// Package donation serves the donation form, the gateway return page and a
// small JSON API over the donation service.
package donation

import (
	"context"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/donation-service/internal/domain"
	donationsvc "github.com/kevin07696/donation-service/internal/services/donation"
	"github.com/kevin07696/donation-service/pkg/encoding"
	"github.com/kevin07696/donation-service/pkg/middleware"
	"go.uber.org/zap"
)

// ReferenceCookie carries the checkout reference across the hosted page round trip
const ReferenceCookie = "donation_ref"

const (
	// FormIDField is the hidden field ShowForm issues to each rendered form
	FormIDField = "form_id"
	// FormIDHeader lets API callers key the duplicate-submit guard the same way
	FormIDHeader = "Idempotency-Key"
)

// DonationService is the part of the donation service the handlers use
type DonationService interface {
	StartDonation(ctx context.Context, in donationsvc.DonationInput) (*donationsvc.Checkout, error)
	CompleteDonation(ctx context.Context, reference string) (*donationsvc.Verification, error)
	VerifyToken(ctx context.Context, token string) (*donationsvc.Verification, error)
}

// CheckoutGuard allows one checkout in flight per client key
type CheckoutGuard interface {
	Acquire(key string) bool
	Release(key string)
}

// Config controls page rendering and the reference cookie
type Config struct {
	Currency      string
	Presets       []string
	SecureCookies bool
	CookieMaxAge  time.Duration
}

// Handler serves the donation pages and API
type Handler struct {
	service DonationService
	guard   CheckoutGuard
	config  Config
	logger  *zap.Logger
}

// NewHandler creates a new donation handler
func NewHandler(service DonationService, guard CheckoutGuard, cfg Config, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		guard:   guard,
		config:  cfg,
		logger:  logger,
	}
}

// Register mounts every route on mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.ShowForm)
	mux.HandleFunc("GET /donation", h.ShowForm)
	mux.HandleFunc("POST /donate", h.Donate)
	mux.HandleFunc("GET /payment-complete", h.PaymentComplete)
	mux.HandleFunc("GET /static/donate.css", h.Stylesheet)

	mux.HandleFunc("POST /api/v1/donations", h.CreateDonationAPI)
	mux.HandleFunc("POST /api/v1/donations/{reference}/verify", h.VerifyDonationAPI)
	mux.HandleFunc("POST /api/v1/tokens/{token}/verify", h.VerifyTokenAPI)
}

// acquire claims the checkout slot for formID, or for the client IP when the
// caller sent no usable form id. The release func is a no-op when no guard is
// configured.
func (h *Handler) acquire(r *http.Request, formID string) (func(), bool) {
	if h.guard == nil {
		return func() {}, true
	}
	key := guardKey(r, formID)
	if !h.guard.Acquire(key) {
		return nil, false
	}
	return func() { h.guard.Release(key) }, true
}

// guardKey only trusts form ids shaped like the ones ShowForm issues
func guardKey(r *http.Request, formID string) string {
	if id, err := uuid.Parse(formID); err == nil {
		return "form:" + id.String()
	}
	return "ip:" + middleware.ClientIP(r)
}

func (h *Handler) setReferenceCookie(w http.ResponseWriter, reference string) {
	http.SetCookie(w, &http.Cookie{
		Name:     ReferenceCookie,
		Value:    reference,
		Path:     "/",
		MaxAge:   int(h.config.CookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearReferenceCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     ReferenceCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// render executes tmpl into a buffer first so a template error never sends a
// half-written page
func (h *Handler) render(w http.ResponseWriter, tmpl *template.Template, status int, data any) {
	buf := encoding.GetBuffer()
	defer encoding.PutBuffer(buf)

	if err := tmpl.Execute(buf, data); err != nil {
		h.logger.Error("Failed to render template",
			zap.String("template", tmpl.Name()),
			zap.Error(err),
		)
		http.Error(w, domain.UserMessage(err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// statusFor maps an error code to an HTTP status
func statusFor(err error) int {
	switch domain.GetErrorCode(err) {
	case domain.ErrorCodeValidationAmountInvalid, domain.ErrorCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case domain.ErrorCodeGatewayTransport, domain.ErrorCodeGatewayProtocol, domain.ErrorCodeGatewayDeclined:
		return http.StatusBadGateway
	case domain.ErrorCodeTokenMissing:
		return http.StatusBadRequest
	case domain.ErrorCodeCheckoutInFlight:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func trimmed(r *http.Request, field string) string {
	return strings.TrimSpace(r.PostFormValue(field))
}
