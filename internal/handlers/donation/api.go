package donation

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kevin07696/donation-service/internal/domain"
	donationsvc "github.com/kevin07696/donation-service/internal/services/donation"
	"github.com/kevin07696/donation-service/pkg/encoding"
	"go.uber.org/zap"
)

const maxAPIBodyBytes = 16 << 10

// amountField accepts either "25.00" or 25 in JSON
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = amountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = amountField(n.String())
	return nil
}

type createDonationRequest struct {
	Amount   amountField `json:"amount"`
	Currency string      `json:"currency,omitempty"`
	Name     string      `json:"name,omitempty"`
	Email    string      `json:"email,omitempty"`
}

type createDonationResponse struct {
	Reference  string    `json:"reference"`
	Token      string    `json:"token"`
	PaymentURL string    `json:"paymentUrl"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type verificationResponse struct {
	Reference   string            `json:"reference,omitempty"`
	State       string            `json:"state"`
	Result      string            `json:"result"`
	Explanation string            `json:"explanation"`
	Details     map[string]string `json:"details,omitempty"`
}

type errorResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	ResultCode string `json:"resultCode,omitempty"`
	State      string `json:"state,omitempty"`
}

// CreateDonationAPI starts a checkout for a backend or SPA caller
// POST /api/v1/donations
func (h *Handler) CreateDonationAPI(w http.ResponseWriter, r *http.Request) {
	var req createDonationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAPIBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, domain.NewDomainError(domain.ErrorCodeValidationFailed, "Request body must be a JSON object with an amount."), "")
		return
	}

	release, ok := h.acquire(r, r.Header.Get(FormIDHeader))
	if !ok {
		h.writeError(w, domain.ErrCheckoutInFlight, "")
		return
	}
	defer release()

	checkout, err := h.service.StartDonation(r.Context(), donationsvc.DonationInput{
		Amount:   string(req.Amount),
		Currency: req.Currency,
		Name:     req.Name,
		Email:    req.Email,
	})
	if err != nil {
		state := ""
		if checkout != nil {
			state = string(checkout.State)
		}
		h.writeError(w, err, state)
		return
	}

	h.writeJSON(w, http.StatusCreated, createDonationResponse{
		Reference:  checkout.Reference,
		Token:      checkout.Token,
		PaymentURL: checkout.PaymentURL,
		Amount:     checkout.Amount,
		Currency:   checkout.Currency,
		ExpiresAt:  checkout.ExpiresAt.UTC(),
	})
}

// VerifyDonationAPI verifies the stored token for a reference; single use
// POST /api/v1/donations/{reference}/verify
func (h *Handler) VerifyDonationAPI(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.CompleteDonation(r.Context(), r.PathValue("reference"))
	h.writeVerification(w, v, err)
}

// VerifyTokenAPI verifies an explicit gateway token this service issued; single use
// POST /api/v1/tokens/{token}/verify
func (h *Handler) VerifyTokenAPI(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.VerifyToken(r.Context(), r.PathValue("token"))
	h.writeVerification(w, v, err)
}

func (h *Handler) writeVerification(w http.ResponseWriter, v *donationsvc.Verification, err error) {
	if err != nil {
		state := ""
		if v != nil {
			state = string(v.State)
		}
		h.writeError(w, err, state)
		return
	}

	h.writeJSON(w, http.StatusOK, verificationResponse{
		Reference:   v.Reference,
		State:       string(v.State),
		Result:      v.Result,
		Explanation: v.Explanation,
		Details:     v.Details,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error, state string) {
	code := domain.GetErrorCode(err)
	if code == "" {
		code = domain.ErrorCodeInternalError
	}
	h.writeJSON(w, statusFor(err), errorResponse{
		Code:       string(code),
		Message:    domain.UserMessage(err),
		ResultCode: domain.ResultCode(err),
		State:      state,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	payload, err := encoding.EncodeJSON(body)
	if err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
		http.Error(w, `{"code":"INTERNAL_ERROR"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
