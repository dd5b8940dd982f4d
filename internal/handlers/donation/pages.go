package donation

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/kevin07696/donation-service/internal/domain"
	donationsvc "github.com/kevin07696/donation-service/internal/services/donation"
	"go.uber.org/zap"
)

const cancelledNotice = "Your payment was cancelled. You have not been charged."

// ShowForm renders the donation form
// GET / and GET /donation[?cancelled=1]
func (h *Handler) ShowForm(w http.ResponseWriter, r *http.Request) {
	page := h.newFormPage()
	page.FormID = uuid.NewString()
	if r.URL.Query().Get("cancelled") == "1" {
		page.Notice = cancelledNotice
	}
	h.render(w, formTemplate, http.StatusOK, page)
}

// Donate starts a checkout and redirects to the hosted payment page
// POST /donate
func (h *Handler) Donate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderFormError(w, r, domain.NewDomainError(domain.ErrorCodeValidationFailed, "Could not read the form. Please try again."))
		return
	}

	release, ok := h.acquire(r, trimmed(r, FormIDField))
	if !ok {
		h.renderFormError(w, r, domain.ErrCheckoutInFlight)
		return
	}
	defer release()

	amount := trimmed(r, "custom_amount")
	if amount == "" {
		amount = trimmed(r, "amount")
	}

	checkout, err := h.service.StartDonation(r.Context(), donationsvc.DonationInput{
		Amount: amount,
		Name:   trimmed(r, "name"),
		Email:  trimmed(r, "email"),
	})
	if err != nil {
		h.renderFormError(w, r, err)
		return
	}

	h.setReferenceCookie(w, checkout.Reference)
	http.Redirect(w, r, checkout.PaymentURL, http.StatusSeeOther)
}

// PaymentComplete verifies the donor's token after the hosted page redirects back
// GET /payment-complete?TransID=...&CompanyRef=...
func (h *Handler) PaymentComplete(w http.ResponseWriter, r *http.Request) {
	reference := ""
	if c, err := r.Cookie(ReferenceCookie); err == nil {
		reference = c.Value
	}
	if reference == "" {
		reference = r.URL.Query().Get("CompanyRef")
	}
	h.clearReferenceCookie(w)

	verification, err := h.service.CompleteDonation(r.Context(), reference)
	if err != nil {
		h.render(w, resultTemplate, statusFor(err), resultPage{
			Title:   "Payment not completed",
			Message: domain.UserMessage(err),
		})
		return
	}

	page := resultPage{
		Title:   "Payment not completed",
		Paid:    verification.Paid(),
		Message: verification.Explanation,
	}
	if page.Paid {
		page.Title = "Thank you"
		page.Details = displayDetails(verification.Details)
		if page.Message == "" {
			page.Message = "Your donation was received."
		}
	} else if page.Message == "" {
		page.Message = "The payment could not be confirmed."
	}

	h.render(w, resultTemplate, http.StatusOK, page)
}

// Stylesheet serves the page CSS
// GET /static/donate.css
func (h *Handler) Stylesheet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write([]byte(stylesheet))
}

func (h *Handler) newFormPage() formPage {
	return formPage{
		Title:    "Donate",
		Currency: h.config.Currency,
		Presets:  h.config.Presets,
	}
}

// renderFormError re-renders the form with the submitted values and exactly
// one message
func (h *Handler) renderFormError(w http.ResponseWriter, r *http.Request, err error) {
	page := h.newFormPage()
	page.Error = domain.UserMessage(err)
	page.FormID = trimmed(r, FormIDField)
	if page.FormID == "" {
		page.FormID = uuid.NewString()
	}
	page.Name = trimmed(r, "name")
	page.Email = trimmed(r, "email")
	page.CustomAmount = trimmed(r, "custom_amount")
	page.Amount = trimmed(r, "amount")

	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		h.logger.Error("Donation request failed", zap.Error(err))
	}

	h.render(w, formTemplate, status, page)
}

// displayDetails picks the donor-facing verification fields
func displayDetails(details map[string]string) map[string]string {
	labels := map[string]string{
		"transactionAmount":   "Amount",
		"transactionCurrency": "Currency",
		"transactionApproval": "Approval code",
		"customerName":        "Name",
	}
	out := make(map[string]string)
	for key, label := range labels {
		if v := details[key]; v != "" {
			out[label] = v
		}
	}
	return out
}
