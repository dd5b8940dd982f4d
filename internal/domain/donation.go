package domain

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the only currency the donation page has ever offered
const DefaultCurrency = "USD"

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Donation is the request built when a donor submits the form.
// It lives only for the duration of the token request.
type Donation struct {
	Amount     decimal.Decimal
	Currency   string
	Reference  string
	ReturnURL  string
	BackURL    string
	DonorName  string
	DonorEmail string
}

// FormattedAmount returns the amount with exactly two fraction digits
func (d *Donation) FormattedAmount() string {
	return d.Amount.StringFixed(2)
}

// FirstName returns the first word of the donor name
func (d *Donation) FirstName() string {
	first, _ := splitName(d.DonorName)
	return first
}

// LastName returns everything after the first word of the donor name
func (d *Donation) LastName() string {
	_, last := splitName(d.DonorName)
	return last
}

// NewDonation validates the submitted fields and builds a Donation.
// Amount errors are InvalidAmount; everything else is a validation failure.
func NewDonation(rawAmount, currency, reference, returnURL, backURL, name, email string) (*Donation, error) {
	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return nil, err
	}

	if currency == "" {
		currency = DefaultCurrency
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if !currencyPattern.MatchString(currency) {
		return nil, NewDomainError(ErrorCodeValidationFailed, "currency must be a 3-letter ISO code").
			WithDetail("currency", currency)
	}
	if reference == "" {
		return nil, NewDomainError(ErrorCodeValidationFailed, "reference is required")
	}
	if returnURL == "" || backURL == "" {
		return nil, NewDomainError(ErrorCodeValidationFailed, "return and back URLs are required")
	}

	email = strings.TrimSpace(email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, NewDomainError(ErrorCodeValidationFailed, "please enter a valid email address").
				WithDetail("email", email)
		}
	}

	return &Donation{
		Amount:     amount,
		Currency:   currency,
		Reference:  reference,
		ReturnURL:  returnURL,
		BackURL:    backURL,
		DonorName:  strings.TrimSpace(name),
		DonorEmail: email,
	}, nil
}

// ParseAmount parses a donor-entered amount. A leading "$", thousands
// separators and surrounding whitespace are accepted. The result is rounded
// half-up to cents and must be strictly positive.
func ParseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return decimal.Zero, InvalidAmount(raw, nil)
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, InvalidAmount(raw, err)
	}

	amount = amount.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, InvalidAmount(raw, nil)
	}

	return amount, nil
}

// FormatAmount validates raw and returns it with exactly two fraction digits
func FormatAmount(raw string) (string, error) {
	amount, err := ParseAmount(raw)
	if err != nil {
		return "", err
	}
	return amount.StringFixed(2), nil
}

// NewReference generates the merchant reference for one payment attempt
func NewReference(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// PendingToken is a gateway transaction token waiting for the donor to come
// back from the hosted payment page. It is consumed exactly once.
type PendingToken struct {
	Reference string
	Token     string
	Amount    string
	Currency  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the token outlived its payment time limit
func (p *PendingToken) IsExpired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

func splitName(name string) (string, string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}
