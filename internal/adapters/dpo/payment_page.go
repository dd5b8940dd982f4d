package dpo

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/kevin07696/donation-service/internal/domain"
)

// PaymentURL builds the hosted payment page URL for a transaction token
// Format: <PaymentPageURL>?ID=<token>[&timeout=<seconds>]
func (a *TokenAdapter) PaymentURL(token string) (string, error) {
	return BuildPaymentURL(a.config.PaymentPageURL, token, a.config.PageTimeout)
}

// BuildPaymentURL is PaymentURL without an adapter, for callers that only
// hold a token (the operator CLI)
func BuildPaymentURL(pageURL, token string, pageTimeout int) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", domain.ErrTokenMissing
	}

	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid payment page URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid payment page URL: %q is not absolute", pageURL)
	}

	q := u.Query()
	q.Set("ID", token)
	if pageTimeout > 0 {
		q.Set("timeout", strconv.Itoa(pageTimeout))
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
