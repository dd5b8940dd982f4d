package middleware

import (
	"net/http"
	"strings"
)

// SecurityHeaders adds security-related HTTP headers to the donation pages
type SecurityHeaders struct {
	isDevelopment bool
	csp           string
}

// NewSecurityHeaders creates the middleware. formTargets are extra origins the
// donation form may end up at; browsers apply form-action to the redirect
// after POST /donate, so the hosted payment page origin must be listed.
func NewSecurityHeaders(isDevelopment bool, formTargets ...string) *SecurityHeaders {
	formAction := append([]string{"'self'"}, formTargets...)

	csp := "default-src 'none'; " +
		"style-src 'self'; " +
		"img-src 'self'; " +
		"frame-ancestors 'none'; " +
		"base-uri 'none'; " +
		"form-action " + strings.Join(formAction, " ")

	return &SecurityHeaders{
		isDevelopment: isDevelopment,
		csp:           csp,
	}
}

// Middleware wraps an HTTP handler with security headers
func (sh *SecurityHeaders) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")

		// HSTS breaks plain-http local development
		if !sh.isDevelopment {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		h.Set("Content-Security-Policy", sh.csp)

		// The RedirectURL query carries the transaction token; keep it off third parties
		h.Set("Referrer-Policy", "no-referrer")

		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=(), usb=()")
		h.Set("X-Permitted-Cross-Domain-Policies", "none")

		next.ServeHTTP(w, r)
	})
}

// OriginOf returns scheme://host of rawURL, or "" if it has neither
func OriginOf(rawURL string) string {
	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok || scheme == "" {
		return ""
	}
	host, _, _ := strings.Cut(rest, "/")
	host, _, _ = strings.Cut(host, "?")
	if host == "" {
		return ""
	}
	return scheme + "://" + host
}
