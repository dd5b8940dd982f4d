package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		dev      bool
		wantHSTS bool
	}{
		{name: "production", dev: false, wantHSTS: true},
		{name: "development", dev: true, wantHSTS: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sh := NewSecurityHeaders(tt.dev, "https://secure.3gdirectpay.com")
			rec := httptest.NewRecorder()
			sh.Middleware(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
			assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
			assert.Contains(t, rec.Header().Get("Content-Security-Policy"),
				"form-action 'self' https://secure.3gdirectpay.com")
			assert.Equal(t, tt.wantHSTS, rec.Header().Get("Strict-Transport-Security") != "")
		})
	}
}

func TestOriginOf(t *testing.T) {
	assert.Equal(t, "https://secure.3gdirectpay.com", OriginOf("https://secure.3gdirectpay.com/dpopayment.php"))
	assert.Equal(t, "http://127.0.0.1:5555", OriginOf("http://127.0.0.1:5555?x=1"))
	assert.Equal(t, "", OriginOf("not a url"))
	assert.Equal(t, "", OriginOf("https://"))
}
