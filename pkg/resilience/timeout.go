package resilience

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// TimeoutConfig defines timeout values for the request timeout hierarchy
//
// Timeout Hierarchy (from outermost to innermost):
//
//	HTTP Handler (gateway + 2 store queries + headroom)
//	  ↓
//	DPO gateway call (DPO_TIMEOUT, default 30s)
//	  ↓
//	Token store query (2s)
//
// A donation request makes at most one gateway call and two store calls,
// so each layer must finish before its parent gives up.
type TimeoutConfig struct {
	HTTPHandler time.Duration // Overall request budget
	Gateway     time.Duration // One createToken / verifyToken exchange
	StoreQuery  time.Duration // One token store Put / Take
	Headroom    time.Duration // Left for rendering and writing the response
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return NewTimeoutConfig(30 * time.Second)
}

// TestTimeoutConfig returns shorter timeouts for testing
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler: 4 * time.Second,
		Gateway:     2 * time.Second,
		StoreQuery:  500 * time.Millisecond,
		Headroom:    time.Second,
	}
}

// NewTimeoutConfig derives the handler budget from the gateway timeout
func NewTimeoutConfig(gateway time.Duration) *TimeoutConfig {
	tc := &TimeoutConfig{
		Gateway:    gateway,
		StoreQuery: 2 * time.Second,
		Headroom:   5 * time.Second,
	}
	tc.HTTPHandler = tc.Gateway + 2*tc.StoreQuery + tc.Headroom
	return tc
}

// Validate checks that every layer fits inside its parent
func (tc *TimeoutConfig) Validate() error {
	if tc.Gateway <= 0 || tc.StoreQuery <= 0 {
		return fmt.Errorf("gateway and store timeouts must be positive (gateway=%s, store=%s)", tc.Gateway, tc.StoreQuery)
	}
	if tc.StoreQuery >= tc.Gateway {
		return fmt.Errorf("store query timeout %s must be shorter than gateway timeout %s", tc.StoreQuery, tc.Gateway)
	}
	if need := tc.Gateway + 2*tc.StoreQuery; tc.HTTPHandler <= need {
		return fmt.Errorf("handler timeout %s must exceed gateway plus store budget %s", tc.HTTPHandler, need)
	}
	return nil
}

// WriteTimeout is the http.Server write deadline: the handler budget plus
// time to flush an error page after the handler context expires
func (tc *TimeoutConfig) WriteTimeout() time.Duration {
	return tc.HTTPHandler + tc.Headroom
}

// HandlerContext creates a context with timeout for HTTP handlers
func (tc *TimeoutConfig) HandlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.HTTPHandler)
}

// Middleware bounds every request by the handler timeout
func (tc *TimeoutConfig) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := tc.HandlerContext(r.Context())
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
