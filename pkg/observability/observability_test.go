package observability

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealthChecker_Check(t *testing.T) {
	tests := []struct {
		name    string
		db      Pinger
		circuit string
		want    string
		code    int
	}{
		{name: "memory_store_closed_circuit", circuit: "closed", want: StatusHealthy, code: http.StatusOK},
		{name: "db_ok", db: fakePinger{}, circuit: "closed", want: StatusHealthy, code: http.StatusOK},
		{name: "open_circuit", db: fakePinger{}, circuit: "open", want: StatusDegraded, code: http.StatusOK},
		{name: "db_down", db: fakePinger{err: errors.New("refused")}, circuit: "closed", want: StatusUnhealthy, code: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			circuit := tt.circuit
			h := NewHealthChecker(tt.db, func() string { return circuit })

			rec := httptest.NewRecorder()
			h.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.code, rec.Code)

			var status HealthStatus
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
			assert.Equal(t, tt.want, status.Status)
			assert.Equal(t, circuit, status.Checks["gateway_circuit"])
		})
	}
}

func TestHealthChecker_Ready(t *testing.T) {
	h := NewHealthChecker(nil, nil)

	rec := httptest.NewRecorder()
	h.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h.SetReady(false)
	rec = httptest.NewRecorder()
	h.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsHandler_ServesPrometheus(t *testing.T) {
	m := NewDonationMetrics()
	m.RecordTokenRequest("success", 120*time.Millisecond)

	srv := httptest.NewServer(NewMetricsHandler(NewHealthChecker(nil, nil)))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(strings.Builder)
	_, _ = io.Copy(buf, resp.Body)
	assert.Contains(t, buf.String(), "donation_token_requests_total")
}

func TestDonationMetrics(t *testing.T) {
	m := NewDonationMetrics()

	before := testutil.ToFloat64(donationVerificationsTotal.WithLabelValues("verified"))
	m.RecordVerification("verified", time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(donationVerificationsTotal.WithLabelValues("verified")))

	calls := testutil.ToFloat64(gatewayCallsTotal.WithLabelValues("createToken", "declined"))
	m.ObserveGatewayCall("createToken", "declined", 300*time.Millisecond)
	assert.Equal(t, calls+1, testutil.ToFloat64(gatewayCallsTotal.WithLabelValues("createToken", "declined")))

	m.ObserveCircuitState("open")
	assert.Equal(t, 1.0, testutil.ToFloat64(gatewayCircuitState.WithLabelValues("open")))
	assert.Equal(t, 0.0, testutil.ToFloat64(gatewayCircuitState.WithLabelValues("closed")))
}

func TestHTTPMetrics_UsesRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/donations/{reference}/verify", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := HTTPMetrics(mux)

	counter := httpRequestsTotal.WithLabelValues(http.MethodPost, "POST /api/v1/donations/{reference}/verify", "200")
	before := testutil.ToFloat64(counter)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/donations/DON-1/verify", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
