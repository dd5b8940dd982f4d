package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	donationTokenRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donation_token_requests_total",
		Help: "Donation checkouts started, by outcome",
	}, []string{
		"outcome", // success, gateway_declined, gateway_transport, validation_amount_invalid, ...
	})

	donationVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donation_verifications_total",
		Help: "Donation verifications, by resulting state or error code",
	}, []string{
		"state", // verified, verification_failed, token_missing, gateway_transport, ...
	})

	donationCheckoutDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "donation_checkout_step_duration_seconds",
		Help:    "Time spent in each checkout step including gateway latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"step"})

	gatewayCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dpo_gateway_calls_total",
		Help: "API3G calls by operation and result category",
	}, []string{"operation", "outcome"})

	gatewayCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dpo_gateway_call_duration_seconds",
		Help:    "API3G call latency by operation",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"operation"})

	gatewayCircuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dpo_gateway_circuit_state",
		Help: "1 for the current circuit breaker state, 0 otherwise",
	}, []string{"state"})
)

var circuitStates = []string{"closed", "open", "half-open"}

// DonationMetrics records donation and gateway metrics. It satisfies both the
// donation service metrics sink and the DPO adapter observer.
type DonationMetrics struct{}

// NewDonationMetrics returns the recorder and marks the circuit closed
func NewDonationMetrics() *DonationMetrics {
	m := &DonationMetrics{}
	m.ObserveCircuitState("closed")
	return m
}

// RecordTokenRequest counts one StartDonation outcome
func (m *DonationMetrics) RecordTokenRequest(outcome string, elapsed time.Duration) {
	donationTokenRequestsTotal.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		donationCheckoutDuration.WithLabelValues("start").Observe(elapsed.Seconds())
	}
}

// RecordVerification counts one verification outcome
func (m *DonationMetrics) RecordVerification(state string, elapsed time.Duration) {
	donationVerificationsTotal.WithLabelValues(state).Inc()
	if elapsed > 0 {
		donationCheckoutDuration.WithLabelValues("verify").Observe(elapsed.Seconds())
	}
}

// ObserveGatewayCall records one API3G exchange
func (m *DonationMetrics) ObserveGatewayCall(operation, outcome string, elapsed time.Duration) {
	gatewayCallsTotal.WithLabelValues(operation, outcome).Inc()
	gatewayCallDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveCircuitState sets the circuit gauge
func (m *DonationMetrics) ObserveCircuitState(state string) {
	for _, s := range circuitStates {
		v := 0.0
		if s == state {
			v = 1
		}
		gatewayCircuitState.WithLabelValues(s).Set(v)
	}
}
