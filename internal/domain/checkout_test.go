package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutState_HappyPath(t *testing.T) {
	state := CheckoutStateIdle
	for _, next := range []CheckoutState{
		CheckoutStateRequesting,
		CheckoutStateRedirecting,
		CheckoutStateVerifying,
		CheckoutStateVerified,
	} {
		var err error
		state, err = state.Transition(next)
		require.NoError(t, err)
	}
	assert.Equal(t, CheckoutStateVerified, state)
	assert.True(t, state.IsTerminal())
}

func TestCheckoutState_CanTransition(t *testing.T) {
	tests := []struct {
		name string
		from CheckoutState
		to   CheckoutState
		want bool
	}{
		{name: "idle_to_requesting", from: CheckoutStateIdle, to: CheckoutStateRequesting, want: true},
		{name: "requesting_to_declined", from: CheckoutStateRequesting, to: CheckoutStateDeclined, want: true},
		{name: "requesting_to_transport_failed", from: CheckoutStateRequesting, to: CheckoutStateTransportFailed, want: true},
		{name: "verifying_to_failed", from: CheckoutStateVerifying, to: CheckoutStateVerificationFailed, want: true},
		{name: "idle_skips_to_redirecting", from: CheckoutStateIdle, to: CheckoutStateRedirecting, want: false},
		{name: "declined_retry", from: CheckoutStateDeclined, to: CheckoutStateRequesting, want: false},
		{name: "transport_failed_retry", from: CheckoutStateTransportFailed, to: CheckoutStateRequesting, want: false},
		{name: "verified_reverify", from: CheckoutStateVerified, to: CheckoutStateVerifying, want: false},
		{name: "failed_verification_retry", from: CheckoutStateVerificationFailed, to: CheckoutStateVerifying, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestCheckoutState_TransitionRejectsInvalid(t *testing.T) {
	state, err := CheckoutStateDeclined.Transition(CheckoutStateRequesting)
	require.Error(t, err)
	assert.Equal(t, CheckoutStateDeclined, state)
}

func TestFailureState(t *testing.T) {
	assert.Equal(t, CheckoutStateDeclined, FailureState(GatewayDeclined("900", "Declined")))
	assert.Equal(t, CheckoutStateTransportFailed, FailureState(TransportError("createToken", errors.New("eof"))))
	assert.Equal(t, CheckoutStateTransportFailed, FailureState(ProtocolError("createToken", "bad xml")))
}
