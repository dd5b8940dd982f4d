package domain

import "fmt"

// CheckoutState is the position of one donation attempt in the
// create → redirect → verify flow
type CheckoutState string

const (
	CheckoutStateIdle               CheckoutState = "idle"
	CheckoutStateRequesting         CheckoutState = "requesting"
	CheckoutStateDeclined           CheckoutState = "declined"
	CheckoutStateTransportFailed    CheckoutState = "transport_failed"
	CheckoutStateRedirecting        CheckoutState = "redirecting"
	CheckoutStateVerifying          CheckoutState = "verifying"
	CheckoutStateVerified           CheckoutState = "verified"
	CheckoutStateVerificationFailed CheckoutState = "verification_failed"
)

// There is deliberately no edge out of a failure state: the donor resubmits.
var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutStateIdle:        {CheckoutStateRequesting},
	CheckoutStateRequesting:  {CheckoutStateDeclined, CheckoutStateTransportFailed, CheckoutStateRedirecting},
	CheckoutStateRedirecting: {CheckoutStateVerifying},
	CheckoutStateVerifying:   {CheckoutStateVerified, CheckoutStateVerificationFailed},
}

// IsTerminal returns true if no further transition is possible
func (s CheckoutState) IsTerminal() bool {
	switch s {
	case CheckoutStateDeclined, CheckoutStateTransportFailed,
		CheckoutStateVerified, CheckoutStateVerificationFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is allowed
func (s CheckoutState) CanTransition(next CheckoutState) bool {
	for _, allowed := range checkoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition returns next if the move is allowed
func (s CheckoutState) Transition(next CheckoutState) (CheckoutState, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("invalid checkout transition %s -> %s", s, next)
	}
	return next, nil
}

// FailureState maps a token-request error onto the terminal state it produces
func FailureState(err error) CheckoutState {
	if IsDomainError(err, ErrorCodeGatewayDeclined) {
		return CheckoutStateDeclined
	}
	return CheckoutStateTransportFailed
}
