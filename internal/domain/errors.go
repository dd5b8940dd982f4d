package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationAmountInvalid ErrorCode = "VALIDATION_AMOUNT_INVALID"
	ErrorCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"

	// Payment Gateway Errors (GATEWAY_*)
	ErrorCodeGatewayTransport ErrorCode = "GATEWAY_TRANSPORT"
	ErrorCodeGatewayProtocol  ErrorCode = "GATEWAY_PROTOCOL"
	ErrorCodeGatewayDeclined  ErrorCode = "GATEWAY_DECLINED"

	// Checkout Errors (TOKEN_*, CHECKOUT_*)
	ErrorCodeTokenMissing     ErrorCode = "TOKEN_MISSING"
	ErrorCodeCheckoutInFlight ErrorCode = "CHECKOUT_IN_FLIGHT"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError carrying the same code, so sentinel values
// like ErrTokenMissing work with errors.Is regardless of message or cause.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// InvalidAmount reports a donation amount that is not a positive number.
func InvalidAmount(raw string, cause error) *DomainError {
	msg := fmt.Sprintf("invalid amount %q", raw)
	if cause == nil {
		return NewDomainError(ErrorCodeValidationAmountInvalid, msg).WithDetail("amount", raw)
	}
	return WrapError(ErrorCodeValidationAmountInvalid, msg, cause).WithDetail("amount", raw)
}

// TransportError reports a network or HTTP-level failure talking to the gateway.
func TransportError(operation string, err error) *DomainError {
	return WrapError(ErrorCodeGatewayTransport, operation+" request failed", err).
		WithDetail("operation", operation)
}

// ProtocolError reports a gateway response that could not be understood.
func ProtocolError(operation, reason string) *DomainError {
	return NewDomainError(ErrorCodeGatewayProtocol, operation+": "+reason).
		WithDetail("operation", operation)
}

// GatewayDeclined reports a well-formed failure result. Message is the
// gateway explanation, unchanged, so it can be shown to the donor as-is.
func GatewayDeclined(resultCode, explanation string) *DomainError {
	return NewDomainError(ErrorCodeGatewayDeclined, explanation).
		WithDetail("result_code", resultCode)
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsGatewayError checks if an error is a payment gateway error
func IsGatewayError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeGatewayTransport ||
		code == ErrorCodeGatewayProtocol ||
		code == ErrorCodeGatewayDeclined
}

// ResultCode returns the gateway result code attached to a declined error.
func ResultCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		if code, ok := domainErr.Details["result_code"].(string); ok {
			return code
		}
	}
	return ""
}

// UserMessage converts any error into the single notification shown to a donor.
// Declines surface the gateway explanation verbatim.
func UserMessage(err error) string {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return "Something went wrong. Please try again."
	}

	switch domainErr.Code {
	case ErrorCodeGatewayDeclined:
		return domainErr.Message
	case ErrorCodeValidationAmountInvalid:
		return "Please enter a valid donation amount greater than zero."
	case ErrorCodeValidationFailed:
		return domainErr.Message
	case ErrorCodeGatewayTransport:
		return "We could not reach the payment provider. Please try again."
	case ErrorCodeGatewayProtocol:
		return "The payment provider returned an unexpected response. Please try again."
	case ErrorCodeTokenMissing:
		return "No pending payment was found for this session."
	case ErrorCodeCheckoutInFlight:
		return "Your donation is already being processed."
	default:
		return "Something went wrong. Please try again."
	}
}

// Structured error instances
var (
	ErrValidationAmountInvalid = NewDomainError(ErrorCodeValidationAmountInvalid, "invalid amount")
	ErrValidationFailed        = NewDomainError(ErrorCodeValidationFailed, "validation failed")

	ErrGatewayTransport = NewDomainError(ErrorCodeGatewayTransport, "payment gateway unreachable")
	ErrGatewayProtocol  = NewDomainError(ErrorCodeGatewayProtocol, "invalid payment gateway response")
	ErrGatewayDeclined  = NewDomainError(ErrorCodeGatewayDeclined, "declined by payment gateway")

	ErrTokenMissing     = NewDomainError(ErrorCodeTokenMissing, "no transaction token to verify")
	ErrCheckoutInFlight = NewDomainError(ErrorCodeCheckoutInFlight, "a donation is already in progress")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal server error")
)
