package ports

import (
	"context"
)

// CreateTokenRequest contains the fields sent in an API3G createToken call
type CreateTokenRequest struct {
	Amount        string // Donor-entered amount; normalised to two decimals before sending
	Currency      string // ISO currency code (e.g., "USD")
	CompanyRef    string // Merchant reference, unique per payment attempt
	RedirectURL   string // Where the hosted page sends the donor after paying
	BackURL       string // Where the hosted page sends the donor on cancel
	CustomerFirst string // Optional
	CustomerLast  string // Optional
	CustomerEmail string // Optional
}

// CreateTokenResponse is a successful createToken result
type CreateTokenResponse struct {
	Result            string // Always "000" on a returned response
	ResultExplanation string
	TransToken        string // Token for the hosted payment page
	TransRef          string // Gateway transaction reference
	Amount            string // Amount actually sent, two decimals
}

// VerifyTokenResponse is the parsed verifyToken document.
// A non-"000" Result is a valid outcome, not an error.
type VerifyTokenResponse struct {
	Result                    string
	ResultExplanation         string
	CustomerName              string
	TransactionApproval       string
	TransactionAmount         string
	TransactionCurrency       string
	TransactionNetAmount      string
	FraudAlert                string
	FraudExplanation          string
	TransactionSettlementDate string
}

// IsPaid reports whether the gateway confirmed payment
func (r *VerifyTokenResponse) IsPaid() bool {
	return r.Result == "000"
}

// Details returns the non-empty passthrough fields for display
func (r *VerifyTokenResponse) Details() map[string]string {
	details := make(map[string]string)
	add := func(key, value string) {
		if value != "" {
			details[key] = value
		}
	}
	add("customerName", r.CustomerName)
	add("transactionApproval", r.TransactionApproval)
	add("transactionAmount", r.TransactionAmount)
	add("transactionCurrency", r.TransactionCurrency)
	add("transactionNetAmount", r.TransactionNetAmount)
	add("fraudAlert", r.FraudAlert)
	add("fraudExplanation", r.FraudExplanation)
	add("transactionSettlementDate", r.TransactionSettlementDate)
	return details
}

// TokenGateway defines the port for the hosted-payment-page token flow.
// Card data never passes through this port: the donor pays on the gateway's page.
type TokenGateway interface {
	// CreateToken requests a transaction token for a donation
	// Returns error if:
	//   - Amount is not a positive number (InvalidAmount, no network call)
	//   - The request cannot be delivered or HTTP status is not 2xx (TransportError)
	//   - The response is not a parseable API3G document (ProtocolError)
	//   - The gateway returns a non-"000" result (GatewayDeclined, explanation verbatim)
	CreateToken(ctx context.Context, req *CreateTokenRequest) (*CreateTokenResponse, error)

	// VerifyToken asks the gateway for the status of a token
	// Returns MissingToken without a network call when token is empty
	VerifyToken(ctx context.Context, token string) (*VerifyTokenResponse, error)

	// PaymentURL builds the hosted payment page URL for a token
	PaymentURL(token string) (string, error)
}
