package dpo

import (
	"encoding/xml"
	"strings"

	"github.com/kevin07696/donation-service/pkg/encoding"
)

// API3G request names
const (
	requestCreateToken = "createToken"
	requestVerifyToken = "verifyToken"
)

// ResultSuccess is the API3G result code for a successful call
const ResultSuccess = "000"

// createTokenDocument is the createToken request body
type createTokenDocument struct {
	XMLName      xml.Name         `xml:"API3G"`
	CompanyToken string           `xml:"CompanyToken"`
	Request      string           `xml:"Request"`
	Transaction  transactionBlock `xml:"Transaction"`
	Services     []serviceBlock   `xml:"Services>Service"`
}

type transactionBlock struct {
	PaymentAmount     string `xml:"PaymentAmount"`
	PaymentCurrency   string `xml:"PaymentCurrency"`
	CompanyRef        string `xml:"CompanyRef"`
	RedirectURL       string `xml:"RedirectURL"`
	BackURL           string `xml:"BackURL"`
	CompanyRefUnique  int    `xml:"CompanyRefUnique"`
	PTL               int    `xml:"PTL"`
	CustomerFirstName string `xml:"customerFirstName,omitempty"`
	CustomerLastName  string `xml:"customerLastName,omitempty"`
	CustomerEmail     string `xml:"customerEmail,omitempty"`
}

type serviceBlock struct {
	ServiceType        int    `xml:"ServiceType"`
	ServiceDescription string `xml:"ServiceDescription"`
	ServiceDate        string `xml:"ServiceDate"` // YYYY-MM-DD
}

// verifyTokenDocument is the verifyToken request body
type verifyTokenDocument struct {
	XMLName          xml.Name `xml:"API3G"`
	CompanyToken     string   `xml:"CompanyToken"`
	Request          string   `xml:"Request"`
	TransactionToken string   `xml:"TransactionToken"`
}

// responseDocument covers both createToken and verifyToken responses.
// Unknown elements are ignored.
type responseDocument struct {
	XMLName                   xml.Name `xml:"API3G"`
	Result                    string   `xml:"Result"`
	ResultExplanation         string   `xml:"ResultExplanation"`
	TransToken                string   `xml:"TransToken"`
	TransRef                  string   `xml:"TransRef"`
	CustomerName              string   `xml:"CustomerName"`
	TransactionApproval       string   `xml:"TransactionApproval"`
	TransactionAmount         string   `xml:"TransactionAmount"`
	TransactionCurrency       string   `xml:"TransactionCurrency"`
	TransactionNetAmount      string   `xml:"TransactionNetAmount"`
	FraudAlert                string   `xml:"FraudAlert"`
	FraudExplnation           string   `xml:"FraudExplnation"` // sic, as sent by the gateway
	TransactionSettlementDate string   `xml:"TransactionSettlementDate"`
}

// encodeDocument renders a request document with the XML declaration
func encodeDocument(doc interface{}) ([]byte, error) {
	return encoding.EncodeXML(doc)
}

// decodeResponse parses an API3G response and trims text fields
func decodeResponse(body []byte) (*responseDocument, error) {
	var doc responseDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, err
	}

	for _, field := range []*string{
		&doc.Result, &doc.ResultExplanation, &doc.TransToken, &doc.TransRef,
		&doc.CustomerName, &doc.TransactionApproval, &doc.TransactionAmount,
		&doc.TransactionCurrency, &doc.TransactionNetAmount, &doc.FraudAlert,
		&doc.FraudExplnation, &doc.TransactionSettlementDate,
	} {
		*field = strings.TrimSpace(*field)
	}

	return &doc, nil
}
