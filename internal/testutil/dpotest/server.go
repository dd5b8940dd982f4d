// Package dpotest provides an in-process fake of the DPO API3G endpoint
// for adapter, service, handler and CLI tests.
package dpotest

import (
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Request is a decoded API3G request as received by the fake
type Request struct {
	Name               string
	CompanyToken       string
	Amount             string
	Currency           string
	CompanyRef         string
	RedirectURL        string
	BackURL            string
	CompanyRefUnique   string
	PTL                string
	CustomerFirstName  string
	CustomerLastName   string
	CustomerEmail      string
	ServiceType        string
	ServiceDescription string
	ServiceDate        string
	TransactionToken   string
	ContentType        string
	Raw                []byte
}

// Response is what the fake writes back
type Response struct {
	Status int
	Body   string
}

type requestDocument struct {
	XMLName          xml.Name `xml:"API3G"`
	CompanyToken     string   `xml:"CompanyToken"`
	Request          string   `xml:"Request"`
	TransactionToken string   `xml:"TransactionToken"`
	Transaction      struct {
		PaymentAmount     string `xml:"PaymentAmount"`
		PaymentCurrency   string `xml:"PaymentCurrency"`
		CompanyRef        string `xml:"CompanyRef"`
		RedirectURL       string `xml:"RedirectURL"`
		BackURL           string `xml:"BackURL"`
		CompanyRefUnique  string `xml:"CompanyRefUnique"`
		PTL               string `xml:"PTL"`
		CustomerFirstName string `xml:"customerFirstName"`
		CustomerLastName  string `xml:"customerLastName"`
		CustomerEmail     string `xml:"customerEmail"`
	} `xml:"Transaction"`
	Services []struct {
		ServiceType        string `xml:"ServiceType"`
		ServiceDescription string `xml:"ServiceDescription"`
		ServiceDate        string `xml:"ServiceDate"`
	} `xml:"Services>Service"`
}

// Server is a fake API3G gateway backed by httptest
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	requests []Request
	tokens   int
	onCreate func(Request) Response
	onVerify func(Request) Response
	fallback *Response
}

// NewServer starts a fake gateway that accepts every createToken with a
// fresh token and reports every verifyToken as paid. It is closed on test cleanup.
func NewServer(t testing.TB) *Server {
	s := &Server{}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// APIURL is the fake API3G endpoint
func (s *Server) APIURL() string {
	return s.Server.URL + "/API/v6/"
}

// PaymentPageURL is a fake hosted page on the same server
func (s *Server) PaymentPageURL() string {
	return s.Server.URL + "/dpopayment.php"
}

// OnCreateToken overrides the createToken responder
func (s *Server) OnCreateToken(fn func(Request) Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCreate = fn
}

// OnVerifyToken overrides the verifyToken responder
func (s *Server) OnVerifyToken(fn func(Request) Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onVerify = fn
}

// RespondCreateToken makes every createToken return the given result
func (s *Server) RespondCreateToken(result, explanation, token string) {
	s.OnCreateToken(func(Request) Response {
		return Response{Status: http.StatusOK, Body: CreateTokenXML(result, explanation, token, "")}
	})
}

// RespondVerifyToken makes every verifyToken return the given result
func (s *Server) RespondVerifyToken(result, explanation string, fields map[string]string) {
	s.OnVerifyToken(func(Request) Response {
		return Response{Status: http.StatusOK, Body: VerifyTokenXML(result, explanation, fields)}
	})
}

// RespondAll forces a fixed status and body for every request
func (s *Server) RespondAll(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = &Response{Status: status, Body: body}
}

// Requests returns a copy of every request received so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestCount returns how many requests reached the fake
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// LastRequest returns the most recent request, or the zero value
func (s *Server) LastRequest() Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}
	}
	return s.requests[len(s.requests)-1]
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw, _ := io.ReadAll(r.Body)
	req := Request{Raw: raw, ContentType: r.Header.Get("Content-Type")}

	var doc requestDocument
	if err := xml.Unmarshal(raw, &doc); err == nil {
		req.Name = doc.Request
		req.CompanyToken = doc.CompanyToken
		req.TransactionToken = doc.TransactionToken
		req.Amount = doc.Transaction.PaymentAmount
		req.Currency = doc.Transaction.PaymentCurrency
		req.CompanyRef = doc.Transaction.CompanyRef
		req.RedirectURL = doc.Transaction.RedirectURL
		req.BackURL = doc.Transaction.BackURL
		req.CompanyRefUnique = doc.Transaction.CompanyRefUnique
		req.PTL = doc.Transaction.PTL
		req.CustomerFirstName = doc.Transaction.CustomerFirstName
		req.CustomerLastName = doc.Transaction.CustomerLastName
		req.CustomerEmail = doc.Transaction.CustomerEmail
		if len(doc.Services) > 0 {
			req.ServiceType = doc.Services[0].ServiceType
			req.ServiceDescription = doc.Services[0].ServiceDescription
			req.ServiceDate = doc.Services[0].ServiceDate
		}
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.tokens++
	n := s.tokens
	fallback, onCreate, onVerify := s.fallback, s.onCreate, s.onVerify
	s.mu.Unlock()

	var resp Response
	switch {
	case fallback != nil:
		resp = *fallback
	case req.Name == "createToken" && onCreate != nil:
		resp = onCreate(req)
	case req.Name == "createToken":
		resp = Response{Body: CreateTokenXML("000", "Transaction created", fmt.Sprintf("TOKEN-%d", n), fmt.Sprintf("R%d", n))}
	case req.Name == "verifyToken" && onVerify != nil:
		resp = onVerify(req)
	case req.Name == "verifyToken":
		resp = Response{Body: VerifyTokenXML("000", "Transaction paid", nil)}
	default:
		resp = Response{Body: CreateTokenXML("803", "No request or error in Request type name", "", "")}
	}

	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(resp.Status)
	_, _ = io.WriteString(w, resp.Body)
}

// CreateTokenXML renders a createToken response document
func CreateTokenXML(result, explanation, token, transRef string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<API3G>
  <Result>%s</Result>
  <ResultExplanation>%s</ResultExplanation>
  <TransToken>%s</TransToken>
  <TransRef>%s</TransRef>
</API3G>`, esc(result), esc(explanation), esc(token), esc(transRef))
}

// VerifyTokenXML renders a verifyToken response document with extra elements
func VerifyTokenXML(result, explanation string, fields map[string]string) string {
	extra := ""
	for name, value := range fields {
		extra += fmt.Sprintf("  <%s>%s</%s>\n", name, esc(value), name)
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<API3G>
  <Result>%s</Result>
  <ResultExplanation>%s</ResultExplanation>
%s</API3G>`, esc(result), esc(explanation), extra)
}

func esc(s string) string {
	return html.EscapeString(s)
}
