package ports

import "net/http"

// HTTPClient is the subset of *http.Client the gateway adapter needs.
// Tests substitute an httptest server client or a failing stub.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
