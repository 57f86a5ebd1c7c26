package gateway

import (
	"context"
	"net/http"
)

// HTTPClient is a minimal HTTP client interface for making requests
// This allows for easy mocking and testing of the gateway client
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Exchanger is the narrow contract the transaction state machine depends on:
// one synchronous request/response exchange with the gateway, already
// classified into an Outcome or a typed error.
type Exchanger interface {
	Exchange(ctx context.Context, step Step, method, path string, body any) (*Outcome, error)
}
