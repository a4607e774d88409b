package waf

import (
	"context"
	"net/http"
)

// UpstreamResponse is the relayed result of forwarding a request upstream.
type UpstreamResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Forwarder relays an allowed IncomingRequest to its resolved upstream and
// returns the upstream's response. Implementations resolve the upstream
// address from the request itself (§4.5: a configured header names the
// destination, there is no routing table).
type Forwarder interface {
	Forward(ctx context.Context, req IncomingRequest) (*UpstreamResponse, error)
}
