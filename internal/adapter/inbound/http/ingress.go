package http

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/wl4g-collab/botwaf-go/internal/domain/waf"
)

// IngressAdapter snapshots an inbound *http.Request into an immutable
// waf.IncomingRequest, enforcing the configured body size ceiling (§4.1,
// §7 ErrBodyTooLarge).
type IngressAdapter struct {
	MaxBodyBytes int64
}

// NewIngressAdapter builds an IngressAdapter with the given body size limit.
// maxBodyBytes <= 0 means unlimited.
func NewIngressAdapter(maxBodyBytes int64) *IngressAdapter {
	return &IngressAdapter{MaxBodyBytes: maxBodyBytes}
}

// Read drains r's body (bounded by MaxBodyBytes) and snapshots the request.
func (a *IngressAdapter) Read(r *http.Request) (waf.IncomingRequest, error) {
	var body []byte
	if r.Body != nil {
		reader := io.Reader(r.Body)
		if a.MaxBodyBytes > 0 {
			reader = io.LimitReader(r.Body, a.MaxBodyBytes+1)
		}
		b, err := io.ReadAll(reader)
		if err != nil {
			return waf.IncomingRequest{}, waf.Wrap(waf.ErrUpstream, fmt.Errorf("read request body: %w", err))
		}
		if a.MaxBodyBytes > 0 && int64(len(b)) > a.MaxBodyBytes {
			return waf.IncomingRequest{}, waf.ErrBodyTooLarge
		}
		body = b
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	host, port := r.Host, ""
	if h, p, err := net.SplitHostPort(r.Host); err == nil {
		host, port = h, p
	}

	return waf.IncomingRequest{
		Method:     r.Method,
		Scheme:     scheme,
		Host:       host,
		Port:       port,
		Path:       r.URL.Path,
		Query:      r.URL.RawQuery,
		Headers:    r.Header.Clone(),
		Body:       body,
		ClientIP:   extractRealIP(r),
		ReceivedAt: time.Now(),
	}, nil
}
