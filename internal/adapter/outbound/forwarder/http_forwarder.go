// Package forwarder relays allowed requests to the single upstream named by
// a configured request header, adapted from httpgw.ReverseProxy.Forward.
package forwarder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wl4g-collab/botwaf-go/internal/domain/waf"
)

// hopByHopHeaders are stripped before relaying upstream (RFC 2616 §13.5.1),
// the same list the teacher's reverse proxy drops.
var hopByHopHeaders = []string{
	"Connection",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Config configures the shared HTTP client and upstream-resolution header
// (§6 services.forward).
type Config struct {
	HTTPProxy                    string
	ConnectTimeout                time.Duration
	ReadTimeout                   time.Duration
	TotalTimeout                  time.Duration
	Verbose                       bool
	UpstreamDestinationHeaderName string
}

// HTTPForwarder implements waf.Forwarder with exactly one upstream per
// request, resolved from Config.UpstreamDestinationHeaderName rather than a
// longest-prefix target table.
type HTTPForwarder struct {
	client            *http.Client
	upstreamHeader    string
}

// New builds an HTTPForwarder with a single shared *http.Client, configured
// once at boot (connect/read/total timeout, optional proxy).
func New(cfg Config) (*HTTPForwarder, error) {
	upstreamHeader := cfg.UpstreamDestinationHeaderName
	if upstreamHeader == "" {
		upstreamHeader = "X-Upstream-Destination"
	}

	transport := &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			return nil, fmt.Errorf("forwarder: parse http_proxy: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	if cfg.ConnectTimeout > 0 {
		dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
		transport.DialContext = dialer.DialContext
	}
	if cfg.ReadTimeout > 0 {
		transport.ResponseHeaderTimeout = cfg.ReadTimeout
	}

	total := cfg.TotalTimeout
	if total <= 0 {
		total = 30 * time.Second
	}

	return &HTTPForwarder{
		client: &http.Client{
			Transport: transport,
			Timeout:   total,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		upstreamHeader: upstreamHeader,
	}, nil
}

var _ waf.Forwarder = (*HTTPForwarder)(nil)

// Forward builds the upstream URL from req.Headers[upstreamHeader]+req.Path,
// copies headers (dropping hop-by-hop, Host, and the upstream header
// itself), and relays the body by reference.
func (f *HTTPForwarder) Forward(ctx context.Context, req waf.IncomingRequest) (*waf.UpstreamResponse, error) {
	base := req.Headers.Get(f.upstreamHeader)
	if base == "" {
		return nil, waf.Wrap(waf.ErrMissingUpstream, fmt.Errorf("header %q not present", f.upstreamHeader))
	}

	upstreamURL := joinUpstream(base, req.Path)
	if req.Query != "" {
		upstreamURL += "?" + req.Query
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	outReq, err := http.NewRequestWithContext(ctx, req.Method, upstreamURL, body)
	if err != nil {
		return nil, waf.Wrap(waf.ErrUpstream, fmt.Errorf("build upstream request: %w", err))
	}

	for name, values := range req.Headers {
		if strings.EqualFold(name, f.upstreamHeader) || strings.EqualFold(name, "Host") {
			continue
		}
		for _, v := range values {
			outReq.Header.Add(name, v)
		}
	}
	for _, h := range hopByHopHeaders {
		outReq.Header.Del(h)
	}

	resp, err := f.client.Do(outReq)
	if err != nil {
		return nil, waf.Wrap(waf.ErrUpstream, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, waf.Wrap(waf.ErrUpstream, fmt.Errorf("read upstream response: %w", err))
	}

	for _, h := range hopByHopHeaders {
		resp.Header.Del(h)
	}

	return &waf.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}, nil
}

// joinUpstream concatenates base and path avoiding a doubled or missing
// slash, matching the original's three-way slash-normalization branch.
func joinUpstream(base, path string) string {
	baseEndsSlash := strings.HasSuffix(base, "/")
	pathStartsSlash := strings.HasPrefix(path, "/")
	switch {
	case baseEndsSlash && pathStartsSlash:
		return base + path[1:]
	case !baseEndsSlash && !pathStartsSlash:
		return base + "/" + path
	default:
		return base + path
	}
}
