package forwarder

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wl4g-collab/botwaf-go/internal/domain/waf"
)

func TestHTTPForwarder_Forward(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/echo", r.URL.Path)
		require.Equal(t, "a=1", r.URL.RawQuery)
		require.Empty(t, r.Header.Get("X-Upstream-Destination"))
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-From-Upstream", "yes")
		w.WriteHeader(http.StatusOK)
		w.Write(append([]byte("echo:"), body...))
	}))
	defer upstream.Close()

	f, err := New(Config{})
	require.NoError(t, err)

	headers := http.Header{}
	headers.Set("X-Upstream-Destination", upstream.URL)
	headers.Set("Content-Type", "text/plain")

	req := waf.IncomingRequest{
		Method:  "POST",
		Path:    "/echo",
		Query:   "a=1",
		Headers: headers,
		Body:    []byte("hello"),
	}

	resp, err := f.Forward(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "echo:hello", string(resp.Body))
	require.Equal(t, "yes", resp.Headers.Get("X-From-Upstream"))
}

func TestHTTPForwarder_Forward_StripsHopByHopResponseHeaders(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Connection", "close")
		w.Header().Set("X-From-Upstream", "yes")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	f, err := New(Config{})
	require.NoError(t, err)

	headers := http.Header{}
	headers.Set("X-Upstream-Destination", upstream.URL)

	req := waf.IncomingRequest{Method: "GET", Path: "/", Headers: headers}
	resp, err := f.Forward(context.Background(), req)
	require.NoError(t, err)

	require.Empty(t, resp.Headers.Get("Connection"), "Connection must be stripped from the upstream response per §4.5")
	require.Equal(t, "yes", resp.Headers.Get("X-From-Upstream"))
}

func TestHTTPForwarder_MissingUpstreamHeader(t *testing.T) {
	t.Parallel()

	f, err := New(Config{})
	require.NoError(t, err)

	req := waf.IncomingRequest{Method: "GET", Path: "/", Headers: http.Header{}}
	_, err = f.Forward(context.Background(), req)
	require.Error(t, err)

	kind, ok := waf.KindOf(err)
	require.True(t, ok)
	require.Equal(t, waf.KindMissingUpstream, kind)
}

func TestJoinUpstream(t *testing.T) {
	t.Parallel()

	cases := []struct{ base, path, want string }{
		{"http://up/", "/p", "http://up/p"},
		{"http://up", "p", "http://up/p"},
		{"http://up/", "p", "http://up/p"},
		{"http://up", "/p", "http://up/p"},
	}
	for _, c := range cases {
		got := joinUpstream(c.base, c.path)
		require.Equal(t, c.want, got, "joinUpstream(%q, %q)", c.base, c.path)
	}
}
