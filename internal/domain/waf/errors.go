package waf

import "errors"

// Kind enumerates the error taxonomy the middleware boundary dispatches on.
// These are kinds, not concrete types -- callers compare with errors.Is
// against the sentinel values below, and wrap them with context via %w.
type Kind int

const (
	// KindBodyTooLarge: request body exceeded forward.max_body_bytes. Response: 413.
	KindBodyTooLarge Kind = iota
	// KindMissingUpstream: upstream-destination header absent. Response: 502, warning-level, no stack.
	KindMissingUpstream
	// KindUpstreamError: network/timeout/protocol failure talking to upstream. Response: 500.
	KindUpstreamError
	// KindEngineError: rule engine rejected input or panicked. Response: 500, fail-closed.
	KindEngineError
	// KindFilterBackendError: IP filter cache unreachable. Treated as "not blocked" (fail-open).
	KindFilterBackendError
	// KindControlPlaneError: failure inside an updater/verifier tick. Logged, tick ends.
	KindControlPlaneError
	// KindConfigInvalid: malformed config, out-of-range status code, bad cron. Fatal at startup.
	KindConfigInvalid
)

var (
	// ErrBodyTooLarge is returned by the ingress adapter when the request body
	// exceeds the configured cap.
	ErrBodyTooLarge = &Error{Kind: KindBodyTooLarge, msg: "request body too large"}
	// ErrMissingUpstream is returned by the forwarder when the upstream
	// destination header is absent.
	ErrMissingUpstream = &Error{Kind: KindMissingUpstream, msg: "missing upstream destination header"}
	// ErrUpstream wraps a network/timeout/protocol failure talking to upstream.
	ErrUpstream = &Error{Kind: KindUpstreamError, msg: "gateway forwarded error"}
	// ErrEngine wraps a rule engine failure; the request is never allowed
	// through when this is returned (fail-closed).
	ErrEngine = &Error{Kind: KindEngineError, msg: "rule engine error"}
	// ErrFilterBackend wraps an IP filter cache failure; callers must treat
	// this as "not blocked" (fail-open), never propagate it as a denial.
	ErrFilterBackend = &Error{Kind: KindFilterBackendError, msg: "filter backend unreachable"}
	// ErrControlPlane wraps any failure inside an updater/verifier tick.
	ErrControlPlane = &Error{Kind: KindControlPlaneError, msg: "control plane tick failed"}
	// ErrConfigInvalid wraps a fatal startup configuration error.
	ErrConfigInvalid = &Error{Kind: KindConfigInvalid, msg: "invalid configuration"}
)

// Error is a kinded error: callers match on Kind via errors.Is against the
// sentinel values, while %w-wrapping preserves the underlying cause.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Is makes errors.Is(err, ErrUpstream) match any *Error sharing the same Kind,
// including ones produced by Wrap with a different underlying cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Wrap returns a new *Error of the given sentinel's Kind, wrapping cause.
func Wrap(sentinel *Error, cause error) error {
	return &Error{Kind: sentinel.Kind, msg: sentinel.msg, err: cause}
}

// KindOf extracts the Kind from err if it (or something in its chain) is a
// *Error produced by this package; ok is false otherwise.
func KindOf(err error) (kind Kind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
