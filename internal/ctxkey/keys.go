// Package ctxkey defines shared context key types used across multiple packages.
// This package should have no dependencies on other internal packages to avoid import cycles.
package ctxkey

// LoggerKey is the context key type for the enriched logger.
// Used by HTTP middleware to store and retrieve the logger with a request_id field.
type LoggerKey struct{}

// RequestIDKey is a context key type for a per-request id. The inbound HTTP
// RequestIDMiddleware stores its id under its own key type, not this one.
type RequestIDKey struct{}

// PrincipalKey is the context key type for the optional principal annotation
// installed by the (out-of-scope) identity collaborator. No package in this
// module reads it, and inspection is never gated on it.
type PrincipalKey struct{}
