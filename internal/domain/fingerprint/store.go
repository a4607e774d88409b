// Package fingerprint defines the curated known-malicious/known-benign
// request sample store the verifier replays candidate rules against.
package fingerprint

import "context"

// Sample is one curated request the verifier replays through a probe
// RuleSet before promoting a candidate rule.
type Sample struct {
	ID       int64
	Method   string
	Path     string
	Query    string
	Body     string
	Headers  map[string]string
	Malicious bool // true: a candidate must block this; false: must pass through
	// Selector is an optional CEL predicate (see adapter/outbound/cel) over
	// this sample's own method/path/query/headers; when it evaluates to false
	// the sample is skipped for every candidate rule. Empty means "always
	// replay".
	Selector string
}

// Store persists curated fingerprints used by the verifier tick (§4.9).
type Store interface {
	// List returns every curated sample, malicious and benign alike.
	List(ctx context.Context) ([]Sample, error)
	// Add appends a new curated sample, typically seeded by an operator or
	// promoted automatically from a confirmed-block event.
	Add(ctx context.Context, s Sample) (int64, error)
}
