// Package cel provides CEL-based expression evaluation, repurposed here as
// the verifier's fingerprint selector: a small predicate language over a
// replayed request's method/path/header shape, deciding which curated
// samples a candidate rule must be checked against.
package cel

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// FingerprintSelector compiles and evaluates a CEL predicate over a curated
// fingerprint's request fields (§4.9 "probe rule references a CEL predicate
// over the replayed request fingerprint").
type FingerprintSelector struct {
	env *cel.Env
}

// NewFingerprintSelector builds the CEL environment exposing method, path,
// query, and a headers map (string to string) over the fingerprint under test.
func NewFingerprintSelector() (*FingerprintSelector, error) {
	env, err := cel.NewEnv(
		cel.Variable("method", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("query", cel.StringType),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("cel: build fingerprint environment: %w", err)
	}
	return &FingerprintSelector{env: env}, nil
}

// Compile parses and type-checks expr, returning a reusable program.
func (s *FingerprintSelector) Compile(expr string) (cel.Program, error) {
	ast, issues := s.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel: compile fingerprint selector: %w", issues.Err())
	}
	prg, err := s.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("cel: build fingerprint selector program: %w", err)
	}
	return prg, nil
}

// Eval runs prg against one fingerprint's fields, returning whether it
// selects the sample for replay.
func (s *FingerprintSelector) Eval(prg cel.Program, method, path, query string, headers map[string]string) (bool, error) {
	out, _, err := prg.Eval(map[string]any{
		"method":  method,
		"path":    path,
		"query":   query,
		"headers": headers,
	})
	if err != nil {
		return false, fmt.Errorf("cel: evaluate fingerprint selector: %w", err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("cel: fingerprint selector did not return a boolean, got %T", out.Value())
	}
	return b, nil
}
