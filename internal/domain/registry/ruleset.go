package registry

import (
	"sync/atomic"

	"github.com/wl4g-collab/botwaf-go/internal/domain/waf"
)

// RuleSetHolder publishes the current RuleSet via lock-free atomic
// pointer-swap, the same pattern as httpgw.ReverseProxy.targets: readers load
// a consistent snapshot once per request, writers (the verifier's promotion
// step) swap the pointer without ever holding a lock across I/O.
type RuleSetHolder struct {
	current atomic.Pointer[waf.RuleSet]
}

// NewRuleSetHolder creates a holder seeded with the given initial ruleset.
func NewRuleSetHolder(initial waf.RuleSet) *RuleSetHolder {
	h := &RuleSetHolder{}
	h.Store(initial)
	return h
}

// Load returns the current ruleset snapshot. Safe for concurrent use;
// concurrent Store calls never produce a partially-installed value.
func (h *RuleSetHolder) Load() waf.RuleSet {
	p := h.current.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Store atomically publishes a new ruleset, visible to the next Load call
// from any goroutine.
func (h *RuleSetHolder) Store(rs waf.RuleSet) {
	h.current.Store(&rs)
}
