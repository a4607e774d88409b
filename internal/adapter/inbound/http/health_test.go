package http

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/wl4g-collab/botwaf-go/internal/domain/registry"
	"github.com/wl4g-collab/botwaf-go/internal/domain/waf"
)

type fakeRuleSetHealth struct{}

func (fakeRuleSetHealth) Handle() any { return nil }

type fakeBlockListHealth struct{ err error }

func (f fakeBlockListHealth) IsBlocked(ctx context.Context, ip string) (bool, error) {
	return false, f.err
}
func (fakeBlockListHealth) Block(ctx context.Context, ip string) (bool, error)   { return false, nil }
func (fakeBlockListHealth) Unblock(ctx context.Context, ip string) (bool, error) { return false, nil }

func TestHealthChecker_HealthyWhenRuleSetLoadedAndBlocklistReachable(t *testing.T) {
	holder := registry.NewRuleSetHolder(waf.RuleSet(fakeRuleSetHealth{}))
	h := NewHealthChecker(holder, fakeBlockListHealth{}, "test")

	resp := h.Check(context.Background())
	if resp.Status != "healthy" {
		t.Fatalf("Status = %q, want healthy; checks=%v", resp.Status, resp.Checks)
	}
	if resp.Checks["ruleset"] != "ok" {
		t.Fatalf("ruleset check = %q, want ok", resp.Checks["ruleset"])
	}
}

func TestHealthChecker_UnhealthyWhenNoRuleSetLoaded(t *testing.T) {
	holder := registry.NewRuleSetHolder(nil)
	h := NewHealthChecker(holder, nil, "test")

	resp := h.Check(context.Background())
	if resp.Status != "unhealthy" {
		t.Fatalf("Status = %q, want unhealthy", resp.Status)
	}
}

func TestHealthChecker_DegradedBlocklistDoesNotFailOverallHealth(t *testing.T) {
	holder := registry.NewRuleSetHolder(waf.RuleSet(fakeRuleSetHealth{}))
	h := NewHealthChecker(holder, fakeBlockListHealth{err: errors.New("redis unreachable")}, "test")

	resp := h.Check(context.Background())
	if resp.Status != "healthy" {
		t.Fatalf("Status = %q, want healthy despite blocklist outage", resp.Status)
	}
	if resp.Checks["blocklist"] == "ok" {
		t.Fatal("expected blocklist check to report degraded")
	}
}

func TestHealthChecker_HandlerWritesStatusCode(t *testing.T) {
	holder := registry.NewRuleSetHolder(nil)
	h := NewHealthChecker(holder, nil, "test")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	h.Handler().ServeHTTP(rr, req)

	if rr.Code != 503 {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}
