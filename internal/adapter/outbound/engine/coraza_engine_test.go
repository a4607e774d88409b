package engine

import (
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/wl4g-collab/botwaf-go/internal/domain/waf"
)

// fixedRuleIDPattern mirrors the one fixed regex the pipeline uses to pull a
// rule id back out of an intervention's log text (§3 Intervention).
var fixedRuleIDPattern = regexp.MustCompile(`\[id\s+"\s*(\d+)\s*"\]`)

func denyRule(id, path string) waf.RuleRecord {
	return waf.RuleRecord{
		Name: "deny-" + id,
		Kind: "SecRule",
		Body: `SecRule REQUEST_URI "@streq ` + path + `" "id:` + id + `,phase:1,deny,status:403,msg:'blocked by test rule'"`,
	}
}

func TestEngine_NoMatch_NoIntervention(t *testing.T) {
	t.Parallel()

	e := New(nil)
	rs, err := e.NewRuleSet([]waf.RuleRecord{denyRule("1000", "/blocked")})
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}

	tx, err := e.NewTransaction(rs)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	defer tx.Close()

	if err := tx.ProcessURI("/safe", "GET", "HTTP/1.1"); err != nil {
		t.Fatalf("ProcessURI: %v", err)
	}
	if err := tx.ProcessRequestHeaders(); err != nil {
		t.Fatalf("ProcessRequestHeaders: %v", err)
	}
	if err := tx.AppendRequestBody(nil); err != nil {
		t.Fatalf("AppendRequestBody: %v", err)
	}

	iv, err := tx.Intervention()
	if err != nil {
		t.Fatalf("Intervention: %v", err)
	}
	if iv != nil {
		t.Fatalf("Intervention = %+v, want nil", iv)
	}
}

func TestEngine_Match_Blocks(t *testing.T) {
	t.Parallel()

	e := New(nil)
	rs, err := e.NewRuleSet([]waf.RuleRecord{denyRule("942100", "/blocked")})
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}

	tx, err := e.NewTransaction(rs)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	defer tx.Close()

	if err := tx.ProcessURI("/blocked", "GET", "HTTP/1.1"); err != nil {
		t.Fatalf("ProcessURI: %v", err)
	}
	if err := tx.ProcessRequestHeaders(); err != nil {
		t.Fatalf("ProcessRequestHeaders: %v", err)
	}
	if err := tx.AppendRequestBody(nil); err != nil {
		t.Fatalf("AppendRequestBody: %v", err)
	}

	iv, err := tx.Intervention()
	if err != nil {
		t.Fatalf("Intervention: %v", err)
	}
	if iv == nil {
		t.Fatal("Intervention = nil, want a block")
	}
	if !iv.Blocked() {
		t.Fatalf("Blocked() = false for status %d, want true", iv.StatusCode)
	}
	if iv.StatusCode != 403 {
		t.Errorf("StatusCode = %d, want 403", iv.StatusCode)
	}

	m := fixedRuleIDPattern.FindStringSubmatch(iv.LogText)
	if m == nil {
		t.Fatalf("LogText %q does not match fixed rule id regex", iv.LogText)
	}
	if m[1] != "942100" {
		t.Errorf("extracted rule id = %q, want %q", m[1], "942100")
	}
}

func TestEngine_BadDirectives_ReturnsEngineError(t *testing.T) {
	t.Parallel()

	e := New(nil)
	_, err := e.NewRuleSet([]waf.RuleRecord{{Name: "broken", Body: "SecRule this is not valid"}})
	if err == nil {
		t.Fatal("expected compile error")
	}
	if kind, ok := waf.KindOf(err); !ok || kind != waf.KindEngineError {
		t.Fatalf("KindOf(err) = (%v, %v), want (KindEngineError, true)", kind, ok)
	}
}

func TestEngine_ViaHTTPRequest_HeadersAndURI(t *testing.T) {
	t.Parallel()

	e := New(nil)
	rs, err := e.NewRuleSet([]waf.RuleRecord{denyRule("1001", "/admin")})
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}

	req := httptest.NewRequest("GET", "/admin?x=1", nil)
	tx, err := e.NewTransaction(rs)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	defer tx.Close()

	if err := tx.ProcessURI(req.URL.Path, req.Method, "HTTP/1.1"); err != nil {
		t.Fatalf("ProcessURI: %v", err)
	}
	for name, values := range req.Header {
		for _, v := range values {
			if err := tx.AddRequestHeader(name, v); err != nil {
				t.Fatalf("AddRequestHeader: %v", err)
			}
		}
	}
	if err := tx.ProcessRequestHeaders(); err != nil {
		t.Fatalf("ProcessRequestHeaders: %v", err)
	}
	if err := tx.AppendRequestBody(nil); err != nil {
		t.Fatalf("AppendRequestBody: %v", err)
	}

	iv, err := tx.Intervention()
	if err != nil {
		t.Fatalf("Intervention: %v", err)
	}
	if iv == nil || !iv.Blocked() {
		t.Fatalf("Intervention = %+v, want a 403 block", iv)
	}
}
