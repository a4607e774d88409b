package http

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wl4g-collab/botwaf-go/internal/domain/waf"
)

func TestIngressAdapter_Read(t *testing.T) {
	a := NewIngressAdapter(0)
	req := httptest.NewRequest("POST", "http://example.com:8080/path?q=1", strings.NewReader("body"))
	req.Header.Set("X-Forwarded-For", "203.0.113.9")

	ir, err := a.Read(req)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if ir.Method != "POST" || ir.Path != "/path" || ir.Query != "q=1" {
		t.Fatalf("unexpected snapshot: %+v", ir)
	}
	if ir.Host != "example.com" || ir.Port != "8080" {
		t.Fatalf("unexpected host/port: %q/%q", ir.Host, ir.Port)
	}
	if string(ir.Body) != "body" {
		t.Fatalf("Body = %q, want body", ir.Body)
	}
	if ir.ClientIP != "203.0.113.9" {
		t.Fatalf("ClientIP = %q, want 203.0.113.9", ir.ClientIP)
	}
}

func TestIngressAdapter_BodyTooLarge(t *testing.T) {
	a := NewIngressAdapter(2)
	req := httptest.NewRequest("POST", "http://example.com/", strings.NewReader("toolong"))

	_, err := a.Read(req)
	if err == nil {
		t.Fatal("expected error for oversized body")
	}
	if kind, ok := waf.KindOf(err); !ok || kind != waf.KindBodyTooLarge {
		t.Fatalf("KindOf(err) = %v, %v, want KindBodyTooLarge", kind, ok)
	}
}
