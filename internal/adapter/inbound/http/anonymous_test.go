package http

import "testing"

func TestAnonymousMatcher_Match(t *testing.T) {
	m := NewAnonymousMatcher("/api", []string{"/healthz", "/healthz/**", "/static/*"})

	cases := []struct {
		path string
		want bool
	}{
		{"/api/healthz", true},
		{"/api/healthz/live", true},
		{"/api/static/app.css", true},
		{"/api/static/nested/app.css", false},
		{"/api/login", false},
		{"/healthz", false}, // wrong context path prefix
	}
	for _, c := range cases {
		if got := m.Match(c.path); got != c.want {
			t.Errorf("Match(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestAnonymousMatcher_NoContextPath(t *testing.T) {
	m := NewAnonymousMatcher("", []string{"/public/**"})
	if !m.Match("/public/logo.png") {
		t.Fatal("expected /public/logo.png to match")
	}
	if m.Match("/private") {
		t.Fatal("expected /private not to match")
	}
}
