package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wl4g-collab/botwaf-go/internal/domain/fingerprint"
	"github.com/wl4g-collab/botwaf-go/internal/domain/registry"
	"github.com/wl4g-collab/botwaf-go/internal/domain/waf"
)

// fakeRuleSet wraps the records it was compiled from, so the fake engine can
// decide block/pass by substring match without a real rule engine.
type fakeRuleSet struct{ records []waf.RuleRecord }

func (f *fakeRuleSet) Handle() any { return f }

// fakeEngine blocks a transaction iff any compiled record's Body substring
// appears in the path processed by ProcessURI.
type fakeEngine struct{}

func (fakeEngine) NewRuleSet(records []waf.RuleRecord) (waf.RuleSet, error) {
	return &fakeRuleSet{records: records}, nil
}

func (fakeEngine) NewTransaction(rs waf.RuleSet) (waf.Transaction, error) {
	frs, ok := rs.(*fakeRuleSet)
	if !ok {
		return nil, errors.New("fakeEngine: not a fakeRuleSet")
	}
	return &fakeTransaction{records: frs.records}, nil
}

type fakeTransaction struct {
	records []waf.RuleRecord
	uri     string
}

func (t *fakeTransaction) ProcessURI(path, method, httpVersion string) error {
	t.uri = path
	return nil
}
func (t *fakeTransaction) AddRequestHeader(name, value string) error { return nil }
func (t *fakeTransaction) ProcessRequestHeaders() error               { return nil }
func (t *fakeTransaction) AppendRequestBody(body []byte) error        { return nil }
func (t *fakeTransaction) Close() error                               { return nil }
func (t *fakeTransaction) Intervention() (*waf.Intervention, error) {
	for _, r := range t.records {
		if strings.Contains(t.uri, r.Body) {
			return &waf.Intervention{StatusCode: 403, LogText: `[id "1"] blocked action=deny`}, nil
		}
	}
	return nil, nil
}

type fakeFingerprintStore struct{ samples []fingerprint.Sample }

func (f *fakeFingerprintStore) List(ctx context.Context) ([]fingerprint.Sample, error) {
	return f.samples, nil
}
func (f *fakeFingerprintStore) Add(ctx context.Context, s fingerprint.Sample) (int64, error) {
	f.samples = append(f.samples, s)
	return int64(len(f.samples)), nil
}

func TestVerifier_PromotesCandidateThatBlocksMaliciousAndPassesBenign(t *testing.T) {
	fps := &fakeFingerprintStore{samples: []fingerprint.Sample{
		{ID: 1, Method: "GET", Path: "/admin.php", Malicious: true},
		{ID: 2, Method: "GET", Path: "/login", Malicious: false},
	}}
	candidates := make(chan []waf.RuleRecord, 1)
	candidates <- []waf.RuleRecord{{Name: "c1", Body: "/admin.php"}}

	holder := registry.NewRuleSetHolder(&fakeRuleSet{})
	v, err := NewVerifier("test-verifier", "", fakeEngine{}, holder, fps, candidates, nil, testLoggerUpdater())
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	v.tick(context.Background())

	rs := holder.Load().(*fakeRuleSet)
	if len(rs.records) != 1 || rs.records[0].Name != "c1" {
		t.Fatalf("expected promoted ruleset to contain c1, got %+v", rs.records)
	}
}

func TestVerifier_DiscardsCandidateThatBlocksBenignSample(t *testing.T) {
	fps := &fakeFingerprintStore{samples: []fingerprint.Sample{
		{ID: 1, Method: "GET", Path: "/login", Malicious: false},
	}}
	candidates := make(chan []waf.RuleRecord, 1)
	candidates <- []waf.RuleRecord{{Name: "overbroad", Body: "/login"}}

	holder := registry.NewRuleSetHolder(&fakeRuleSet{})
	v, err := NewVerifier("test-verifier", "", fakeEngine{}, holder, fps, candidates, nil, testLoggerUpdater())
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	v.tick(context.Background())

	rs := holder.Load().(*fakeRuleSet)
	if len(rs.records) != 0 {
		t.Fatalf("expected candidate to be discarded, got %+v", rs.records)
	}
}

func TestVerifier_SelectorRestrictsWhichSamplesApply(t *testing.T) {
	fps := &fakeFingerprintStore{samples: []fingerprint.Sample{
		{ID: 1, Method: "POST", Path: "/login", Malicious: false, Selector: `method == "GET"`},
	}}
	candidates := make(chan []waf.RuleRecord, 1)
	candidates <- []waf.RuleRecord{{Name: "c1", Body: "/login"}}

	holder := registry.NewRuleSetHolder(&fakeRuleSet{})
	v, err := NewVerifier("test-verifier", "", fakeEngine{}, holder, fps, candidates, nil, testLoggerUpdater())
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	v.tick(context.Background())

	rs := holder.Load().(*fakeRuleSet)
	if len(rs.records) != 1 {
		t.Fatalf("expected candidate promoted because selector excluded the POST sample, got %+v", rs.records)
	}
}

func TestResolveCron_UsedByVerifierStart(t *testing.T) {
	// Exercises Start/Stop end-to-end with a fast cron to ensure no panic
	// and a clean shutdown within a short deadline.
	fps := &fakeFingerprintStore{}
	candidates := make(chan []waf.RuleRecord, 1)
	holder := registry.NewRuleSetHolder(&fakeRuleSet{})
	v, err := NewVerifier("fast", "* * * * * *", fakeEngine{}, holder, fps, candidates, nil, testLoggerUpdater())
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1200*time.Millisecond)
	defer cancel()
	if err := v.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
}
