package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	celselect "github.com/wl4g-collab/botwaf-go/internal/adapter/outbound/cel"
	"github.com/wl4g-collab/botwaf-go/internal/domain/fingerprint"
	"github.com/wl4g-collab/botwaf-go/internal/domain/registry"
	"github.com/wl4g-collab/botwaf-go/internal/domain/waf"
)

// VerifierKindSimpleExecute is the only verifier kind this build implements,
// matching the original's SimpleExecuteBasedVerifier
// (src/verifier/src/verifier_simple_execution.rs).
const VerifierKindSimpleExecute = "SIMPLE_EXECUTE"

// Verifier drains candidate rules proposed by an updater, replays them
// against a curated set of known-malicious/known-benign request
// fingerprints, and promotes only candidates that block every malicious
// sample and pass every benign one (§4.9).
type Verifier struct {
	name string
	cron string

	engine      waf.Engine
	holder      *registry.RuleSetHolder
	fingerprints fingerprint.Store
	selector    *celselect.FingerprintSelector
	candidates  <-chan []waf.RuleRecord

	logger *slog.Logger

	mu      sync.Mutex // single-flight guard + guards `records`
	records []waf.RuleRecord

	cronJob *cron.Cron
}

// NewVerifier builds a SIMPLE_EXECUTE verifier. initialRecords are the
// records the currently-published RuleSet in holder was built from; the
// verifier needs them to rebuild a "current + candidate" probe ruleset.
func NewVerifier(
	name, cronExpr string,
	engine waf.Engine,
	holder *registry.RuleSetHolder,
	fingerprints fingerprint.Store,
	candidates <-chan []waf.RuleRecord,
	initialRecords []waf.RuleRecord,
	logger *slog.Logger,
) (*Verifier, error) {
	selector, err := celselect.NewFingerprintSelector()
	if err != nil {
		return nil, fmt.Errorf("service: build fingerprint selector: %w", err)
	}
	return &Verifier{
		name:         name,
		cron:         cronExpr,
		engine:       engine,
		holder:       holder,
		fingerprints: fingerprints,
		selector:     selector,
		candidates:   candidates,
		records:      append([]waf.RuleRecord{}, initialRecords...),
		logger:       logger.With("verifier", name),
	}, nil
}

// Start resolves the cron schedule and begins draining candidates on tick.
func (v *Verifier) Start(ctx context.Context) error {
	cronExpr := resolveCron(v.cron, v.logger)
	v.logger.Info("starting verifier", "cron", cronExpr)

	v.cronJob = cron.New(cron.WithSeconds())
	_, err := v.cronJob.AddFunc(cronExpr, func() { v.tick(ctx) })
	if err != nil {
		return fmt.Errorf("service: register verifier cron job: %w", err)
	}
	v.cronJob.Start()

	go func() {
		<-ctx.Done()
		v.Stop()
	}()
	return nil
}

// Stop stops the scheduler, waiting for any in-flight tick to finish.
func (v *Verifier) Stop() {
	if v.cronJob == nil {
		return
	}
	stopCtx := v.cronJob.Stop()
	<-stopCtx.Done()
}

// tick drains every batch of candidates currently queued and verifies each
// one in turn. A mutex held for its duration serializes overlapping fires.
func (v *Verifier) tick(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()

	samples, err := v.fingerprints.List(ctx)
	if err != nil {
		v.logger.Error("list fingerprints", "error", err)
		return
	}

	for {
		select {
		case batch, ok := <-v.candidates:
			if !ok {
				return
			}
			for _, candidate := range batch {
				v.verifyOne(ctx, candidate, samples)
			}
		default:
			return
		}
	}
}

// verifyOne builds a probe ruleset of the currently-promoted records plus
// candidate, replays the curated samples through it, and promotes the
// candidate into the live ruleset iff it blocks every malicious sample
// selected for it and passes every benign one.
func (v *Verifier) verifyOne(ctx context.Context, candidate waf.RuleRecord, samples []fingerprint.Sample) {
	probeRecords := append(append([]waf.RuleRecord{}, v.records...), candidate)
	probeSet, err := v.engine.NewRuleSet(probeRecords)
	if err != nil {
		v.logger.Warn("discard candidate: probe ruleset failed to compile", "candidate", candidate.Name, "error", err)
		return
	}

	for _, sample := range samples {
		if !v.sampleApplies(sample, candidate) {
			continue
		}
		blocked, err := v.replay(probeSet, sample)
		if err != nil {
			v.logger.Warn("discard candidate: replay error", "candidate", candidate.Name, "sample_id", sample.ID, "error", err)
			return
		}
		if sample.Malicious && !blocked {
			v.logger.Info("discard candidate: failed to block known-malicious sample", "candidate", candidate.Name, "sample_id", sample.ID)
			return
		}
		if !sample.Malicious && blocked {
			v.logger.Info("discard candidate: blocked known-benign sample", "candidate", candidate.Name, "sample_id", sample.ID)
			return
		}
	}

	v.records = probeRecords
	v.holder.Store(probeSet)
	v.logger.Info("promoted candidate rule", "candidate", candidate.Name)
}

// sampleApplies evaluates the sample's optional CEL selector; an empty
// selector always applies.
func (v *Verifier) sampleApplies(sample fingerprint.Sample, candidate waf.RuleRecord) bool {
	if sample.Selector == "" {
		return true
	}
	prg, err := v.selector.Compile(sample.Selector)
	if err != nil {
		v.logger.Warn("invalid fingerprint selector, applying sample unconditionally", "sample_id", sample.ID, "error", err)
		return true
	}
	ok, err := v.selector.Eval(prg, sample.Method, sample.Path, sample.Query, sample.Headers)
	if err != nil {
		v.logger.Warn("fingerprint selector evaluation failed, applying sample unconditionally", "sample_id", sample.ID, "error", err)
		return true
	}
	return ok
}

// replay runs one curated sample through a fresh transaction against rs and
// reports whether the engine blocked it.
func (v *Verifier) replay(rs waf.RuleSet, sample fingerprint.Sample) (bool, error) {
	tx, err := v.engine.NewTransaction(rs)
	if err != nil {
		return false, fmt.Errorf("open transaction: %w", err)
	}
	defer tx.Close()

	uri := sample.Path
	if sample.Query != "" {
		uri += "?" + sample.Query
	}
	if err := tx.ProcessURI(uri, sample.Method, "HTTP/1.1"); err != nil {
		return false, fmt.Errorf("process uri: %w", err)
	}
	for name, value := range sample.Headers {
		if err := tx.AddRequestHeader(name, value); err != nil {
			return false, fmt.Errorf("add request header: %w", err)
		}
	}
	if err := tx.ProcessRequestHeaders(); err != nil {
		return false, fmt.Errorf("process request headers: %w", err)
	}
	if sample.Body != "" {
		if err := tx.AppendRequestBody([]byte(sample.Body)); err != nil {
			return false, fmt.Errorf("append request body: %w", err)
		}
	}

	iv, err := tx.Intervention()
	if err != nil {
		return false, fmt.Errorf("intervention: %w", err)
	}
	return iv.Blocked(), nil
}
