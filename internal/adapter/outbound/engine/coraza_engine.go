// Package engine adapts the coraza rule engine to the waf.Engine port.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	coreruleset "github.com/corazawaf/coraza-coreruleset/v4"
	"github.com/corazawaf/coraza/v3"
	"github.com/corazawaf/coraza/v3/types"
	"github.com/jcchavezs/mergefs"
	"github.com/jcchavezs/mergefs/io"

	"github.com/wl4g-collab/botwaf-go/internal/domain/waf"
)

// Engine implements waf.Engine on top of github.com/corazawaf/coraza/v3.
// It never masks or interprets log text itself; that is the pipeline's job
// (§4.4 step 6), applied uniformly to whatever engine is wired in.
type Engine struct {
	logger *slog.Logger
}

// New returns a coraza-backed waf.Engine.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// ruleSet wraps a compiled coraza.WAF; it is the RuleSet.Handle() value and
// is safe to share across concurrently running transactions.
type ruleSet struct {
	waf coraza.WAF
}

func (r *ruleSet) Handle() any { return r.waf }

// NewRuleSet compiles records into coraza directives and builds a fresh
// coraza.WAF. Each RuleRecord.Body is expected to already be a well-formed
// SecRule/SecAction directive (or block of directives); Kind/Severity/Name
// are carried for display purposes only -- coraza parses directives, not
// the wrapping metadata.
func (e *Engine) NewRuleSet(records []waf.RuleRecord) (waf.RuleSet, error) {
	var sb strings.Builder
	sb.WriteString("SecRuleEngine On\n")
	sb.WriteString("SecRequestBodyAccess On\n")
	sb.WriteString("SecResponseBodyAccess Off\n")
	for _, rec := range records {
		sb.WriteString(rec.Body)
		sb.WriteString("\n")
	}

	cfg := coraza.NewWAFConfig().
		WithDirectives(sb.String()).
		WithErrorCallback(e.logMatchedRule).
		WithRootFS(mergefs.Merge(coreruleset.FS, io.OSFS))

	w, err := coraza.NewWAF(cfg)
	if err != nil {
		return nil, waf.Wrap(waf.ErrEngine, fmt.Errorf("compile ruleset (%d records): %w", len(records), err))
	}
	return &ruleSet{waf: w}, nil
}

func (e *Engine) logMatchedRule(mr types.MatchedRule) {
	lvl := slog.LevelWarn
	switch mr.Rule().Severity() {
	case types.RuleSeverityEmergency, types.RuleSeverityAlert, types.RuleSeverityCritical, types.RuleSeverityError:
		lvl = slog.LevelError
	case types.RuleSeverityWarning:
		lvl = slog.LevelWarn
	case types.RuleSeverityNotice, types.RuleSeverityInfo, types.RuleSeverityDebug:
		lvl = slog.LevelInfo
	}
	e.logger.Log(context.Background(), lvl, "rule matched", "rule_id", mr.Rule().ID(), "msg", mr.Message())
}

// NewTransaction opens a coraza transaction against rs's compiled WAF.
func (e *Engine) NewTransaction(rs waf.RuleSet) (waf.Transaction, error) {
	cw, ok := rs.Handle().(coraza.WAF)
	if !ok {
		return nil, waf.Wrap(waf.ErrEngine, fmt.Errorf("ruleset handle is %T, want coraza.WAF", rs.Handle()))
	}
	return &transaction{tx: cw.NewTransaction()}, nil
}

// transaction adapts coraza's two-step, no-error header/body API onto the
// single uniformly-erroring waf.Transaction port: any *types.Interruption
// raised at any phase is cached and surfaced once, from Intervention.
type transaction struct {
	tx           types.Transaction
	interruption *types.Interruption
}

func (t *transaction) ProcessURI(path, method, httpVersion string) error {
	t.tx.ProcessURI(path, method, httpVersion)
	return nil
}

func (t *transaction) AddRequestHeader(name, value string) error {
	t.tx.AddRequestHeader(name, value)
	return nil
}

func (t *transaction) ProcessRequestHeaders() error {
	if it := t.tx.ProcessRequestHeaders(); it != nil {
		t.interruption = it
	}
	return nil
}

func (t *transaction) AppendRequestBody(body []byte) error {
	if t.tx.IsRuleEngineOff() {
		return nil
	}
	if it, _, err := t.tx.WriteRequestBody(body); err != nil {
		return waf.Wrap(waf.ErrEngine, err)
	} else if it != nil {
		t.interruption = it
		return nil
	}
	it, err := t.tx.ProcessRequestBody()
	if err != nil {
		return waf.Wrap(waf.ErrEngine, err)
	}
	if it != nil {
		t.interruption = it
	}
	return nil
}

func (t *transaction) Intervention() (*waf.Intervention, error) {
	it := t.interruption
	if it == nil {
		it = t.tx.Interruption()
	}
	if it == nil {
		return nil, nil
	}

	return &waf.Intervention{StatusCode: it.Status, LogText: t.formatLog(it)}, nil
}

// formatLog renders a `[id "<n>"] <message> action=<action>` line carrying
// the real rule id, matching the bracket shape the fixed extraction regex
// (§3 Intervention, §4.4 step 6) expects. Masking, when configured, is
// applied by the caller against the extracted id -- this adapter always
// emits the real id so the round-trip is lossless until the pipeline
// decides whether to withhold it.
func (t *transaction) formatLog(it *types.Interruption) string {
	detail := ""
	for _, mr := range t.tx.MatchedRules() {
		if mr.Rule().ID() == it.RuleID {
			detail = mr.Message()
			break
		}
	}
	if detail == "" {
		return fmt.Sprintf("[id %q] action=%s status=%d data=%q", idString(it.RuleID), it.Action, it.Status, it.Data)
	}
	return fmt.Sprintf("[id %q] %s action=%s", idString(it.RuleID), detail, it.Action)
}

func idString(id int) string { return fmt.Sprintf("%d", id) }

func (t *transaction) Close() error {
	t.tx.ProcessLogging()
	return t.tx.Close()
}
