package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/wl4g-collab/botwaf-go/internal/domain/accesslog"
	"github.com/wl4g-collab/botwaf-go/internal/domain/knowledge"
	"github.com/wl4g-collab/botwaf-go/internal/domain/waf"
)

// UpdaterKindSimpleLLM is the only updater kind this build implements,
// matching the original's SimpleLLMUpdater (src/updater/src/updater_simple_llm.rs).
const UpdaterKindSimpleLLM = "SIMPLE_LLM"

// candidateScoreThreshold mirrors the original's per-namespace retrieval
// thresholds used when proposing a new rule from a sampled access event:
// malicious and normal samples both retrieve at 0.5.
const candidateScoreThreshold = 0.5

// candidateTopK bounds how many similar documents are retrieved per
// namespace per sampled event.
const candidateTopK = 4

// Updater periodically samples recent access events, retrieves similar
// known-malicious/known-normal request samples from the knowledge store, and
// asks the LLM to propose candidate WAF rules, which it hands to the
// verifier's pending-candidate queue (§4.8).
type Updater struct {
	name    string
	cron    string
	pageSize int

	events    accesslog.Store
	store     knowledge.Store
	embedder  knowledge.Embedder
	generator knowledge.Generator
	candidates chan<- []waf.RuleRecord

	logger *slog.Logger

	mu     sync.Mutex // single-flight guard: serializes ticks
	cursor string

	cronJob  *cron.Cron
	cronExpr string
}

// NewUpdater builds a SIMPLE_LLM updater. candidates is the buffered channel
// the verifier reads from; pageSize (the instance's configured channel_size)
// bounds how many access events one tick pages.
func NewUpdater(
	name, cronExpr string,
	pageSize int,
	events accesslog.Store,
	store knowledge.Store,
	embedder knowledge.Embedder,
	generator knowledge.Generator,
	candidates chan<- []waf.RuleRecord,
	logger *slog.Logger,
) *Updater {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Updater{
		name:       name,
		cron:       cronExpr,
		pageSize:   pageSize,
		events:     events,
		store:      store,
		embedder:   embedder,
		generator:  generator,
		candidates: candidates,
		logger:     logger.With("updater", name),
	}
}

// Start resolves the cron schedule (falling back to defaultCron on an
// invalid expression) and begins ticking in the background. Stop cancels
// the scheduler.
func (u *Updater) Start(ctx context.Context) error {
	u.cronExpr = resolveCron(u.cron, u.logger)
	u.logger.Info("starting updater", "cron", u.cronExpr)

	u.cronJob = cron.New(cron.WithSeconds())
	_, err := u.cronJob.AddFunc(u.cronExpr, func() { u.tick(ctx) })
	if err != nil {
		return fmt.Errorf("service: register updater cron job: %w", err)
	}
	u.cronJob.Start()

	go func() {
		<-ctx.Done()
		u.Stop()
	}()
	return nil
}

// Stop drains the running tick (if any) and stops the scheduler.
func (u *Updater) Stop() {
	if u.cronJob == nil {
		return
	}
	stopCtx := u.cronJob.Stop()
	<-stopCtx.Done()
}

// tick is the scheduled job body. A mutex held for its whole duration
// ensures overlapping fires serialize rather than run concurrently.
func (u *Updater) tick(ctx context.Context) {
	u.mu.Lock()
	defer u.mu.Unlock()

	events, next, err := u.events.Page(ctx, u.cursor, u.pageSize)
	if err != nil {
		u.logger.Error("page access events", "error", err)
		return
	}
	if len(events) == 0 {
		return
	}
	u.cursor = next

	var proposed []waf.RuleRecord
	for _, ev := range events {
		candidates, err := u.proposeFor(ctx, ev)
		if err != nil {
			u.logger.Warn("propose rule for event", "request_id", ev.RequestID, "error", err)
			continue
		}
		proposed = append(proposed, candidates...)
	}

	if len(proposed) == 0 {
		return
	}

	select {
	case u.candidates <- proposed:
		u.logger.Info("proposed candidate rules", "count", len(proposed))
	default:
		u.logger.Warn("candidate queue full, dropping proposals", "count", len(proposed))
	}
}

// proposeFor embeds one access event's request line, retrieves similar
// malicious and normal samples, and asks the LLM to propose zero or more
// candidate rules.
func (u *Updater) proposeFor(ctx context.Context, ev waf.AccessEvent) ([]waf.RuleRecord, error) {
	line := ev.RequestLine()

	malicious, err := u.store.Query(ctx, knowledge.NamespaceMalicious, line, candidateTopK, candidateScoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("query malicious namespace: %w", err)
	}
	normal, err := u.store.Query(ctx, knowledge.NamespaceNormal, line, candidateTopK, candidateScoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("query normal namespace: %w", err)
	}
	if len(malicious) == 0 && len(normal) == 0 {
		return nil, nil
	}

	retrieved := append(append([]knowledge.ScoredDocument{}, malicious...), normal...)
	prompt := buildUpdaterPrompt(ev)

	reply, err := u.generator.Generate(ctx, prompt, retrieved)
	if err != nil {
		return nil, fmt.Errorf("generate rule proposal: %w", err)
	}

	return parseRuleCandidates(u.name, reply), nil
}

// buildUpdaterPrompt renders the event the generator is asked to reason
// about into a single user turn.
func buildUpdaterPrompt(ev waf.AccessEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Observed request: %s\n", ev.RequestLine())
	fmt.Fprintf(&b, "Response status: %d\n", ev.ResponseStatus)
	b.WriteString("If this request matches a malicious pattern not already covered by an existing rule, " +
		"propose a SecRule body (coraza/ModSecurity syntax) that would block it. " +
		"Respond with one SecRule directive per line, or nothing if no rule is warranted.")
	return b.String()
}

// parseRuleCandidates turns the LLM's reply into RuleRecords, one per
// non-empty "SecRule ..." line. Lines that don't look like a rule body are
// skipped rather than rejecting the whole batch.
func parseRuleCandidates(updaterName, reply string) []waf.RuleRecord {
	var out []waf.RuleRecord
	for i, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "SecRule") {
			continue
		}
		out = append(out, waf.RuleRecord{
			Name:        fmt.Sprintf("%s-candidate-%d", updaterName, i),
			Kind:        "llm_proposed",
			Severity:    "unknown",
			Description: "proposed by updater " + updaterName,
			Body:        line,
		})
	}
	return out
}
