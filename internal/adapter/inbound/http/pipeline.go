package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/wl4g-collab/botwaf-go/internal/domain/accesslog"
	"github.com/wl4g-collab/botwaf-go/internal/domain/blocklist"
	"github.com/wl4g-collab/botwaf-go/internal/domain/registry"
	"github.com/wl4g-collab/botwaf-go/internal/domain/waf"
)

// ruleIDPattern extracts the triggering rule id from an intervention's log
// text: `[id "<n>"]`, tolerant of surrounding whitespace.
var ruleIDPattern = regexp.MustCompile(`\[id\s+"\s*(\d+)\s*"\]`)

// maskedRuleID is substituted for the extracted rule id when
// botwaf.allow_addition_modsec_info is false (§4.4).
const maskedRuleID = "Masked"

// defaultBlockedHeaderName mirrors config.SetDefaults' fallback.
const defaultBlockedHeaderName = "X-BotWaf-Blocked"

// Pipeline assembles the full inbound request path: IngressAdapter ->
// AnonymousMatcher -> IPFilter -> Engine transaction -> Forwarder, matching
// the teacher's hand-rolled handler composition rather than a chained
// net/http middleware library.
type Pipeline struct {
	Ingress   *IngressAdapter
	Anonymous *AnonymousMatcher
	BlockList blocklist.BlockList
	Engine    waf.Engine
	RuleSets  *registry.RuleSetHolder
	Forwarder waf.Forwarder
	Events    accesslog.Store // optional; nil disables access logging
	Metrics   *Metrics        // optional; nil disables metric recording

	BlockedHeaderName         string
	BlockedStatusCodeOverride *int
	AllowAdditionModsecInfo   bool
}

var _ http.Handler = (*Pipeline)(nil)

func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	started := time.Now()
	logger := LoggerFromContext(ctx)

	req, err := p.Ingress.Read(r)
	if err != nil {
		p.writeErrorAndRecord(ctx, w, req, started, err, logger)
		return
	}

	if p.Anonymous != nil && p.Anonymous.Match(req.Path) {
		p.forward(ctx, w, req, started, logger)
		return
	}

	if p.checkIPFilter(ctx, req.ClientIP, logger) {
		p.block(ctx, w, req, started, http.StatusForbidden, "IP_BLOCKED", "ip_blocklist")
		return
	}

	iv, err := p.inspect(req)
	if err != nil {
		logger.Error("rule engine failure, failing closed", "error", err)
		p.block(ctx, w, req, started, http.StatusInternalServerError, "ENGINE_ERROR", "engine_error")
		return
	}
	if iv.Blocked() {
		ruleID := extractRuleID(iv.LogText, p.AllowAdditionModsecInfo)
		status := iv.StatusCode
		if p.BlockedStatusCodeOverride != nil {
			status = *p.BlockedStatusCodeOverride
		}
		p.block(ctx, w, req, started, status, ruleID, "rule_engine")
		return
	}

	p.forward(ctx, w, req, started, logger)
}

// checkIPFilter tests the blocklist, treating a backend error as
// not-blocked (fail-open, §4.3/§7 ErrFilterBackend).
func (p *Pipeline) checkIPFilter(ctx context.Context, clientIP string, logger *slog.Logger) bool {
	if p.BlockList == nil || clientIP == "" {
		return false
	}
	blocked, err := p.BlockList.IsBlocked(ctx, clientIP)
	if err != nil {
		logger.Warn("ip filter backend error, failing open", "error", err, "client_ip", clientIP)
		return false
	}
	return blocked
}

// inspect runs req through a fresh transaction against the current ruleset.
func (p *Pipeline) inspect(req waf.IncomingRequest) (*waf.Intervention, error) {
	rs := p.RuleSets.Load()
	tx, err := p.Engine.NewTransaction(rs)
	if err != nil {
		return nil, waf.Wrap(waf.ErrEngine, fmt.Errorf("open transaction: %w", err))
	}
	defer tx.Close()

	uri := req.Path
	if req.Query != "" {
		uri += "?" + req.Query
	}
	if err := tx.ProcessURI(uri, req.Method, "HTTP/1.1"); err != nil {
		return nil, waf.Wrap(waf.ErrEngine, err)
	}
	for name, values := range req.Headers {
		for _, v := range values {
			if err := tx.AddRequestHeader(name, v); err != nil {
				return nil, waf.Wrap(waf.ErrEngine, err)
			}
		}
	}
	if err := tx.ProcessRequestHeaders(); err != nil {
		return nil, waf.Wrap(waf.ErrEngine, err)
	}
	if iv, err := tx.Intervention(); err != nil {
		return nil, waf.Wrap(waf.ErrEngine, err)
	} else if iv != nil {
		return iv, nil
	}
	if len(req.Body) > 0 {
		if err := tx.AppendRequestBody(req.Body); err != nil {
			return nil, waf.Wrap(waf.ErrEngine, err)
		}
	}
	return tx.Intervention()
}

// block writes the denial response, setting BlockedHeaderName to the
// (possibly masked) rule id, and records the access event and metric.
func (p *Pipeline) block(ctx context.Context, w http.ResponseWriter, req waf.IncomingRequest, started time.Time, status int, headerValue, reason string) {
	w.Header().Set(p.blockedHeaderName(), headerValue)
	w.WriteHeader(status)

	if p.Metrics != nil {
		p.Metrics.BlockedTotal.WithLabelValues(reason).Inc()
	}
	p.recordEvent(ctx, req, status, w.Header().Clone(), nil, started)
}

func (p *Pipeline) blockedHeaderName() string {
	if p.BlockedHeaderName == "" {
		return defaultBlockedHeaderName
	}
	return p.BlockedHeaderName
}

// forward relays req to the upstream and copies the response back.
func (p *Pipeline) forward(ctx context.Context, w http.ResponseWriter, req waf.IncomingRequest, started time.Time, logger *slog.Logger) {
	resp, err := p.Forwarder.Forward(ctx, req)
	if err != nil {
		p.writeErrorAndRecord(ctx, w, req, started, err, logger)
		return
	}

	for key, values := range resp.Headers {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}

	p.recordEvent(ctx, req, resp.StatusCode, resp.Headers, resp.Body, started)
}

func (p *Pipeline) writeErrorAndRecord(ctx context.Context, w http.ResponseWriter, req waf.IncomingRequest, started time.Time, err error, logger *slog.Logger) {
	status := http.StatusInternalServerError
	reason := "error"
	if kind, ok := waf.KindOf(err); ok {
		switch kind {
		case waf.KindBodyTooLarge:
			status = http.StatusRequestEntityTooLarge
			reason = "body_too_large"
		case waf.KindMissingUpstream:
			status = http.StatusBadGateway
			reason = "missing_upstream"
			logger.Warn("missing upstream destination", "error", err)
		case waf.KindUpstreamError:
			status = http.StatusInternalServerError
			reason = "upstream_error"
			logger.Error("upstream error", "error", err)
		case waf.KindEngineError:
			reason = "engine_error"
			logger.Error("engine error", "error", err)
		default:
			logger.Error("pipeline error", "error", err)
		}
	} else {
		logger.Error("pipeline error", "error", err)
	}

	http.Error(w, err.Error(), status)
	if p.Metrics != nil {
		p.Metrics.BlockedTotal.WithLabelValues(reason).Inc()
	}
	p.recordEvent(ctx, req, status, nil, nil, started)
}

func (p *Pipeline) recordEvent(ctx context.Context, req waf.IncomingRequest, status int, headers http.Header, body []byte, started time.Time) {
	if p.Events == nil {
		return
	}
	ev := waf.AccessEvent{
		RequestID:       RequestIDFromContext(ctx),
		Request:         req,
		ResponseStatus:  status,
		ResponseHeaders: headers,
		ResponseBody:    body,
		StartedAt:       started,
		Duration:        time.Since(started),
	}
	_ = p.Events.Append(ctx, ev)
}

// extractRuleID parses the triggering rule id out of logText via the fixed
// regex, masking it to the literal "Masked" when allowAdditionModsecInfo is
// false (§4.4).
func extractRuleID(logText string, allowAdditionModsecInfo bool) string {
	m := ruleIDPattern.FindStringSubmatch(logText)
	if m == nil {
		return ""
	}
	if !allowAdditionModsecInfo {
		return maskedRuleID
	}
	return m[1]
}
