// Package admin provides the operator-facing control-plane API: IP
// blocklist management and a status report (whether a ruleset is loaded,
// and uptime), protected by localhost-only access plus an optional bearer
// token (§5.2). Verifier state is not reported.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/wl4g-collab/botwaf-go/internal/domain/blocklist"
	"github.com/wl4g-collab/botwaf-go/internal/domain/registry"
)

// Handler serves the admin API: block/unblock an IP and report whether a
// ruleset is loaded and the process uptime.
type Handler struct {
	blockList blocklist.BlockList
	ruleSets  *registry.RuleSetHolder
	tokenHash string // argon2id hash of the bearer token; empty disables token auth
	logger    *slog.Logger
	startTime time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithTokenHash requires every non-localhost request to present
// "Authorization: Bearer <token>" matching this argon2id hash.
func WithTokenHash(hash string) Option { return func(h *Handler) { h.tokenHash = hash } }

// WithLogger sets the handler's logger.
func WithLogger(l *slog.Logger) Option { return func(h *Handler) { h.logger = l } }

// NewHandler builds an admin Handler.
func NewHandler(blockList blocklist.BlockList, ruleSets *registry.RuleSetHolder, opts ...Option) *Handler {
	h := &Handler{
		blockList: blockList,
		ruleSets:  ruleSets,
		logger:    slog.Default(),
		startTime: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the admin API's http.Handler, with every route gated by
// authMiddleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/api/status", h.handleStatus)
	mux.HandleFunc("POST /admin/api/block", h.handleBlock)
	mux.HandleFunc("POST /admin/api/unblock", h.handleUnblock)
	return h.authMiddleware(mux)
}

type blockRequest struct {
	IP string `json:"ip"`
}

type blockResponse struct {
	IP    string `json:"ip"`
	Prior bool   `json:"prior"`
}

func (h *Handler) handleBlock(w http.ResponseWriter, r *http.Request) {
	h.mutateBlocklist(w, r, h.blockList.Block)
}

func (h *Handler) handleUnblock(w http.ResponseWriter, r *http.Request) {
	h.mutateBlocklist(w, r, h.blockList.Unblock)
}

func (h *Handler) mutateBlocklist(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, ip string) (bool, error)) {
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if net.ParseIP(req.IP) == nil {
		h.respondError(w, http.StatusBadRequest, "ip is not a valid address")
		return
	}

	prior, err := op(r.Context(), req.IP)
	if err != nil {
		h.logger.Error("blocklist mutation failed", "ip", req.IP, "error", err)
		h.respondError(w, http.StatusInternalServerError, "blocklist backend unavailable")
		return
	}

	h.respondJSON(w, http.StatusOK, blockResponse{IP: req.IP, Prior: prior})
}

type statusResponse struct {
	RuleSetLoaded bool   `json:"ruleset_loaded"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Version       string `json:"version,omitempty"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, statusResponse{
		RuleSetLoaded: h.ruleSets != nil && h.ruleSets.Load() != nil,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}

// authMiddleware enforces localhost-only access, or -- when a token hash is
// configured -- accepts a matching bearer token from any origin.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isLocalhost(r) {
			next.ServeHTTP(w, r)
			return
		}
		if h.tokenHash != "" && h.bearerTokenMatches(r) {
			next.ServeHTTP(w, r)
			return
		}
		h.respondError(w, http.StatusForbidden, "admin API requires localhost access or a valid bearer token")
	})
}

func (h *Handler) bearerTokenMatches(r *http.Request) bool {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return false
	}
	token := auth[len(prefix):]
	match, err := argon2id.ComparePasswordAndHash(token, h.tokenHash)
	if err != nil {
		h.logger.Warn("admin token comparison failed", "error", err)
		return false
	}
	return match
}

// isLocalhost reports whether r originates from a loopback address.
// X-Forwarded-For is intentionally NOT trusted here -- an attacker could
// spoof it to bypass the localhost check.
func isLocalhost(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return host == "127.0.0.1" || host == "::1" || host == "localhost"
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
