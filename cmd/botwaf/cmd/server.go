package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	inboundadmin "github.com/wl4g-collab/botwaf-go/internal/adapter/inbound/admin"
	inboundhttp "github.com/wl4g-collab/botwaf-go/internal/adapter/inbound/http"
	"github.com/wl4g-collab/botwaf-go/internal/adapter/outbound/accesslog"
	"github.com/wl4g-collab/botwaf-go/internal/adapter/outbound/cache"
	"github.com/wl4g-collab/botwaf-go/internal/adapter/outbound/engine"
	"github.com/wl4g-collab/botwaf-go/internal/adapter/outbound/fingerprint"
	"github.com/wl4g-collab/botwaf-go/internal/adapter/outbound/forwarder"
	"github.com/wl4g-collab/botwaf-go/internal/adapter/outbound/llm"
	"github.com/wl4g-collab/botwaf-go/internal/adapter/outbound/vectorstore"
	"github.com/wl4g-collab/botwaf-go/internal/config"
	"github.com/wl4g-collab/botwaf-go/internal/domain/blocklist"
	"github.com/wl4g-collab/botwaf-go/internal/domain/knowledge"
	"github.com/wl4g-collab/botwaf-go/internal/domain/registry"
	"github.com/wl4g-collab/botwaf-go/internal/domain/waf"
	"github.com/wl4g-collab/botwaf-go/internal/service"
	"github.com/wl4g-collab/botwaf-go/internal/telemetry"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the botwaf inspection proxy",
	Long: `server wires the full request pipeline -- ingress, anonymous-path
matching, IP filtering, rule-engine inspection, and forwarding -- plus the
updater/verifier control plane, and serves them over HTTP until interrupted.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Logging)
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init("botwaf", Version, true)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	srv, err := buildServer(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	defer srv.Close(logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr())
		if err := srv.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	return nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Mode == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// wiredServer bundles the constructed http.Server with the background
// components that must be stopped on shutdown.
type wiredServer struct {
	httpServer *http.Server
	updaters   []*service.Updater
	verifiers  []*service.Verifier
	events     *accesslog.FileStore
	fingerprints *fingerprint.SQLiteStore
}

func (s *wiredServer) Close(logger *slog.Logger) {
	for _, u := range s.updaters {
		u.Stop()
	}
	for _, v := range s.verifiers {
		v.Stop()
	}
	if s.events != nil {
		if err := s.events.Close(); err != nil {
			logger.Warn("closing access log store", "error", err)
		}
	}
	if s.fingerprints != nil {
		if err := s.fingerprints.Close(); err != nil {
			logger.Warn("closing fingerprint store", "error", err)
		}
	}
}

// buildServer implements the boot sequence: blocklist -> rule engine ->
// initial ruleset -> forwarder -> access log -> knowledge/LLM stack ->
// control plane (updaters/verifiers) -> inbound pipeline -> admin/health/
// metrics -> http.Server.
func buildServer(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*wiredServer, error) {
	blockList, err := buildBlockList(cfg, logger)
	if err != nil {
		return nil, err
	}

	eng := engine.New(logger)
	initialRecords := staticRuleRecords(cfg.Botwaf.StaticRules)
	initialRuleSet, err := eng.NewRuleSet(initialRecords)
	if err != nil {
		return nil, fmt.Errorf("compile initial ruleset: %w", err)
	}
	ruleSets := registry.NewRuleSetHolder(initialRuleSet)

	fwd, err := buildForwarder(cfg.Botwaf.Forward)
	if err != nil {
		return nil, err
	}

	events, err := accesslog.New(accesslog.Config{
		Dir:       "./access-logs",
		CacheSize: 1000,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open access log store: %w", err)
	}

	fpStore, err := fingerprint.Open(cfg.Botwaf.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open fingerprint store: %w", err)
	}

	reg := registry.New()
	updaters, verifiers, err := buildControlPlane(ctx, cfg, eng, ruleSets, events, fpStore, reg, initialRecords, logger)
	if err != nil {
		return nil, err
	}

	reg.RegisterForwarder("default", fwd)
	reg.RegisterIPFilter("default", blockList)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := inboundhttp.NewMetrics(promReg)

	pipeline := &inboundhttp.Pipeline{
		Ingress:                 inboundhttp.NewIngressAdapter(cfg.Botwaf.Forward.MaxBodyBytes),
		Anonymous:               inboundhttp.NewAnonymousMatcher(cfg.Server.ContextPath, cfg.Botwaf.AnonymousPaths),
		BlockList:               blockList,
		Engine:                  eng,
		RuleSets:                ruleSets,
		Forwarder:               fwd,
		Events:                  events,
		Metrics:                 metrics,
		BlockedHeaderName:       cfg.Botwaf.BlockedHeaderName,
		BlockedStatusCodeOverride: cfg.Botwaf.BlockedStatusCode,
		AllowAdditionModsecInfo: cfg.Botwaf.AllowAdditionModsecInfo,
	}

	healthChecker := inboundhttp.NewHealthChecker(ruleSets, blockList, Version)
	adminHandler := inboundadmin.NewHandler(blockList, ruleSets, inboundadmin.WithLogger(logger))

	mux := http.NewServeMux()
	mux.Handle("/healthz", healthChecker.Handler())
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	mux.Handle("/admin/", adminHandler.Routes())
	mux.Handle("/", pipeline)

	requestIDWrapped := inboundhttp.RequestIDMiddleware(logger)(mux)
	metricsWrapped := inboundhttp.MetricsMiddleware(metrics)(requestIDWrapped)
	tracedWrapped := inboundhttp.TracingMiddleware()(metricsWrapped)

	return &wiredServer{
		httpServer: &http.Server{
			Addr:    cfg.Server.Addr(),
			Handler: tracedWrapped,
		},
		updaters:     updaters,
		verifiers:    verifiers,
		events:       events,
		fingerprints: fpStore,
	}, nil
}

func buildBlockList(cfg *config.AppConfig, logger *slog.Logger) (blocklist.BlockList, error) {
	if cfg.Cache.Provider != "redis" {
		logger.Info("using in-memory IP blocklist (not durable across restarts)")
		return cache.NewMemoryBlockList(), nil
	}
	connTimeout, _ := time.ParseDuration(cfg.Cache.Redis.ConnectTimeout)
	respTimeout, _ := time.ParseDuration(cfg.Cache.Redis.ResponseTimeout)
	minRetry, _ := time.ParseDuration(cfg.Cache.Redis.MinRetryWait)
	maxRetry, _ := time.ParseDuration(cfg.Cache.Redis.MaxRetryWait)
	bl, err := cache.NewRedisBlockList(cache.RedisConfig{
		Nodes:             cfg.Cache.Redis.Nodes,
		Username:          cfg.Cache.Redis.Username,
		Password:          cfg.Cache.Redis.Password,
		ConnectionTimeout: connTimeout,
		ResponseTimeout:   respTimeout,
		Retries:           cfg.Cache.Redis.Retries,
		MinRetryWait:      minRetry,
		MaxRetryWait:      maxRetry,
		ReadFromReplicas:  cfg.Cache.Redis.ReadFromReplicas,
	}, cfg.Botwaf.BlockedHeaderName)
	if err != nil {
		return nil, fmt.Errorf("connect redis blocklist: %w", err)
	}
	return bl, nil
}

func buildForwarder(cfg config.ForwardConfig) (waf.Forwarder, error) {
	connTimeout, _ := time.ParseDuration(cfg.ConnectTimeout)
	readTimeout, _ := time.ParseDuration(cfg.ReadTimeout)
	totalTimeout, _ := time.ParseDuration(cfg.TotalTimeout)
	return forwarder.New(forwarder.Config{
		HTTPProxy:                     cfg.HTTPProxy,
		ConnectTimeout:                connTimeout,
		ReadTimeout:                   readTimeout,
		TotalTimeout:                  totalTimeout,
		Verbose:                       cfg.Verbose,
		UpstreamDestinationHeaderName: cfg.UpstreamDestinationHeaderName,
	})
}

func staticRuleRecords(rules []config.StaticRule) []waf.RuleRecord {
	records := make([]waf.RuleRecord, 0, len(rules))
	for _, r := range rules {
		records = append(records, waf.RuleRecord{
			Name:        r.Name,
			Kind:        r.Kind,
			Severity:    r.Severity,
			Description: r.Description,
			Body:        r.Value,
		})
	}
	return records
}

// buildControlPlane wires every configured updater/verifier pair, sharing
// one knowledge store/LLM client across all updater instances (§4.8/§4.10).
func buildControlPlane(
	ctx context.Context,
	cfg *config.AppConfig,
	eng waf.Engine,
	ruleSets *registry.RuleSetHolder,
	events *accesslog.FileStore,
	fpStore *fingerprint.SQLiteStore,
	reg *registry.Registry,
	initialRecords []waf.RuleRecord,
	logger *slog.Logger,
) ([]*service.Updater, []*service.Verifier, error) {
	// The LLM client is registered as its own capability set (§4.7/§4.10)
	// regardless of whether any updater/verifier is configured, since
	// embedding/generate (§9) are reachable independently of the analytics
	// control plane.
	llmClient := llm.New(llm.Config{
		APIURI:         cfg.Botwaf.LLM.APIURL,
		APIKey:         cfg.Botwaf.LLM.APIKey,
		OrgID:          cfg.Botwaf.LLM.OrgID,
		ProjectID:      cfg.Botwaf.LLM.ProjectID,
		Model:          cfg.Botwaf.LLM.Model,
		EmbeddingModel: cfg.Botwaf.LLM.EmbeddingModel,
		MaxTokens:      cfg.Botwaf.LLM.MaxTokens,
		Temperature:    float32(cfg.Botwaf.LLM.Temperature),
		CandidateCount: cfg.Botwaf.LLM.CandidateCount,
		TopK:           cfg.Botwaf.LLM.TopK,
		TopP:           float32(cfg.Botwaf.LLM.TopP),
		SystemPrompt:   cfg.Botwaf.LLM.SystemPrompt,
	})
	reg.RegisterLLMHandler("default", llmClient)

	if len(cfg.Botwaf.Updaters) == 0 && len(cfg.Botwaf.Verifiers) == 0 {
		return nil, nil, nil
	}

	var knowledgeStore knowledge.Store
	if cfg.Botwaf.VectorStore.DSN != "" {
		store, err := vectorstore.New(ctx, vectorstore.Config{
			DSN:       cfg.Botwaf.VectorStore.DSN,
			Dimension: cfg.Botwaf.VectorStore.Dimension,
		}, llmClient)
		if err != nil {
			return nil, nil, fmt.Errorf("connect vector store: %w", err)
		}
		knowledgeStore = store
	}

	candidates := make(chan []waf.RuleRecord, controlPlaneChannelSize(cfg))

	var updaters []*service.Updater
	for _, a := range cfg.Botwaf.Updaters {
		if !a.Enabled || a.Kind != service.UpdaterKindSimpleLLM {
			continue
		}
		if knowledgeStore == nil {
			logger.Warn("updater configured without a vector_store DSN, skipping", "name", a.Name)
			continue
		}
		u := service.NewUpdater(a.Name, a.Cron, a.ChannelSize, events, knowledgeStore, llmClient, llmClient, candidates, logger)
		reg.RegisterUpdater(a.Name, u)
		if err := u.Start(ctx); err != nil {
			return nil, nil, fmt.Errorf("start updater %q: %w", a.Name, err)
		}
		updaters = append(updaters, u)
	}

	var verifiers []*service.Verifier
	for _, a := range cfg.Botwaf.Verifiers {
		if !a.Enabled || a.Kind != service.VerifierKindSimpleExecute {
			continue
		}
		v, err := service.NewVerifier(a.Name, a.Cron, eng, ruleSets, fpStore, candidates, initialRecords, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("build verifier %q: %w", a.Name, err)
		}
		reg.RegisterVerifier(a.Name, v)
		if err := v.Start(ctx); err != nil {
			return nil, nil, fmt.Errorf("start verifier %q: %w", a.Name, err)
		}
		verifiers = append(verifiers, v)
	}

	return updaters, verifiers, nil
}

func controlPlaneChannelSize(cfg *config.AppConfig) int {
	size := 100
	for _, a := range cfg.Botwaf.Updaters {
		if a.ChannelSize > size {
			size = a.ChannelSize
		}
	}
	return size
}

