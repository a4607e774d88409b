package config

import (
	"strings"
	"testing"
)

// minimalValidConfig returns a minimal valid AppConfig for testing.
func minimalValidConfig() *AppConfig {
	return &AppConfig{
		Server:  ServerConfig{Host: "127.0.0.1", Port: 8080},
		Logging: LoggingConfig{Mode: "text", Level: "info"},
		Cache:   CacheConfig{Provider: "memory"},
		Botwaf: BotwafConfig{
			BlockedHeaderName: "X-BotWaf-Blocked",
			Forward:           ForwardConfig{UpstreamDestinationHeaderName: "X-Upstream-Destination"},
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_ZeroConfig(t *testing.T) {
	t.Parallel()

	cfg := &AppConfig{}
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() zero-config (after SetDefaults) unexpected error: %v", err)
	}
}

func TestValidate_InvalidCacheProvider(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Cache.Provider = "memcached"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for unknown cache provider, got nil")
	}
	if !strings.Contains(err.Error(), "Cache.Provider") {
		t.Errorf("error = %q, want to contain 'Cache.Provider'", err.Error())
	}
}

func TestValidate_RedisProviderRequiresNodes(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Cache.Provider = "redis"
	cfg.Cache.Redis.Nodes = nil

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for redis provider with no nodes, got nil")
	}
	if !strings.Contains(err.Error(), "cache.redis.nodes") {
		t.Errorf("error = %q, want to contain 'cache.redis.nodes'", err.Error())
	}
}

func TestValidate_RedisProviderWithNodes(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Cache.Provider = "redis"
	cfg.Cache.Redis.Nodes = []string{"127.0.0.1:6379"}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with redis nodes unexpected error: %v", err)
	}
}

func TestValidate_MissingBlockedHeaderName(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Botwaf.BlockedHeaderName = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for missing blocked_header_name, got nil")
	}
}

func TestValidate_InvalidServerPort(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Server.Port = 70000

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for out-of-range port, got nil")
	}
}

func TestValidate_InvalidAnalyticsKind(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Botwaf.Updaters = []AnalyticsConfig{{Name: "u1", Kind: "NOT_A_KIND"}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid updater kind, got nil")
	}
}

// Per spec.md §4.8/§8, a malformed updater/verifier cron expression must
// never fail config loading -- it falls back to "0/30 * * * * *" at
// scheduler registration time (internal/service/cron.go's resolveCron).
func TestValidate_InvalidCron_IsNonFatal(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Botwaf.Updaters = []AnalyticsConfig{{Name: "u1", Kind: "SIMPLE_LLM", Cron: "not a cron expression"}}
	cfg.Botwaf.Verifiers = []AnalyticsConfig{{Name: "v1", Kind: "SIMPLE_LLM", Cron: "also garbage"}}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with malformed cron expressions unexpected error: %v -- invalid cron must warn, not fail startup", err)
	}
}

func TestValidate_ValidCron(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Botwaf.Updaters = []AnalyticsConfig{{Name: "u1", Kind: "SIMPLE_LLM", Cron: "0/30 * * * * *"}}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with valid cron unexpected error: %v", err)
	}
}

func TestWarnOnInvalidCronExpressions_DoesNotPanicOnEmptyCron(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Botwaf.Updaters = []AnalyticsConfig{{Name: "u1", Kind: "SIMPLE_LLM"}}
	cfg.Botwaf.Verifiers = []AnalyticsConfig{{Name: "v1", Kind: "SIMPLE_LLM"}}

	cfg.warnOnInvalidCronExpressions()
}

