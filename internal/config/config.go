// Package config provides configuration types for botwaf.
//
// The schema mirrors the original Rust service's AppConfigProperties field
// tree (service_name, server, logging, cache, botwaf.*) rather than
// reinventing field names, so that YAML files written against the original
// stay valid here. Environment overrides use the BOTWAF__ prefix with
// upper-snake-case leaf names (see loader.go).
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// AppConfig is the top-level, immutable-after-load configuration root.
// LoadConfig (loader.go) builds a fresh AppConfig on each call; this package
// holds no shared pointer to it and has no reload or swap step.
type AppConfig struct {
	ServiceName string        `yaml:"service_name" mapstructure:"service_name"`
	Server      ServerConfig  `yaml:"server" mapstructure:"server"`
	Logging     LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Cache       CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Botwaf      BotwafConfig  `yaml:"botwaf" mapstructure:"botwaf"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host" validate:"omitempty,hostname|ip"`
	Port int    `yaml:"port" mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	// ContextPath is the URL prefix the server is mounted at; stripped before
	// anonymous-path glob matching (§4.2).
	ContextPath string `yaml:"context_path" mapstructure:"context_path"`
}

// Addr returns the listener address in host:port form.
func (s ServerConfig) Addr() string {
	host := s.Host
	if host == "" {
		host = "0.0.0.0"
	}
	port := s.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	// Mode selects the slog handler: "text" or "json".
	Mode string `yaml:"mode" mapstructure:"mode" validate:"omitempty,oneof=text json"`
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`
}

// CacheConfig selects and configures the shared cache/blocklist backend.
type CacheConfig struct {
	// Provider selects the BlockList backend: "memory" (dev/tests) or "redis".
	Provider string      `yaml:"provider" mapstructure:"provider" validate:"required,oneof=memory redis"`
	Redis    RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig configures the go-redis client backing the IP blocklist bitmap.
type RedisConfig struct {
	Nodes              []string `yaml:"nodes" mapstructure:"nodes" validate:"omitempty,dive,hostname_port"`
	Username           string   `yaml:"username" mapstructure:"username"`
	Password           string   `yaml:"password" mapstructure:"password"`
	ConnectTimeout     string   `yaml:"connection_timeout" mapstructure:"connection_timeout"`
	ResponseTimeout    string   `yaml:"response_timeout" mapstructure:"response_timeout"`
	Retries            int      `yaml:"retries" mapstructure:"retries" validate:"omitempty,min=0"`
	MaxRetryWait       string   `yaml:"max_retry_wait" mapstructure:"max_retry_wait"`
	MinRetryWait       string   `yaml:"min_retry_wait" mapstructure:"min_retry_wait"`
	ReadFromReplicas   bool     `yaml:"read_from_replicas" mapstructure:"read_from_replicas"`
}

// BotwafConfig groups every data-plane and control-plane setting specific to
// the WAF core itself (as opposed to server/logging/cache plumbing).
type BotwafConfig struct {
	// BlockedStatusCode overrides the engine's intervention status on denial
	// when set; must lie in 300-599. Absent (nil) means "use the engine's
	// own status" -- this is intentional, not an oversight (§9).
	BlockedStatusCode *int `yaml:"blocked_status_code" mapstructure:"blocked_status_code" validate:"omitempty,min=300,max=599"`
	// BlockedHeaderName is both the response header carrying the triggering
	// rule id AND the Redis key the IP bitmap is stored under -- an
	// intentionally retained, confusingly dual-purpose name preserved for
	// on-disk/on-wire compatibility with the original (§6).
	BlockedHeaderName          string           `yaml:"blocked_header_name" mapstructure:"blocked_header_name" validate:"required"`
	AllowAdditionModsecInfo    bool             `yaml:"allow_addition_modsec_info" mapstructure:"allow_addition_modsec_info"`
	AnonymousPaths             []string         `yaml:"anonymous_paths" mapstructure:"anonymous_paths"`
	StaticRules                []StaticRule     `yaml:"static_rules" mapstructure:"static_rules" validate:"omitempty,dive"`
	Updaters                   []AnalyticsConfig `yaml:"updaters" mapstructure:"updaters" validate:"omitempty,dive"`
	Verifiers                  []AnalyticsConfig `yaml:"verifiers" mapstructure:"verifiers" validate:"omitempty,dive"`
	LLM                        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	VectorStore                VectorStoreConfig `yaml:"vector_store" mapstructure:"vector_store"`
	Forward                    ForwardConfig    `yaml:"forward" mapstructure:"forward"`
	StatePath                  string           `yaml:"state_path" mapstructure:"state_path"`
}

// StaticRule is one rule record loaded at boot into the initial RuleSet.
type StaticRule struct {
	Name        string `yaml:"name" mapstructure:"name" validate:"required"`
	Kind        string `yaml:"kind" mapstructure:"kind" validate:"required"`
	Severity    string `yaml:"severity" mapstructure:"severity"`
	Description string `yaml:"desc" mapstructure:"desc"`
	Value       string `yaml:"value" mapstructure:"value" validate:"required"`
}

// AnalyticsConfig configures one updater or verifier instance (§4.8, §4.9).
type AnalyticsConfig struct {
	Name        string `yaml:"name" mapstructure:"name" validate:"required"`
	Kind        string `yaml:"kind" mapstructure:"kind" validate:"required,oneof=SIMPLE_LLM SIMPLE_EXECUTE"`
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Cron        string `yaml:"cron" mapstructure:"cron"`
	ChannelSize int    `yaml:"channel_size" mapstructure:"channel_size" validate:"omitempty,min=1"`
}

// LLMConfig configures the OpenAI-compatible embedding/chat client.
type LLMConfig struct {
	APIURL         string  `yaml:"api_uri" mapstructure:"api_uri" validate:"omitempty,url"`
	APIKey         string  `yaml:"api_key" mapstructure:"api_key"`
	OrgID          string  `yaml:"org_id" mapstructure:"org_id"`
	ProjectID      string  `yaml:"project_id" mapstructure:"project_id"`
	Model          string  `yaml:"model" mapstructure:"model"`
	EmbeddingModel string  `yaml:"embedding_model" mapstructure:"embedding_model"`
	MaxTokens      int     `yaml:"max_tokens" mapstructure:"max_tokens" validate:"omitempty,min=1"`
	Temperature    float64 `yaml:"temperature" mapstructure:"temperature" validate:"omitempty,min=0,max=2"`
	CandidateCount int     `yaml:"candidate_count" mapstructure:"candidate_count" validate:"omitempty,min=1"`
	TopK           int     `yaml:"top_k" mapstructure:"top_k"`
	TopP           float64 `yaml:"top_p" mapstructure:"top_p"`
	SystemPrompt   string  `yaml:"system_prompt" mapstructure:"system_prompt"`
}

// VectorStoreConfig configures the pgvector-backed knowledge store.
type VectorStoreConfig struct {
	DSN       string `yaml:"dsn" mapstructure:"dsn"`
	Dimension int    `yaml:"dimension" mapstructure:"dimension" validate:"omitempty,min=1"`
}

// ForwardConfig configures the forwarder's shared HTTP client and upstream
// resolution.
type ForwardConfig struct {
	HTTPProxy                     string `yaml:"http_proxy" mapstructure:"http_proxy"`
	ConnectTimeout                string `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	ReadTimeout                   string `yaml:"read_timeout" mapstructure:"read_timeout"`
	TotalTimeout                  string `yaml:"total_timeout" mapstructure:"total_timeout"`
	Verbose                       bool   `yaml:"verbose" mapstructure:"verbose"`
	UpstreamDestinationHeaderName string `yaml:"upstream_destination_header_name" mapstructure:"upstream_destination_header_name" validate:"required"`
	MaxBodyBytes                  int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"omitempty,min=1"`
}

// SetDefaults applies sensible default values, mirroring the original's
// `impl Default for AppConfigProperties`.
func (c *AppConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "botwaf"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Mode == "" {
		c.Logging.Mode = "text"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Cache.Provider == "" {
		c.Cache.Provider = "memory"
	}
	if c.Cache.Redis.ConnectTimeout == "" {
		c.Cache.Redis.ConnectTimeout = "5s"
	}
	if c.Cache.Redis.ResponseTimeout == "" {
		c.Cache.Redis.ResponseTimeout = "3s"
	}
	if c.Cache.Redis.MinRetryWait == "" {
		c.Cache.Redis.MinRetryWait = "8ms"
	}
	if c.Cache.Redis.MaxRetryWait == "" {
		c.Cache.Redis.MaxRetryWait = "512ms"
	}

	if c.Botwaf.BlockedHeaderName == "" {
		c.Botwaf.BlockedHeaderName = "X-BotWaf-Blocked"
	}
	if len(c.Botwaf.AnonymousPaths) == 0 {
		c.Botwaf.AnonymousPaths = []string{"/healthz", "/healthz/**", "/static/**", "/public/**"}
	}
	if c.Botwaf.VectorStore.Dimension == 0 {
		c.Botwaf.VectorStore.Dimension = 1536
	}
	if c.Botwaf.Forward.UpstreamDestinationHeaderName == "" {
		c.Botwaf.Forward.UpstreamDestinationHeaderName = "X-Upstream-Destination"
	}
	if c.Botwaf.Forward.ConnectTimeout == "" {
		c.Botwaf.Forward.ConnectTimeout = "5s"
	}
	if c.Botwaf.Forward.ReadTimeout == "" {
		c.Botwaf.Forward.ReadTimeout = "30s"
	}
	if c.Botwaf.Forward.TotalTimeout == "" {
		c.Botwaf.Forward.TotalTimeout = "30s"
	}
	if c.Botwaf.Forward.MaxBodyBytes == 0 {
		c.Botwaf.Forward.MaxBodyBytes = 10 << 20 // 10 MiB
	}
	if c.Botwaf.LLM.MaxTokens == 0 {
		c.Botwaf.LLM.MaxTokens = 512
	}
	if c.Botwaf.LLM.CandidateCount == 0 {
		c.Botwaf.LLM.CandidateCount = 1
	}
	for i := range c.Botwaf.Updaters {
		if c.Botwaf.Updaters[i].ChannelSize == 0 {
			c.Botwaf.Updaters[i].ChannelSize = 100
		}
		if c.Botwaf.Updaters[i].Cron == "" {
			c.Botwaf.Updaters[i].Cron = "0/30 * * * * *"
		}
	}
	for i := range c.Botwaf.Verifiers {
		if c.Botwaf.Verifiers[i].ChannelSize == 0 {
			c.Botwaf.Verifiers[i].ChannelSize = 100
		}
		if c.Botwaf.Verifiers[i].Cron == "" {
			c.Botwaf.Verifiers[i].Cron = "0/30 * * * * *"
		}
	}
	if c.Botwaf.StatePath == "" {
		c.Botwaf.StatePath = "./botwaf-state.sqlite"
	}

	// Redis provider must have at least one node -- only default it when the
	// user hasn't explicitly set it, mirroring the viper.IsSet pattern used
	// for booleans elsewhere in this family of configs.
	if c.Cache.Provider == "redis" && len(c.Cache.Redis.Nodes) == 0 && !viper.IsSet("cache.redis.nodes") {
		c.Cache.Redis.Nodes = []string{"127.0.0.1:6379"}
	}
}
