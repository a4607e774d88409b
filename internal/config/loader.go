// Package config provides configuration loading for botwaf.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// CfgPathEnvVar is the environment variable naming the YAML config file path
// (§6). When unset, InitViper searches standard locations before falling
// back to environment-only configuration.
const CfgPathEnvVar = "BOTWAF_CFG_PATH"

// envPrefix and the key replacer in InitViper implement the §6 overlay rule:
// environment variables prefixed BOTWAF__ (viper joins prefix and key with
// one more "_"), using "__" as the nesting separator, with upper-snake-case
// leaf names (e.g. BOTWAF__BOTWAF__BLOCKED_STATUS_CODE). Hyphenated
// (Cobol-case) leaf names are not read.
const envPrefix = "BOTWAF_"

// InitViper initializes Viper with the configuration file and environment
// variable overlay. configFile takes precedence; otherwise BOTWAF_CFG_PATH is
// consulted; otherwise standard search paths are tried.
func InitViper(configFile string) {
	if configFile == "" {
		configFile = os.Getenv(CfgPathEnvVar)
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("botwaf")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for botwaf.yaml/.yml.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{".", home, "/etc/botwaf"}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := dir + "/botwaf" + ext
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds every leaf key explicitly so BOTWAF__-prefixed
// environment variables override nested YAML values, mirroring the
// teacher's explicit-BindEnv-per-key approach over relying solely on
// AutomaticEnv's key-replacer heuristics for deeply nested structs.
func bindNestedEnvKeys() {
	keys := []string{
		"service_name",
		"server.host", "server.port", "server.context_path",
		"logging.mode", "logging.level",
		"cache.provider",
		"cache.redis.username", "cache.redis.password",
		"cache.redis.connection_timeout", "cache.redis.response_timeout",
		"cache.redis.retries", "cache.redis.max_retry_wait", "cache.redis.min_retry_wait",
		"cache.redis.read_from_replicas",
		"botwaf.blocked_status_code", "botwaf.blocked_header_name",
		"botwaf.allow_addition_modsec_info",
		"botwaf.llm.api_uri", "botwaf.llm.api_key", "botwaf.llm.org_id", "botwaf.llm.project_id",
		"botwaf.llm.model", "botwaf.llm.embedding_model", "botwaf.llm.max_tokens",
		"botwaf.llm.temperature", "botwaf.llm.candidate_count", "botwaf.llm.top_k", "botwaf.llm.top_p",
		"botwaf.llm.system_prompt",
		"botwaf.vector_store.dsn", "botwaf.vector_store.dimension",
		"botwaf.forward.http_proxy", "botwaf.forward.connect_timeout", "botwaf.forward.read_timeout",
		"botwaf.forward.total_timeout", "botwaf.forward.verbose",
		"botwaf.forward.upstream_destination_header_name", "botwaf.forward.max_body_bytes",
		"botwaf.state_path",
	}
	for _, k := range keys {
		_ = viper.BindEnv(k)
	}
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, validates, and returns the AppConfig. ConfigInvalid (§7) is
// fatal at this point -- callers should abort startup on error.
func LoadConfig() (*AppConfig, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults, but does
// not validate. Use this when CLI flags may still override fields before
// validation runs.
func LoadConfigRaw() (*AppConfig, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path of the configuration file that was loaded,
// or an empty string in environment-only mode.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
