package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAppConfig_SetDefaults_Empty(t *testing.T) {
	t.Parallel()

	c := &AppConfig{}
	c.SetDefaults()

	if c.ServiceName != "botwaf" {
		t.Errorf("ServiceName = %q, want botwaf", c.ServiceName)
	}
	if c.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", c.Server.Port)
	}
	if c.Logging.Mode != "text" {
		t.Errorf("Logging.Mode = %q, want text", c.Logging.Mode)
	}
	if c.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", c.Logging.Level)
	}
	if c.Cache.Provider != "memory" {
		t.Errorf("Cache.Provider = %q, want memory", c.Cache.Provider)
	}
	if c.Cache.Redis.ConnectTimeout != "5s" {
		t.Errorf("Cache.Redis.ConnectTimeout = %q, want 5s", c.Cache.Redis.ConnectTimeout)
	}
	if c.Botwaf.BlockedHeaderName != "X-BotWaf-Blocked" {
		t.Errorf("Botwaf.BlockedHeaderName = %q, want X-BotWaf-Blocked", c.Botwaf.BlockedHeaderName)
	}
	if len(c.Botwaf.AnonymousPaths) == 0 {
		t.Error("Botwaf.AnonymousPaths should default to a non-empty list")
	}
	if c.Botwaf.VectorStore.Dimension != 1536 {
		t.Errorf("Botwaf.VectorStore.Dimension = %d, want 1536", c.Botwaf.VectorStore.Dimension)
	}
	if c.Botwaf.Forward.MaxBodyBytes != 10<<20 {
		t.Errorf("Botwaf.Forward.MaxBodyBytes = %d, want %d", c.Botwaf.Forward.MaxBodyBytes, 10<<20)
	}
	if c.Botwaf.Forward.UpstreamDestinationHeaderName != "X-Upstream-Destination" {
		t.Errorf("Botwaf.Forward.UpstreamDestinationHeaderName = %q", c.Botwaf.Forward.UpstreamDestinationHeaderName)
	}
	if c.Botwaf.LLM.MaxTokens != 512 {
		t.Errorf("Botwaf.LLM.MaxTokens = %d, want 512", c.Botwaf.LLM.MaxTokens)
	}
	if c.Botwaf.StatePath == "" {
		t.Error("Botwaf.StatePath should have a default")
	}
}

func TestAppConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	c := &AppConfig{
		ServiceName: "custom-waf",
		Server:      ServerConfig{Port: 9090},
		Botwaf: BotwafConfig{
			BlockedHeaderName: "X-Custom-Blocked",
		},
	}
	c.SetDefaults()

	if c.ServiceName != "custom-waf" {
		t.Errorf("ServiceName overwritten: got %q, want custom-waf", c.ServiceName)
	}
	if c.Server.Port != 9090 {
		t.Errorf("Server.Port overwritten: got %d, want 9090", c.Server.Port)
	}
	if c.Botwaf.BlockedHeaderName != "X-Custom-Blocked" {
		t.Errorf("Botwaf.BlockedHeaderName overwritten: got %q", c.Botwaf.BlockedHeaderName)
	}
}

func TestAppConfig_SetDefaults_AnalyticsCron(t *testing.T) {
	t.Parallel()

	c := &AppConfig{
		Botwaf: BotwafConfig{
			Updaters:  []AnalyticsConfig{{Name: "u1", Kind: "SIMPLE_LLM"}},
			Verifiers: []AnalyticsConfig{{Name: "v1", Kind: "SIMPLE_LLM", Cron: "*/5 * * * * *"}},
		},
	}
	c.SetDefaults()

	if c.Botwaf.Updaters[0].Cron != "0/30 * * * * *" {
		t.Errorf("Updaters[0].Cron = %q, want default 0/30 * * * * *", c.Botwaf.Updaters[0].Cron)
	}
	if c.Botwaf.Updaters[0].ChannelSize != 100 {
		t.Errorf("Updaters[0].ChannelSize = %d, want 100", c.Botwaf.Updaters[0].ChannelSize)
	}
	if c.Botwaf.Verifiers[0].Cron != "*/5 * * * * *" {
		t.Errorf("Verifiers[0].Cron overwritten: got %q", c.Botwaf.Verifiers[0].Cron)
	}
}

func TestAppConfig_SetDefaults_RedisNodes(t *testing.T) {
	t.Parallel()

	c := &AppConfig{Cache: CacheConfig{Provider: "redis"}}
	c.SetDefaults()

	if len(c.Cache.Redis.Nodes) != 1 || c.Cache.Redis.Nodes[0] != "127.0.0.1:6379" {
		t.Errorf("Cache.Redis.Nodes = %v, want default single-node list", c.Cache.Redis.Nodes)
	}
}

func TestFindConfigFile_NotFound(t *testing.T) {
	dir := t.TempDir()

	home := os.Getenv("HOME")
	defer os.Setenv("HOME", home)
	os.Setenv("HOME", dir)

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	if got := findConfigFile(); got != "" {
		t.Errorf("findConfigFile() = %q, want empty when no botwaf.yaml/.yml exists", got)
	}
}

func TestFindConfigFile_FindsYAMLInCwd(t *testing.T) {
	dir := t.TempDir()

	home := os.Getenv("HOME")
	defer os.Setenv("HOME", home)
	os.Setenv("HOME", t.TempDir())

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "botwaf.yaml"), []byte("service_name: test\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := findConfigFile()
	if got != "./botwaf.yaml" {
		t.Errorf("findConfigFile() = %q, want ./botwaf.yaml", got)
	}
}
