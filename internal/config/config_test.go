package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Search.DefaultQuery != "software developer" || cfg.Search.DefaultLocation != "hyderabad" {
		t.Fatalf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.Search.DefaultMaxResults != 100 || !cfg.Search.DefaultIncludeScraping {
		t.Fatalf("unexpected result defaults: %+v", cfg.Search)
	}
	if got := cfg.RequestTimeout(); got != 180*time.Second {
		t.Fatalf("expected request timeout 180s, got %v", got)
	}
	if got := cfg.StageTimeout(); got != 0 {
		t.Fatalf("expected no stage timeout by default, got %v", got)
	}
	if cfg.Sources.Adzuna.Country != "in" {
		t.Fatalf("expected adzuna country default, got %q", cfg.Sources.Adzuna.Country)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  request_timeout_seconds: 60
auth:
  enabled: true
  api_key: secret
http:
  timeout_seconds: 45
  max_retries: 2
  user_agent: test-agent
rate_limit:
  enabled: true
  default_rps: 2
  host_rps:
    api.lever.co: 1
headless:
  enabled: true
  nav_timeout_seconds: 20
  marker_wait_seconds: 5
search:
  default_max_results: 50
  max_results_limit: 200
  stage_timeout_seconds: 25
sources:
  lever_companies: [netflix, stripe]
  enabled:
    linkedin: false
logging:
  development: true
  level: debug
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if got := cfg.HTTPTimeout(); got != 45*time.Second {
		t.Fatalf("expected http timeout 45s, got %v", got)
	}
	if cfg.RateLimit.HostRPS["api.lever.co"] != 1 {
		t.Fatalf("expected host override, got %+v", cfg.RateLimit.HostRPS)
	}
	if got := cfg.MarkerWait(); got != 5*time.Second {
		t.Fatalf("expected marker wait 5s, got %v", got)
	}
	if got := cfg.NavigationTimeout(); got != 20*time.Second {
		t.Fatalf("expected nav timeout 20s, got %v", got)
	}
	if got := cfg.StageTimeout(); got != 25*time.Second {
		t.Fatalf("expected stage timeout 25s, got %v", got)
	}
	if len(cfg.Sources.LeverCompanies) != 2 || cfg.Sources.LeverCompanies[1] != "stripe" {
		t.Fatalf("expected lever companies to load: %+v", cfg.Sources.LeverCompanies)
	}
	if on, ok := cfg.Sources.Enabled["linkedin"]; !ok || on {
		t.Fatalf("expected linkedin disabled: %+v", cfg.Sources.Enabled)
	}
}

func TestLoadKeepsDottedHostKeys(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	configYAML := `
rate_limit:
  host_rps:
    api.lever.co: 1
    boards-api.greenhouse.io: 0.5
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := map[string]float64{"api.lever.co": 1, "boards-api.greenhouse.io": 0.5}
	if len(cfg.RateLimit.HostRPS) != len(want) {
		t.Fatalf("expected %d host overrides, got %+v", len(want), cfg.RateLimit.HostRPS)
	}
	for host, rps := range want {
		if cfg.RateLimit.HostRPS[host] != rps {
			t.Fatalf("expected %s=%v, got %+v", host, rps, cfg.RateLimit.HostRPS)
		}
	}
	if cfg.RateLimit.DefaultRPS != 5 {
		t.Fatalf("expected nested defaults to survive, got %v", cfg.RateLimit.DefaultRPS)
	}
}

func TestLoadReadsProviderEnv(t *testing.T) {
	t.Setenv("ADZUNA_APP_ID", "id-1")
	t.Setenv("ADZUNA_APP_KEY", "key-1")
	t.Setenv("RAPIDAPI_KEY", "rapid")
	t.Setenv("JOBAGG_SOURCES_SERPAPI_KEY", "serp")
	t.Setenv("JOBAGG_SERVER_PORT", "7070")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sources.Adzuna.AppID != "id-1" || cfg.Sources.Adzuna.AppKey != "key-1" {
		t.Fatalf("expected adzuna credentials from env: %+v", cfg.Sources.Adzuna)
	}
	if cfg.Sources.RapidAPIKey != "rapid" || cfg.Sources.SerpAPIKey != "serp" {
		t.Fatalf("expected provider keys from env: %+v", cfg.Sources)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected prefixed env override, got %d", cfg.Server.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8080},
		HTTP:   HTTPConfig{TimeoutSeconds: 10},
		Search: SearchConfig{DefaultMaxResults: 100, MaxResultsLimit: 500},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"invalid timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, "http.timeout_seconds"},
		{"negative retries", func(c *Config) { c.HTTP.MaxRetries = -1 }, "http.max_retries"},
		{"headless without nav timeout", func(c *Config) { c.Headless.Enabled = true }, "headless.nav_timeout_seconds"},
		{"zero result limit", func(c *Config) { c.Search.MaxResultsLimit = 0 }, "search.max_results_limit"},
		{"default above limit", func(c *Config) { c.Search.DefaultMaxResults = 501 }, "search.default_max_results"},
		{"negative stage timeout", func(c *Config) { c.Search.StageTimeoutSeconds = -1 }, "search.stage_timeout_seconds"},
		{"unknown source", func(c *Config) { c.Sources.Enabled = map[string]bool{"monster": true} }, "unknown source"},
		{"auth missing api key", func(c *Config) { c.Auth.Enabled = true }, "auth.api_key"},
		{"topic without project", func(c *Config) { c.PubSub.TopicName = "searches" }, "pubsub.project_id"},
		{"sample ratio", func(c *Config) { c.Tracing.SampleRatio = 2 }, "tracing.sample_ratio"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
