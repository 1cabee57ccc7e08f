// Package config loads and validates aggregator configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/job-aggregator/internal/source"
)

// EnvPrefix prefixes every environment override, e.g. JOBAGG_SERVER_PORT.
const EnvPrefix = "JOBAGG"

const keyDelimiter = "::"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Search    SearchConfig    `mapstructure:"search"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// HTTPConfig configures the provider HTTP client and its retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
	UserAgent        string `mapstructure:"user_agent"`
}

// RateLimitConfig configures per-host request pacing.
type RateLimitConfig struct {
	Enabled      bool               `mapstructure:"enabled"`
	DefaultRPS   float64            `mapstructure:"default_rps"`
	DefaultBurst int                `mapstructure:"default_burst"`
	HostRPS      map[string]float64 `mapstructure:"host_rps"`
}

// HeadlessConfig configures the shared headless browser.
type HeadlessConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	MarkerWaitSeconds int    `mapstructure:"marker_wait_seconds"`
	UserAgent         string `mapstructure:"user_agent"`
	MaxTabs           int    `mapstructure:"max_tabs"`
	ExecPath          string `mapstructure:"exec_path"`
}

// SearchConfig holds request defaults and limits.
type SearchConfig struct {
	DefaultQuery           string `mapstructure:"default_query"`
	DefaultLocation        string `mapstructure:"default_location"`
	DefaultMaxResults      int    `mapstructure:"default_max_results"`
	DefaultIncludeScraping bool   `mapstructure:"default_include_scraping"`
	MaxResultsLimit        int    `mapstructure:"max_results_limit"`
	TargetCity             string `mapstructure:"target_city"`
	StageTimeoutSeconds    int    `mapstructure:"stage_timeout_seconds"`
}

// SourcesConfig holds provider credentials and selection.
type SourcesConfig struct {
	Adzuna              AdzunaConfig    `mapstructure:"adzuna"`
	RapidAPIKey         string          `mapstructure:"rapidapi_key"`
	SerpAPIKey          string          `mapstructure:"serpapi_key"`
	LeverCompanies      []string        `mapstructure:"lever_companies"`
	GreenhouseCompanies []string        `mapstructure:"greenhouse_companies"`
	Enabled             map[string]bool `mapstructure:"enabled"`
}

// AdzunaConfig carries the Adzuna credentials.
type AdzunaConfig struct {
	AppID   string `mapstructure:"app_id"`
	AppKey  string `mapstructure:"app_key"`
	Country string `mapstructure:"country"`
}

// ProgressConfig configures the progress hub and its sinks.
type ProgressConfig struct {
	Enabled       bool              `mapstructure:"enabled"`
	LogEnabled    bool              `mapstructure:"log_enabled"`
	BufferSize    int               `mapstructure:"buffer_size"`
	Batch         ProgressBatchConf `mapstructure:"batch"`
	SinkTimeoutMs int               `mapstructure:"sink_timeout_ms"`
}

// ProgressBatchConf bounds hub batches.
type ProgressBatchConf struct {
	MaxEvents int `mapstructure:"max_events"`
	MaxWaitMs int `mapstructure:"max_wait_ms"`
}

// DBConfig controls access to the search history database.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
	Migrate                bool   `mapstructure:"migrate"`
}

// PubSubConfig holds metadata for search-completed notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TracingConfig identifies the service to OpenTelemetry.
type TracingConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	Version     string  `mapstructure:"version"`
	ProjectID   string  `mapstructure:"project_id"`
	Region      string  `mapstructure:"region"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	// Host names under rate_limit.host_rps contain dots, so nesting uses keyDelimiter.
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindProviderEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// bindProviderEnv also accepts the conventional unprefixed credential names.
func bindProviderEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"sources.adzuna.app_id":  {"JOBAGG_SOURCES_ADZUNA_APP_ID", "ADZUNA_APP_ID"},
		"sources.adzuna.app_key": {"JOBAGG_SOURCES_ADZUNA_APP_KEY", "ADZUNA_APP_KEY"},
		"sources.rapidapi_key":   {"JOBAGG_SOURCES_RAPIDAPI_KEY", "RAPIDAPI_KEY"},
		"sources.serpapi_key":    {"JOBAGG_SOURCES_SERPAPI_KEY", "SERPAPI_KEY"},
		"db.dsn":                 {"JOBAGG_DB_DSN", "DATABASE_URL"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{viperKey(key)}, envs...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// viperKey maps a dotted key onto the loader's delimiter.
func viperKey(key string) string {
	return strings.ReplaceAll(key, ".", keyDelimiter)
}

func setDefault(v *viper.Viper, key string, value any) {
	v.SetDefault(viperKey(key), value)
}

func setDefaults(v *viper.Viper) {
	setDefault(v, "server.port", 8080)
	setDefault(v, "server.request_timeout_seconds", 180)
	setDefault(v, "server.shutdown_timeout_seconds", 10)
	setDefault(v, "http.timeout_seconds", 15)
	setDefault(v, "http.max_retries", 0)
	setDefault(v, "http.backoff_initial_ms", 250)
	setDefault(v, "http.backoff_max_ms", 2000)
	setDefault(v, "http.user_agent", "job-aggregator/1.0")
	setDefault(v, "rate_limit.enabled", true)
	setDefault(v, "rate_limit.default_rps", 5.0)
	setDefault(v, "rate_limit.default_burst", 5)
	setDefault(v, "headless.enabled", true)
	setDefault(v, "headless.nav_timeout_seconds", 30)
	setDefault(v, "headless.marker_wait_seconds", 10)
	setDefault(v, "headless.max_tabs", 8)
	setDefault(v, "search.default_query", "software developer")
	setDefault(v, "search.default_location", "hyderabad")
	setDefault(v, "search.default_max_results", 100)
	setDefault(v, "search.default_include_scraping", true)
	setDefault(v, "search.max_results_limit", 500)
	setDefault(v, "search.target_city", "hyderabad")
	setDefault(v, "search.stage_timeout_seconds", 0)
	setDefault(v, "sources.adzuna.country", "in")
	setDefault(v, "progress.enabled", true)
	setDefault(v, "progress.log_enabled", false)
	setDefault(v, "progress.buffer_size", 4096)
	setDefault(v, "progress.batch.max_events", 1000)
	setDefault(v, "progress.batch.max_wait_ms", 500)
	setDefault(v, "progress.sink_timeout_ms", 10000)
	setDefault(v, "db.max_conns", 4)
	setDefault(v, "db.migrate", true)
	setDefault(v, "logging.development", false)
	setDefault(v, "logging.level", "info")
	setDefault(v, "tracing.service_name", "job-aggregator")
	setDefault(v, "tracing.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("server.request_timeout_seconds must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.RateLimit.Enabled && c.RateLimit.DefaultRPS < 0 {
		return fmt.Errorf("rate_limit.default_rps must be >= 0")
	}
	if c.Headless.Enabled && c.Headless.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("headless.nav_timeout_seconds must be > 0 when headless is enabled")
	}
	if c.Search.MaxResultsLimit <= 0 {
		return fmt.Errorf("search.max_results_limit must be > 0")
	}
	if c.Search.DefaultMaxResults < 0 || c.Search.DefaultMaxResults > c.Search.MaxResultsLimit {
		return fmt.Errorf("search.default_max_results must be between 0 and search.max_results_limit")
	}
	if c.Search.StageTimeoutSeconds < 0 {
		return fmt.Errorf("search.stage_timeout_seconds must be >= 0")
	}
	if err := validateSourceIDs(c.Sources.Enabled); err != nil {
		return err
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
	}
	if c.Logging.Level != "" {
		if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
			return fmt.Errorf("logging.level: %w", err)
		}
	}
	return nil
}

func validateSourceIDs(enabled map[string]bool) error {
	known := make(map[string]struct{})
	for _, id := range source.IDs() {
		known[id] = struct{}{}
	}
	for id := range enabled {
		if _, ok := known[strings.ToLower(id)]; !ok {
			return fmt.Errorf("sources.enabled: unknown source %q", id)
		}
	}
	return nil
}

// RequestTimeout bounds one HTTP request to the service; zero disables it.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// HTTPTimeout is the default timeout of one provider call.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// StageTimeout bounds each aggregation stage; zero means unbounded.
func (c Config) StageTimeout() time.Duration {
	return time.Duration(c.Search.StageTimeoutSeconds) * time.Second
}

// NavigationTimeout bounds each browser tab operation.
func (c Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSeconds) * time.Second
}

// MarkerWait bounds the wait for a result marker on rendered pages.
func (c Config) MarkerWait() time.Duration {
	return time.Duration(c.Headless.MarkerWaitSeconds) * time.Second
}
