// Package models - Service configuration and operational settings.
// This file defines the configuration structures for every service component.
//
// Configuration Layout:
// - Server: transport selection and HTTP listener settings
// - Security: admin token and inbound client rate limiting
// - RateLimits: per-endpoint overrides for the upstream token buckets
// - Upstream: HTTP client settings, API keys and base URLs
// - Logging, Metrics, Observability: operational output
package models

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"slices"
	"time"
)

// Transport constants
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`               // Transport and HTTP listener
	Security      SecurityConfig      `yaml:"security" json:"security"`           // Admin access and inbound limits
	RateLimits    RateLimitsConfig    `yaml:"rate_limits" json:"rate_limits"`     // Upstream bucket limits
	Upstream      UpstreamConfig      `yaml:"upstream" json:"upstream"`           // Government API access
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`             // Logging and output configuration
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`             // Prometheus endpoint
	Observability ObservabilityConfig `yaml:"observability" json:"observability"` // Tracing
}

type ServerConfig struct {
	Transport       string        `yaml:"transport" json:"transport"`
	Port            int           `yaml:"port" json:"port"`
	Host            string        `yaml:"host" json:"host"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

type SecurityConfig struct {
	// AdminToken guards the bucket reset endpoint. Empty disables it.
	AdminToken      string                `yaml:"admin_token" json:"-"`
	ClientRateLimit ClientRateLimitConfig `yaml:"client_rate_limit" json:"client_rate_limit"`
}

type ClientRateLimitConfig struct {
	Enabled           bool `yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" json:"requests_per_minute"`
	// TrustedProxies are IPs or CIDR prefixes whose forwarding headers name
	// the client. Requests from any other peer are keyed on the peer address.
	TrustedProxies []string `yaml:"trusted_proxies" json:"trusted_proxies"`
}

// RateLimitsConfig overrides the built-in upstream limit table.
type RateLimitsConfig struct {
	Endpoints                map[string]int `yaml:"endpoints" json:"endpoints"`
	DefaultRequestsPerMinute int            `yaml:"default_requests_per_minute" json:"default_requests_per_minute"`
}

type UpstreamConfig struct {
	Timeout              time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent            string        `yaml:"user_agent" json:"user_agent"`
	CompaniesHouseAPIKey string        `yaml:"companies_house_api_key" json:"-"`
	TfLAPIKey            string        `yaml:"tfl_api_key" json:"-"`
	BaseURLs             UpstreamURLs  `yaml:"base_urls" json:"base_urls"`
}

// UpstreamURLs holds the base URL of each government API. Tests point these
// at local fakes.
type UpstreamURLs struct {
	Postcodes       string `yaml:"postcodes" json:"postcodes"`
	BankHolidays    string `yaml:"bank_holidays" json:"bank_holidays"`
	TfL             string `yaml:"tfl" json:"tfl"`
	CompaniesHouse  string `yaml:"companies_house" json:"companies_house"`
	FoodHygiene     string `yaml:"food_hygiene" json:"food_hygiene"`
	FloodMonitoring string `yaml:"flood_monitoring" json:"flood_monitoring"`
	Police          string `yaml:"police" json:"police"`
	Hansard         string `yaml:"hansard" json:"hansard"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	Output     string `yaml:"output" json:"output"`
	FilePath   string `yaml:"file_path" json:"file_path"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
}

// NewDefaultConfig creates a configuration that runs the stdio transport
// against the public government endpoints.
//
// Default Values:
// - stdio transport: the common deployment as a desktop MCP tool server
// - 10-second upstream timeout, well inside the listener timeouts
// - Client rate limiting on for the HTTP transport
// - Empty rate limit overrides: the built-in endpoint table applies
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Transport:       TransportStdio,
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			ClientRateLimit: ClientRateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
			},
		},
		RateLimits: RateLimitsConfig{
			Endpoints: make(map[string]int),
		},
		Upstream: UpstreamConfig{
			Timeout:   10 * time.Second,
			UserAgent: "", // govuk-mcp/<version>
			BaseURLs: UpstreamURLs{
				Postcodes:       "https://api.postcodes.io",
				BankHolidays:    "https://www.gov.uk/bank-holidays.json",
				TfL:             "https://api.tfl.gov.uk",
				CompaniesHouse:  "https://api.company-information.service.gov.uk",
				FoodHygiene:     "https://api.ratings.food.gov.uk",
				FloodMonitoring: "https://environment.data.gov.uk/flood-monitoring",
				Police:          "https://data.police.uk/api",
				Hansard:         "https://hansard-api.parliament.uk",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "govuk-mcp",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Security.Validate(); err != nil {
		return fmt.Errorf("invalid security config: %w", err)
	}

	if err := c.RateLimits.Validate(); err != nil {
		return fmt.Errorf("invalid rate limits config: %w", err)
	}

	if err := c.Upstream.Validate(); err != nil {
		return fmt.Errorf("invalid upstream config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Transport != TransportStdio && sc.Transport != TransportHTTP {
		return fmt.Errorf("invalid transport: %s", sc.Transport)
	}

	if sc.Transport == TransportStdio {
		// The listener settings are unused.
		return nil
	}

	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 {
		return errors.New("read timeout cannot be negative")
	}

	if sc.WriteTimeout < 0 {
		return errors.New("write timeout cannot be negative")
	}

	if sc.IdleTimeout < 0 {
		return errors.New("idle timeout cannot be negative")
	}

	if sc.ShutdownTimeout < 0 {
		return errors.New("shutdown timeout cannot be negative")
	}

	return nil
}

func (sec *SecurityConfig) Validate() error {
	if sec.ClientRateLimit.Enabled && sec.ClientRateLimit.RequestsPerMinute <= 0 {
		return errors.New("client requests per minute must be positive when client rate limiting is enabled")
	}
	for _, proxy := range sec.ClientRateLimit.TrustedProxies {
		if _, err := netip.ParsePrefix(proxy); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(proxy); err != nil {
			return fmt.Errorf("invalid trusted proxy %q", proxy)
		}
	}
	return nil
}

func (rc *RateLimitsConfig) Validate() error {
	for endpoint, rpm := range rc.Endpoints {
		if endpoint == "" {
			return errors.New("rate limit endpoint name cannot be empty")
		}
		if rpm <= 0 {
			return fmt.Errorf("rate limit for %s must be positive", endpoint)
		}
	}

	if rc.DefaultRequestsPerMinute < 0 {
		return errors.New("default requests per minute cannot be negative")
	}

	return nil
}

// Overrides returns the limit table entries to merge over the built-in
// defaults. A positive DefaultRequestsPerMinute is stored under "default".
func (rc *RateLimitsConfig) Overrides() map[string]int {
	overrides := make(map[string]int, len(rc.Endpoints)+1)
	for endpoint, rpm := range rc.Endpoints {
		overrides[endpoint] = rpm
	}
	if rc.DefaultRequestsPerMinute > 0 {
		overrides["default"] = rc.DefaultRequestsPerMinute
	}
	return overrides
}

func (uc *UpstreamConfig) Validate() error {
	if uc.Timeout <= 0 {
		return errors.New("upstream timeout must be positive")
	}

	urls := map[string]string{
		"postcodes":        uc.BaseURLs.Postcodes,
		"bank_holidays":    uc.BaseURLs.BankHolidays,
		"tfl":              uc.BaseURLs.TfL,
		"companies_house":  uc.BaseURLs.CompaniesHouse,
		"food_hygiene":     uc.BaseURLs.FoodHygiene,
		"flood_monitoring": uc.BaseURLs.FloodMonitoring,
		"police":           uc.BaseURLs.Police,
		"hansard":          uc.BaseURLs.Hansard,
	}
	for name, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid %s base URL: %q", name, raw)
		}
	}

	return nil
}

func (lc *LoggingConfig) Validate() error {
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, lc.Level) {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	if !slices.Contains([]string{"json", "text"}, lc.Format) {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	if !slices.Contains([]string{"stdout", "stderr", "file"}, lc.Output) {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if !oc.Tracing.Enabled {
		return nil
	}

	if oc.Tracing.Exporter != "stdout" && oc.Tracing.Exporter != "otlp" {
		return fmt.Errorf("invalid tracing exporter: %s", oc.Tracing.Exporter)
	}

	if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
		return errors.New("tracing sample rate must be between 0 and 1")
	}

	if oc.Tracing.Exporter == "otlp" && oc.Tracing.OTLPEndpoint == "" {
		return errors.New("OTLP endpoint is required when tracing exporter is otlp")
	}

	return nil
}
