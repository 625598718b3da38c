package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	// Test server defaults
	assert.Equal(t, TransportStdio, config.Server.Transport)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 30*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, config.Server.ShutdownTimeout)

	// Test security defaults
	assert.Empty(t, config.Security.AdminToken)
	assert.True(t, config.Security.ClientRateLimit.Enabled)
	assert.Equal(t, 120, config.Security.ClientRateLimit.RequestsPerMinute)

	// Test rate limit defaults
	assert.Empty(t, config.RateLimits.Endpoints)
	assert.Zero(t, config.RateLimits.DefaultRequestsPerMinute)

	// Test upstream defaults
	assert.Equal(t, 10*time.Second, config.Upstream.Timeout)
	assert.Equal(t, "https://api.postcodes.io", config.Upstream.BaseURLs.Postcodes)
	assert.Equal(t, "https://api.tfl.gov.uk", config.Upstream.BaseURLs.TfL)
	assert.Empty(t, config.Upstream.CompaniesHouseAPIKey)

	// Test logging defaults
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
	assert.Equal(t, "stdout", config.Logging.Output)

	// Test metrics defaults
	assert.False(t, config.Metrics.Enabled)
	assert.Equal(t, "/metrics", config.Metrics.Path)
	assert.Equal(t, 9090, config.Metrics.Port)

	// Test observability defaults
	assert.Equal(t, "govuk-mcp", config.Observability.ServiceName)
	assert.False(t, config.Observability.Tracing.Enabled)
	assert.Equal(t, "stdout", config.Observability.Tracing.Exporter)
	assert.Equal(t, 1.0, config.Observability.Tracing.SampleRate)

	assert.NoError(t, config.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*Config)
		errorMsg string
	}{
		{
			name:     "invalid server",
			modify:   func(c *Config) { c.Server.Transport = "grpc" },
			errorMsg: "invalid server config",
		},
		{
			name:     "invalid security",
			modify:   func(c *Config) { c.Security.ClientRateLimit.RequestsPerMinute = 0 },
			errorMsg: "invalid security config",
		},
		{
			name:     "invalid trusted proxy",
			modify:   func(c *Config) { c.Security.ClientRateLimit.TrustedProxies = []string{"10.0.0.0/8", "proxy.local"} },
			errorMsg: "invalid security config",
		},
		{
			name:     "invalid rate limits",
			modify:   func(c *Config) { c.RateLimits.Endpoints["tfl"] = 0 },
			errorMsg: "invalid rate limits config",
		},
		{
			name:     "invalid upstream",
			modify:   func(c *Config) { c.Upstream.Timeout = 0 },
			errorMsg: "invalid upstream config",
		},
		{
			name:     "invalid logging",
			modify:   func(c *Config) { c.Logging.Level = "verbose" },
			errorMsg: "invalid logging config",
		},
		{
			name: "invalid metrics",
			modify: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Port = 0
			},
			errorMsg: "invalid metrics config",
		},
		{
			name: "invalid observability",
			modify: func(c *Config) {
				c.Observability.Tracing.Enabled = true
				c.Observability.Tracing.Exporter = "zipkin"
			},
			errorMsg: "invalid observability config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.modify(config)

			err := config.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestServerConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      ServerConfig
		expectError bool
		errorMsg    string
	}{
		{
			name:        "stdio ignores listener settings",
			config:      ServerConfig{Transport: TransportStdio},
			expectError: false,
		},
		{
			name: "valid http config",
			config: ServerConfig{
				Transport:    TransportHTTP,
				Port:         8080,
				Host:         "localhost",
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  60 * time.Second,
			},
			expectError: false,
		},
		{
			name:        "unknown transport",
			config:      ServerConfig{Transport: "sse"},
			expectError: true,
			errorMsg:    "invalid transport: sse",
		},
		{
			name:        "invalid port - negative",
			config:      ServerConfig{Transport: TransportHTTP, Port: -1, Host: "localhost"},
			expectError: true,
			errorMsg:    "port must be between 1 and 65535",
		},
		{
			name:        "invalid port - too high",
			config:      ServerConfig{Transport: TransportHTTP, Port: 70000, Host: "localhost"},
			expectError: true,
			errorMsg:    "port must be between 1 and 65535",
		},
		{
			name:        "empty host",
			config:      ServerConfig{Transport: TransportHTTP, Port: 8080},
			expectError: true,
			errorMsg:    "host cannot be empty",
		},
		{
			name:        "negative read timeout",
			config:      ServerConfig{Transport: TransportHTTP, Port: 8080, Host: "localhost", ReadTimeout: -time.Second},
			expectError: true,
			errorMsg:    "read timeout cannot be negative",
		},
		{
			name:        "negative shutdown timeout",
			config:      ServerConfig{Transport: TransportHTTP, Port: 8080, Host: "localhost", ShutdownTimeout: -time.Second},
			expectError: true,
			errorMsg:    "shutdown timeout cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRateLimitsConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      RateLimitsConfig
		expectError bool
		errorMsg    string
	}{
		{
			name:        "empty",
			config:      RateLimitsConfig{},
			expectError: false,
		},
		{
			name:        "valid overrides",
			config:      RateLimitsConfig{Endpoints: map[string]int{"tfl": 250}, DefaultRequestsPerMinute: 30},
			expectError: false,
		},
		{
			name:        "zero limit",
			config:      RateLimitsConfig{Endpoints: map[string]int{"tfl": 0}},
			expectError: true,
			errorMsg:    "rate limit for tfl must be positive",
		},
		{
			name:        "empty endpoint name",
			config:      RateLimitsConfig{Endpoints: map[string]int{"": 10}},
			expectError: true,
			errorMsg:    "endpoint name cannot be empty",
		},
		{
			name:        "negative default",
			config:      RateLimitsConfig{DefaultRequestsPerMinute: -1},
			expectError: true,
			errorMsg:    "default requests per minute cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRateLimitsConfig_Overrides(t *testing.T) {
	config := RateLimitsConfig{
		Endpoints:                map[string]int{"tfl": 250, "postcodes_io": 600},
		DefaultRequestsPerMinute: 30,
	}

	assert.Equal(t, map[string]int{"tfl": 250, "postcodes_io": 600, "default": 30}, config.Overrides())

	config.DefaultRequestsPerMinute = 0
	assert.NotContains(t, config.Overrides(), "default")
}

func TestUpstreamConfig_Validate(t *testing.T) {
	config := NewDefaultConfig().Upstream
	assert.NoError(t, config.Validate())

	config.BaseURLs.Police = "not a url"
	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid police base URL")

	config = NewDefaultConfig().Upstream
	config.Timeout = -time.Second
	assert.EqualError(t, config.Validate(), "upstream timeout must be positive")
}

func TestLoggingConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      LoggingConfig
		expectError bool
		errorMsg    string
	}{
		{"valid", LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, false, ""},
		{"valid file", LoggingConfig{Level: "debug", Format: "text", Output: "file", FilePath: "/tmp/x.log"}, false, ""},
		{"invalid level", LoggingConfig{Level: "trace", Format: "json", Output: "stdout"}, true, "invalid log level: trace"},
		{"invalid format", LoggingConfig{Level: "info", Format: "xml", Output: "stdout"}, true, "invalid log format: xml"},
		{"invalid output", LoggingConfig{Level: "info", Format: "json", Output: "syslog"}, true, "invalid log output: syslog"},
		{"file without path", LoggingConfig{Level: "info", Format: "json", Output: "file"}, true, "file path is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMetricsConfig_Validate(t *testing.T) {
	assert.NoError(t, (&MetricsConfig{Enabled: false}).Validate())
	assert.NoError(t, (&MetricsConfig{Enabled: true, Path: "/metrics", Port: 9090}).Validate())
	assert.EqualError(t, (&MetricsConfig{Enabled: true, Port: 9090}).Validate(), "metrics path cannot be empty")
	assert.EqualError(t, (&MetricsConfig{Enabled: true, Path: "/metrics"}).Validate(), "metrics port must be between 1 and 65535")
}

func TestObservabilityConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      ObservabilityConfig
		expectError bool
		errorMsg    string
	}{
		{
			name:        "tracing disabled",
			config:      ObservabilityConfig{Tracing: TracingConfig{Enabled: false}},
			expectError: false,
		},
		{
			name:        "valid stdout tracing",
			config:      ObservabilityConfig{Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SampleRate: 1.0}},
			expectError: false,
		},
		{
			name: "valid otlp tracing",
			config: ObservabilityConfig{Tracing: TracingConfig{
				Enabled:      true,
				Exporter:     "otlp",
				SampleRate:   0.5,
				OTLPEndpoint: "localhost:4317",
			}},
			expectError: false,
		},
		{
			name:        "invalid exporter",
			config:      ObservabilityConfig{Tracing: TracingConfig{Enabled: true, Exporter: "invalid", SampleRate: 1.0}},
			expectError: true,
			errorMsg:    "invalid tracing exporter: invalid",
		},
		{
			name:        "sample rate above 1",
			config:      ObservabilityConfig{Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SampleRate: 1.5}},
			expectError: true,
			errorMsg:    "tracing sample rate must be between 0 and 1",
		},
		{
			name:        "otlp without endpoint",
			config:      ObservabilityConfig{Tracing: TracingConfig{Enabled: true, Exporter: "otlp", SampleRate: 1.0}},
			expectError: true,
			errorMsg:    "OTLP endpoint is required when tracing exporter is otlp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
