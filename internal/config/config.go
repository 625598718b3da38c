package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"govukmcp/internal/models"
)

const (
	envPrefix = "GOVUK_MCP_"

	// envRateLimitPrefix introduces per-endpoint limits, e.g.
	// GOVUK_MCP_RATE_LIMIT_POSTCODES_IO=300.
	envRateLimitPrefix = envPrefix + "RATE_LIMIT_"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnvironment(config)

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadDotEnv populates the process environment from a dotenv file. Variables
// already set take precedence. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	slog.Debug("Loaded env file", "path", path)
	return nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file not found: %s", filePath)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	if transport := os.Getenv(envPrefix + "TRANSPORT"); transport != "" {
		config.Server.Transport = strings.ToLower(transport)
	}

	if host := os.Getenv(envPrefix + "HOST"); host != "" {
		config.Server.Host = host
	}

	setInt(envPrefix+"PORT", &config.Server.Port)
	setDuration(envPrefix+"READ_TIMEOUT", &config.Server.ReadTimeout)
	setDuration(envPrefix+"WRITE_TIMEOUT", &config.Server.WriteTimeout)
	setDuration(envPrefix+"IDLE_TIMEOUT", &config.Server.IdleTimeout)
	setDuration(envPrefix+"SHUTDOWN_TIMEOUT", &config.Server.ShutdownTimeout)

	// Security configuration
	if token := os.Getenv(envPrefix + "ADMIN_TOKEN"); token != "" {
		config.Security.AdminToken = token
	}

	setBool(envPrefix+"CLIENT_RATE_LIMIT_ENABLED", &config.Security.ClientRateLimit.Enabled)
	setInt(envPrefix+"CLIENT_REQUESTS_PER_MINUTE", &config.Security.ClientRateLimit.RequestsPerMinute)

	if proxies := os.Getenv(envPrefix + "TRUSTED_PROXIES"); proxies != "" {
		config.Security.ClientRateLimit.TrustedProxies = nil
		for _, proxy := range strings.Split(proxies, ",") {
			if proxy = strings.TrimSpace(proxy); proxy != "" {
				config.Security.ClientRateLimit.TrustedProxies = append(config.Security.ClientRateLimit.TrustedProxies, proxy)
			}
		}
	}

	// Upstream rate limits
	setInt(envPrefix+"DEFAULT_REQUESTS_PER_MINUTE", &config.RateLimits.DefaultRequestsPerMinute)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, envRateLimitPrefix) {
			continue
		}
		endpoint := strings.ToLower(strings.TrimPrefix(name, envRateLimitPrefix))
		rpm, err := strconv.Atoi(value)
		if err != nil || endpoint == "" {
			slog.Warn("Ignoring invalid rate limit override", "variable", name)
			continue
		}
		if config.RateLimits.Endpoints == nil {
			config.RateLimits.Endpoints = make(map[string]int)
		}
		config.RateLimits.Endpoints[endpoint] = rpm
	}

	// Upstream access. The key variables keep their conventional names.
	setDuration(envPrefix+"UPSTREAM_TIMEOUT", &config.Upstream.Timeout)

	if ua := os.Getenv(envPrefix + "USER_AGENT"); ua != "" {
		config.Upstream.UserAgent = ua
	}

	if key := os.Getenv("COMPANIES_HOUSE_API_KEY"); key != "" {
		config.Upstream.CompaniesHouseAPIKey = key
	}

	if key := os.Getenv("TFL_API_KEY"); key != "" {
		config.Upstream.TfLAPIKey = key
	}

	// Logging configuration
	if level := os.Getenv(envPrefix + "LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if format := os.Getenv(envPrefix + "LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if output := os.Getenv(envPrefix + "LOG_OUTPUT"); output != "" {
		config.Logging.Output = output
	}

	if filePath := os.Getenv(envPrefix + "LOG_FILE_PATH"); filePath != "" {
		config.Logging.FilePath = filePath
	}

	// Metrics configuration
	setBool(envPrefix+"METRICS_ENABLED", &config.Metrics.Enabled)

	if path := os.Getenv(envPrefix + "METRICS_PATH"); path != "" {
		config.Metrics.Path = path
	}

	setInt(envPrefix+"METRICS_PORT", &config.Metrics.Port)

	// Tracing configuration
	setBool(envPrefix+"TRACING_ENABLED", &config.Observability.Tracing.Enabled)

	if exporter := os.Getenv(envPrefix + "TRACING_EXPORTER"); exporter != "" {
		config.Observability.Tracing.Exporter = exporter
	}

	if endpoint := os.Getenv(envPrefix + "OTLP_ENDPOINT"); endpoint != "" {
		config.Observability.Tracing.OTLPEndpoint = endpoint
	}
}

func setInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(name string, dst *bool) {
	if v := os.Getenv(name); v != "" {
		*dst = strings.ToLower(v) == "true"
	}
}

func setDuration(name string, dst *time.Duration) {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// SaveExample saves an example configuration file
func SaveExample(filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()

	config.Server.Transport = models.TransportHTTP
	config.Security.AdminToken = "change-me"
	config.RateLimits.Endpoints = map[string]int{
		"postcodes_io": 300,
		"tfl":          500,
	}
	config.Metrics.Enabled = true

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
