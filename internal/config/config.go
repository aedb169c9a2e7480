package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"requestinvoice/internal/models"
)

// SecretEnvVar carries the admin secret. It keeps the name the original
// plugin read so existing deployments need no change.
const SecretEnvVar = "REQUEST_INVOICE_SECRET"

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

	if err := resolveSecret(&config.Security); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// resolveSecret mints a random secret when none is configured, unless the
// operator requires one to be set explicitly.
func resolveSecret(sec *models.SecurityConfig) error {
	if sec.Secret != "" {
		return nil
	}
	if sec.RequireSecret {
		return errors.New("security.require_secret is set but no secret was provided (set " + SecretEnvVar + ")")
	}
	sec.Secret = uuid.NewString()
	sec.SecretGenerated = true
	return nil
}

// legacyConfig mirrors the option names of the original node plugin.
type legacyConfig struct {
	Addr string `yaml:"requestinvoice-addr"`
	Port string `yaml:"requestinvoice-port"`
}

// applyLegacyKeys maps plugin-era options onto the server section and warns
// about each one found. Keys under server: in the same file take precedence.
func applyLegacyKeys(config *models.Config, data []byte) {
	var legacy legacyConfig
	if err := yaml.Unmarshal(data, &legacy); err != nil {
		return
	}
	if legacy.Addr != "" {
		config.Server.Host = legacy.Addr
		slog.Warn("Config key is deprecated; use server.host instead.", "config_key", "requestinvoice-addr")
	}
	if legacy.Port != "" {
		if p, err := strconv.Atoi(legacy.Port); err == nil {
			config.Server.Port = p
		}
		slog.Warn("Config key is deprecated; use server.port instead.", "config_key", "requestinvoice-port")
	}
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	applyLegacyKeys(config, data)
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

func envBool(name string, target *bool) {
	if v := os.Getenv(name); v != "" {
		*target = strings.ToLower(v) == "true"
	}
}

func envInt(name string, target *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func envString(name string, target *string) {
	if v := os.Getenv(name); v != "" {
		*target = v
	}
}

func envDuration(name string, target *time.Duration) {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	envString("REQUESTINVOICE_ADDR", &config.Server.Host)
	envInt("REQUESTINVOICE_PORT", &config.Server.Port)
	envDuration("REQUESTINVOICE_READ_TIMEOUT", &config.Server.ReadTimeout)
	envDuration("REQUESTINVOICE_WRITE_TIMEOUT", &config.Server.WriteTimeout)
	envDuration("REQUESTINVOICE_IDLE_TIMEOUT", &config.Server.IdleTimeout)
	envDuration("REQUESTINVOICE_SHUTDOWN_TIMEOUT", &config.Server.ShutdownTimeout)
	envBool("REQUESTINVOICE_TLS_ENABLED", &config.Server.TLSEnabled)
	envString("REQUESTINVOICE_TLS_CERT_FILE", &config.Server.TLSCertFile)
	envString("REQUESTINVOICE_TLS_KEY_FILE", &config.Server.TLSKeyFile)
	envInt("REQUESTINVOICE_MAX_CONNECTIONS", &config.Server.MaxConnections)
	envBool("REQUESTINVOICE_TRUST_PROXY_HEADERS", &config.Server.TrustProxyHeaders)

	// Node configuration
	envString("REQUESTINVOICE_RPC_FILE", &config.Node.RPCFile)
	envDuration("REQUESTINVOICE_RPC_TIMEOUT", &config.Node.Timeout)

	// Security configuration
	envString(SecretEnvVar, &config.Security.Secret)
	envBool("REQUESTINVOICE_REQUIRE_SECRET", &config.Security.RequireSecret)

	// Rate limit configuration
	envBool("REQUESTINVOICE_RATE_LIMIT_ENABLED", &config.RateLimit.Enabled)
	envString("REQUESTINVOICE_RATE_LIMIT_BACKEND", &config.RateLimit.Backend)
	envString("REQUESTINVOICE_REDIS_ADDR", &config.RateLimit.Redis.Addr)
	envString("REQUESTINVOICE_REDIS_PASSWORD", &config.RateLimit.Redis.Password)
	envInt("REQUESTINVOICE_REDIS_DB", &config.RateLimit.Redis.DB)

	// Admin configuration
	envBool("REQUESTINVOICE_ADMIN_ENABLED", &config.Admin.Enabled)
	envString("REQUESTINVOICE_ADMIN_HOST", &config.Admin.Host)
	envInt("REQUESTINVOICE_ADMIN_PORT", &config.Admin.Port)

	// Logging configuration
	envString("REQUESTINVOICE_LOG_LEVEL", &config.Logging.Level)
	envString("REQUESTINVOICE_LOG_FORMAT", &config.Logging.Format)
	envString("REQUESTINVOICE_LOG_OUTPUT", &config.Logging.Output)
	envString("REQUESTINVOICE_LOG_FILE_PATH", &config.Logging.FilePath)

	// Metrics and tracing configuration
	envBool("REQUESTINVOICE_METRICS_ENABLED", &config.Metrics.Enabled)
	envString("REQUESTINVOICE_METRICS_PATH", &config.Metrics.Path)
	envBool("REQUESTINVOICE_TRACING_ENABLED", &config.Observability.Tracing.Enabled)
	envString("REQUESTINVOICE_TRACING_EXPORTER", &config.Observability.Tracing.Exporter)
	envString("REQUESTINVOICE_OTLP_ENDPOINT", &config.Observability.Tracing.OTLPEndpoint)
}

// SaveExample saves an example configuration file
func SaveExample(filePath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Get default config with some example values
	config := models.NewDefaultConfig()

	config.Security.Secret = "replace-with-a-long-random-secret"
	config.Security.RequireSecret = true

	// Example TLS configuration
	config.Server.TLSEnabled = false
	config.Server.TLSCertFile = "/path/to/cert.pem"
	config.Server.TLSKeyFile = "/path/to/key.pem"

	// Marshal to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// Write to file
	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
