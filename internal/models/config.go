// Package models - Service configuration and operational settings.
// This file defines the configuration structures for every gateway component.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, node, rate limits, etc.)
// - Defaults mirror the original plugin options (127.0.0.1:8809, 2000/day + 20/minute)
// - Validation catches misconfigurations before any listener is bound
// - Every value can be overridden from the environment for container deployments
package models

import (
	"errors"
	"fmt"
	"time"
)

// Rate limit backend constants
const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// Config is the root configuration structure containing all service settings.
//
// Configuration Structure:
// - Server: invoice listener bind address and HTTP settings
// - Node: connection to the Lightning node that issues invoices
// - Invoice: normalisation rules applied by the gateway endpoints
// - Security: the secret guarding the admin control API
// - RateLimit: default and per-route quotas
// - Admin: control API and metrics listener
// - Logging, Metrics, Observability: ambient operational settings
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Node          NodeConfig          `yaml:"node" json:"node"`
	Invoice       InvoiceConfig       `yaml:"invoice" json:"invoice"`
	Security      SecurityConfig      `yaml:"security" json:"security"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" json:"rate_limit"`
	Admin         AdminConfig         `yaml:"admin" json:"admin"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port              int           `yaml:"port" json:"port"`
	Host              string        `yaml:"host" json:"host"`
	ReadTimeout       time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	TLSEnabled        bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile       string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile        string        `yaml:"tls_key_file" json:"tls_key_file"`
	MaxConnections    int           `yaml:"max_connections" json:"max_connections"`         // 0 disables the cap
	AcceptRate        float64       `yaml:"accept_rate" json:"accept_rate"`                 // new connections per second, 0 disables
	AcceptBurst       int           `yaml:"accept_burst" json:"accept_burst"`               // burst for AcceptRate
	TrustProxyHeaders bool          `yaml:"trust_proxy_headers" json:"trust_proxy_headers"` // key clients by X-Forwarded-For
}

// Addr returns the host:port pair the invoice listener binds to.
func (sc ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", sc.Host, sc.Port)
}

type NodeConfig struct {
	RPCFile string        `yaml:"rpc_file" json:"rpc_file"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

type InvoiceConfig struct {
	LabelPrefix      string `yaml:"label_prefix" json:"label_prefix"`
	AmountMultiplier uint64 `yaml:"amount_multiplier" json:"amount_multiplier"`
	MaxCommentLength int    `yaml:"max_comment_length" json:"max_comment_length"`
}

type SecurityConfig struct {
	Secret        string `yaml:"secret" json:"-"`
	RequireSecret bool   `yaml:"require_secret" json:"require_secret"`

	// SecretGenerated is set by the loader when Secret was minted at startup.
	SecretGenerated bool `yaml:"-" json:"-"`
}

// QuotaConfig caps a client to Limit requests in any Window.
type QuotaConfig struct {
	Limit  int           `yaml:"limit" json:"limit"`
	Window time.Duration `yaml:"window" json:"window"`
}

func (q QuotaConfig) String() string {
	return fmt.Sprintf("%d per %s", q.Limit, q.Window)
}

type RateLimitConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	Backend         string        `yaml:"backend" json:"backend"`
	DefaultLimits   []QuotaConfig `yaml:"default_limits" json:"default_limits"`
	RouteLimits     []QuotaConfig `yaml:"route_limits" json:"route_limits"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
	Redis           RedisConfig   `yaml:"redis" json:"redis"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"-"`
	DB        int    `yaml:"db" json:"db"`
	PoolSize  int    `yaml:"pool_size" json:"pool_size"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

type AdminConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Host    string `yaml:"host" json:"host"`
	Port    int    `yaml:"port" json:"port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with the gateway's defaults.
//
// Default Values Rationale:
// - 127.0.0.1:8809: the node-local bind used by the original plugin
// - 2000 per day and 20 per minute per client, plus 20 per minute per route
// - Admin API on loopback only; it is authenticated with the secret
// - Amounts on the path endpoint are whole satoshis (x1000 to millisatoshis)
// - Comments are truncated to 640 characters
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8809,
			Host:            "127.0.0.1",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			AcceptBurst:     50,
		},
		Node: NodeConfig{
			RPCFile: "lightning-rpc",
			Timeout: 30 * time.Second,
		},
		Invoice: InvoiceConfig{
			LabelPrefix:      "ln-getinvoice-",
			AmountMultiplier: 1000,
			MaxCommentLength: 640,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Backend: RateLimitBackendMemory,
			DefaultLimits: []QuotaConfig{
				{Limit: 2000, Window: 24 * time.Hour},
				{Limit: 20, Window: time.Minute},
			},
			RouteLimits: []QuotaConfig{
				{Limit: 20, Window: time.Minute},
			},
			CleanupInterval: 5 * time.Minute,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				PoolSize:  10,
				KeyPrefix: "requestinvoice:ratelimit",
			},
		},
		Admin: AdminConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8810,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Observability: ObservabilityConfig{
			ServiceName: "requestinvoice",
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

	if err := c.Node.Validate(); err != nil {
		return fmt.Errorf("invalid node config: %w", err)
	}

	if err := c.Invoice.Validate(); err != nil {
		return fmt.Errorf("invalid invoice config: %w", err)
	}

	if err := c.Security.Validate(); err != nil {
		return fmt.Errorf("invalid security config: %w", err)
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("invalid rate limit config: %w", err)
	}

	if err := c.Admin.Validate(); err != nil {
		return fmt.Errorf("invalid admin config: %w", err)
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

	if c.Admin.Enabled && c.Admin.Host == c.Server.Host && c.Admin.Port == c.Server.Port {
		return errors.New("admin listener cannot share the invoice server address")
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
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

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	if sc.MaxConnections < 0 {
		return errors.New("max connections cannot be negative")
	}

	if sc.AcceptRate < 0 {
		return errors.New("accept rate cannot be negative")
	}

	if sc.AcceptRate > 0 && sc.AcceptBurst <= 0 {
		return errors.New("accept burst must be positive when accept rate is set")
	}

	return nil
}

func (nc *NodeConfig) Validate() error {
	if nc.RPCFile == "" {
		return errors.New("rpc file cannot be empty")
	}

	if nc.Timeout < 0 {
		return errors.New("rpc timeout cannot be negative")
	}

	return nil
}

func (ic *InvoiceConfig) Validate() error {
	if ic.AmountMultiplier == 0 {
		return errors.New("amount multiplier must be positive")
	}

	if ic.MaxCommentLength < 0 {
		return errors.New("max comment length cannot be negative")
	}

	return nil
}

func (sec *SecurityConfig) Validate() error {
	if sec.RequireSecret && sec.Secret == "" {
		return errors.New("secret is required but not configured")
	}

	return nil
}

func (rl *RateLimitConfig) Validate() error {
	if !rl.Enabled {
		return nil
	}

	validBackends := []string{RateLimitBackendMemory, RateLimitBackendRedis}
	found := false
	for _, vb := range validBackends {
		if rl.Backend == vb {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid rate limit backend: %s", rl.Backend)
	}

	if len(rl.DefaultLimits) == 0 && len(rl.RouteLimits) == 0 {
		return errors.New("at least one quota is required when rate limiting is enabled")
	}

	for _, q := range append(append([]QuotaConfig{}, rl.DefaultLimits...), rl.RouteLimits...) {
		if q.Limit <= 0 {
			return fmt.Errorf("quota %s: limit must be positive", q)
		}
		if q.Window <= 0 {
			return fmt.Errorf("quota %s: window must be positive", q)
		}
	}

	if rl.Backend == RateLimitBackendMemory && rl.CleanupInterval <= 0 {
		return errors.New("cleanup interval must be positive for the memory backend")
	}

	if rl.Backend == RateLimitBackendRedis && rl.Redis.Addr == "" {
		return errors.New("Redis address is required when backend is redis")
	}

	return nil
}

func (ac *AdminConfig) Validate() error {
	if !ac.Enabled {
		return nil
	}

	if ac.Host == "" {
		return errors.New("admin host cannot be empty")
	}

	if ac.Port <= 0 || ac.Port > 65535 {
		return errors.New("admin port must be between 1 and 65535")
	}

	return nil
}

func (lc *LoggingConfig) Validate() error {
	validLevels := []string{"debug", "info", "warn", "error"}
	found := false
	for _, vl := range validLevels {
		if lc.Level == vl {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	validFormats := []string{"json", "text"}
	found = false
	for _, vf := range validFormats {
		if lc.Format == vf {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	validOutputs := []string{"stdout", "stderr", "file"}
	found = false
	for _, vo := range validOutputs {
		if lc.Output == vo {
			found = true
			break
		}
	}
	if !found {
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

	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if !oc.Tracing.Enabled {
		return nil
	}

	if oc.ServiceName == "" {
		return errors.New("service name is required when tracing is enabled")
	}

	switch oc.Tracing.Exporter {
	case "stdout":
	case "otlp":
		if oc.Tracing.OTLPEndpoint == "" {
			return errors.New("OTLP endpoint is required for the otlp exporter")
		}
	default:
		return fmt.Errorf("invalid trace exporter: %s", oc.Tracing.Exporter)
	}

	if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
		return errors.New("sample rate must be between 0 and 1")
	}

	return nil
}
