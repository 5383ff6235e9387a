package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mir00r/giftcert-router/internal/domain"
	"gopkg.in/yaml.v2"
)

// Config represents the main configuration structure
type Config struct {
	Environment string                 `yaml:"environment"`
	ServiceName string                 `yaml:"service_name"`
	Server      ServerConfig           `yaml:"server"`
	Database    domain.ProbeConfig     `yaml:"database"`
	Databases   []domain.ReplicaConfig `yaml:"databases"`
	Registry    RegistryConfig         `yaml:"registry"`
	Logging     LoggingConfig          `yaml:"logging"`
	Auth        domain.AuthConfig      `yaml:"auth"`
	RateLimit   domain.RateLimitConfig `yaml:"rate_limit"`
	CORSOrigins []string               `yaml:"cors_origins"`
	Metrics     MetricsConfig          `yaml:"metrics"`
	GRPC        GRPCConfig             `yaml:"grpc"`

	// Source is the file the configuration was read from, if any
	Source string `yaml:"-"`

	databasesFromEnv bool
}

// ServerConfig contains HTTP server specific configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RegistryConfig controls where the replica list is read from.
// An empty File means the databases section of this configuration.
type RegistryConfig struct {
	File  string `yaml:"file"`
	Watch bool   `yaml:"watch"`
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// GRPCConfig toggles the gRPC health service served next to the REST API
type GRPCConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level   string        `yaml:"level"`
	Format  string        `yaml:"format"`
	Output  string        `yaml:"output"`
	File    string        `yaml:"file"`
	Shipper ShipperConfig `yaml:"shipper"`
}

// ShipperConfig configures remote log shipping
type ShipperConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host"`
	UDPPort  int           `yaml:"udp_port"`
	HTTPPort int           `yaml:"http_port"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		ServiceName: "CertInfo",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: domain.ProbeConfig{
			Driver:       "postgres",
			Timeout:      time.Second,
			QueryTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			Shipper: ShipperConfig{
				UDPPort:  12201,
				HTTPPort: 8081,
				Timeout:  5 * time.Second,
			},
		},
		RateLimit: domain.RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 100,
			BurstSize:         200,
		},
		CORSOrigins: []string{"*"},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		GRPC: GRPCConfig{
			Enabled: true,
		},
	}
}

// parseFile reads a YAML file on top of the defaults without validating it
func parseFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	config.Source = filename

	return config, nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) (*Config, error) {
	config, err := parseFile(filename)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate validates the configuration for correctness
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name cannot be empty")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}

	switch c.Database.Driver {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database.probe_timeout must be positive: %v", c.Database.Timeout)
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("database.query_timeout must be positive: %v", c.Database.QueryTimeout)
	}
	if _, err := c.Database.RoleQueries(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if c.RegistryFile() == "" || c.RegistryFile() == c.Source {
		for i, replica := range c.Databases {
			if err := replica.Validate(); err != nil {
				return fmt.Errorf("databases[%d]: %w", i, err)
			}
		}
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	validOutputs := map[string]bool{"stdout": true, "stderr": true, "file": true}
	if !validOutputs[c.Logging.Output] {
		return fmt.Errorf("invalid log output: %s", c.Logging.Output)
	}

	if c.Logging.Shipper.Enabled {
		if c.Logging.Shipper.Host == "" {
			return fmt.Errorf("logging.shipper.host cannot be empty")
		}
		if c.Logging.Shipper.UDPPort <= 0 || c.Logging.Shipper.UDPPort > 65535 {
			return fmt.Errorf("invalid logging.shipper.udp_port: %d", c.Logging.Shipper.UDPPort)
		}
		if c.Logging.Shipper.HTTPPort <= 0 || c.Logging.Shipper.HTTPPort > 65535 {
			return fmt.Errorf("invalid logging.shipper.http_port: %d", c.Logging.Shipper.HTTPPort)
		}
	}

	if c.Auth.Enabled && c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required when auth is enabled")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limit.requests_per_second must be positive")
		}
		if c.RateLimit.BurstSize <= 0 {
			return fmt.Errorf("rate_limit.burst_size must be positive")
		}
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return fmt.Errorf("metrics.path cannot be empty")
	}

	return nil
}

// RegistryFile returns the YAML file the replica list is re-read from.
// It is empty when the replicas are fixed for the process lifetime, which
// is the case without a config file or when GC_DATABASES overrides them.
func (c *Config) RegistryFile() string {
	if c.Registry.File != "" {
		return c.Registry.File
	}
	if c.databasesFromEnv {
		return ""
	}
	return c.Source
}
