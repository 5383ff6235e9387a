package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mir00r/giftcert-router/internal/domain"
)

// LoadFromEnvironment loads configuration from environment variables on top
// of the defaults
func LoadFromEnvironment() (*Config, error) {
	config := DefaultConfig()
	if err := applyEnvironment(config); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvironment overrides config with every GC_* variable that is set
func applyEnvironment(config *Config) error {
	config.Environment = getEnv("GC_ENVIRONMENT", config.Environment)
	config.ServiceName = getEnv("GC_SERVICE_NAME", config.ServiceName)

	// Server
	config.Server.Port = getEnvInt("GC_PORT", config.Server.Port)
	config.Server.ReadTimeout = getEnvDuration("GC_READ_TIMEOUT", config.Server.ReadTimeout)
	config.Server.WriteTimeout = getEnvDuration("GC_WRITE_TIMEOUT", config.Server.WriteTimeout)
	config.Server.ShutdownTimeout = getEnvDuration("GC_SHUTDOWN_TIMEOUT", config.Server.ShutdownTimeout)

	// Database
	config.Database.Driver = getEnv("GC_DB_DRIVER", config.Database.Driver)
	config.Database.Timeout = getEnvDuration("GC_PROBE_TIMEOUT", config.Database.Timeout)
	config.Database.QueryTimeout = getEnvDuration("GC_QUERY_TIMEOUT", config.Database.QueryTimeout)

	if databases := getEnv("GC_DATABASES", ""); databases != "" {
		replicas, err := parseDatabasesFromEnv(databases)
		if err != nil {
			return fmt.Errorf("GC_DATABASES: %w", err)
		}
		config.Databases = replicas
		config.databasesFromEnv = true
	}
	config.Registry.File = getEnv("GC_REGISTRY_FILE", config.Registry.File)
	config.Registry.Watch = getEnvBool("GC_REGISTRY_WATCH", config.Registry.Watch)

	// Logging
	config.Logging.Level = getEnv("GC_LOG_LEVEL", config.Logging.Level)
	config.Logging.Format = getEnv("GC_LOG_FORMAT", config.Logging.Format)
	config.Logging.Output = getEnv("GC_LOG_OUTPUT", config.Logging.Output)
	config.Logging.File = getEnv("GC_LOG_FILE", config.Logging.File)
	if host := getEnv("GC_LOG_SHIPPER_HOST", ""); host != "" {
		config.Logging.Shipper.Enabled = true
		config.Logging.Shipper.Host = host
	}
	config.Logging.Shipper.UDPPort = getEnvInt("GC_LOG_SHIPPER_UDP_PORT", config.Logging.Shipper.UDPPort)
	config.Logging.Shipper.HTTPPort = getEnvInt("GC_LOG_SHIPPER_HTTP_PORT", config.Logging.Shipper.HTTPPort)

	// Auth
	config.Auth.Enabled = getEnvBool("GC_AUTH_ENABLED", config.Auth.Enabled)
	config.Auth.Secret = getEnv("GC_AUTH_SECRET", config.Auth.Secret)
	config.Auth.Issuer = getEnv("GC_AUTH_ISSUER", config.Auth.Issuer)
	config.Auth.Audience = getEnv("GC_AUTH_AUDIENCE", config.Auth.Audience)

	// Rate limiting
	config.RateLimit.Enabled = getEnvBool("GC_RATE_LIMIT_ENABLED", config.RateLimit.Enabled)
	if rps := getEnv("GC_RATE_LIMIT_RPS", ""); rps != "" {
		if r, err := strconv.ParseFloat(rps, 64); err == nil && r > 0 {
			config.RateLimit.RequestsPerSecond = r
		}
	}
	config.RateLimit.BurstSize = getEnvInt("GC_RATE_LIMIT_BURST", config.RateLimit.BurstSize)

	if origins := getEnv("GC_CORS_ORIGINS", ""); origins != "" {
		config.CORSOrigins = splitAndTrim(origins, ",")
	}

	config.Metrics.Enabled = getEnvBool("GC_METRICS_ENABLED", config.Metrics.Enabled)
	config.GRPC.Enabled = getEnvBool("GC_GRPC_ENABLED", config.GRPC.Enabled)

	return nil
}

// getEnv gets environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets environment variable as integer with fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets environment variable as boolean with fallback
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration gets environment variable as duration with fallback
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseDatabasesFromEnv parses the replica list from an environment variable.
// Format: "type:priority:connection|type:priority:connection"
// Example: "main:70:host=db1 dbname=certs|replica_full:30:host=db2 dbname=certs"
func parseDatabasesFromEnv(value string) ([]domain.ReplicaConfig, error) {
	var replicas []domain.ReplicaConfig

	for i, spec := range strings.Split(value, "|") {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}

		parts := strings.SplitN(spec, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("entry %d: expected type:priority:connection", i)
		}

		role, err := domain.ParseReplicaRole(parts[0])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		priority, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("entry %d: invalid priority %q", i, parts[1])
		}

		replica := domain.ReplicaConfig{
			Target:   strings.TrimSpace(parts[2]),
			Priority: priority,
			Role:     role,
		}
		if err := replica.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		replicas = append(replicas, replica)
	}

	return replicas, nil
}

func splitAndTrim(value, sep string) []string {
	var out []string
	for _, part := range strings.Split(value, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadConfig loads configuration with priority: env vars > config file > defaults.
// The file is taken from CONFIG_FILE, falling back to config.yaml when present.
func LoadConfig() (*Config, error) {
	var config *Config

	configFile := getEnv("CONFIG_FILE", "config.yaml")
	if _, err := os.Stat(configFile); err == nil {
		config, err = parseFile(configFile)
		if err != nil {
			return nil, err
		}
	} else if os.Getenv("CONFIG_FILE") != "" {
		return nil, fmt.Errorf("config file %s: %w", configFile, err)
	} else {
		config = DefaultConfig()
	}

	if err := applyEnvironment(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}
