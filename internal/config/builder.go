package config

import (
	"fmt"
	"time"

	"github.com/mir00r/giftcert-router/internal/domain"
	"github.com/mir00r/giftcert-router/internal/errors"
)

// ConfigBuilder provides a fluent interface for building configurations
type ConfigBuilder struct {
	config *Config
	errors []error
}

// NewConfigBuilder creates a new configuration builder starting from DefaultConfig
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: DefaultConfig()}
}

// WithServer configures the HTTP server settings
func (b *ConfigBuilder) WithServer(port int, readTimeout, writeTimeout time.Duration) *ConfigBuilder {
	if port <= 0 || port > 65535 {
		b.errors = append(b.errors, fmt.Errorf("invalid port number: %d", port))
		return b
	}

	b.config.Server.Port = port
	b.config.Server.ReadTimeout = readTimeout
	b.config.Server.WriteTimeout = writeTimeout
	return b
}

// WithDatabase configures the driver and the probe and query timeouts
func (b *ConfigBuilder) WithDatabase(driver string, probeTimeout, queryTimeout time.Duration) *ConfigBuilder {
	b.config.Database.Driver = driver
	b.config.Database.Timeout = probeTimeout
	b.config.Database.QueryTimeout = queryTimeout
	return b
}

// WithProbeQuery overrides the liveness query of a role
func (b *ConfigBuilder) WithProbeQuery(role domain.ReplicaRole, query string) *ConfigBuilder {
	if b.config.Database.Queries == nil {
		b.config.Database.Queries = make(map[string]string)
	}
	b.config.Database.Queries[role.String()] = query
	return b
}

// WithReplica appends a replica to the databases list
func (b *ConfigBuilder) WithReplica(target string, priority int, role domain.ReplicaRole) *ConfigBuilder {
	replica := domain.ReplicaConfig{Target: target, Priority: priority, Role: role}
	if err := replica.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("replica %d: %w", len(b.config.Databases), err))
		return b
	}

	b.config.Databases = append(b.config.Databases, replica)
	return b
}

// WithLogging configures logging settings
func (b *ConfigBuilder) WithLogging(level, format, output string) *ConfigBuilder {
	b.config.Logging.Level = level
	b.config.Logging.Format = format
	b.config.Logging.Output = output
	return b
}

// WithRateLimit configures rate limiting
func (b *ConfigBuilder) WithRateLimit(enabled bool, requestsPerSecond float64, burst int) *ConfigBuilder {
	b.config.RateLimit = domain.RateLimitConfig{
		Enabled:           enabled,
		RequestsPerSecond: requestsPerSecond,
		BurstSize:         burst,
	}
	return b
}

// WithAuth enables bearer token validation
func (b *ConfigBuilder) WithAuth(secret, issuer, audience string) *ConfigBuilder {
	b.config.Auth = domain.AuthConfig{
		Enabled:  true,
		Secret:   secret,
		Issuer:   issuer,
		Audience: audience,
	}
	return b
}

// Build validates and returns the final configuration
func (b *ConfigBuilder) Build() (*Config, error) {
	if len(b.errors) > 0 {
		return nil, errors.NewError(
			errors.ErrCodeConfiguration,
			"config_builder",
			fmt.Sprintf("configuration validation failed with %d errors", len(b.errors)),
		).WithMetadata("errors", b.errors)
	}

	if err := b.config.Validate(); err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeConfiguration, "config_builder", "invalid configuration")
	}

	return b.config, nil
}
