package domain

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReplicaRole determines which liveness query is run against a replica
type ReplicaRole int

const (
	// RolePrimary is the writable main database
	RolePrimary ReplicaRole = iota
	// RoleReplicaFull is a fully synchronized replica of the main database
	RoleReplicaFull
	// RoleReplicaTables is a replica that carries only the lookup tables
	RoleReplicaTables
)

// String returns the configuration tag of the role
func (r ReplicaRole) String() string {
	switch r {
	case RolePrimary:
		return "main"
	case RoleReplicaFull:
		return "replica_full"
	case RoleReplicaTables:
		return "replica_tables"
	default:
		return "unknown"
	}
}

// ParseReplicaRole converts a configuration tag into a ReplicaRole
func ParseReplicaRole(tag string) (ReplicaRole, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "main", "primary":
		return RolePrimary, nil
	case "replica_full":
		return RoleReplicaFull, nil
	case "replica_tables":
		return RoleReplicaTables, nil
	default:
		return 0, fmt.Errorf("unknown replica type %q", tag)
	}
}

// MarshalYAML writes the role as its configuration tag
func (r ReplicaRole) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}

// UnmarshalYAML reads the role from its configuration tag
func (r *ReplicaRole) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var tag string
	if err := unmarshal(&tag); err != nil {
		return err
	}
	role, err := ParseReplicaRole(tag)
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// ReplicaConfig is one configured database replica. It is a value type and
// is never modified after loading.
type ReplicaConfig struct {
	Target   string      `json:"-" yaml:"connection"`
	Priority int         `json:"priority" yaml:"priority"`
	Role     ReplicaRole `json:"type" yaml:"type"`
}

// Validate checks a single replica entry
func (c ReplicaConfig) Validate() error {
	if strings.TrimSpace(c.Target) == "" {
		return fmt.Errorf("connection cannot be empty")
	}
	if c.Priority < 0 {
		return fmt.Errorf("priority cannot be negative: %d", c.Priority)
	}
	switch c.Role {
	case RolePrimary, RoleReplicaFull, RoleReplicaTables:
	default:
		return fmt.Errorf("unknown replica type %d", c.Role)
	}
	return nil
}

// ReplicaState wraps a ReplicaConfig for the duration of one selection call
type ReplicaState struct {
	ReplicaConfig

	// ActualPriority mirrors Priority; reserved for re-weighting
	ActualPriority int

	// TargetWithoutCredentials is safe to log and must never be used to connect
	TargetWithoutCredentials string
}

// NewReplicaState derives the per-call state of a replica
func NewReplicaState(cfg ReplicaConfig, scrub func(string) string) ReplicaState {
	return ReplicaState{
		ReplicaConfig:            cfg,
		ActualPriority:           cfg.Priority,
		TargetWithoutCredentials: scrub(cfg.Target),
	}
}

// SelectionMode is the phase a selection call is in
type SelectionMode int

const (
	// WeightedMode samples a single candidate by cumulative priority
	WeightedMode SelectionMode = iota
	// ExhaustiveMode tries every candidate that has not failed yet
	ExhaustiveMode
)

// String returns the string representation of SelectionMode
func (m SelectionMode) String() string {
	switch m {
	case WeightedMode:
		return "weighted"
	case ExhaustiveMode:
		return "exhaustive"
	default:
		return "unknown"
	}
}

// Handle is an open database connection. *sql.DB satisfies it.
type Handle interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	Close() error
}

// Connection is the result of a successful selection. The caller owns it
// and must call Close.
type Connection struct {
	Handle                   Handle
	Role                     ReplicaRole
	TargetWithoutCredentials string
}

// Close releases the underlying handle
func (c *Connection) Close() error {
	if c == nil || c.Handle == nil {
		return nil
	}
	return c.Handle.Close()
}

// ProbeConfig defines how replicas are probed before use
type ProbeConfig struct {
	Driver       string            `json:"driver" yaml:"driver"`
	Timeout      time.Duration     `json:"probe_timeout" yaml:"probe_timeout"`
	QueryTimeout time.Duration     `json:"query_timeout" yaml:"query_timeout"`
	Queries      map[string]string `json:"probe_queries,omitempty" yaml:"probe_queries,omitempty"`
}

// DefaultProbeQueries returns the liveness query run for each role
func DefaultProbeQueries() map[ReplicaRole]string {
	return map[ReplicaRole]string{
		RolePrimary:       "SELECT id FROM certificates LIMIT 1",
		RoleReplicaFull:   "SELECT EXTRACT(EPOCH FROM (now() - pg_last_xact_replay_timestamp())) * 1000",
		RoleReplicaTables: "SELECT id FROM certificate_balances LIMIT 1",
	}
}

// RoleQueries resolves the probe query for every role, applying the
// configured overrides on top of DefaultProbeQueries
func (c ProbeConfig) RoleQueries() (map[ReplicaRole]string, error) {
	queries := DefaultProbeQueries()
	for tag, query := range c.Queries {
		if strings.TrimSpace(query) == "" {
			return nil, fmt.Errorf("probe_queries: empty query for %q", tag)
		}
		role, err := ParseReplicaRole(tag)
		if err != nil {
			return nil, fmt.Errorf("probe_queries: %w", err)
		}
		queries[role] = query
	}
	return queries, nil
}

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	Enabled           bool    `json:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int     `json:"burst_size" yaml:"burst_size"`
}

// AuthConfig defines bearer token validation for the public API
type AuthConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Secret   string `json:"-" yaml:"secret"`
	Issuer   string `json:"issuer" yaml:"issuer"`
	Audience string `json:"audience" yaml:"audience"`
}

// RequestContext contains request-specific information
type RequestContext struct {
	RequestID  string
	RemoteAddr string
	UserAgent  string
	Referer    string
	Method     string
	Path       string
	Host       string
	StartTime  time.Time
	User       string
}

type requestContextKey struct{}

// NewRequestContext creates a new RequestContext from an HTTP request
func NewRequestContext(r *http.Request) *RequestContext {
	return &RequestContext{
		RequestID:  uuid.NewString(),
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		Referer:    r.Referer(),
		Method:     r.Method,
		Path:       r.URL.Path,
		Host:       r.Host,
		StartTime:  time.Now(),
	}
}

// WithRequestContext stores the request context in ctx
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFrom returns the request context stored in ctx, if any
func RequestContextFrom(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc, ok && rc != nil
}
