// Package container is the composition root: it turns a validated
// configuration into the wired set of registry, prober, selector, services,
// handlers and servers.
package container

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mir00r/giftcert-router/internal/config"
	"github.com/mir00r/giftcert-router/internal/domain"
	"github.com/mir00r/giftcert-router/internal/handler"
	"github.com/mir00r/giftcert-router/internal/middleware"
	"github.com/mir00r/giftcert-router/internal/repository"
	"github.com/mir00r/giftcert-router/internal/server"
	"github.com/mir00r/giftcert-router/internal/service"
	"github.com/mir00r/giftcert-router/pkg/logger"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Version is reported by the health endpoints
const Version = "1.0.0"

// rateLimiterCleanupInterval is how often idle client limiters are dropped
const rateLimiterCleanupInterval = time.Minute

// Container holds every long-lived component of the service
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Registry     domain.ReplicaRegistry
	Prober       *service.SQLProber
	Metrics      *service.Metrics
	Selector     *service.FailoverSelector
	Certificates *service.CertificateService

	Auth        *middleware.JWTAuthMiddleware
	RateLimiter *middleware.RateLimiter

	Router     http.Handler
	GRPCServer *grpc.Server
	Server     *server.Server

	closers []func() error
	cancel  context.CancelFunc
	mu      sync.Mutex
}

// NewRegistry picks the replica source for cfg: a watched or plain file
// when one is configured, otherwise the databases section itself
func NewRegistry(cfg *config.Config, log *logger.Logger) (domain.ReplicaRegistry, error) {
	path := cfg.RegistryFile()
	switch {
	case path != "" && cfg.Registry.Watch:
		return repository.NewWatchedReplicaRegistry(path, log)
	case path != "":
		return repository.NewFileReplicaRegistry(path), nil
	default:
		return repository.NewStaticReplicaRegistry(cfg.Databases)
	}
}

// NewCore wires the components needed to select connections and answer
// lookups. It is enough for one-off admin commands.
func NewCore(cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: log}

	registry, err := NewRegistry(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create replica registry: %w", err)
	}
	c.Registry = registry
	if watched, ok := registry.(*repository.WatchedReplicaRegistry); ok {
		c.closers = append(c.closers, watched.Close)
	}

	prober, err := service.NewSQLProber(cfg.Database)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create prober: %w", err)
	}
	c.Prober = prober

	c.Metrics = service.NewMetrics()
	c.Selector = service.NewFailoverSelector(registry, prober, log, service.WithMetrics(c.Metrics))
	c.Certificates = service.NewCertificateService(c.Selector, cfg.Database, c.Metrics, log)

	if watched, ok := registry.(*repository.WatchedReplicaRegistry); ok {
		watched.OnReload(func(replicas []domain.ReplicaConfig) {
			c.Metrics.SetReplicas(len(replicas))
		})
	}

	return c, nil
}

// New wires the full service: core components, middleware, REST router,
// gRPC health service and the server that carries both
func New(cfg *config.Config, log *logger.Logger) (*Container, error) {
	c, err := NewCore(cfg, log)
	if err != nil {
		return nil, err
	}

	auth, err := middleware.NewJWTAuthMiddleware(cfg.Auth, log)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create auth middleware: %w", err)
	}
	c.Auth = auth

	routerConfig := handler.RouterConfig{
		Certificates: handler.NewCertificateHandler(c.Certificates, log),
		Health:       handler.NewHealthHandler(Version, c.Selector, c.Registry, log),
		Auth:         auth,
		CORSOrigins:  cfg.CORSOrigins,
		Swagger:      true,
		Logger:       log,
	}

	admin := handler.NewAdminHandler(c.Registry, c.Prober, log)
	admin.AddStats("auth", auth)
	routerConfig.Admin = admin

	if cfg.RateLimit.Enabled {
		c.RateLimiter = middleware.NewRateLimiter(cfg.RateLimit, log)
		routerConfig.RateLimiter = c.RateLimiter
		admin.AddStats("rate_limiter", c.RateLimiter)
	}

	if cfg.Metrics.Enabled {
		routerConfig.Metrics = c.Metrics.Handler()
		routerConfig.MetricsPath = cfg.Metrics.Path
	}

	c.Router = handler.NewRouter(routerConfig)

	if cfg.GRPC.Enabled {
		c.GRPCServer = grpc.NewServer()
		grpc_health_v1.RegisterHealthServer(c.GRPCServer, handler.NewGRPCHealthServer(c.Selector, log))
	}

	c.Server = server.New(cfg.Server, c.Router, c.GRPCServer, log)

	log.WithFields(logrus.Fields{
		"driver":       cfg.Database.Driver,
		"registry":     fmt.Sprintf("%T", c.Registry),
		"rate_limit":   cfg.RateLimit.Enabled,
		"auth":         cfg.Auth.Enabled,
		"grpc_enabled": cfg.GRPC.Enabled,
		"metrics":      cfg.Metrics.Enabled,
	}).Info("Service components initialized")

	return c, nil
}

// Start launches background work. It returns immediately.
func (c *Container) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)

	if replicas, err := c.Registry.Load(); err == nil {
		c.Metrics.SetReplicas(len(replicas))
	}
	if c.RateLimiter != nil {
		go c.RateLimiter.RunCleanup(ctx, rateLimiterCleanupInterval)
	}
}

// Close stops background work and releases resources held by the
// components. It is safe to call more than once.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.closers = nil
	return firstErr
}
