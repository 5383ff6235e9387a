package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mir00r/giftcert-router/internal/middleware"
	"github.com/mir00r/giftcert-router/pkg/logger"
	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterConfig collects the handlers and middleware mounted by NewRouter.
// Nil optional fields are left out.
type RouterConfig struct {
	Certificates *CertificateHandler
	Health       *HealthHandler
	Admin        *AdminHandler

	Metrics     http.Handler
	MetricsPath string

	Auth        *middleware.JWTAuthMiddleware
	RateLimiter *middleware.RateLimiter
	CORSOrigins []string
	Swagger     bool

	Logger *logger.Logger
}

// NewRouter builds the REST routes:
//
//	GET|POST /api/giftcert      certificate balances (rate limited, bearer auth)
//	GET      /health, /readiness, /liveness
//	GET      <metrics path>
//	/admin/*                    replica administration (bearer auth)
//	/swagger/*                  API documentation
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()
	r.Use(
		middleware.RecoveryMiddleware(cfg.Logger),
		middleware.LoggingMiddleware(cfg.Logger),
		middleware.CORSMiddleware(cfg.CORSOrigins),
		middleware.SecurityHeadersMiddleware(),
	)

	if cfg.Health != nil {
		r.HandleFunc("/health", cfg.Health.HealthHandler).Methods(http.MethodGet)
		r.HandleFunc("/readiness", cfg.Health.ReadinessHandler).Methods(http.MethodGet)
		r.HandleFunc("/liveness", cfg.Health.LivenessHandler).Methods(http.MethodGet)
	}

	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.Metrics).Methods(http.MethodGet)
	}

	if cfg.Certificates != nil {
		api := r.PathPrefix("/api").Subrouter()
		if cfg.RateLimiter != nil {
			api.Use(cfg.RateLimiter.RateLimitMiddleware())
		}
		if cfg.Auth != nil {
			api.Use(cfg.Auth.JWTAuth())
		}
		api.HandleFunc("/giftcert", cfg.Certificates.GetBalance).Methods(http.MethodGet, http.MethodOptions)
		api.HandleFunc("/giftcert", cfg.Certificates.GetBalances).Methods(http.MethodPost, http.MethodOptions)
	}

	if cfg.Admin != nil {
		admin := r.PathPrefix("/admin").Subrouter()
		if cfg.Auth != nil {
			admin.Use(cfg.Auth.JWTAuth())
		}
		admin.HandleFunc("/replicas", cfg.Admin.ListReplicasHandler).Methods(http.MethodGet)
		admin.HandleFunc("/replicas/probe", cfg.Admin.ProbeReplicasHandler).Methods(http.MethodPost)
		admin.HandleFunc("/registry/reload", cfg.Admin.ReloadRegistryHandler).Methods(http.MethodPost)
		admin.HandleFunc("/stats", cfg.Admin.StatsHandler).Methods(http.MethodGet)
	}

	if cfg.Swagger {
		r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})

	return r
}
