package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/mir00r/giftcert-router/internal/domain"
	"github.com/mir00r/giftcert-router/pkg/logger"
)

// readinessTimeout bounds the selection run by the readiness probe
const readinessTimeout = 5 * time.Second

// HealthHandler serves the health, readiness and liveness endpoints
type HealthHandler struct {
	startTime time.Time
	version   string
	selector  domain.ConnectionSelector
	registry  domain.ReplicaRegistry
	logger    *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, selector domain.ConnectionSelector, registry domain.ReplicaRegistry, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		version:   version,
		selector:  selector,
		registry:  registry,
		logger:    log.WithField("component", "health"),
	}
}

// HealthHandler reports process status and the configured replica count
//
// @Summary  Service health
// @Tags     health
// @Produce  json
// @Success  200  {object}  map[string]interface{}
// @Failure  503  {object}  map[string]interface{}
// @Router   /health [get]
func (h *HealthHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
		"uptime":    time.Since(h.startTime).String(),
	}

	status := http.StatusOK
	replicas, err := h.registry.Load()
	if err != nil {
		status = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
		response["error"] = "replica configuration could not be loaded"
	} else {
		response["replicas"] = len(replicas)
	}

	writeJSON(w, status, response)
}

// ReadinessHandler runs one selection and releases the connection
//
// @Summary  Readiness probe
// @Tags     health
// @Produce  json
// @Success  200  {object}  map[string]interface{}
// @Failure  503  {object}  map[string]interface{}
// @Router   /readiness [get]
func (h *HealthHandler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	conn, err := h.selector.Select(ctx)
	if err != nil {
		h.logger.WithError(err).Warn("Readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "not_ready",
			"timestamp": time.Now().UTC(),
			"error":     msgNoConnection,
		})
		return
	}
	role := conn.Role.String()
	conn.Close()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
		"role":      role,
	})
}

// LivenessHandler checks if the application is alive
//
// @Summary  Liveness probe
// @Tags     health
// @Produce  json
// @Success  200  {object}  map[string]interface{}
// @Router   /liveness [get]
func (h *HealthHandler) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
		"uptime":    time.Since(h.startTime).String(),
	})
}
