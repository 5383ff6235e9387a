package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/mir00r/giftcert-router/internal/domain"
	"github.com/mir00r/giftcert-router/internal/service"
	"github.com/mir00r/giftcert-router/pkg/logger"
)

// probeAllTimeout bounds a full probe sweep started from the admin API
const probeAllTimeout = 30 * time.Second

// Reloader is a registry that can be re-read on demand
type Reloader interface {
	Reload() error
}

// StatsProvider contributes a named section to the admin stats
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// AdminHandler provides administrative API endpoints
type AdminHandler struct {
	registry  domain.ReplicaRegistry
	prober    domain.Prober
	stats     map[string]StatsProvider
	logger    *logger.Logger
	startTime time.Time
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(registry domain.ReplicaRegistry, prober domain.Prober, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		registry:  registry,
		prober:    prober,
		stats:     make(map[string]StatsProvider),
		logger:    log.WithField("component", "admin"),
		startTime: time.Now(),
	}
}

// AddStats registers a stats section shown by GET /admin/stats
func (h *AdminHandler) AddStats(name string, provider StatsProvider) {
	h.stats[name] = provider
}

// ListReplicasHandler handles GET /admin/replicas
//
// @Summary   Configured replicas
// @Tags      admin
// @Produce   json
// @Success   200  {array}   service.ReplicaReport
// @Failure   500  {object}  ErrorResponse
// @Security  BearerAuth
// @Router    /admin/replicas [get]
func (h *AdminHandler) ListReplicasHandler(w http.ResponseWriter, r *http.Request) {
	reports, err := service.DescribeReplicas(h.registry)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load replicas")
		writeError(w, http.StatusInternalServerError, "Replica configuration could not be loaded")
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// ProbeReplicasHandler handles POST /admin/replicas/probe
//
// @Summary   Probe every replica once
// @Tags      admin
// @Produce   json
// @Success   200  {array}   service.ReplicaReport
// @Failure   500  {object}  ErrorResponse
// @Security  BearerAuth
// @Router    /admin/replicas/probe [post]
func (h *AdminHandler) ProbeReplicasHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeAllTimeout)
	defer cancel()

	reports, err := service.ProbeReplicas(ctx, h.registry, h.prober)
	if err != nil {
		h.logger.WithError(err).Error("Replica probe sweep failed")
		writeError(w, http.StatusInternalServerError, "Replica probe sweep failed")
		return
	}

	h.logger.WithField("replicas", len(reports)).Info("Replica probe sweep completed")
	writeJSON(w, http.StatusOK, reports)
}

// ReloadRegistryHandler handles POST /admin/registry/reload
//
// @Summary   Re-read the replica file
// @Tags      admin
// @Produce   json
// @Success   200  {object}  map[string]interface{}
// @Failure   409  {object}  ErrorResponse
// @Failure   500  {object}  ErrorResponse
// @Security  BearerAuth
// @Router    /admin/registry/reload [post]
func (h *AdminHandler) ReloadRegistryHandler(w http.ResponseWriter, r *http.Request) {
	reloader, ok := h.registry.(Reloader)
	if !ok {
		writeError(w, http.StatusConflict, "Replica registry does not support reload")
		return
	}

	h.logger.Info("Replica registry reload requested")
	if err := reloader.Reload(); err != nil {
		h.logger.WithError(err).Error("Replica registry reload failed")
		writeError(w, http.StatusInternalServerError, "Replica registry reload failed")
		return
	}

	replicas, _ := h.registry.Load()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "reloaded",
		"replicas": len(replicas),
	})
}

// StatsHandler handles GET /admin/stats
//
// @Summary   Runtime statistics
// @Tags      admin
// @Produce   json
// @Success   200  {object}  map[string]interface{}
// @Security  BearerAuth
// @Router    /admin/stats [get]
func (h *AdminHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
	}

	if replicas, err := h.registry.Load(); err == nil {
		response["replicas"] = len(replicas)
	}
	for name, provider := range h.stats {
		response[name] = provider.GetStats()
	}

	writeJSON(w, http.StatusOK, response)
}
