package handler

import (
	"net/http"
	"time"

	"github.com/nutriplan/nutriplan/internal/api/response"
	"github.com/nutriplan/nutriplan/internal/fooddata"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	foods     *fooddata.Service
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, foods *fooddata.Service) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		foods:     foods,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"time":      time.Now().UTC(),
		"version":   h.version,
		"buildTime": h.buildTime,
	})
}

// Status handles GET /v1/ops/status - provider mode, breaker state, cache stats.
func (h *OpsHandler) Status(w http.ResponseWriter, r *http.Request) {
	mode := "fallback"
	if h.foods.Configured() {
		mode = "upstream"
	}
	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"time":         time.Now().UTC(),
		"providerMode": mode,
		"breakerState": h.foods.BreakerState(),
		"caches":       h.foods.CacheStats(),
	})
}

// InvalidateCaches handles POST /v1/ops/cache/invalidate.
func (h *OpsHandler) InvalidateCaches(w http.ResponseWriter, r *http.Request) {
	h.foods.ClearCaches()
	response.JSON(w, r, http.StatusOK, map[string]interface{}{"status": "cleared"})
}
