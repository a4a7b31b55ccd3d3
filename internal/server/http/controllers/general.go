package controllers

import (
	"net/http"

	"github.com/rzbill/spool/internal/runtime"
)

// GeneralController serves health and metrics.
type GeneralController struct {
	rt *runtime.Runtime
}

// NewGeneralController creates a new general controller.
func NewGeneralController(rt *runtime.Runtime) *GeneralController {
	return &GeneralController{rt: rt}
}

// RegisterRoutes registers general routes with the given mux.
//
// - Health checks (/healthz, /v1/healthz)
// - Prometheus scrape endpoint (/metrics)
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", c.handleHealth)
	mux.HandleFunc("GET /v1/healthz", c.handleHealth)
	mux.Handle("GET /metrics", c.rt.Metrics().Handler())
}

// handleHealth returns 200 with {"status": "ok"} while the store is open,
// 503 otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
