// Package health contiene el controller para health checks.
package health

import (
	"net/http"

	"github.com/dropDatabas3/stagegate/internal/http/helpers"
	svc "github.com/dropDatabas3/stagegate/internal/http/services/health"
	"github.com/dropDatabas3/stagegate/internal/observability/logger"
)

// HealthController maneja las rutas de health check.
type HealthController struct {
	service svc.HealthService
}

func NewHealthController(service svc.HealthService) *HealthController {
	return &HealthController{service: service}
}

// Healthz maneja GET /healthz
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("HealthController.Healthz"))

	response := c.service.Check(ctx)

	status := http.StatusOK
	if response.Status != "ready" {
		status = http.StatusServiceUnavailable
		log.Warn("health check failed", logger.Any("components", response.Components))
	}
	helpers.WriteJSON(w, status, response)
}
