// Package health contiene el service de health check.
package health

import (
	"context"
	"time"

	dto "github.com/dropDatabas3/stagegate/internal/http/dto/health"
)

// Pinger es cualquier backend que pueda chequear su conexión (cache, store).
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Components map[string]Pinger
	Version    string
	Timeout    time.Duration
}

type HealthService interface {
	Check(ctx context.Context) dto.HealthResponse
}

type healthService struct {
	d Deps
}

func NewHealthService(d Deps) HealthService {
	if d.Timeout <= 0 {
		d.Timeout = 2 * time.Second
	}
	return &healthService{d: d}
}

// Check pinguea cada componente; uno caído deja el servicio "unavailable":
// sin cache no hay flujos ni sesiones.
func (s *healthService) Check(ctx context.Context) dto.HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, s.d.Timeout)
	defer cancel()

	resp := dto.HealthResponse{
		Status:     "ready",
		Components: make(map[string]dto.HealthStatus, len(s.d.Components)),
		Version:    s.d.Version,
		Timestamp:  time.Now().UTC(),
	}
	for name, p := range s.d.Components {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			resp.Status = "unavailable"
			resp.Components[name] = dto.HealthStatus{Status: "error", Message: err.Error()}
			continue
		}
		resp.Components[name] = dto.HealthStatus{Status: "ok"}
	}
	return resp
}
