package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Pinger é satisfeito por *sql.DB e pelos adapters de Redis e RabbitMQ.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	Dependencies map[string]Pinger
	StartTime    time.Time
	Version      string
}

type HealthResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	Uptime       string            `json:"uptime"`
	Dependencies map[string]string `json:"dependencies"`
}

// NewHealthHandler aceita dependências nil: aparecem como "not configured".
func NewHealthHandler(version string, deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{
		Dependencies: deps,
		StartTime:    time.Now(),
		Version:      version,
	}
}

func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string, len(h.Dependencies))
	status := "healthy"
	for name, dep := range h.Dependencies {
		if dep == nil {
			deps[name] = "not configured"
			continue
		}
		if err := dep.PingContext(ctx); err != nil {
			deps[name] = fmt.Sprintf("unhealthy: %v", err)
			status = "degraded"
			continue
		}
		deps[name] = "healthy"
	}

	response := HealthResponse{
		Status:       status,
		Version:      h.Version,
		Uptime:       time.Since(h.StartTime).Round(time.Second).String(),
		Dependencies: deps,
	}

	code := http.StatusOK
	if status == "degraded" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, response)
}
