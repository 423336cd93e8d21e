package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/andon-board/services/audit"
	"github.com/upb/andon-board/utils"
	"go.uber.org/zap"
)

// readinessTimeout bounds all dependency checks of one readiness probe
const readinessTimeout = 5 * time.Second

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// EventQueue reports the state of the call event workers
type EventQueue interface {
	GetStats() audit.Stats
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Checks     map[string]string `json:"checks,omitempty"`
	EventQueue *audit.Stats      `json:"event_queue,omitempty"`
}

// HealthHandler handles liveness and readiness probes
type HealthHandler struct {
	checks map[string]Pinger
	queue  EventQueue
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. Each named pinger becomes a
// readiness check; nil pingers are skipped.
func NewHealthHandler(checks map[string]Pinger, logger *zap.Logger) *HealthHandler {
	active := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			active[name] = p
		}
	}
	return &HealthHandler{
		checks: active,
		logger: logger,
	}
}

// WithEventQueue adds the call event workers to readiness. The probe fails
// while they are not running.
func (h *HealthHandler) WithEventQueue(queue EventQueue) *HealthHandler {
	h.queue = queue
	return h
}

// HandleHealth handles GET /healthz. It returns 200 while the process runs.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz by pinging every dependency
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	allHealthy := true
	for name, p := range h.checks {
		if err := p.PingContext(ctx); err != nil {
			h.logger.Warn("readiness check failed",
				zap.String("check", name),
				zap.Error(err))
			checks[name] = "unhealthy"
			allHealthy = false
			continue
		}
		checks[name] = "healthy"
	}

	var queueStats *audit.Stats
	if h.queue != nil {
		stats := h.queue.GetStats()
		queueStats = &stats
		checks["event_queue"] = "healthy"
		if !stats.Started {
			h.logger.Warn("readiness check failed", zap.String("check", "event_queue"))
			checks["event_queue"] = "unhealthy"
			allHealthy = false
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:     status,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Checks:     checks,
		EventQueue: queueStats,
	}
	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
