package handlers

import (
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/querylens-ai/querylens-engine/pkg/config"
	"github.com/querylens-ai/querylens-engine/pkg/health"
)

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// HealthHandler serves the supervisor's snapshot and the liveness ping.
type HealthHandler struct {
	cfg        *config.Config
	supervisor *health.Supervisor
	logger     *zap.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(cfg *config.Config, supervisor *health.Supervisor, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, supervisor: supervisor, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health: the current score snapshot, per-dependency
// status, mode, and active provider count. EMERGENCY answers 503 so load
// balancers stop routing generation traffic; the body is still the full
// snapshot for operators.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	snapshot := h.supervisor.Current()

	status := http.StatusOK
	if snapshot.Mode == health.ModeEmergency {
		status = http.StatusServiceUnavailable
	}

	if err := WriteJSON(w, status, snapshot); err != nil {
		h.logger.Error("Failed to encode health snapshot", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "querylens-engine",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
