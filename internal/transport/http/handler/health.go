package handler

import (
	"net/http"
	"time"
)

// StatusReporter exposes the gateway connection state.
type StatusReporter interface {
	Ready() bool
	GuildCount() int
	Latency() time.Duration
}

// HealthHandler serves readiness.
type HealthHandler struct {
	status StatusReporter
}

func NewHealthHandler(status StatusReporter) *HealthHandler {
	return &HealthHandler{status: status}
}

func (h *HealthHandler) Status(w http.ResponseWriter, _ *http.Request) {
	env := HealthEnvelope{Status: "starting"}
	if h.status != nil && h.status.Ready() {
		env.Status = "ready"
		env.Guilds = h.status.GuildCount()
		env.LatencyMS = h.status.Latency().Milliseconds()
	}
	writeJSON(w, http.StatusOK, env)
}
