package handler

import (
	"encoding/json"
	"net/http"
)

// HealthEnvelope is the readiness payload served at the root path.
type HealthEnvelope struct {
	Status    string `json:"status"`
	Guilds    int    `json:"guilds"`
	LatencyMS int64  `json:"latency_ms"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
