package api

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// probeTimeout bounds the device probe behind /health.
const probeTimeout = 2 * time.Second

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	MQTTConnected *bool             `json:"mqtt_connected,omitempty"`
	FailedDevices []string          `json:"failed_devices,omitempty"`
	Errors        map[string]string `json:"errors,omitempty"`
}

// handleHealth probes every device. Any unreachable device reports
// "degraded" with 503 so load balancers and Core can react.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	resp := healthResponse{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	}
	if s.mqtt != nil {
		connected := s.mqtt.IsConnected()
		resp.MQTTConnected = &connected
	}

	for id, err := range s.outputs.Probe(ctx) {
		if err == nil {
			continue
		}
		if resp.Errors == nil {
			resp.Errors = make(map[string]string)
		}
		resp.FailedDevices = append(resp.FailedDevices, id)
		resp.Errors[id] = err.Error()
	}
	sort.Strings(resp.FailedDevices)

	status := http.StatusOK
	if len(resp.FailedDevices) > 0 {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
