package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-pwm/internal/output"
)

// frequencyRequest is the body of PUT /devices/{id}/frequency.
type frequencyRequest struct {
	Frequency *int `json:"frequency"`
}

// frequencyResponse reports a device's PWM frequency.
type frequencyResponse struct {
	DeviceID  string `json:"device_id"`
	Frequency int    `json:"frequency"`
}

// handleListDevices returns every configured PCA9685.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.outputs.Devices()
	if devices == nil {
		devices = []output.DeviceInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns one device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	info, err := s.outputs.Device(id)
	if err != nil {
		writeOutputError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleGetFrequency reads the frequency back from the chip's prescaler.
func (s *Server) handleGetFrequency(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), hardwareTimeout)
	defer cancel()

	hz, err := s.outputs.Frequency(ctx, id)
	if err != nil {
		writeOutputError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, frequencyResponse{DeviceID: id, Frequency: hz})
}

// handleSetFrequency changes a device's PWM frequency.
func (s *Server) handleSetFrequency(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req frequencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Frequency == nil {
		writeBadRequest(w, "frequency is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), hardwareTimeout)
	defer cancel()

	if err := s.outputs.SetFrequency(ctx, id, *req.Frequency); err != nil {
		writeOutputError(w, err)
		return
	}

	hz, err := s.outputs.Frequency(ctx, id)
	if err != nil {
		writeOutputError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, frequencyResponse{DeviceID: id, Frequency: hz})
}

// handleAllOff drives every channel of a device to zero.
func (s *Server) handleAllOff(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), hardwareTimeout)
	defer cancel()

	snaps, err := s.outputs.AllOff(ctx, id)
	if err != nil {
		writeOutputError(w, err)
		return
	}
	if snaps == nil {
		snaps = []output.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"outputs":   snaps,
	})
}
