package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-pwm/internal/output"
)

// Measurement names written by the PWM service.
const (
	// MeasurementOutput holds one point per output state change.
	MeasurementOutput = "pwm_output"

	// MeasurementDevice holds per-chip settings such as frequency.
	MeasurementDevice = "pwm_device"
)

// OutputChanged records an output state change. It satisfies output.Observer
// so the client can be registered directly with the output manager.
func (c *Client) OutputChanged(snap output.Snapshot) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(outputPoint(snap))
}

// FrequencyChanged records a new PWM frequency for a device.
func (c *Client) FrequencyChanged(deviceID string, hz int) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(frequencyPoint(deviceID, hz, time.Now()))
}

// outputPoint converts a snapshot into a pwm_output point.
//
// Tags: output_id, device_id, kind. Fields: on, brightness (lights),
// hue and saturation (RGB lights), value (numbers) and pwm_<pin> per channel.
func outputPoint(snap output.Snapshot) *write.Point {
	ts := snap.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	tags := map[string]string{
		"output_id": snap.OutputID,
		"device_id": snap.DeviceID,
		"kind":      string(snap.Kind),
	}
	if snap.Source != "" {
		tags["source"] = snap.Source
	}

	fields := map[string]any{
		"on": snap.State.On,
	}
	if snap.Kind == output.KindNumber {
		if snap.State.Value != nil {
			fields["value"] = *snap.State.Value
		}
	} else {
		fields["brightness"] = snap.State.Brightness
	}
	if snap.State.HS != nil {
		fields["hue"] = snap.State.HS[0]
		fields["saturation"] = snap.State.HS[1]
	}
	for i, pin := range snap.Pins {
		if i < len(snap.PWM) {
			fields["pwm_"+strconv.Itoa(pin)] = snap.PWM[i]
		}
	}

	return write.NewPoint(MeasurementOutput, tags, fields, ts)
}

// frequencyPoint builds a pwm_device point.
func frequencyPoint(deviceID string, hz int, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementDevice,
		map[string]string{"device_id": deviceID},
		map[string]any{"frequency": hz},
		ts,
	)
}
