// Package influxdb records PWM output history in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched writes and health monitoring. The Client implements
// output.Observer, so wiring it in is one call:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // history disabled
//	}
//	defer client.Close()
//	manager.AddObserver(client)
//
// # Measurements
//
//	pwm_output  tags: output_id, device_id, kind, source
//	            fields: on, brightness | value, hue, saturation, pwm_<pin>
//	pwm_device  tags: device_id
//	            fields: frequency
//
// Writes are non-blocking and batched per batch_size and flush_interval.
// Async write failures are delivered to the SetOnError callback.
package influxdb
