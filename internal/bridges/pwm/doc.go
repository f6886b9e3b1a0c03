// Package pwm implements the MQTT bridge for PCA9685 PWM outputs.
//
// The bridge translates Gray Logic bridge messages into output operations
// and publishes the resulting state:
//
//	┌─────────────────┐          ┌─────────────────┐   I2C
//	│   Gray Logic    │   MQTT   │   PWM Bridge    │◄────────► PCA9685
//	│      Core       │◄────────►│   (this pkg)    │
//	└─────────────────┘          └─────────────────┘
//
// # Topics
//
//   - graylogic/command/pwm/{id}: turn_on, turn_off, set_value (output ID),
//     set_frequency, all_off (device ID)
//   - graylogic/ack/pwm/{id}: accepted or failed with an error code
//   - graylogic/state/pwm/{output_id}: retained output state
//   - graylogic/state/pwm/devices/{device_id}: retained device frequency
//   - graylogic/request/pwm/{request_id}: read_state, read_all, get_frequency
//   - graylogic/response/pwm/{request_id}: request results
//   - graylogic/health/pwm: retained health, published every health_interval
//
// # Error Codes
//
// Failed commands are acknowledged with NOT_CONFIGURED, INVALID_COMMAND,
// INVALID_PARAMETERS, OUT_OF_RANGE (value rejected before any bus I/O),
// DEVICE_UNREACHABLE (I2C failure) or TIMEOUT.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package pwm
