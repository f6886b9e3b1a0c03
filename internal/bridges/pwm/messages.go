package pwm

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-pwm/internal/output"
)

// MQTT message types exchanged between Gray Logic Core and the PWM bridge.

// Protocol is the protocol identifier used in topics and messages.
const Protocol = "pwm"

// Command names accepted on the command topic.
const (
	CommandTurnOn       = output.ActionTurnOn
	CommandTurnOff      = output.ActionTurnOff
	CommandSetValue     = output.ActionSetValue
	CommandSetFrequency = "set_frequency"
	CommandAllOff       = "all_off"
)

// Request actions accepted on the request topic.
const (
	ActionReadState    = "read_state"
	ActionReadAll      = "read_all"
	ActionGetFrequency = "get_frequency"
)

// CommandMessage is sent from Core to the bridge to change an output or device.
// Topic: graylogic/command/pwm/{id}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgments.
	ID string `json:"id"`

	// Timestamp is when the command was issued.
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the output ID for turn_on, turn_off and set_value, and the
	// PCA9685 device ID for set_frequency and all_off.
	DeviceID string `json:"device_id"`

	// Command is one of the Command* constants.
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"brightness": 128, "hs_color": [240, 100], "transition": 2.5} for turn_on
	//   {"value": 42} for set_value
	//   {"frequency": 500} for set_frequency
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	Source string `json:"source,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was applied to the hardware.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the device did not respond within the timeout.
	AckTimeout AckStatus = "timeout"
)

// AckMessage is sent from the bridge to Core to acknowledge a command.
// Topic: graylogic/ack/pwm/{id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command and request failures.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeOutOfRange        = "OUT_OF_RANGE"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// StateMessage is sent from the bridge to Core when an output changes.
// Topic: graylogic/state/pwm/{output_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	DeviceID  string          `json:"device_id"`
	Timestamp time.Time       `json:"timestamp"`
	State     output.Snapshot `json:"state"`
	Protocol  string          `json:"protocol"`
}

// DeviceStateMessage is published when the frequency of a PCA9685 changes.
// Topic: graylogic/state/pwm/devices/{device_id}
// QoS: 1, Retained: Yes
type DeviceStateMessage struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Frequency int       `json:"frequency"`
	Protocol  string    `json:"protocol"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthOffline  HealthStatus = "offline"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports the operational status of the bridge.
// Topic: graylogic/health/pwm
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge         string       `json:"bridge"`
	Timestamp      time.Time    `json:"timestamp"`
	Status         HealthStatus `json:"status"`
	Version        string       `json:"version"`
	UptimeSeconds  int64        `json:"uptime_seconds"`
	DevicesManaged int          `json:"devices_managed"`

	// FailedDevices lists devices whose last probe failed.
	FailedDevices []string `json:"failed_devices,omitempty"`

	Statistics *BridgeStatistics `json:"statistics,omitempty"`

	// Reason explains the status (especially for offline/degraded).
	Reason string `json:"reason,omitempty"`
}

// BridgeStatistics contains operational counters.
type BridgeStatistics struct {
	CommandsReceived uint64 `json:"commands_received"`
	CommandsFailed   uint64 `json:"commands_failed"`
	StatesPublished  uint64 `json:"states_published"`
}

// RequestMessage is sent from Core to the bridge for request/response operations.
// Topic: graylogic/request/pwm/{request_id}
type RequestMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`

	// Action is one of the Action* constants.
	Action string `json:"action"`

	// DeviceID is the output ID for read_state and the PCA9685 device ID
	// for get_frequency.
	DeviceID string `json:"device_id,omitempty"`
}

// ResponseMessage answers a RequestMessage.
// Topic: graylogic/response/pwm/{request_id}
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
}

// ResponseError contains error details for failed requests.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewAckMessage creates an acknowledgment message for a command.
func NewAckMessage(cmd CommandMessage, status AckStatus) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    status,
		Protocol:  Protocol,
	}
}

// NewAckError creates an acknowledgment with error details.
func NewAckError(cmd CommandMessage, code, message string) AckMessage {
	ack := NewAckMessage(cmd, AckFailed)
	if code == ErrCodeTimeout {
		ack.Status = AckTimeout
	}
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// NewStateMessage wraps an output snapshot for publishing.
func NewStateMessage(snap output.Snapshot) StateMessage {
	ts := snap.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return StateMessage{
		DeviceID:  snap.OutputID,
		Timestamp: ts.UTC(),
		State:     snap,
		Protocol:  Protocol,
	}
}

// NewLWTMessage creates the Last Will and Testament health message.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

// TopicPrefix is the base topic for all Gray Logic messages.
const TopicPrefix = "graylogic"

// CommandTopic returns the command topic for an output or device.
// Example: graylogic/command/pwm/kitchen-strip
func CommandTopic(id string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, Protocol, id)
}

// AckTopic returns the acknowledgment topic for an output or device.
func AckTopic(id string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, Protocol, id)
}

// StateTopic returns the retained state topic for an output.
func StateTopic(outputID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, Protocol, outputID)
}

// DeviceStateTopic returns the retained state topic for a PCA9685.
// Example: graylogic/state/pwm/devices/pca-1
func DeviceStateTopic(deviceID string) string {
	return fmt.Sprintf("%s/state/%s/devices/%s", TopicPrefix, Protocol, deviceID)
}

// HealthTopic returns the bridge health topic.
func HealthTopic() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, Protocol)
}

// RequestTopic returns the topic a request is sent on.
func RequestTopic(requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefix, Protocol, requestID)
}

// ResponseTopic returns the topic a response is published on.
func ResponseTopic(requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefix, Protocol, requestID)
}

// CommandSubscribeTopic returns the subscription pattern for all commands.
func CommandSubscribeTopic() string {
	return fmt.Sprintf("%s/command/%s/#", TopicPrefix, Protocol)
}

// RequestSubscribeTopic returns the subscription pattern for all requests.
func RequestSubscribeTopic() string {
	return fmt.Sprintf("%s/request/%s/#", TopicPrefix, Protocol)
}
