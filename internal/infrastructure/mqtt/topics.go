package mqtt

import "fmt"

// Topic prefixes. Bridge topics use the flat scheme
// graylogic/{category}/{protocol}/{address_or_id}.
const (
	// TopicPrefix is the root of every Gray Logic topic.
	TopicPrefix = "graylogic"

	// TopicPrefixSystem is the base for per-service status topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for the topics the PWM service touches outside
// its bridge package: service liveness and the shared bridge hierarchy.
//
//	topics := mqtt.Topics{}
//	topics.ServiceStatus("graylogic-pwm")
//	// Returns: "graylogic/system/status/graylogic-pwm"
type Topics struct{}

// ServiceStatus returns the retained online/offline topic for a service.
//
// Example: graylogic/system/status/graylogic-pwm
func (Topics) ServiceStatus(clientID string) string {
	return fmt.Sprintf("%s/status/%s", TopicPrefixSystem, clientID)
}

// BridgeHealth returns the topic for bridge health status.
//
// Example: graylogic/health/pwm
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, protocol)
}

// BridgeState returns the topic for output state published by a bridge.
//
// Example: graylogic/state/pwm/lamp-kitchen
func (Topics) BridgeState(protocol, id string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, protocol, id)
}

// BridgeCommand returns the topic for commands to a bridge.
//
// Example: graylogic/command/pwm/lamp-kitchen
func (Topics) BridgeCommand(protocol, id string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, protocol, id)
}

// AllBridgeStates matches state updates from every bridge and output.
func (Topics) AllBridgeStates() string {
	return TopicPrefix + "/state/+/+"
}

// AllServiceStatus matches the status topic of every service.
func (Topics) AllServiceStatus() string {
	return TopicPrefixSystem + "/status/+"
}
