// Package mqtt provides MQTT client connectivity for the PWM service.
//
// This package manages:
//   - Connection to the Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The PWM bridge speaks to Gray Logic Core over the shared broker. Commands
// arrive on graylogic/command/pwm/+, state leaves on graylogic/state/pwm/+.
//
//	Gray Logic Core ↔ MQTT Broker ↔ PWM Bridge ↔ PCA9685
//
// By default the LWT marks graylogic/system/status/{client_id} offline.
// The service passes WithWill so the broker flips the bridge health topic
// instead, which is what Core watches.
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.WithWill(mqtt.Will{
//	    Topic:   bridge.GetLWTTopic(),
//	    Payload: bridge.GetLWTPayload(),
//	    QoS:     1,
//	}))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe("graylogic/command/pwm/+", 1,
//	    func(topic string, payload []byte) error {
//	        return handle(topic, payload)
//	    })
//
// Tests that need a broker live behind the integration build tag:
//
//	go test -tags=integration ./internal/infrastructure/mqtt/...
package mqtt
