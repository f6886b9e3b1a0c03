package pwm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-pwm/internal/output"
	"github.com/nerrad567/gray-logic-pwm/internal/pca9685"
)

// Bridge operation constants.
const (
	// minTopicParts is the minimum number of parts in a valid MQTT topic.
	minTopicParts = 3

	// commandTimeout is the timeout for applying a command to the hardware.
	commandTimeout = 5 * time.Second
)

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// MQTTClient is the interface for MQTT operations.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool

	// Disconnect closes the connection gracefully.
	Disconnect(quiesce uint)
}

// Outputs is the output layer the bridge drives. *output.Manager
// satisfies it.
type Outputs interface {
	Execute(ctx context.Context, outputID string, cmd output.Command) (output.Snapshot, error)
	Output(id string) (output.Snapshot, error)
	Outputs() []output.Snapshot
	Devices() []output.DeviceInfo
	SetFrequency(ctx context.Context, deviceID string, hz int) error
	Frequency(ctx context.Context, deviceID string) (int, error)
	AllOff(ctx context.Context, deviceID string) ([]output.Snapshot, error)
	Probe(ctx context.Context) map[string]error
}

// Bridge translates MQTT commands and requests into output operations and
// publishes output state.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg     *Config
	mqtt    MQTTClient
	outputs Outputs
	health  *HealthReporter

	commandsReceived atomic.Uint64
	commandsFailed   atomic.Uint64
	statesPublished  atomic.Uint64

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context    // Bridge-level context, cancelled on Stop()
	ctxCancel context.CancelFunc // Cancel function for ctx

	logger   Logger
	loggerMu sync.RWMutex
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Config is the loaded bridge configuration.
	Config *Config

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Outputs is the output manager.
	Outputs Outputs

	// Version is reported in health messages.
	Version string

	// Logger is optional structured logger.
	Logger Logger
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation. Register the bridge as an observer of
// the output manager to publish state changes.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("%w: config is required", ErrMissingDependency)
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("%w: MQTT client is required", ErrMissingDependency)
	}
	if opts.Outputs == nil {
		return nil, fmt.Errorf("%w: outputs are required", ErrMissingDependency)
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:       opts.Config,
		mqtt:      opts.MQTTClient,
		outputs:   opts.Outputs,
		done:      make(chan struct{}),
		ctx:       ctx,
		ctxCancel: ctxCancel,
		logger:    opts.Logger,
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.Config.Bridge.ID,
		Version:   version,
		Interval:  opts.Config.GetHealthInterval(),
		Publisher: opts.MQTTClient,
		Prober:    opts.Outputs,
		Stats:     b.statistics,
	})
	b.health.SetDeviceCount(len(opts.Outputs.Devices()))
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start subscribes to the command and request topics, publishes the
// retained state of every output and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	commandTopic := CommandSubscribeTopic()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	requestTopic := RequestSubscribeTopic()
	if err := b.mqtt.Subscribe(requestTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}
	b.logInfo("subscribed to requests", "topic", requestTopic)

	for _, snap := range b.outputs.Outputs() {
		b.publishState(snap)
	}

	b.health.Start(ctx)

	if err := b.health.PublishNow(ctx); err != nil {
		b.logError("failed to publish health status", err)
	}

	b.logInfo("bridge started",
		"bridge_id", b.cfg.Bridge.ID,
		"devices", len(b.outputs.Devices()))

	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		// Cancel bridge context to abort in-flight commands
		b.ctxCancel()

		b.health.Stop()
		b.wg.Wait()

		b.logInfo("bridge stopped")
	})
}

// OutputChanged implements output.Observer by publishing the retained state.
func (b *Bridge) OutputChanged(snap output.Snapshot) {
	b.publishState(snap)
}

// FrequencyChanged implements output.Observer.
func (b *Bridge) FrequencyChanged(deviceID string, hz int) {
	msg := DeviceStateMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		Frequency: hz,
		Protocol:  Protocol,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal device state", err)
		return
	}
	if err := b.mqtt.Publish(DeviceStateTopic(deviceID), payload, 1, true); err != nil {
		b.logError("failed to publish device state", err)
	}
}

// handleMQTTMessage routes incoming MQTT messages to appropriate handlers.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	select {
	case <-b.done:
		return
	default:
	}

	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		b.logError("invalid topic format", fmt.Errorf("topic: %s", topic))
		return
	}

	switch parts[1] {
	case "command":
		b.handleCommand(payload)
	case "request":
		b.handleRequest(payload)
	default:
		b.logError("unknown message type", fmt.Errorf("type: %s", parts[1]))
	}
}

// handleCommand processes a command message from Core.
func (b *Bridge) handleCommand(payload []byte) {
	b.wg.Add(1)
	defer b.wg.Done()

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.commandsFailed.Add(1)
		b.logError("failed to parse command", fmt.Errorf("%w: %w", ErrInvalidMessage, err))
		return
	}
	b.commandsReceived.Add(1)

	b.logInfo("received command",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"command", cmd.Command)

	if cmd.DeviceID == "" {
		b.publishAckError(cmd, ErrCodeInvalidParameters, "device_id is required")
		return
	}

	if err := b.executeCommand(cmd); err != nil {
		b.publishAckError(cmd, errorCode(err), err.Error())
		return
	}

	b.publishAck(cmd)
}

// executeCommand applies a command to the output layer.
func (b *Bridge) executeCommand(cmd CommandMessage) error {
	// Derive timeout from bridge context so commands are cancelled on shutdown
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	switch cmd.Command {
	case CommandTurnOn, CommandTurnOff, CommandSetValue:
		oc, err := output.ParseCommand(cmd.Command, cmd.Parameters)
		if err != nil {
			return err
		}
		oc.Source = output.SourceMQTT
		_, err = b.outputs.Execute(ctx, cmd.DeviceID, oc)
		return err

	case CommandSetFrequency:
		hz, err := frequencyParam(cmd.Parameters)
		if err != nil {
			return err
		}
		return b.outputs.SetFrequency(ctx, cmd.DeviceID, hz)

	case CommandAllOff:
		_, err := b.outputs.AllOff(ctx, cmd.DeviceID)
		return err

	default:
		return fmt.Errorf("%w: unknown command %q", output.ErrInvalidCommand, cmd.Command)
	}
}

// frequencyParam reads the integral "frequency" parameter.
func frequencyParam(params map[string]any) (int, error) {
	v, ok := params["frequency"]
	if !ok {
		return 0, fmt.Errorf("%w: frequency is required", output.ErrInvalidParameters)
	}
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) {
		return 0, fmt.Errorf("%w: frequency must be a whole number", output.ErrInvalidParameters)
	}
	return int(f), nil
}

// errorCode maps an output or driver error onto an ack error code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, output.ErrOutputNotFound), errors.Is(err, output.ErrDeviceNotFound):
		return ErrCodeNotConfigured
	case errors.Is(err, output.ErrInvalidCommand):
		return ErrCodeInvalidCommand
	case errors.Is(err, output.ErrInvalidParameters):
		return ErrCodeInvalidParameters
	case errors.Is(err, pca9685.ErrRange):
		return ErrCodeOutOfRange
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case errors.Is(err, pca9685.ErrBus):
		return ErrCodeDeviceUnreachable
	default:
		return ErrCodeBridgeError
	}
}

// publishAck publishes a successful command acknowledgment.
func (b *Bridge) publishAck(cmd CommandMessage) {
	b.publishAckMessage(NewAckMessage(cmd, AckAccepted))
}

// publishAckError publishes a failed command acknowledgment.
func (b *Bridge) publishAckError(cmd CommandMessage, code, message string) {
	b.commandsFailed.Add(1)
	b.publishAckMessage(NewAckError(cmd, code, message))
	b.logError("command failed",
		fmt.Errorf("code=%s message=%s", code, message))
}

func (b *Bridge) publishAckMessage(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}

	if err := b.mqtt.Publish(AckTopic(ack.DeviceID), payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// publishState publishes the retained state of one output.
func (b *Bridge) publishState(snap output.Snapshot) {
	payload, err := json.Marshal(NewStateMessage(snap))
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}

	if err := b.mqtt.Publish(StateTopic(snap.OutputID), payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
		return
	}
	b.statesPublished.Add(1)
}

// handleRequest processes a request message from Core.
func (b *Bridge) handleRequest(payload []byte) {
	b.wg.Add(1)
	defer b.wg.Done()

	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logError("failed to parse request", fmt.Errorf("%w: %w", ErrInvalidMessage, err))
		return
	}

	b.logInfo("received request",
		"request_id", req.RequestID,
		"action", req.Action)

	var resp ResponseMessage

	switch req.Action {
	case ActionReadState:
		resp = b.handleReadState(req)
	case ActionReadAll:
		resp = b.handleReadAll(req)
	case ActionGetFrequency:
		resp = b.handleGetFrequency(req)
	default:
		resp = failure(req, ErrCodeInvalidCommand, fmt.Sprintf("unknown action: %s", req.Action))
	}

	respPayload, err := json.Marshal(resp)
	if err != nil {
		b.logError("failed to marshal response", err)
		return
	}

	if err := b.mqtt.Publish(ResponseTopic(req.RequestID), respPayload, 1, false); err != nil {
		b.logError("failed to publish response", err)
	}
}

// handleReadState answers with the state of one output.
func (b *Bridge) handleReadState(req RequestMessage) ResponseMessage {
	if req.DeviceID == "" {
		return failure(req, ErrCodeInvalidParameters, "device_id is required")
	}

	snap, err := b.outputs.Output(req.DeviceID)
	if err != nil {
		return failure(req, errorCode(err), err.Error())
	}

	return success(req, map[string]any{"output": snap})
}

// handleReadAll answers with every output and device.
func (b *Bridge) handleReadAll(req RequestMessage) ResponseMessage {
	return success(req, map[string]any{
		"outputs": b.outputs.Outputs(),
		"devices": b.outputs.Devices(),
	})
}

// handleGetFrequency reads the frequency back from a device.
func (b *Bridge) handleGetFrequency(req RequestMessage) ResponseMessage {
	if req.DeviceID == "" {
		return failure(req, ErrCodeInvalidParameters, "device_id is required")
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	hz, err := b.outputs.Frequency(ctx, req.DeviceID)
	if err != nil {
		return failure(req, errorCode(err), err.Error())
	}

	return success(req, map[string]any{"device_id": req.DeviceID, "frequency": hz})
}

func success(req RequestMessage, data map[string]any) ResponseMessage {
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data:      data,
	}
}

func failure(req RequestMessage, code, message string) ResponseMessage {
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   false,
		Error:     &ResponseError{Code: code, Message: message},
	}
}

// statistics returns the bridge counters for health reports.
func (b *Bridge) statistics() BridgeStatistics {
	return BridgeStatistics{
		CommandsReceived: b.commandsReceived.Load(),
		CommandsFailed:   b.commandsFailed.Load(),
		StatesPublished:  b.statesPublished.Load(),
	}
}

// BridgeMetrics contains metrics data for the API health endpoint.
type BridgeMetrics struct {
	Connected        bool   `json:"connected"`
	CommandsReceived uint64 `json:"commands_received"`
	CommandsFailed   uint64 `json:"commands_failed"`
	StatesPublished  uint64 `json:"states_published"`
	DevicesManaged   int    `json:"devices_managed"`
}

// GetMetrics returns current bridge metrics.
func (b *Bridge) GetMetrics() BridgeMetrics {
	stats := b.statistics()
	return BridgeMetrics{
		Connected:        b.mqtt.IsConnected(),
		CommandsReceived: stats.CommandsReceived,
		CommandsFailed:   stats.CommandsFailed,
		StatesPublished:  stats.StatesPublished,
		DevicesManaged:   len(b.outputs.Devices()),
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
