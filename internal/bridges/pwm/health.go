package pwm

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"
)

// probeTimeout bounds one round of device probes.
const probeTimeout = 2 * time.Second

// HealthReporter manages periodic health status reporting.
type HealthReporter struct {
	bridgeID  string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	prober    Prober
	stats     func() BridgeStatistics

	deviceCount   int
	deviceCountMu sync.RWMutex

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// HealthPublisher is the interface for publishing health messages.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// Prober checks that every PCA9685 answers on its bus. *output.Manager
// satisfies it.
type Prober interface {
	Probe(ctx context.Context) map[string]error
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	BridgeID string
	Version  string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	Publisher HealthPublisher

	// Prober is optional; without it devices are assumed healthy.
	Prober Prober

	// Stats supplies counters for the health message. Optional.
	Stats func() BridgeStatistics
}

// NewHealthReporter creates a new health reporter.
//
// Parameters:
//   - cfg: Configuration for the health reporter
//
// Returns:
//   - *HealthReporter: Ready to start (call Start to begin reporting)
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval == 0 {
		interval = DefaultHealthInterval * time.Second
	}

	return &HealthReporter{
		bridgeID:  cfg.BridgeID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		prober:    cfg.Prober,
		stats:     cfg.Stats,
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting. Call Stop to shut down.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop stops health reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publishStatus(HealthStopping, "", nil)
	})
}

// SetDeviceCount updates the managed device count.
func (h *HealthReporter) SetDeviceCount(count int) {
	h.deviceCountMu.Lock()
	h.deviceCount = count
	h.deviceCountMu.Unlock()
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting", nil)
}

// PublishNow probes the devices and publishes the current status.
func (h *HealthReporter) PublishNow(ctx context.Context) error {
	status, reason, failed := h.determineStatus(ctx)
	return h.publishStatus(status, reason, failed)
}

// GetLWTPayload returns the Last Will and Testament message payload.
func (h *HealthReporter) GetLWTPayload() ([]byte, error) {
	return json.Marshal(NewLWTMessage(h.bridgeID))
}

// GetLWTTopic returns the topic for the Last Will and Testament.
func (h *HealthReporter) GetLWTTopic() string {
	return HealthTopic()
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(ctx); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus evaluates MQTT connectivity and probes every device.
func (h *HealthReporter) determineStatus(ctx context.Context) (HealthStatus, string, []string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected", nil
	}
	if h.prober == nil {
		return HealthHealthy, "", nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	failures := h.prober.Probe(probeCtx)
	if len(failures) == 0 {
		return HealthHealthy, "", nil
	}

	failed := make([]string, 0, len(failures))
	for id, err := range failures {
		failed = append(failed, id)
		h.logError("device probe failed", err, "device_id", id)
	}
	slices.Sort(failed)
	return HealthDegraded, "device unreachable", failed
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string, failed []string) error {
	if h.publisher == nil {
		return nil
	}

	h.deviceCountMu.RLock()
	deviceCount := h.deviceCount
	h.deviceCountMu.RUnlock()

	msg := HealthMessage{
		Bridge:         h.bridgeID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        h.version,
		UptimeSeconds:  int64(time.Since(h.startTime).Seconds()),
		DevicesManaged: deviceCount,
		FailedDevices:  failed,
		Reason:         reason,
	}
	if h.stats != nil {
		stats := h.stats()
		msg.Statistics = &stats
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return h.publisher.Publish(HealthTopic(), payload, 1, true)
}

func (h *HealthReporter) logError(msg string, err error, keysAndValues ...any) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
	}
}
