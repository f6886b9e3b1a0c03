// Gray Logic PWM - PCA9685 output service
//
// This is the main entry point for the Gray Logic PWM service. It drives
// PCA9685 16-channel PWM controllers over I2C and exposes their outputs
// (dimmable lights, RGB/RGBW lights, numeric outputs) to Gray Logic Core
// over MQTT and to local tools over a REST/WebSocket API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-pwm/internal/api"
	"github.com/nerrad567/gray-logic-pwm/internal/bridges/pwm"
	"github.com/nerrad567/gray-logic-pwm/internal/gpio"
	"github.com/nerrad567/gray-logic-pwm/internal/i2c"
	"github.com/nerrad567/gray-logic-pwm/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-pwm/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-pwm/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-pwm/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-pwm/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-pwm/internal/output"
	"github.com/nerrad567/gray-logic-pwm/internal/pca9685"
	"github.com/nerrad567/gray-logic-pwm/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// pruneInterval is how often old state history is removed.
const pruneInterval = time.Hour

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic PWM",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // Best-effort flush of rotating log file
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	if !cfg.Protocols.PWM.Enabled {
		return errors.New("protocols.pwm.enabled is false: nothing to run")
	}

	bridgeCfg, err := pwm.LoadConfig(cfg.Protocols.PWM.ConfigFile)
	if err != nil {
		return fmt.Errorf("loading PWM bridge config: %w", err)
	}
	log.Info("PWM bridge config loaded",
		"path", cfg.Protocols.PWM.ConfigFile,
		"devices", len(bridgeCfg.Devices),
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
		Migrations:  migrations.FS,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Open hardware
	hw, err := openHardware(bridgeCfg.Devices, log)
	if err != nil {
		return fmt.Errorf("opening hardware: %w", err)
	}
	defer func() {
		log.Info("releasing hardware")
		if closeErr := hw.Close(); closeErr != nil {
			log.Error("error releasing hardware", "error", closeErr)
		}
	}()

	// Build outputs and restore last state
	store := output.NewSQLiteStateStore(db.DB)
	manager, err := newManager(bridgeCfg.Devices, hw, store, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("stopping output manager")
		if closeErr := manager.Close(); closeErr != nil {
			log.Error("error stopping output manager", "error", closeErr)
		}
	}()

	if retention := bridgeCfg.GetHistoryRetention(); retention > 0 {
		go pruneHistoryLoop(ctx, store, retention, log)
	}

	// Connect to MQTT broker. The will marks this bridge offline on the
	// health topic Core watches.
	lwt, err := json.Marshal(pwm.NewLWTMessage(bridgeCfg.Bridge.ID))
	if err != nil {
		return fmt.Errorf("encoding LWT: %w", err)
	}
	mqttClient, err := mqtt.Connect(cfg.MQTT, mqtt.WithWill(mqtt.Will{
		Topic:   pwm.HealthTopic(),
		Payload: lwt,
		QoS:     1,
	}))
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Start the MQTT bridge
	bridge, err := pwm.NewBridge(pwm.BridgeOptions{
		Config:     bridgeCfg,
		MQTTClient: &mqttBridgeAdapter{client: mqttClient},
		Outputs:    manager,
		Version:    version,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("creating PWM bridge: %w", err)
	}
	manager.AddObserver(bridge)
	if startErr := bridge.Start(ctx); startErr != nil {
		return fmt.Errorf("starting PWM bridge: %w", startErr)
	}
	defer func() {
		log.Info("stopping PWM bridge")
		bridge.Stop()
	}()
	log.Info("PWM bridge started", "bridge_id", bridgeCfg.Bridge.ID)

	// Connect to InfluxDB (optional)
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		manager.AddObserver(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// Start the REST/WebSocket API
	if cfg.API.Enabled {
		apiServer, err := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log,
			Outputs:  manager,
			History:  store,
			MQTT:     mqttClient,
			Bridge:   bridge,
			DB:       db,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		manager.AddObserver(apiServer)
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	for id, probeErr := range manager.Probe(ctx) {
		log.Warn("device not responding", "device_id", id, "error", probeErr)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API, InfluxDB, bridge, MQTT,
	// output manager (/OE disabled), hardware, database.
	log.Info("Gray Logic PWM stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_PWM_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_PWM_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// Device reachability is reported, not fatal: the bridge publishes a
	// degraded status and retries on the next command.
	return nil
}

// pruneHistoryLoop removes state history older than retention until ctx
// is cancelled.
func pruneHistoryLoop(ctx context.Context, store *output.SQLiteStateStore, retention time.Duration, log *logging.Logger) {
	prune := func() {
		deleted, err := store.PruneHistory(ctx, retention)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("pruning state history failed", "error", err)
			}
			return
		}
		if deleted > 0 {
			log.Debug("pruned state history", "rows", deleted)
		}
	}

	prune()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// hardware holds the buses, drivers and /OE lines opened for the
// configured devices.
type hardware struct {
	buses   map[string]openBus
	drivers map[string]*pca9685.Driver
	enables map[string]*gpio.OutputEnable
	locks   i2c.Locks
}

// openHardware opens one bus per distinct backend/bus pair, one driver per
// device and the optional /OE lines. Devices on the same bus share a lock.
// Simulated devices touch no hardware.
func openHardware(devices []output.DeviceConfig, log *logging.Logger) (*hardware, error) {
	hw := &hardware{
		buses:   make(map[string]openBus),
		drivers: make(map[string]*pca9685.Driver),
		enables: make(map[string]*gpio.OutputEnable),
	}

	for _, dc := range devices {
		if err := hw.open(dc, log); err != nil {
			hw.Close() //nolint:errcheck // Already failing; release what was opened
			return nil, fmt.Errorf("device %q: %w", dc.ID, err)
		}
	}
	return hw, nil
}

func (hw *hardware) open(dc output.DeviceConfig, log *logging.Logger) error {
	opts := pca9685.Options{Simulate: dc.Simulate, Logger: log}

	var bus pca9685.Bus
	if dc.Simulate {
		opts.BusID = "simulated"
	} else {
		key := dc.Backend + "|" + dc.Bus
		ob, ok := hw.buses[key]
		if !ok {
			opened, busID, err := i2c.Open(i2c.Config{Backend: dc.Backend, Bus: dc.Bus})
			if err != nil {
				return err
			}
			ob = openBus{bus: opened, id: busID}
			hw.buses[key] = ob
			log.Info("I2C bus opened", "bus", busID, "backend", dc.Backend)
		}
		bus = ob.bus
		opts.BusID = ob.id
		opts.Lock = hw.locks.For(ob.id)
	}

	drv, err := pca9685.New(bus, uint16(dc.Address), opts) //nolint:gosec // address validated as 7-bit
	if err != nil {
		return err
	}
	hw.drivers[dc.ID] = drv

	if dc.OutputEnable != nil && !dc.Simulate {
		oe, err := gpio.Open(*dc.OutputEnable)
		if err != nil {
			return fmt.Errorf("opening output enable: %w", err)
		}
		hw.enables[dc.ID] = oe
	}
	return nil
}

// enabler returns the /OE line for a device, or a nil interface when the
// device has none.
func (hw *hardware) enabler(deviceID string) output.OutputEnabler {
	if oe, ok := hw.enables[deviceID]; ok {
		return oe
	}
	return nil
}

// Close releases every /OE line and bus.
func (hw *hardware) Close() error {
	var errs []error
	for id, oe := range hw.enables {
		if err := oe.Close(); err != nil {
			errs = append(errs, fmt.Errorf("output enable %q: %w", id, err))
		}
	}
	for _, ob := range hw.buses {
		if err := ob.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("bus %s: %w", ob.id, err))
		}
	}
	return errors.Join(errs...)
}

// openBus is an opened bus and its resolved identifier.
type openBus struct {
	bus i2c.Bus
	id  string
}

// newManager builds the output manager over the opened hardware and
// restores every output to its last saved state.
func newManager(devices []output.DeviceConfig, hw *hardware, store output.StateStore, log *logging.Logger) (*output.Manager, error) {
	manager := output.NewManager(output.ManagerOptions{
		Store:  store,
		Logger: log,
	})

	for _, dc := range devices {
		if err := manager.AddDevice(dc, hw.drivers[dc.ID], hw.enabler(dc.ID)); err != nil {
			return nil, fmt.Errorf("adding device %q: %w", dc.ID, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := manager.Restore(ctx); err != nil {
		// A device that fails to restore stays registered; commands will
		// surface the bus error until it answers.
		log.Error("restoring outputs failed", "error", err)
	} else {
		log.Info("outputs restored", "devices", len(devices))
	}
	return manager, nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the PWM
// bridge's MQTTClient interface. The difference is the Subscribe handler
// signature:
// - Infrastructure mqtt: func(topic, payload []byte) error
// - PWM bridge expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements pwm.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements pwm.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements pwm.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// Disconnect implements pwm.MQTTClient.
// The MQTT client lifecycle is owned by run's defer chain.
func (a *mqttBridgeAdapter) Disconnect(_ uint) {}
