package output

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-pwm/internal/transition"
)

// Logger is the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Store persists last state. Optional; without it nothing is restored.
	Store StateStore

	// Scheduler drives transitions. Default: transition.TickerScheduler.
	Scheduler transition.Scheduler

	// Now is the clock used for transitions and snapshots. Default: time.Now.
	Now func() time.Time

	// Logger is optional.
	Logger Logger
}

// unit is implemented by *Light and *Number.
type unit interface {
	common() *base
	execute(ctx context.Context, cmd Command) error
	restore(ctx context.Context, st State, found bool) error
	forceOffLocked()
	snapshot() Snapshot
}

// device is one PCA9685 and the outputs wired to it.
type device struct {
	cfg     DeviceConfig
	drv     Driver
	oe      OutputEnabler
	outputs []unit

	// freqMu serialises frequency changes and guards cfg.Frequency.
	freqMu sync.Mutex
}

// Manager owns devices and outputs.
//
// Devices are added once at startup with AddDevice; the set is fixed
// afterwards.
//
// Thread Safety: All methods are safe for concurrent use.
type Manager struct {
	store  StateStore
	now    func() time.Time
	engine *transition.Engine

	mu        sync.RWMutex
	devices   map[string]*device
	deviceIDs []string
	outputs   map[string]unit
	outputIDs []string
	observers []Observer

	logger   Logger
	loggerMu sync.RWMutex
}

// NewManager creates an empty Manager with its own transition engine.
func NewManager(opts ManagerOptions) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &Manager{
		store:   opts.Store,
		now:     opts.Now,
		devices: make(map[string]*device),
		outputs: make(map[string]unit),
		logger:  opts.Logger,
	}
	m.engine = transition.NewEngine(transition.Options{
		Scheduler: opts.Scheduler,
		Now:       opts.Now,
		OnError:   m.transitionFailed,
		Logger:    opts.Logger,
	})
	return m
}

// AddDevice registers a device and builds its outputs.
//
// cfg must already have defaults applied; it is validated on its own here
// and must not collide with devices added earlier.
//
// Parameters:
//   - cfg: Device configuration
//   - drv: Driver for the device (owned by the caller)
//   - oe: Optional /OE pin, enabled after Restore and disabled on Close
//
// Returns:
//   - error: ErrInvalidConfig on validation failure or ID collision
func (m *Manager) AddDevice(cfg DeviceConfig, drv Driver, oe OutputEnabler) error {
	if drv == nil {
		return fmt.Errorf("%w: device %q has no driver", ErrInvalidConfig, cfg.ID)
	}
	if err := ValidateDevices([]DeviceConfig{cfg}); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[cfg.ID]; ok {
		return fmt.Errorf("%w: duplicate device id %q", ErrInvalidConfig, cfg.ID)
	}
	for _, o := range cfg.Outputs {
		if _, ok := m.outputs[o.ID]; ok {
			return fmt.Errorf("%w: duplicate output id %q", ErrInvalidConfig, o.ID)
		}
	}

	d := &device{cfg: cfg, drv: drv, oe: oe}
	for _, o := range cfg.Outputs {
		var u unit
		if o.Kind() == KindNumber {
			u = newNumber(o, cfg.ID, drv)
		} else {
			u = newLight(o, cfg.ID, drv, m.engine)
		}
		d.outputs = append(d.outputs, u)
		m.outputs[o.ID] = u
		m.outputIDs = append(m.outputIDs, o.ID)
	}
	m.devices[cfg.ID] = d
	m.deviceIDs = append(m.deviceIDs, cfg.ID)

	m.logInfo("device added",
		"device_id", cfg.ID,
		"bus", cfg.Bus,
		"address", fmt.Sprintf("0x%02X", cfg.Address),
		"outputs", len(cfg.Outputs))
	return nil
}

// AddObserver registers o for state and frequency changes.
func (m *Manager) AddObserver(o Observer) {
	m.mu.Lock()
	m.observers = append(m.observers, o)
	m.mu.Unlock()
}

// Restore brings every device to its configured frequency and every output
// to its last stored state, then enables the /OE pins. Devices are restored
// concurrently.
//
// Returns:
//   - error: the first device failure; other devices still complete
func (m *Manager) Restore(ctx context.Context) error {
	m.mu.RLock()
	devices := make([]*device, 0, len(m.deviceIDs))
	for _, id := range m.deviceIDs {
		devices = append(devices, m.devices[id])
	}
	m.mu.RUnlock()

	var g errgroup.Group
	for _, d := range devices {
		g.Go(func() error {
			if err := m.restoreDevice(ctx, d); err != nil {
				return fmt.Errorf("restoring device %q: %w", d.cfg.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (m *Manager) restoreDevice(ctx context.Context, d *device) error {
	d.freqMu.Lock()
	hz := d.cfg.Frequency
	err := d.drv.SetFrequency(ctx, hz)
	d.freqMu.Unlock()
	if err != nil {
		return fmt.Errorf("setting frequency %d Hz: %w", hz, err)
	}
	m.notifyFrequency(d.cfg.ID, hz)

	var errs []error
	for _, u := range d.outputs {
		id := u.common().id

		var st State
		found := false
		if m.store != nil {
			st, found, err = m.store.Load(ctx, id)
			if err != nil {
				m.logWarn("loading last state failed, using defaults", "output_id", id, "error", err)
				found = false
			}
		}

		if err := u.restore(ctx, st, found); err != nil {
			errs = append(errs, fmt.Errorf("output %q: %w", id, err))
			continue
		}
		m.notify(u, SourceRestore)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if d.oe != nil {
		if err := d.oe.Enable(); err != nil {
			return fmt.Errorf("enabling outputs: %w", err)
		}
	}

	m.logInfo("device restored", "device_id", d.cfg.ID, "frequency", hz, "outputs", len(d.outputs))
	return nil
}

// Execute applies cmd to an output, then saves and publishes the new state.
//
// Returns:
//   - Snapshot: State after the command
//   - error: ErrOutputNotFound, ErrInvalidCommand, ErrInvalidParameters, or
//     a driver error (pca9685.ErrRange, pca9685.ErrBus)
func (m *Manager) Execute(ctx context.Context, outputID string, cmd Command) (Snapshot, error) {
	u, err := m.unit(outputID)
	if err != nil {
		return Snapshot{}, err
	}

	if err := u.execute(ctx, cmd); err != nil {
		return Snapshot{}, err
	}

	source := cmd.Source
	if source == "" {
		source = SourceAPI
	}
	snap := m.stamp(u.snapshot(), source)
	m.save(ctx, snap)
	m.publish(snap)

	m.logDebug("command executed", "output_id", outputID, "action", cmd.Action, "source", source)
	return snap, nil
}

// Light returns the light with the given ID.
func (m *Manager) Light(id string) (*Light, error) {
	u, err := m.unit(id)
	if err != nil {
		return nil, err
	}
	l, ok := u.(*Light)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a light", ErrOutputNotFound, id)
	}
	return l, nil
}

// Number returns the number with the given ID.
func (m *Manager) Number(id string) (*Number, error) {
	u, err := m.unit(id)
	if err != nil {
		return nil, err
	}
	n, ok := u.(*Number)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a number", ErrOutputNotFound, id)
	}
	return n, nil
}

// Output returns a snapshot of one output.
func (m *Manager) Output(id string) (Snapshot, error) {
	u, err := m.unit(id)
	if err != nil {
		return Snapshot{}, err
	}
	return m.stamp(u.snapshot(), ""), nil
}

// Outputs returns snapshots of every output in configuration order.
func (m *Manager) Outputs() []Snapshot {
	m.mu.RLock()
	units := make([]unit, 0, len(m.outputIDs))
	for _, id := range m.outputIDs {
		units = append(units, m.outputs[id])
	}
	m.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(units))
	for _, u := range units {
		snaps = append(snaps, m.stamp(u.snapshot(), ""))
	}
	return snaps
}

// Devices returns every device in configuration order.
func (m *Manager) Devices() []DeviceInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]DeviceInfo, 0, len(m.deviceIDs))
	for _, id := range m.deviceIDs {
		infos = append(infos, m.devices[id].info())
	}
	return infos
}

// Device returns one device.
func (m *Manager) Device(id string) (DeviceInfo, error) {
	d, err := m.device(id)
	if err != nil {
		return DeviceInfo{}, err
	}
	return d.info(), nil
}

func (d *device) info() DeviceInfo {
	d.freqMu.Lock()
	hz := d.cfg.Frequency
	d.freqMu.Unlock()

	ids := make([]string, 0, len(d.outputs))
	for _, u := range d.outputs {
		ids = append(ids, u.common().id)
	}
	return DeviceInfo{
		ID:        d.cfg.ID,
		Name:      d.cfg.Name,
		Bus:       d.cfg.Bus,
		Address:   d.cfg.Address,
		Frequency: hz,
		Simulate:  d.cfg.Simulate,
		Outputs:   ids,
	}
}

// SetFrequency changes the PWM frequency of a device.
//
// Returns:
//   - error: ErrDeviceNotFound, pca9685.ErrRange, or pca9685.ErrBus
func (m *Manager) SetFrequency(ctx context.Context, deviceID string, hz int) error {
	d, err := m.device(deviceID)
	if err != nil {
		return err
	}

	d.freqMu.Lock()
	err = d.drv.SetFrequency(ctx, hz)
	if err == nil {
		d.cfg.Frequency = hz
	}
	d.freqMu.Unlock()
	if err != nil {
		return err
	}

	m.notifyFrequency(deviceID, hz)
	m.logInfo("frequency changed", "device_id", deviceID, "frequency", hz)
	return nil
}

// Frequency reads the PWM frequency back from a device.
func (m *Manager) Frequency(ctx context.Context, deviceID string) (int, error) {
	d, err := m.device(deviceID)
	if err != nil {
		return 0, err
	}
	return d.drv.Frequency(ctx)
}

// AllOff switches every channel of a device off with one ALL_LED write.
// Running transitions on the device are cancelled first.
func (m *Manager) AllOff(ctx context.Context, deviceID string) ([]Snapshot, error) {
	d, err := m.device(deviceID)
	if err != nil {
		return nil, err
	}

	for _, u := range d.outputs {
		u.common().mu.Lock()
	}
	for _, u := range d.outputs {
		m.engine.Cancel(u.common().id)
	}
	err = d.drv.SetAll(ctx, 0)
	if err == nil {
		for _, u := range d.outputs {
			u.forceOffLocked()
		}
	}
	for _, u := range d.outputs {
		u.common().mu.Unlock()
	}
	if err != nil {
		return nil, err
	}

	snaps := make([]Snapshot, 0, len(d.outputs))
	for _, u := range d.outputs {
		snap := m.stamp(u.snapshot(), SourceAllOff)
		m.save(ctx, snap)
		m.publish(snap)
		snaps = append(snaps, snap)
	}

	m.logInfo("all outputs off", "device_id", deviceID)
	return snaps, nil
}

// Probe reads the frequency of every device and reports those that fail.
//
// Returns:
//   - map[string]error: failing device IDs and their errors (empty when all respond)
func (m *Manager) Probe(ctx context.Context) map[string]error {
	m.mu.RLock()
	devices := make([]*device, 0, len(m.deviceIDs))
	for _, id := range m.deviceIDs {
		devices = append(devices, m.devices[id])
	}
	m.mu.RUnlock()

	failed := make(map[string]error)
	for _, d := range devices {
		if _, err := d.drv.Frequency(ctx); err != nil {
			failed[d.cfg.ID] = err
		}
	}
	return failed
}

// Close cancels every transition and disables the /OE pins.
func (m *Manager) Close() error {
	m.engine.Stop()

	m.mu.RLock()
	var errs []error
	for _, id := range m.deviceIDs {
		d := m.devices[id]
		if d.oe == nil {
			continue
		}
		if err := d.oe.Disable(); err != nil {
			errs = append(errs, fmt.Errorf("disabling outputs of %q: %w", id, err))
		}
	}
	m.mu.RUnlock()

	return errors.Join(errs...)
}

func (m *Manager) unit(id string) (unit, error) {
	m.mu.RLock()
	u, ok := m.outputs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrOutputNotFound, id)
	}
	return u, nil
}

func (m *Manager) device(id string) (*device, error) {
	m.mu.RLock()
	d, ok := m.devices[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, id)
	}
	return d, nil
}

func (m *Manager) stamp(snap Snapshot, source string) Snapshot {
	snap.Source = source
	snap.Timestamp = m.now().UTC()
	return snap
}

func (m *Manager) notify(u unit, source string) {
	m.publish(m.stamp(u.snapshot(), source))
}

// save persists snap. Failures are logged: the hardware has already changed.
func (m *Manager) save(ctx context.Context, snap Snapshot) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(ctx, snap.OutputID, snap.State, snap.Source); err != nil {
		m.logWarn("saving output state failed", "output_id", snap.OutputID, "error", err)
	}
}

func (m *Manager) publish(snap Snapshot) {
	m.mu.RLock()
	observers := append([]Observer(nil), m.observers...)
	m.mu.RUnlock()

	for _, o := range observers {
		o.OutputChanged(snap)
	}
}

func (m *Manager) notifyFrequency(deviceID string, hz int) {
	m.mu.RLock()
	observers := append([]Observer(nil), m.observers...)
	m.mu.RUnlock()

	for _, o := range observers {
		o.FrequencyChanged(deviceID, hz)
	}
}

// transitionFailed is the engine's OnError hook. The light is rewound to
// the channel values that reached the bus, then saved and republished so
// observers stop reporting the unreached target.
func (m *Manager) transitionFailed(outputID string, written []int, err error) {
	m.logError("transition aborted by bus error", "output_id", outputID, "written", written, "error", err)

	u, lookupErr := m.unit(outputID)
	if lookupErr != nil {
		return
	}
	l, ok := u.(*Light)
	if !ok || !l.transitionAborted(written) {
		return
	}

	snap := m.stamp(l.snapshot(), SourceTransitionError)
	m.save(context.Background(), snap)
	m.publish(snap)
}

// SetLogger sets the logger for the manager and its transition engine.
func (m *Manager) SetLogger(logger Logger) {
	m.loggerMu.Lock()
	m.logger = logger
	m.loggerMu.Unlock()
	m.engine.SetLogger(logger)
}

func (m *Manager) getLogger() Logger {
	m.loggerMu.RLock()
	defer m.loggerMu.RUnlock()
	return m.logger
}

func (m *Manager) logDebug(msg string, keysAndValues ...any) {
	if l := m.getLogger(); l != nil {
		l.Debug(msg, keysAndValues...)
	}
}

func (m *Manager) logInfo(msg string, keysAndValues ...any) {
	if l := m.getLogger(); l != nil {
		l.Info(msg, keysAndValues...)
	}
}

func (m *Manager) logWarn(msg string, keysAndValues ...any) {
	if l := m.getLogger(); l != nil {
		l.Warn(msg, keysAndValues...)
	}
}

func (m *Manager) logError(msg string, keysAndValues ...any) {
	if l := m.getLogger(); l != nil {
		l.Error(msg, keysAndValues...)
	}
}
