package transition

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultStep is the interval between interpolation steps.
const DefaultStep = 150 * time.Millisecond

// ChannelIO is the driver capability a transition needs.
type ChannelIO interface {
	SetChannel(ctx context.Context, channel, value int) error
	Channel(ctx context.Context, channel int) (int, error)
}

// Logger is the logging interface used by the engine.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options configures an Engine.
type Options struct {
	// Scheduler drives the steps. Default: TickerScheduler.
	Scheduler Scheduler

	// Now returns the current time. Default: time.Now.
	Now func() time.Time

	// Step is the interval between steps. Default: DefaultStep.
	Step time.Duration

	// OnError receives bus errors raised by a step. The transition that
	// raised the error has already been stopped. written holds the last
	// value that reached each channel, in the order given to Start.
	OnError func(outputID string, written []int, err error)

	// Logger is optional.
	Logger Logger
}

// Engine interpolates channel values over time, one transition per output.
//
// Each output is IDLE or RUNNING. Start supersedes a running transition
// synchronously: once Start has cancelled the previous run, none of its
// steps can reach the bus.
//
// Thread Safety: All methods are safe for concurrent use.
type Engine struct {
	sched   Scheduler
	now     func() time.Time
	step    time.Duration
	onError func(outputID string, written []int, err error)

	// ctx is used for step writes; the caller's context only covers Start.
	ctx       context.Context
	ctxCancel context.CancelFunc

	mu      sync.Mutex
	outputs map[string]*outputState
	stopped bool

	logger   Logger
	loggerMu sync.RWMutex
}

// outputState serialises Start, Cancel, and steps of one output. The
// output mutex is always taken before the driver's bus lock.
type outputState struct {
	mu  sync.Mutex
	run *run // nil when IDLE
}

type run struct {
	io       ChannelIO
	channels []int
	begin    []int
	end      []int
	written  []int
	start    time.Time
	finish   time.Time
	token    Token
}

// NewEngine creates a transition engine.
func NewEngine(opts Options) *Engine {
	if opts.Scheduler == nil {
		opts.Scheduler = TickerScheduler{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Step <= 0 {
		opts.Step = DefaultStep
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		sched:     opts.Scheduler,
		now:       opts.Now,
		step:      opts.Step,
		onError:   opts.OnError,
		ctx:       ctx,
		ctxCancel: cancel,
		outputs:   make(map[string]*outputState),
		logger:    opts.Logger,
	}
}

// Start begins a transition of channels towards target over duration.
//
// Any transition already running for outputID is cancelled first. The
// begin values are read live from io. When every channel already holds its
// target nothing is scheduled and Start returns false.
//
// Parameters:
//   - ctx: Covers the begin-value reads only
//   - outputID: Logical output owning the channels
//   - io: Driver for the channels
//   - channels: Channel indexes (1 for a simple output, 3-4 for RGB(W))
//   - target: End value per channel
//   - duration: Must be positive
//
// Returns:
//   - bool: true if a transition is now RUNNING
//   - error: ErrConfiguration, ErrStopped, or the driver's read error
func (e *Engine) Start(ctx context.Context, outputID string, io ChannelIO, channels, target []int, duration time.Duration) (bool, error) {
	if duration <= 0 {
		return false, fmt.Errorf("%w: duration %v must be positive", ErrConfiguration, duration)
	}
	if len(channels) == 0 || len(channels) != len(target) {
		return false, fmt.Errorf("%w: %d channels for %d targets", ErrConfiguration, len(channels), len(target))
	}

	o, err := e.output(outputID)
	if err != nil {
		return false, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.cancelLocked()

	begin := make([]int, len(channels))
	changed := false
	for i, ch := range channels {
		v, err := io.Channel(ctx, ch)
		if err != nil {
			return false, fmt.Errorf("read begin value of channel %d: %w", ch, err)
		}
		begin[i] = v
		if v != target[i] {
			changed = true
		}
	}
	if !changed {
		e.logDebug("transition skipped, already at target", "output_id", outputID)
		return false, nil
	}

	start := e.now()
	r := &run{
		io:       io,
		channels: append([]int(nil), channels...),
		begin:    begin,
		end:      append([]int(nil), target...),
		written:  append([]int(nil), begin...),
		start:    start,
		finish:   start.Add(duration),
	}
	// The step callback takes o.mu, so it cannot observe r before token is set.
	r.token = e.sched.SchedulePeriodic(e.step, func(now time.Time) {
		e.tick(outputID, o, r, now)
	})
	o.run = r

	e.logDebug("transition started",
		"output_id", outputID,
		"channels", channels,
		"begin", begin,
		"end", target,
		"duration", duration)

	return true, nil
}

// Cancel stops the running transition of outputID, if any. Channels keep
// the last value written.
func (e *Engine) Cancel(outputID string) {
	e.mu.Lock()
	o, ok := e.outputs[outputID]
	e.mu.Unlock()
	if !ok {
		return
	}

	o.mu.Lock()
	o.cancelLocked()
	o.mu.Unlock()
}

// Running reports whether outputID has a RUNNING transition.
func (e *Engine) Running(outputID string) bool {
	e.mu.Lock()
	o, ok := e.outputs[outputID]
	e.mu.Unlock()
	if !ok {
		return false
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	return o.run != nil
}

// Stop cancels every transition. Start fails afterwards.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	outputs := make([]*outputState, 0, len(e.outputs))
	for _, o := range e.outputs {
		outputs = append(outputs, o)
	}
	e.mu.Unlock()

	for _, o := range outputs {
		o.mu.Lock()
		o.cancelLocked()
		o.mu.Unlock()
	}
	e.ctxCancel()
}

func (e *Engine) output(outputID string) (*outputState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return nil, ErrStopped
	}
	o, ok := e.outputs[outputID]
	if !ok {
		o = &outputState{}
		e.outputs[outputID] = o
	}
	return o, nil
}

func (o *outputState) cancelLocked() {
	if o.run == nil {
		return
	}
	o.run.token.Cancel()
	o.run = nil
}

// tick performs one interpolation step of r. Errors are reported after
// the output mutex is released so OnError may call back into the engine.
func (e *Engine) tick(outputID string, o *outputState, r *run, now time.Time) {
	finished, written, err := e.advance(o, r, now)
	if err != nil {
		e.fail(outputID, written, err)
		return
	}
	if finished {
		e.logDebug("transition finished", "output_id", outputID, "end", r.end)
	}
}

// advance writes one step. On error it returns a copy of the values that
// reached the bus.
func (e *Engine) advance(o *outputState, r *run, now time.Time) (bool, []int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	// Superseded or cancelled while this tick was pending.
	if o.run != r {
		return false, nil, nil
	}

	if !now.Before(r.finish) {
		// Write the exact end values so rounding never drifts.
		o.cancelLocked()
		if err := e.writeAll(r, r.end); err != nil {
			return true, append([]int(nil), r.written...), err
		}
		return true, nil, nil
	}

	elapsed := float64(now.Sub(r.start))
	total := float64(r.finish.Sub(r.start))

	values := make([]int, len(r.channels))
	for i := range r.channels {
		values[i] = Interpolate(r.begin[i], r.end[i], elapsed/total)
	}

	if err := e.writeAll(r, values); err != nil {
		o.cancelLocked()
		return false, append([]int(nil), r.written...), err
	}
	return false, nil, nil
}

func (e *Engine) writeAll(r *run, values []int) error {
	for i, ch := range r.channels {
		if err := r.io.SetChannel(e.ctx, ch, values[i]); err != nil {
			return fmt.Errorf("channel %d: %w", ch, err)
		}
		r.written[i] = values[i]
	}
	return nil
}

func (e *Engine) fail(outputID string, written []int, err error) {
	e.logError("transition step failed", "output_id", outputID, "written", written, "error", err)
	if e.onError != nil {
		e.onError(outputID, written, err)
	}
}

// Interpolate returns begin + (end-begin)*fraction truncated toward zero.
func Interpolate(begin, end int, fraction float64) int {
	return int(float64(begin) + float64(end-begin)*fraction)
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.loggerMu.Lock()
	e.logger = logger
	e.loggerMu.Unlock()
}

func (e *Engine) logDebug(msg string, keysAndValues ...any) {
	e.loggerMu.RLock()
	logger := e.logger
	e.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (e *Engine) logError(msg string, keysAndValues ...any) {
	e.loggerMu.RLock()
	logger := e.logger
	e.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, keysAndValues...)
	}
}
