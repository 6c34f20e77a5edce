package acthor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// DefaultNominalOverrideFactor is the headroom applied to the reported
// nominal load power when an override is enabled without an explicit
// wattage. The nominal rating the device reports tends to run low.
const DefaultNominalOverrideFactor = 1.25

// fallbackOverridePower is used when the nominal load power is unknown.
const fallbackOverridePower = 1000

// Device is the controller for one AC THOR. It owns a register map and
// runs the background control loop: a fast cycle reading measured power
// and writing the arbitrated setpoint, and a slow cycle refreshing
// status, nominal power, relay state and temperatures.
type Device struct {
	registers *Registers
	conn      *Connection // nil when the transport is externally owned
	events    *Events
	logger    *slog.Logger

	serial        string
	interval      time.Duration
	slowInterval  time.Duration
	nominalFactor float64

	mu            sync.Mutex
	running       bool
	cancel        context.CancelFunc
	done          chan struct{}
	powerExcess   int
	powerOverride int
	overrideMode  OverrideMode

	// last-read snapshot
	status        StatusCode
	statusKnown   bool
	power         int
	powerKnown    bool
	nominalPower  int
	nominalKnown  bool
	relay1        bool
	temperatures  map[int]float64
}

// Connect dials the device, reads its serial number and returns a
// controller. The control loop is not started; call Start.
func Connect(ctx context.Context, host string, opts ...ClientOption) (*Device, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	conn, err := Dial(host, opts...)
	if err != nil {
		return nil, err
	}

	registers := NewRegisters(conn, cfg.logger)
	serial, err := registers.SerialNumber(ctx)
	if err != nil {
		conn.Disconnect()
		return nil, fmt.Errorf("read serial number: %w", err)
	}

	d := NewDevice(registers, serial, opts...)
	d.conn = conn
	conn.OnConnected(d.handleConnected)
	return d, nil
}

// NewDevice builds a controller over an existing register map. Used by
// Connect and by callers that own the transport themselves.
func NewDevice(registers *Registers, serial string, opts ...ClientOption) *Device {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			panic(fmt.Sprintf("acthor: invalid option: %v", err))
		}
	}

	return &Device{
		registers:     registers,
		events:        newEvents(cfg.logger),
		logger:        cfg.logger,
		serial:        serial,
		interval:      cfg.interval,
		slowInterval:  cfg.effectiveSlowInterval(),
		nominalFactor: cfg.nominalOverrideFactor,
		overrideMode:  Override,
		temperatures:  make(map[int]float64),
	}
}

func (d *Device) String() string {
	return "ACThor#" + d.serial
}

// Registers exposes the register map for diagnostic access.
func (d *Device) Registers() *Registers { return d.registers }

// SerialNumber returns the serial number read at connect time.
func (d *Device) SerialNumber() string { return d.serial }

// Available reports transport connectivity.
func (d *Device) Available() bool { return d.registers.Available() }

// Subscribe registers an event handler. See the Event* constants.
func (d *Device) Subscribe(event string, fn Handler) (unsubscribe func() bool) {
	return d.events.Subscribe(event, fn)
}

// Start spawns the control loop. Calling Start while the loop is running
// is a programming error.
func (d *Device) Start() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		panic("acthor: control loop already running")
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.running = true
	d.cancel = cancel
	d.done = make(chan struct{})
	done := d.done
	d.mu.Unlock()

	if d.logger != nil {
		d.logger.Debug("starting control loop", "device", d.String())
	}
	go d.runLoop(ctx, done)
}

// Stop cancels the control loop and waits for both cycles to exit.
// Calling Stop while the loop is not running is a programming error.
func (d *Device) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		panic("acthor: control loop not running")
	}
	d.running = false
	cancel := d.cancel
	done := d.done
	d.mu.Unlock()

	cancel()
	<-done
}

// Disconnect releases the transport if this controller owns it.
func (d *Device) Disconnect() {
	if d.conn != nil {
		d.conn.Disconnect()
	}
}

func (d *Device) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	// handleConnected only fires for reconnects; arm the watchdog for the
	// initial session here.
	d.armPowerTimeout()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.runCycle(ctx, "update", d.interval, d.updateOnce, true)
	}()
	go func() {
		defer wg.Done()
		d.runCycle(ctx, "slow update", d.slowInterval, d.slowUpdateOnce, false)
	}()
	wg.Wait()
}

// runCycle runs fn immediately and then on every tick until ctx is
// cancelled. Errors are logged and the next tick retries; a transient
// failure never terminates the cycle.
func (d *Device) runCycle(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error, emitUpdate bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := fn(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			if d.logger != nil {
				d.logger.Error("cycle failed", "device", d.String(), "cycle", name, "error", err)
			}
		case emitUpdate:
			d.events.Emit(EventAfterUpdate)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// updateOnce is the fast cycle: read measured power, write the target.
func (d *Device) updateOnce(ctx context.Context) error {
	power, err := d.registers.Power(ctx)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.power = power
	d.powerKnown = true
	d.mu.Unlock()

	return d.registers.SetPower(ctx, d.PowerTarget())
}

// slowUpdateOnce is the slow cycle: status, nominal power, relay and
// temperatures.
func (d *Device) slowUpdateOnce(ctx context.Context) error {
	status, err := d.registers.Status(ctx)
	if err != nil {
		return err
	}
	nominal, err := d.registers.LoadNominalPower(ctx)
	if err != nil {
		return err
	}
	relay, err := d.registers.Relay1Status(ctx)
	if err != nil {
		return err
	}
	temps, err := d.registers.Temps(ctx)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.status = status
	d.statusKnown = true
	d.nominalPower = nominal
	d.nominalKnown = true
	d.relay1 = relay
	clear(d.temperatures)
	for i, t := range temps {
		if t != 0 {
			d.temperatures[i+1] = t
		}
	}
	d.mu.Unlock()
	return nil
}

// handleConnected re-arms the device-side watchdog after a reconnect.
func (d *Device) handleConnected() {
	if d.logger != nil {
		d.logger.Info("reconnected", "device", d.String())
	}
	d.armPowerTimeout()
	d.events.Emit(EventConnected)
}

// armPowerTimeout tells the device how long it may run without a power
// write before failing safe. Sized so a stalled slow cycle trips it.
func (d *Device) armPowerTimeout() {
	seconds := int(math.Round(1.5 * d.slowInterval.Seconds()))
	if seconds < 10 {
		seconds = 10
	}
	d.registers.SubmitWrite("power_timeout", float64(seconds))
}

// PowerExcess returns the last surplus power handed to SetPowerExcess.
func (d *Device) PowerExcess() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.powerExcess
}

// PowerOverride returns the current override wattage.
func (d *Device) PowerOverride() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.powerOverride
}

// OverrideMode returns the active arbitration mode.
func (d *Device) OverrideMode() OverrideMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.overrideMode
}

// PowerTarget computes the wattage the device should consume from the
// current excess/override state:
//
//	Replace:  the override, even when 0; excess is ignored entirely.
//	Minimum:  max(override, excess).
//	Override: the override when nonzero, otherwise the excess.
func (d *Device) PowerTarget() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.overrideMode {
	case Replace:
		return d.powerOverride
	case Minimum:
		return max(d.powerOverride, d.powerExcess)
	}
	if d.powerOverride != 0 {
		return d.powerOverride
	}
	return d.powerExcess
}

// Status returns the last status code read by the slow cycle.
func (d *Device) Status() (StatusCode, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status, d.statusKnown
}

// Power returns the last measured power read by the fast cycle.
func (d *Device) Power() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.power, d.powerKnown
}

// LoadNominalPower returns the last nominal load power read by the slow
// cycle.
func (d *Device) LoadNominalPower() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nominalPower, d.nominalKnown
}

// Relay1Status returns the last relay state read by the slow cycle.
func (d *Device) Relay1Status() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.relay1
}

// Temperatures returns the last temperature snapshot, keyed by sensor
// number. Sensors reading zero are absent.
func (d *Device) Temperatures() map[int]float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[int]float64, len(d.temperatures))
	for k, v := range d.temperatures {
		out[k] = v
	}
	return out
}

// forceUpdatePower writes the current target immediately instead of
// waiting for the next fast tick.
func (d *Device) forceUpdatePower(ctx context.Context) error {
	target := d.PowerTarget()
	if err := d.registers.SetPower(ctx, target); err != nil {
		return err
	}
	d.events.Emit(EventAfterWritePower, target)
	return nil
}

// SetPowerExcess updates the available surplus power and writes the
// recomputed setpoint right away. The value is kept and re-sent by the
// fast cycle until the next call. Negative values count as no surplus.
func (d *Device) SetPowerExcess(ctx context.Context, watts int) error {
	d.mu.Lock()
	d.powerExcess = max(watts, 0)
	d.mu.Unlock()
	return d.forceUpdatePower(ctx)
}

// SetPowerOverride updates the override wattage and writes the recomputed
// setpoint right away. A non-empty mode switches the arbitration mode
// first; the empty string keeps the current one.
func (d *Device) SetPowerOverride(ctx context.Context, watts int, mode OverrideMode) error {
	if mode != "" {
		parsed, err := ParseOverrideMode(string(mode))
		if err != nil {
			return err
		}
		d.mu.Lock()
		d.overrideMode = parsed
		d.mu.Unlock()
	}

	d.mu.Lock()
	d.powerOverride = max(watts, 0)
	d.mu.Unlock()
	return d.forceUpdatePower(ctx)
}

// EnablePowerOverride is the on/off shorthand for SetPowerOverride: on
// resolves to the nominal load power with headroom (1000 W when nominal
// power is unknown), off resolves to 0.
func (d *Device) EnablePowerOverride(ctx context.Context, on bool, mode OverrideMode) error {
	watts := 0
	if on {
		nominal, err := d.registers.LoadNominalPower(ctx)
		if err != nil {
			// The register read failed; the slow cycle's snapshot is the
			// next best source.
			nominal, _ = d.LoadNominalPower()
		}
		if nominal > 0 {
			watts = int(math.Round(d.nominalFactor * float64(nominal)))
		} else {
			watts = fallbackOverridePower
		}
	}
	return d.SetPowerOverride(ctx, watts, mode)
}

// TriggerBoost starts a manual full-power heating run. Fire-and-forget:
// no state is tracked and failures are only logged.
func (d *Device) TriggerBoost() {
	d.registers.SubmitWrite("boost_activate", 1)
}
