package acthor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDevice(t *testing.T, fc *fakeConn) *Device {
	t.Helper()
	return NewDevice(NewRegisters(fc, nil), "TESTSN0123456789",
		WithInterval(10*time.Millisecond),
		WithSlowInterval(20*time.Millisecond),
	)
}

func TestPowerTarget_Arbitration(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		mode     OverrideMode
		excess   int
		override int
		want     int
	}{
		{Override, 1500, 0, 1500}, // zero override falls back to excess
		{Override, 1500, 800, 800},
		{Override, 0, 0, 0},
		{Replace, 1500, 0, 0}, // excess ignored entirely
		{Replace, 1500, 800, 800},
		{Replace, 0, 2000, 2000},
		{Minimum, 800, 500, 800},
		{Minimum, 500, 800, 800},
		{Minimum, 0, 0, 0},
	}

	for _, tt := range tests {
		d := newTestDevice(t, newFakeConn())
		require.NoError(t, d.SetPowerExcess(ctx, tt.excess))
		require.NoError(t, d.SetPowerOverride(ctx, tt.override, tt.mode))

		assert.Equal(t, tt.want, d.PowerTarget(),
			"mode=%s excess=%d override=%d", tt.mode, tt.excess, tt.override)
	}
}

func TestSetPowerExcess_WritesImmediately(t *testing.T) {
	fc := newFakeConn()
	d := newTestDevice(t, fc)

	written := make(chan int, 1)
	d.Subscribe(EventAfterWritePower, func(args ...any) {
		written <- args[0].(int)
	})

	require.NoError(t, d.SetPowerExcess(context.Background(), 1500))

	w, ok := fc.lastWrite()
	require.True(t, ok, "setpoint must be written without waiting for a tick")
	assert.Equal(t, uint16(1000), w.addr)
	assert.Equal(t, []uint16{1500}, w.values)

	select {
	case watts := <-written:
		assert.Equal(t, 1500, watts)
	case <-time.After(time.Second):
		t.Fatal("after_write_power not emitted")
	}
}

func TestSetPowerExcess_PropagatesWriteFailure(t *testing.T) {
	fc := newFakeConn()
	fc.failWrites = true
	d := newTestDevice(t, fc)

	assert.Error(t, d.SetPowerExcess(context.Background(), 1500))
}

func TestSetPowerOverride_InvalidMode(t *testing.T) {
	d := newTestDevice(t, newFakeConn())

	err := d.SetPowerOverride(context.Background(), 500, OverrideMode("maximum"))
	assert.ErrorIs(t, err, ErrInvalidOverrideMode)
}

func TestEnablePowerOverride_ResolvesNominalPower(t *testing.T) {
	fc := newFakeConn()
	fc.set(1060, 2000) // nominal load power
	d := newTestDevice(t, fc)

	require.NoError(t, d.SetPowerExcess(context.Background(), 0))
	require.NoError(t, d.EnablePowerOverride(context.Background(), true, ""))

	assert.Equal(t, 2500, d.PowerOverride(), "1.25 x nominal")
	assert.Equal(t, 2500, d.PowerTarget())
}

func TestEnablePowerOverride_FallbackWithoutNominal(t *testing.T) {
	fc := newFakeConn() // nominal power register reads 0
	d := newTestDevice(t, fc)

	require.NoError(t, d.EnablePowerOverride(context.Background(), true, ""))
	assert.Equal(t, 1000, d.PowerOverride())
}

func TestEnablePowerOverride_Off(t *testing.T) {
	fc := newFakeConn()
	fc.set(1060, 2000)
	d := newTestDevice(t, fc)

	require.NoError(t, d.EnablePowerOverride(context.Background(), true, ""))
	require.NoError(t, d.EnablePowerOverride(context.Background(), false, ""))
	assert.Equal(t, 0, d.PowerOverride())
}

func TestStartTwicePanics(t *testing.T) {
	d := newTestDevice(t, newFakeConn())
	d.Start()
	defer d.Stop()

	assert.Panics(t, func() { d.Start() })
}

func TestStopWithoutStartPanics(t *testing.T) {
	d := newTestDevice(t, newFakeConn())
	assert.Panics(t, func() { d.Stop() })
}

func TestStartStopStart(t *testing.T) {
	d := newTestDevice(t, newFakeConn())

	d.Start()
	d.Stop()
	d.Start()
	d.Stop()
}

func TestControlLoop_FastCycle(t *testing.T) {
	fc := newFakeConn()
	fc.set(1000, 1234) // measured power
	d := newTestDevice(t, fc)

	updated := make(chan struct{}, 16)
	d.Subscribe(EventAfterUpdate, func(args ...any) {
		select {
		case updated <- struct{}{}:
		default:
		}
	})

	require.NoError(t, d.SetPowerExcess(context.Background(), 800))

	d.Start()
	defer d.Stop()

	select {
	case <-updated:
	case <-time.After(time.Second):
		t.Fatal("fast cycle never completed")
	}

	power, ok := d.Power()
	assert.True(t, ok)
	assert.Equal(t, 1234, power)

	// The cycle writes the arbitrated target back.
	assert.Eventually(t, func() bool {
		w, ok := fc.lastWrite()
		return ok && w.addr == 1000 && w.values[0] == 800
	}, time.Second, 5*time.Millisecond)
}

func TestControlLoop_SlowCycleSnapshot(t *testing.T) {
	fc := newFakeConn()
	fc.set(1003, 9)    // status: on
	fc.set(1058, 1)    // relay closed
	fc.set(1060, 3000) // nominal power
	fc.set(1001, 455)
	fc.set(1030, 0, 210, 0, 0, 0, 0, 0)
	d := newTestDevice(t, fc)

	d.Start()
	defer d.Stop()

	assert.Eventually(t, func() bool {
		_, ok := d.Status()
		return ok
	}, time.Second, 5*time.Millisecond)

	status, _ := d.Status()
	assert.True(t, status.IsOperation())

	nominal, ok := d.LoadNominalPower()
	assert.True(t, ok)
	assert.Equal(t, 3000, nominal)

	assert.True(t, d.Relay1Status())

	// Sparse: zero readings are omitted.
	assert.Equal(t, map[int]float64{1: 45.5, 3: 21.0}, d.Temperatures())
}

func TestControlLoop_SurvivesCycleErrors(t *testing.T) {
	fc := newFakeConn()
	fc.mu.Lock()
	fc.failReads = true
	fc.mu.Unlock()
	d := newTestDevice(t, fc)

	updated := make(chan struct{}, 1)
	d.Subscribe(EventAfterUpdate, func(args ...any) {
		select {
		case updated <- struct{}{}:
		default:
		}
	})

	d.Start()
	defer d.Stop()

	// Let a few cycles fail, then heal the transport.
	time.Sleep(35 * time.Millisecond)
	fc.mu.Lock()
	fc.failReads = false
	fc.mu.Unlock()

	select {
	case <-updated:
	case <-time.After(time.Second):
		t.Fatal("loop did not recover after transient errors")
	}
}

func TestControlLoop_ArmsPowerTimeout(t *testing.T) {
	fc := newFakeConn()
	d := newTestDevice(t, fc)

	d.Start()
	defer d.Stop()

	// slow interval of 20ms rounds to 0; the floor of 10 seconds applies.
	assert.Eventually(t, func() bool {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		return fc.regs[1004] == 10
	}, time.Second, 5*time.Millisecond)
}

func TestHandleConnected_RearmsAndEmits(t *testing.T) {
	fc := newFakeConn()
	d := newTestDevice(t, fc)

	connected := make(chan struct{}, 1)
	d.Subscribe(EventConnected, func(args ...any) {
		connected <- struct{}{}
	})

	d.handleConnected()

	select {
	case <-connected:
	case <-time.After(time.Second):
		t.Fatal("connected event not emitted")
	}

	assert.Eventually(t, func() bool {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		return fc.regs[1004] == 10
	}, time.Second, 5*time.Millisecond)
}

func TestTriggerBoost(t *testing.T) {
	fc := newFakeConn()
	d := newTestDevice(t, fc)

	d.TriggerBoost()

	assert.Eventually(t, func() bool {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		return fc.regs[1012] == 1
	}, time.Second, 5*time.Millisecond)
}

func TestDevice_String(t *testing.T) {
	d := newTestDevice(t, newFakeConn())
	assert.Equal(t, "ACThor#TESTSN0123456789", d.String())
}
