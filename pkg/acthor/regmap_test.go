package acthor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type regWrite struct {
	addr   uint16
	values []uint16
}

// fakeConn is an in-memory register bank implementing Conn.
type fakeConn struct {
	mu         sync.Mutex
	regs       map[uint16]uint16
	readCalls  int
	writeCalls int
	failReads  bool
	failWrites bool
	writes     []regWrite
}

func newFakeConn() *fakeConn {
	return &fakeConn{regs: make(map[uint16]uint16)}
}

func (f *fakeConn) set(addr uint16, values ...uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, v := range values {
		f.regs[addr+uint16(i)] = v
	}
}

func (f *fakeConn) Available() bool { return true }

func (f *fakeConn) ReadRegisters(ctx context.Context, addr, count uint16) ([]uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readCalls++
	if f.failReads {
		return nil, errors.New("read refused")
	}
	out := make([]uint16, count)
	for i := range out {
		out[i] = f.regs[addr+uint16(i)]
	}
	return out, nil
}

func (f *fakeConn) WriteRegister(ctx context.Context, addr, value uint16) error {
	return f.WriteRegisters(ctx, addr, []uint16{value})
}

func (f *fakeConn) WriteRegisters(ctx context.Context, addr uint16, values []uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeCalls++
	if f.failWrites {
		return errors.New("write refused")
	}
	for i, v := range values {
		f.regs[addr+uint16(i)] = v
	}
	f.writes = append(f.writes, regWrite{addr: addr, values: append([]uint16(nil), values...)})
	return nil
}

func (f *fakeConn) counts() (reads, writes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readCalls, f.writeCalls
}

func (f *fakeConn) lastWrite() (regWrite, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return regWrite{}, false
	}
	return f.writes[len(f.writes)-1], true
}

func TestRegisters_ReadScaled(t *testing.T) {
	fc := newFakeConn()
	fc.set(1001, 455)
	r := NewRegisters(fc, nil)

	temp, err := r.Read(context.Background(), "temp1")
	require.NoError(t, err)
	assert.Equal(t, 45.5, temp)
}

func TestRegisters_ReadUnknownName(t *testing.T) {
	r := NewRegisters(newFakeConn(), nil)

	_, err := r.Read(context.Background(), "flux_capacitor")
	assert.ErrorIs(t, err, ErrUnknownRegister)
}

func TestRegisters_WriteReadOnly(t *testing.T) {
	fc := newFakeConn()
	r := NewRegisters(fc, nil)

	err := r.Write(context.Background(), "status", 1)
	assert.ErrorIs(t, err, ErrReadOnlyRegister)

	_, writes := fc.counts()
	assert.Zero(t, writes)
}

func TestRegisters_SetPower(t *testing.T) {
	fc := newFakeConn()
	r := NewRegisters(fc, nil)

	require.NoError(t, r.SetPower(context.Background(), 2500))

	w, ok := fc.lastWrite()
	require.True(t, ok)
	assert.Equal(t, uint16(1000), w.addr)
	assert.Equal(t, []uint16{2500}, w.values)
}

func TestRegisters_SerialNumber(t *testing.T) {
	fc := newFakeConn()
	fc.set(1018, 0x4143, 0x5448, 0x4F52, 0x2030, 0x3132, 0x3334, 0x3536, 0x3738)
	r := NewRegisters(fc, nil)

	sn, err := r.SerialNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ACTHOR 012345678", sn)

	reads, _ := fc.counts()
	assert.Equal(t, 1, reads, "serial number should be one batch read")
}

func TestRegisters_Temps_TwoReads(t *testing.T) {
	fc := newFakeConn()
	fc.set(1001, 455)                            // temp1 = 45.5
	fc.set(1030, 0, 210, 0, 0, 0, 0, 305)        // temp2..temp8
	r := NewRegisters(fc, nil)

	temps, err := r.Temps(context.Background())
	require.NoError(t, err)

	assert.Equal(t, [8]float64{45.5, 0, 21.0, 0, 0, 0, 0, 30.5}, temps)

	reads, _ := fc.counts()
	assert.Equal(t, 2, reads, "temperature read must use exactly two transport calls")
}

func TestRegisters_Temps_ReadFailure(t *testing.T) {
	fc := newFakeConn()
	fc.failReads = true
	r := NewRegisters(fc, nil)

	_, err := r.Temps(context.Background())
	assert.Error(t, err)
}

func TestRegisters_ControlFirmwareVersion(t *testing.T) {
	fc := newFakeConn()
	fc.set(1016, 1)
	fc.set(1028, 7)
	r := NewRegisters(fc, nil)

	major, sub, err := r.ControlFirmwareVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, major)
	assert.Equal(t, 7, sub)

	reads, _ := fc.counts()
	assert.Equal(t, 2, reads)
}

func TestRegisters_TimeOfDay_OneBatchRead(t *testing.T) {
	fc := newFakeConn()
	fc.set(1009, 13, 37, 42)
	r := NewRegisters(fc, nil)

	hour, minute, second, err := r.TimeOfDay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 13, hour)
	assert.Equal(t, 37, minute)
	assert.Equal(t, 42, second)

	reads, _ := fc.counts()
	assert.Equal(t, 1, reads)
}

func TestRegisters_WriteSpan_LengthMismatch(t *testing.T) {
	fc := newFakeConn()
	r := NewRegisters(fc, nil)

	err := r.WriteSpan(context.Background(), "hour", []float64{1, 2})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, writes := fc.counts()
	assert.Zero(t, writes, "length mismatch must not touch the transport")
}

func TestRegisters_PowerBig_RoundTrip(t *testing.T) {
	fc := newFakeConn()
	r := NewRegisters(fc, nil)

	require.NoError(t, r.SetPowerBig(context.Background(), 70000))

	got, err := r.PowerBig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(70000), got)
}

func TestRegisters_SubmitWrite_SwallowsFailure(t *testing.T) {
	fc := newFakeConn()
	fc.failWrites = true
	r := NewRegisters(fc, nil)

	// Must neither block nor propagate the failure.
	r.SubmitWrite("power", 500)

	assert.Eventually(t, func() bool {
		_, writes := fc.counts()
		return writes == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRegisters_SetOperationMode_Range(t *testing.T) {
	fc := newFakeConn()
	r := NewRegisters(fc, nil)

	assert.Error(t, r.SetOperationMode(context.Background(), 0))
	assert.Error(t, r.SetOperationMode(context.Background(), 9))
	require.NoError(t, r.SetOperationMode(context.Background(), OperationModeHeating))

	w, ok := fc.lastWrite()
	require.True(t, ok)
	assert.Equal(t, uint16(1065), w.addr)
	assert.Equal(t, []uint16{6}, w.values)
}

func TestRegisters_Temp_SensorRange(t *testing.T) {
	r := NewRegisters(newFakeConn(), nil)

	_, err := r.Temp(context.Background(), 0)
	assert.Error(t, err)
	_, err = r.Temp(context.Background(), 9)
	assert.Error(t, err)
}
