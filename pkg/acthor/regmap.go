package acthor

import (
	"context"
	"fmt"
	"log/slog"
)

// registerTable maps logical names to descriptors for the AC THOR's fixed
// register layout (holding registers 1000-1080). Addresses, spans and
// scale factors follow the my-PV Modbus documentation.
var registerTable = map[string]Register{
	"power": rw(1000), // W; 0-3000 M1, 0-6000 M3, 0-9000 for the 9s

	"temp1": roScaled(1001, 10), // all temperatures in 0.1 degC
	"temp2": roScaled(1030, 10),
	"temp3": roScaled(1031, 10),
	"temp4": roScaled(1032, 10),
	"temp5": roScaled(1033, 10),
	"temp6": roScaled(1034, 10),
	"temp7": roScaled(1035, 10),
	"temp8": roScaled(1036, 10),

	"ww1_max": rwScaled(1002, 10),
	"ww2_max": rwScaled(1037, 10),
	"ww3_max": rwScaled(1038, 10),
	"ww1_min": rwScaled(1006, 10),
	"ww2_min": rwScaled(1039, 10),
	"ww3_min": rwScaled(1040, 10),

	"status":        ro(1003),
	"power_timeout": rw(1004), // seconds
	"boost_mode":    rw(1005), // 0 off, 1 on, 3 relay boost on

	"boost_time1_start": rw(1007), // hour
	"boost_time1_stop":  rw(1008),
	"boost_time2_start": rw(1026),
	"boost_time2_stop":  rw(1027),

	"hour":   rw(1009),
	"minute": rw(1010),
	"second": rw(1011),

	"boost_activate": rw(1012),
	"number":         rw(1013),
	"max_power":      rw(1014), // 500-3000 W, not for the 9s
	"tempchip":       roScaled(1015, 10),

	"control_firmware_version":          ro(1016),
	"control_firmware_subversion":       ro(1028),
	"control_firmware_update_available": ro(1029),
	"ps_firmware_version":               ro(1017),

	"serial_number": {Addr: 1018, Width: 8, Access: ReadOnly, Encoding: EncText},

	"rh1_max":       rwScaled(1041, 10),
	"rh2_max":       rwScaled(1042, 10),
	"rh3_max":       rwScaled(1043, 10),
	"rh1_day_min":   rwScaled(1044, 10),
	"rh2_day_min":   rwScaled(1045, 10),
	"rh3_day_min":   rwScaled(1046, 10),
	"rh1_night_min": rwScaled(1047, 10),
	"rh2_night_min": rwScaled(1048, 10),
	"rh3_night_min": rwScaled(1049, 10),

	"night_flag":     ro(1050), // 0 day, 1 night
	"utc_correction": rw(1051), // 0-37
	"dst_correction": rw(1052), // 0, 1

	"legionella_interval": rw(1053), // days
	"legionella_start":    rw(1054), // hour
	"legionella_temp":     rw(1055),
	"legionella_mode":     rw(1056), // 0 off, 1 on

	"stratification_flag": ro(1057),
	"relay1_status":       ro(1058),
	"load_state":          ro(1059),
	"load_nominal_power":  ro(1060), // W

	"u_l1":  ro(1061), // V
	"u_l2":  ro(1067), // 9s only, ACTHOR replies 0
	"u_l3":  ro(1072),
	"i_l1":  roScaled(1062, 10), // A
	"i_l2":  roScaled(1068, 10),
	"i_l3":  roScaled(1073, 10),
	"u_out": ro(1063),
	"freq":  ro(1064), // mHz

	"operation_mode": rw(1065), // 1-8, since firmware a0010004
	"access_level":   rw(1066), // 1-3

	"meter_power":  ro(1069), // negative is feed-in
	"control_type": rw(1070),
	"pmax_abs":     ro(1071),

	"p_out1": ro(1074), // 9s only
	"p_out2": ro(1075),
	"p_out3": ro(1076),

	"operation_state": ro(1077),

	// Only for multi-unit installations with targets above 65535 W.
	// Power below that goes to register 1000.
	"power_big": {Addr: 1078, Width: 2, Access: ReadWrite, Encoding: EncPacked},

	"power_and_relays": rw(1080), // 9s power stage and relay bits
}

// Register spans used by the derived helpers.
var (
	tempRange2to8 = Register{Addr: 1030, Width: 7, Factor: 10, Access: ReadOnly}
	timeOfDaySpan = Register{Addr: 1009, Width: 3, Access: ReadWrite}
)

// Registers exposes typed access to the device's register map. Each read
// issues exactly one transport call, each write exactly one.
type Registers struct {
	conn   Conn
	logger *slog.Logger
}

// NewRegisters binds a register map to a transport. The logger may be nil.
func NewRegisters(conn Conn, logger *slog.Logger) *Registers {
	return &Registers{conn: conn, logger: logger}
}

// Available reports transport connectivity.
func (r *Registers) Available() bool {
	return r.conn.Available()
}

// Names returns every register name in the table, for diagnostics.
func Names() []string {
	names := make([]string, 0, len(registerTable))
	for name := range registerTable {
		names = append(names, name)
	}
	return names
}

func lookup(name string) (Register, error) {
	reg, ok := registerTable[name]
	if !ok {
		return Register{}, fmt.Errorf("%q: %w", name, ErrUnknownRegister)
	}
	return reg, nil
}

// Read reads a named single register and decodes it.
func (r *Registers) Read(ctx context.Context, name string) (float64, error) {
	reg, err := lookup(name)
	if err != nil {
		return 0, err
	}
	if reg.Width != 1 || reg.Encoding != EncRaw {
		return 0, fmt.Errorf("%q is not a single raw register: %w", name, ErrUnknownRegister)
	}
	raw, err := r.readSpan(ctx, reg)
	if err != nil {
		return 0, err
	}
	return reg.DecodeSingle(raw[0]), nil
}

// Write encodes and writes a named single register. Failures propagate to
// the caller; use SubmitWrite for fire-and-forget telemetry writes.
func (r *Registers) Write(ctx context.Context, name string, value float64) error {
	reg, err := lookup(name)
	if err != nil {
		return err
	}
	if reg.Access != ReadWrite {
		return fmt.Errorf("%q: %w", name, ErrReadOnlyRegister)
	}
	if reg.Width != 1 || reg.Encoding != EncRaw {
		return fmt.Errorf("%q is not a single raw register: %w", name, ErrUnknownRegister)
	}
	return r.conn.WriteRegister(ctx, reg.Addr, reg.EncodeSingle(value))
}

// SubmitWrite performs a register write detached from the caller. Errors
// are logged and swallowed: telemetry writes must not crash the caller.
func (r *Registers) SubmitWrite(name string, value float64) {
	go func() {
		if err := r.Write(context.Background(), name, value); err != nil && r.logger != nil {
			r.logger.Error("detached register write failed",
				"register", name, "value", value, "error", err)
		}
	}()
}

func (r *Registers) readSpan(ctx context.Context, reg Register) ([]uint16, error) {
	return r.conn.ReadRegisters(ctx, reg.Addr, reg.Width)
}

// Power reads the current measured power in watts.
func (r *Registers) Power(ctx context.Context) (int, error) {
	v, err := r.Read(ctx, "power")
	return int(v), err
}

// SetPower writes the power setpoint in watts.
func (r *Registers) SetPower(ctx context.Context, watts int) error {
	return r.Write(ctx, "power", float64(watts))
}

// PowerBig reads the wide setpoint register pair used by multi-unit
// installations above 65535 W.
func (r *Registers) PowerBig(ctx context.Context) (uint64, error) {
	reg := registerTable["power_big"]
	raw, err := r.readSpan(ctx, reg)
	if err != nil {
		return 0, err
	}
	return DecodePackedInt(raw), nil
}

// SetPowerBig writes the wide setpoint register pair.
func (r *Registers) SetPowerBig(ctx context.Context, watts uint64) error {
	reg := registerTable["power_big"]
	return r.conn.WriteRegisters(ctx, reg.Addr, EncodePackedInt(watts, reg.Width))
}

// Status reads the raw device status code.
func (r *Registers) Status(ctx context.Context) (StatusCode, error) {
	v, err := r.Read(ctx, "status")
	return StatusCode(v), err
}

// SetPowerTimeout arms the device-side power-write watchdog, in seconds.
func (r *Registers) SetPowerTimeout(ctx context.Context, seconds int) error {
	return r.Write(ctx, "power_timeout", float64(seconds))
}

// ActivateBoost triggers a manual boost run.
func (r *Registers) ActivateBoost(ctx context.Context) error {
	return r.Write(ctx, "boost_activate", 1)
}

// SerialNumber reads the device serial number.
func (r *Registers) SerialNumber(ctx context.Context) (string, error) {
	raw, err := r.readSpan(ctx, registerTable["serial_number"])
	if err != nil {
		return "", err
	}
	return DecodeText(raw), nil
}

// LoadNominalPower reads the nominal power of the connected load in watts.
func (r *Registers) LoadNominalPower(ctx context.Context) (int, error) {
	v, err := r.Read(ctx, "load_nominal_power")
	return int(v), err
}

// Relay1Status reads the state of relay 1.
func (r *Registers) Relay1Status(ctx context.Context) (bool, error) {
	v, err := r.Read(ctx, "relay1_status")
	return v != 0, err
}

// OperationMode reads the configured operation mode.
func (r *Registers) OperationMode(ctx context.Context) (OperationMode, error) {
	v, err := r.Read(ctx, "operation_mode")
	return OperationMode(v), err
}

// SetOperationMode writes the operation mode.
func (r *Registers) SetOperationMode(ctx context.Context, mode OperationMode) error {
	if mode < OperationModeHotWater3kW || mode > OperationModeFrequency {
		return fmt.Errorf("operation mode %d out of range 1-8", mode)
	}
	return r.Write(ctx, "operation_mode", float64(mode))
}

// Temp reads one temperature sensor in celsius. Sensor is 1-8.
func (r *Registers) Temp(ctx context.Context, sensor int) (float64, error) {
	if sensor < 1 || sensor > 8 {
		return 0, fmt.Errorf("sensor must be in 1-8, got %d", sensor)
	}
	return r.Read(ctx, fmt.Sprintf("temp%d", sensor))
}

// Temps reads all eight temperature sensors with only two transport
// calls, issued concurrently: sensor 1 individually and sensors 2-8 as
// one batch. Absent sensors report 0.
func (r *Registers) Temps(ctx context.Context) ([8]float64, error) {
	var temps [8]float64

	firstCh := make(chan error, 1)
	go func() {
		v, err := r.Read(ctx, "temp1")
		temps[0] = v
		firstCh <- err
	}()

	raw, batchErr := r.readSpan(ctx, tempRange2to8)
	firstErr := <-firstCh

	if firstErr != nil {
		return temps, firstErr
	}
	if batchErr != nil {
		return temps, batchErr
	}
	for i, v := range tempRange2to8.DecodeMulti(raw) {
		temps[i+1] = v
	}
	return temps, nil
}

// ControlFirmwareVersion reads the full control firmware version as a
// (major, sub) pair using two concurrent reads.
func (r *Registers) ControlFirmwareVersion(ctx context.Context) (major, sub int, err error) {
	subCh := make(chan error, 1)
	go func() {
		v, e := r.Read(ctx, "control_firmware_subversion")
		sub = int(v)
		subCh <- e
	}()

	v, err := r.Read(ctx, "control_firmware_version")
	major = int(v)
	subErr := <-subCh

	if err != nil {
		return 0, 0, err
	}
	if subErr != nil {
		return 0, 0, subErr
	}
	return major, sub, nil
}

// TimeOfDay reads the device clock with one batch read.
func (r *Registers) TimeOfDay(ctx context.Context) (hour, minute, second int, err error) {
	raw, err := r.readSpan(ctx, timeOfDaySpan)
	if err != nil {
		return 0, 0, 0, err
	}
	return int(raw[0]), int(raw[1]), int(raw[2]), nil
}

// SetTimeOfDay writes the device clock with one batch write.
func (r *Registers) SetTimeOfDay(ctx context.Context, hour, minute, second int) error {
	values, err := timeOfDaySpan.EncodeMulti([]float64{float64(hour), float64(minute), float64(second)})
	if err != nil {
		return err
	}
	return r.conn.WriteRegisters(ctx, timeOfDaySpan.Addr, values)
}

// WriteSpan writes a multi-register span by name after validating the
// value count. A length mismatch performs no transport call.
func (r *Registers) WriteSpan(ctx context.Context, name string, values []float64) error {
	reg, err := lookup(name)
	if err != nil {
		return err
	}
	if reg.Access != ReadWrite {
		return fmt.Errorf("%q: %w", name, ErrReadOnlyRegister)
	}
	encoded, err := reg.EncodeMulti(values)
	if err != nil {
		return err
	}
	return r.conn.WriteRegisters(ctx, reg.Addr, encoded)
}
