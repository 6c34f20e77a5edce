// Package acthor provides a client for the my-PV AC THOR solar-surplus
// water heater controller over Modbus-TCP.
//
// # Basic Usage
//
//	ctx := context.Background()
//	device, err := acthor.Connect(ctx, "192.168.1.40")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer device.Disconnect()
//
//	device.Start()
//	defer device.Stop()
//
//	// Feed the controller the current solar surplus.
//	if err := device.SetPowerExcess(ctx, 1500); err != nil {
//	    log.Fatal(err)
//	}
//
// # Configuration
//
// Connect accepts functional options:
//
//	device, err := acthor.Connect(ctx, "192.168.1.40",
//	    acthor.WithTimeout(5*time.Second),
//	    acthor.WithInterval(2*time.Second),
//	    acthor.WithLogger(slog.Default()),
//	)
//
// # Protocol
//
// The device exposes holding registers 1000-1080 on TCP port 502; the
// port cannot be changed. The firmware cannot handle concurrent requests,
// so all register I/O on one connection is serialized internally. The
// device also enforces a power-write watchdog: if no setpoint arrives
// within the configured timeout it fails safe, which the controller arms
// from the slow cycle interval.
package acthor
