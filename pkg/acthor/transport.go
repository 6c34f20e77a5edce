package acthor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/simonvetter/modbus"
)

// ModbusPort is the Modbus-TCP port of the AC THOR. It cannot be changed
// on the device.
const ModbusPort = 502

var ErrNotConnected = errors.New("not connected")

// Conn is the capability set the register map needs from a transport:
// connectivity plus serialized register I/O.
type Conn interface {
	Available() bool
	ReadRegisters(ctx context.Context, addr, count uint16) ([]uint16, error)
	WriteRegister(ctx context.Context, addr, value uint16) error
	WriteRegisters(ctx context.Context, addr uint16, values []uint16) error
}

// wireClient is the slice of simonvetter/modbus the Connection uses.
// Kept as an interface so tests can substitute the wire.
type wireClient interface {
	Open() error
	Close() error
	ReadRegisters(addr, quantity uint16, regType modbus.RegType) ([]uint16, error)
	WriteRegister(addr, value uint16) error
	WriteRegisters(addr uint16, values []uint16) error
}

// Connection owns one Modbus-TCP session to one device.
//
// The device firmware corrupts its state when it sees two requests in
// flight, so every read and write goes through a single mutex: one
// outstanding request at a time, queued in arrival order.
type Connection struct {
	client wireClient
	host   string
	logger *slog.Logger

	gate sync.Mutex // single-flight request gate

	mu          sync.Mutex
	available   bool
	onConnected []func()
}

// Dial opens a Modbus-TCP connection to the device. The returned
// Connection is available until Disconnect or a Reconnect failure.
func Dial(host string, opts ...ClientOption) (*Connection, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", host, cfg.port),
		Timeout: cfg.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create modbus client: %w", err)
	}

	c := newConnection(client, host, cfg.logger)
	if err := c.open(); err != nil {
		return nil, err
	}
	return c, nil
}

func newConnection(client wireClient, host string, logger *slog.Logger) *Connection {
	return &Connection{client: client, host: host, logger: logger}
}

func (c *Connection) open() error {
	if err := c.client.Open(); err != nil {
		return fmt.Errorf("connect %s: %w", c.host, err)
	}
	c.mu.Lock()
	c.available = true
	c.mu.Unlock()
	if c.logger != nil {
		c.logger.Debug("connected to device", "host", c.host)
	}
	return nil
}

// TestConnection reports whether a device answers on host without keeping
// the session.
func TestConnection(host string, opts ...ClientOption) bool {
	conn, err := Dial(host, opts...)
	if err != nil {
		return false
	}
	conn.Disconnect()
	return true
}

// Available reports whether a live session exists.
func (c *Connection) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available
}

// OnConnected registers a callback fired after every successful
// Reconnect. It is not fired for the initial Dial.
func (c *Connection) OnConnected(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnected = append(c.onConnected, fn)
}

// Reconnect re-establishes a dropped session and fires the connected
// callbacks. The controller uses this signal to re-arm the device-side
// power timeout.
func (c *Connection) Reconnect() error {
	c.gate.Lock()
	_ = c.client.Close()
	err := c.client.Open()
	c.gate.Unlock()

	c.mu.Lock()
	c.available = err == nil
	callbacks := append([]func(){}, c.onConnected...)
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("reconnect %s: %w", c.host, err)
	}
	if c.logger != nil {
		c.logger.Info("reconnected to device", "host", c.host)
	}
	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// ReadRegisters reads count consecutive holding registers at addr.
func (c *Connection) ReadRegisters(ctx context.Context, addr, count uint16) ([]uint16, error) {
	c.gate.Lock()
	defer c.gate.Unlock()
	if err := c.checkLive(ctx); err != nil {
		return nil, err
	}
	if c.logger != nil {
		c.logger.Debug("reading registers", "addr", addr, "count", count)
	}
	regs, err := c.client.ReadRegisters(addr, count, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, fmt.Errorf("read %d registers at %d: %w", count, addr, err)
	}
	return regs, nil
}

// WriteRegister writes one holding register.
func (c *Connection) WriteRegister(ctx context.Context, addr, value uint16) error {
	c.gate.Lock()
	defer c.gate.Unlock()
	if err := c.checkLive(ctx); err != nil {
		return err
	}
	if c.logger != nil {
		c.logger.Debug("writing register", "addr", addr, "value", value)
	}
	if err := c.client.WriteRegister(addr, value); err != nil {
		return fmt.Errorf("write register %d: %w", addr, err)
	}
	return nil
}

// WriteRegisters writes consecutive holding registers starting at addr.
func (c *Connection) WriteRegisters(ctx context.Context, addr uint16, values []uint16) error {
	c.gate.Lock()
	defer c.gate.Unlock()
	if err := c.checkLive(ctx); err != nil {
		return err
	}
	if c.logger != nil {
		c.logger.Debug("writing registers", "addr", addr, "count", len(values))
	}
	if err := c.client.WriteRegisters(addr, values); err != nil {
		return fmt.Errorf("write %d registers at %d: %w", len(values), addr, err)
	}
	return nil
}

// checkLive is called with the gate held.
func (c *Connection) checkLive(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.available {
		return ErrNotConnected
	}
	return nil
}

// Disconnect releases the session. Idempotent.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	if !c.available {
		c.mu.Unlock()
		return
	}
	c.available = false
	c.mu.Unlock()

	c.gate.Lock()
	_ = c.client.Close()
	c.gate.Unlock()
	if c.logger != nil {
		c.logger.Debug("disconnected", "host", c.host)
	}
}
