package acthor

import (
	"errors"
	"log/slog"
	"time"
)

// ClientOption configures Dial and Connect.
type ClientOption func(*clientConfig) error

// clientConfig holds the configuration shared by the transport and the
// controller.
type clientConfig struct {
	port                  int
	timeout               time.Duration
	interval              time.Duration
	slowInterval          time.Duration // 0 means derived from interval
	nominalOverrideFactor float64
	logger                *slog.Logger
}

// defaultConfig returns the default client configuration.
func defaultConfig() *clientConfig {
	return &clientConfig{
		port:                  ModbusPort,
		timeout:               3 * time.Second,
		interval:              5 * time.Second,
		nominalOverrideFactor: DefaultNominalOverrideFactor,
		logger:                nil,
	}
}

func (c *clientConfig) effectiveSlowInterval() time.Duration {
	if c.slowInterval > 0 {
		return c.slowInterval
	}
	if c.interval > time.Minute {
		return c.interval
	}
	return time.Minute
}

// WithPort sets the TCP port to connect to. The real device only listens
// on 502; this exists for simulators.
func WithPort(port int) ClientOption {
	return func(c *clientConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		c.port = port
		return nil
	}
}

// WithTimeout sets the timeout for establishing the connection and for
// each register operation. Default is 3 seconds.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		c.timeout = d
		return nil
	}
}

// WithInterval sets the fast control cycle interval.
// Default is 5 seconds.
func WithInterval(d time.Duration) ClientOption {
	return func(c *clientConfig) error {
		if d <= 0 {
			return errors.New("interval must be positive")
		}
		c.interval = d
		return nil
	}
}

// WithSlowInterval sets the slow status cycle interval. By default it is
// the fast interval, but no shorter than one minute.
func WithSlowInterval(d time.Duration) ClientOption {
	return func(c *clientConfig) error {
		if d <= 0 {
			return errors.New("slow interval must be positive")
		}
		c.slowInterval = d
		return nil
	}
}

// WithNominalOverrideFactor sets the headroom factor applied to the
// device's reported nominal load power when an override is enabled
// without an explicit wattage. Default is DefaultNominalOverrideFactor.
func WithNominalOverrideFactor(f float64) ClientOption {
	return func(c *clientConfig) error {
		if f <= 0 {
			return errors.New("nominal override factor must be positive")
		}
		c.nominalOverrideFactor = f
		return nil
	}
}

// WithLogger sets a structured logger for debug and error logging.
// By default, no logging is performed.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) error {
		c.logger = logger
		return nil
	}
}
