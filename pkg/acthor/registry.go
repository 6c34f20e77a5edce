package acthor

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNoDevice        = errors.New("no device registered")
	ErrAmbiguousDevice = errors.New("multiple devices registered, serial number required")
)

// Registry tracks connected devices by serial number. It is owned by the
// surrounding application and passed to whatever needs device lookup;
// there is no process-global instance.
type Registry struct {
	mu      sync.Mutex
	devices map[string]*Device
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*Device)}
}

// Add registers a device under its serial number, replacing any previous
// entry for the same serial.
func (r *Registry) Add(d *Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[d.SerialNumber()] = d
}

// Remove drops a device by serial number and reports whether it existed.
func (r *Registry) Remove(serial string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.devices[serial]
	delete(r.devices, serial)
	return ok
}

// Get returns the device with the given serial number.
func (r *Registry) Get(serial string) (*Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[serial]
	if !ok {
		return nil, fmt.Errorf("serial %q: %w", serial, ErrNoDevice)
	}
	return d, nil
}

// One returns the only registered device. Selection is ambiguous when
// more than one device exists and fails when none does.
func (r *Registry) One() (*Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch len(r.devices) {
	case 0:
		return nil, ErrNoDevice
	case 1:
		for _, d := range r.devices {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%d devices: %w", len(r.devices), ErrAmbiguousDevice)
}

// Serials lists the registered serial numbers.
func (r *Registry) Serials() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.devices))
	for serial := range r.devices {
		out = append(out, serial)
	}
	return out
}
