package acthor

import (
	"errors"
	"fmt"
)

var ErrInvalidOverrideMode = errors.New("invalid override mode")

// StatusCode is the raw value of the status register.
type StatusCode uint16

// IsOff reports the device is off.
func (s StatusCode) IsOff() bool { return s == 0 }

// IsStartup reports the device is starting up.
func (s StatusCode) IsStartup() bool { return 1 <= s && s <= 8 }

// IsOperation reports the device is operating.
func (s StatusCode) IsOperation() bool { return 9 <= s && s < 200 }

// IsError reports an error state of the power stage.
func (s StatusCode) IsError() bool { return s >= 200 }

func (s StatusCode) String() string {
	switch {
	case s.IsOff():
		return "off"
	case s.IsStartup():
		return "starting"
	case s.IsOperation():
		return "on"
	case s.IsError():
		return "error"
	default:
		return "unknown"
	}
}

// OperationMode is the device operation mode (register 1065).
type OperationMode uint16

const (
	OperationModeHotWater3kW   OperationMode = 1
	OperationModeHotWaterLayer OperationMode = 2
	OperationModeHotWater6kW   OperationMode = 3
	OperationModeHotWaterPump  OperationMode = 4
	OperationModeHotWaterHeat  OperationMode = 5
	OperationModeHeating       OperationMode = 6
	OperationModeHotWaterPWM   OperationMode = 7
	OperationModeFrequency     OperationMode = 8
)

// SingleMode reports whether the mode drives a single load.
func (m OperationMode) SingleMode() bool {
	switch m {
	case OperationModeHotWaterPump, OperationModeHotWaterHeat, OperationModeHotWaterPWM:
		return false
	}
	return true
}

// HasHotWater reports whether the mode includes hot water preparation.
func (m OperationMode) HasHotWater() bool {
	return (OperationModeHotWater3kW <= m && m <= OperationModeHotWaterHeat) ||
		m == OperationModeHotWaterPWM
}

// HasHeating reports whether the mode includes room heating.
func (m OperationMode) HasHeating() bool {
	return m == OperationModeHeating || m == OperationModeHotWaterHeat
}

// BoostMode is the value of the boost_mode register.
type BoostMode uint16

const (
	BoostOff     BoostMode = 0
	BoostOn      BoostMode = 1
	BoostRelayOn BoostMode = 3
)

// IsOn reports whether any boost is active.
func (b BoostMode) IsOn() bool { return b != BoostOff }

// OperationState is the LED state reported in register 1077.
type OperationState uint16

const (
	StateWaitingForExcess   OperationState = 0
	StateHeatingWithExcess  OperationState = 1
	StateBoostBackup        OperationState = 2
	StateTemperatureReached OperationState = 3
	StateNoControlSignal    OperationState = 4
	StateErrorFlash         OperationState = 5
)

// OverrideMode selects how a power override combines with excess power.
type OverrideMode string

const (
	// Override uses the override value instead of excess when nonzero.
	Override OverrideMode = "override"
	// Replace uses the override value even when it is 0.
	Replace OverrideMode = "replace"
	// Minimum uses the larger of override and excess.
	Minimum OverrideMode = "minimum"
)

// ParseOverrideMode validates a mode string.
func ParseOverrideMode(s string) (OverrideMode, error) {
	switch OverrideMode(s) {
	case Override, Replace, Minimum:
		return OverrideMode(s), nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidOverrideMode)
}
