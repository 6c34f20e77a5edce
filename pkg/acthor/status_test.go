package acthor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode_Bands(t *testing.T) {
	tests := []struct {
		code StatusCode
		name string
	}{
		{0, "off"},
		{1, "starting"},
		{8, "starting"},
		{9, "on"},
		{100, "on"},
		{199, "on"},
		{200, "error"},
		{65535, "error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.code.String(), "code=%d", tt.code)
	}
}

func TestStatusCode_Predicates(t *testing.T) {
	assert.True(t, StatusCode(0).IsOff())
	assert.False(t, StatusCode(0).IsStartup())

	assert.True(t, StatusCode(1).IsStartup())
	assert.True(t, StatusCode(8).IsStartup())
	assert.False(t, StatusCode(9).IsStartup())

	assert.True(t, StatusCode(9).IsOperation())
	assert.True(t, StatusCode(199).IsOperation())
	assert.False(t, StatusCode(200).IsOperation())

	assert.True(t, StatusCode(200).IsError())
	assert.False(t, StatusCode(199).IsError())
}

func TestParseOverrideMode(t *testing.T) {
	for _, valid := range []string{"override", "replace", "minimum"} {
		mode, err := ParseOverrideMode(valid)
		assert.NoError(t, err)
		assert.Equal(t, OverrideMode(valid), mode)
	}

	_, err := ParseOverrideMode("maximum")
	assert.ErrorIs(t, err, ErrInvalidOverrideMode)

	_, err = ParseOverrideMode("")
	assert.ErrorIs(t, err, ErrInvalidOverrideMode)
}

func TestOperationMode_Predicates(t *testing.T) {
	assert.True(t, OperationModeHotWater3kW.SingleMode())
	assert.False(t, OperationModeHotWaterPump.SingleMode())
	assert.False(t, OperationModeHotWaterHeat.SingleMode())

	assert.True(t, OperationModeHotWater3kW.HasHotWater())
	assert.True(t, OperationModeHotWaterPWM.HasHotWater())
	assert.False(t, OperationModeHeating.HasHotWater())

	assert.True(t, OperationModeHeating.HasHeating())
	assert.True(t, OperationModeHotWaterHeat.HasHeating())
	assert.False(t, OperationModeHotWater6kW.HasHeating())
}

func TestBoostMode_IsOn(t *testing.T) {
	assert.False(t, BoostOff.IsOn())
	assert.True(t, BoostOn.IsOn())
	assert.True(t, BoostRelayOn.IsOn())
}
