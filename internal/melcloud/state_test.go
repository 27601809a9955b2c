package melcloud

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceState_setTargetTemperature(t *testing.T) {
	t.Run("air-to-air", func(t *testing.T) {
		state := DeviceState{"SetTemperature": 20.0, "EffectiveFlags": 0.0}
		state.setTargetTemperature(21.5)
		assert.Equal(t, 21.5, state["SetTemperature"])
		assert.Equal(t, float64(flagTargetTemperature), state["EffectiveFlags"])
		assert.Equal(t, true, state["HasPendingCommand"])
	})

	t.Run("air-to-water zone", func(t *testing.T) {
		state := DeviceState{"SetTemperatureZone1": 20.0, "EffectiveFlags": 0.0}
		state.setTargetTemperature(21.5)
		assert.Equal(t, 21.5, state["SetTemperatureZone1"])
		_, hasAta := state["SetTemperature"]
		assert.False(t, hasAta, "must not invent fields the document doesn't have")
	})

	t.Run("existing flags are preserved", func(t *testing.T) {
		state := DeviceState{"SetTemperature": 20.0, "EffectiveFlags": float64(flagPower)}
		state.setTargetTemperature(19.0)
		assert.Equal(t, float64(flagPower|flagTargetTemperature), state["EffectiveFlags"])
	})
}

func TestDeviceState_accessors(t *testing.T) {
	state := DeviceState{
		"DeviceID":             456.0,
		"RoomTemperatureZone1": 18.5,
		"SetTemperatureZone1":  20.0,
		"Power":                true,
	}

	assert.Equal(t, 456, state.DeviceID())
	room, ok := state.RoomTemperature()
	require.True(t, ok)
	assert.Equal(t, 18.5, room)
	target, ok := state.TargetTemperature()
	require.True(t, ok)
	assert.Equal(t, 20.0, target)
	assert.True(t, state.Power())

	_, ok = DeviceState{}.RoomTemperature()
	assert.False(t, ok)
}
