package melcloud

// DeviceState is the telemetry document returned by the device state endpoint.
// It is kept as the raw decoded document rather than a typed struct: the state
// mutation endpoint requires the full document back, including any fields this
// client does not know about, so dropping unrecognised fields on decode would
// silently reset them on the next write.
type DeviceState map[string]any

// EffectiveFlags bits understood by the state mutation endpoint. Only the bits
// OR-ed into EffectiveFlags are applied by the service.
const (
	flagPower             = 0x01
	flagOperationMode     = 0x02
	flagTargetTemperature = 0x04
)

func (s DeviceState) number(key string) (float64, bool) {
	value, ok := s[key].(float64)
	return value, ok
}

// DeviceID returns the device identifier in the document, or 0 if absent.
func (s DeviceState) DeviceID() int {
	id, _ := s.number("DeviceID")
	return int(id)
}

// RoomTemperature returns the measured room temperature.
func (s DeviceState) RoomTemperature() (float64, bool) {
	if value, ok := s.number("RoomTemperature"); ok {
		return value, true
	}
	return s.number("RoomTemperatureZone1")
}

// TargetTemperature returns the currently requested set temperature.
func (s DeviceState) TargetTemperature() (float64, bool) {
	if value, ok := s.number("SetTemperature"); ok {
		return value, true
	}
	return s.number("SetTemperatureZone1")
}

// Power reports whether the unit is switched on.
func (s DeviceState) Power() bool {
	power, _ := s["Power"].(bool)
	return power
}

// setTargetTemperature overwrites the set temperature field(s) present in the
// document, marks the change in EffectiveFlags and flags the pending command,
// as the mutation endpoint requires.
func (s DeviceState) setTargetTemperature(target float64) {
	_, hasSet := s["SetTemperature"]
	_, hasZone1 := s["SetTemperatureZone1"]
	if hasSet || !hasZone1 {
		s["SetTemperature"] = target
	}
	if hasZone1 {
		s["SetTemperatureZone1"] = target
	}
	flags, _ := s.number("EffectiveFlags")
	s["EffectiveFlags"] = float64(int64(flags) | flagTargetTemperature)
	s["HasPendingCommand"] = true
}
