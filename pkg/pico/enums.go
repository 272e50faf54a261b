package pico

// DeviceMode is the controller's ventilation program ("mod" field).
type DeviceMode int

// Ventilation programs. Modes 1-5 drive the fan at a selectable speed step;
// modes 6-9 let the controller pick the speed from humidity and CO2 readings.
const (
	ModeHeatRecovery          DeviceMode = 1
	ModeExtraction            DeviceMode = 2
	ModeImmission             DeviceMode = 3
	ModeComfortSummer         DeviceMode = 4
	ModeComfortWinter         DeviceMode = 5
	ModeHumidityRecovery      DeviceMode = 6
	ModeHumidityExtraction    DeviceMode = 7
	ModeHumidityCO2Recovery   DeviceMode = 8
	ModeHumidityCO2Extraction DeviceMode = 9
)

// String returns a human-readable name for the mode.
func (m DeviceMode) String() string {
	switch m {
	case ModeHeatRecovery:
		return "HeatRecovery"
	case ModeExtraction:
		return "Extraction"
	case ModeImmission:
		return "Immission"
	case ModeComfortSummer:
		return "ComfortSummer"
	case ModeComfortWinter:
		return "ComfortWinter"
	case ModeHumidityRecovery:
		return "HumidityRecovery"
	case ModeHumidityExtraction:
		return "HumidityExtraction"
	case ModeHumidityCO2Recovery:
		return "HumidityCO2Recovery"
	case ModeHumidityCO2Extraction:
		return "HumidityCO2Extraction"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the mode is a defined value.
func (m DeviceMode) IsValid() bool {
	return m >= ModeHeatRecovery && m <= ModeHumidityCO2Extraction
}

// SupportsFanSpeed reports whether the mode accepts a manual speed step.
func (m DeviceMode) SupportsFanSpeed() bool {
	return m >= ModeHeatRecovery && m <= ModeComfortWinter
}

// SupportsTargetHumidity reports whether the mode regulates towards a
// humidity setpoint.
func (m DeviceMode) SupportsTargetHumidity() bool {
	return m >= ModeHumidityRecovery && m <= ModeHumidityCO2Extraction
}

// OnOffState is the controller's power state ("on_off" field).
type OnOffState int

// Power states. Zero means the field was absent from the frame.
const (
	StateOn  OnOffState = 1
	StateOff OnOffState = 2
)

// String returns a human-readable name for the state.
func (s OnOffState) String() string {
	switch s {
	case StateOn:
		return "On"
	case StateOff:
		return "Off"
	default:
		return "Unknown"
	}
}

// TargetHumidity is a humidity setpoint selector.
type TargetHumidity int

// Humidity setpoints.
const (
	Humidity40 TargetHumidity = 1
	Humidity50 TargetHumidity = 2
	Humidity60 TargetHumidity = 3
)

// Percent returns the setpoint as a relative-humidity percentage.
func (h TargetHumidity) Percent() int {
	switch h {
	case Humidity40:
		return 40
	case Humidity50:
		return 50
	case Humidity60:
		return 60
	default:
		return 0
	}
}

// IsValid returns true if the setpoint is a defined value.
func (h TargetHumidity) IsValid() bool {
	return h >= Humidity40 && h <= Humidity60
}
