package pico

import (
	"encoding/json"
	"time"
)

// DeviceInfo identifies the controller hardware and configuration.
type DeviceInfo struct {
	IP              string `json:"ip"`
	FirmwareVersion string `json:"fw_ver"`
	FirmwareNote    string `json:"fw_note"`
	Version         int    `json:"vr"`
	Model           int    `json:"modello"`
	BaseTop         int    `json:"BaseTop"`
	GridDatamatrix  string `json:"Grd_DM"`
	ConfigMode      int    `json:"config_mod"`
	SlaveID         int    `json:"id_slave"`
	Name            string `json:"name"`
	HasSlave        int    `json:"has_slave"`
	SlaveBitmap     int    `json:"bmp_slave"`
}

// SensorReadings carries the controller's environmental measurements.
type SensorReadings struct {
	// Temperature is the air temperature in degrees Celsius.
	Temperature float64 `json:"v_tmpr"`

	// Humidity is the relative humidity in percent.
	Humidity float64 `json:"v_umd"`

	AirQuality       int `json:"v_AirQ"`
	TVOC             int `json:"v_Tvoc"`
	ECO2             int `json:"v_ECo2"`
	HumidityRaw      int `json:"umd_raw"`
	HumiditySetpoint int `json:"s_umd"`
	CO2Setpoint      int `json:"s_co2"`
}

// OperatingState carries the controller's current program and fan state.
type OperatingState struct {
	Mode              DeviceMode `json:"mod"`
	StepMode          int        `json:"step_mod"`
	OnOff             OnOffState `json:"on_off"`
	Speed             int        `json:"speed"`
	SpeedRequested    int        `json:"spd_rich"`
	SpeedRaw          int        `json:"spd_row"`
	FanDirection      int        `json:"fan_dir"`
	Direction         int        `json:"verso"`
	DeltaTempCycle    int        `json:"Delta_tmprCiclo"`
	DeltaHumidCycle   int        `json:"Delta_umdCiclo"`
	NightMode         int        `json:"night_mod"`
	LedOnOff          int        `json:"led_on_off"`
	LedOnOffShort     int        `json:"led_on_off_breve"`
	LedColor          int        `json:"led_color"`
	ChronoMode        int        `json:"m_crono"`
	TimerActive       int        `json:"tw_active"`
}

// IsOn reports whether the controller is powered on.
func (o *OperatingState) IsOn() bool {
	return o.OnOff == StateOn
}

// IsFanRunning reports whether the fan is currently turning.
func (o *OperatingState) IsFanRunning() bool {
	return o.OnOff == StateOn && o.Speed > 0
}

// ParameterArrays carries the controller's raw tuning and error tables.
type ParameterArrays struct {
	Realtime []int `json:"par_rt"`
	MinMax   []int `json:"par_mm"`
	Ambient  []int `json:"par_amb"`
	External []int `json:"par_ext"`
	Errors   []int `json:"err"`
	Manual   []int `json:"man"`
}

// HasErrors reports whether any error slot is non-zero.
func (p *ParameterArrays) HasErrors() bool {
	for _, e := range p.Errors {
		if e != 0 {
			return true
		}
	}
	return false
}

// SystemInfo carries the controller's runtime counters and clock.
type SystemInfo struct {
	Counter    int    `json:"cntr"`
	MemoryFree int    `json:"memfree"`
	Uptime     int    `json:"up_time"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Week       int    `json:"week"`
}

// UptimeDuration returns the uptime counter (seconds) as a duration.
func (s *SystemInfo) UptimeDuration() time.Duration {
	return time.Duration(s.Uptime) * time.Second
}

// HasClock reports whether the controller's RTC is set.
func (s *SystemInfo) HasClock() bool {
	return s.Date != "" && s.Time != ""
}

// DeviceStatus is a full decoded status frame. The component structs are
// embedded, so their fields read flat: status.Temperature, status.Mode.
type DeviceStatus struct {
	// Result is the "res" field of the frame.
	Result int `json:"res"`

	DeviceInfo
	SensorReadings
	OperatingState
	ParameterArrays
	SystemInfo

	// Raw is the complete frame payload for fields not modeled above.
	Raw map[string]any `json:"-"`
}

// minFreeMemory is the memfree floor below which the device is close to
// rebooting itself.
const minFreeMemory = 10000

// IsHealthy reports whether the frame indicates a healthy device: a positive
// result, no error slots set, and free memory above the reboot threshold.
func (s *DeviceStatus) IsHealthy() bool {
	return s.Result == 1 && !s.HasErrors() && s.MemoryFree > minFreeMemory
}

// StatusFromPayload decodes a status frame payload into a DeviceStatus.
func StatusFromPayload(payload map[string]any) (*DeviceStatus, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var st DeviceStatus
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, err
	}
	st.Raw = payload
	return &st, nil
}
