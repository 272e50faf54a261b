package discovery

import (
	"fmt"
	"strings"
)

// TXT record keys advertised by Pico controllers.
const (
	// TXTKeySerial is the controller serial number key.
	TXTKeySerial = "sn"

	// TXTKeyModel is the hardware model key.
	TXTKeyModel = "md"

	// TXTKeyFirmware is the firmware version key.
	TXTKeyFirmware = "fw"

	// TXTKeyName is the user-assigned device name key.
	TXTKeyName = "nm"
)

// MaxNameLength is the maximum length of the advertised device name.
const MaxNameLength = 32

// DeviceTXT holds the metadata a controller advertises in its TXT record.
// All fields are optional on the wire.
type DeviceTXT struct {
	// Serial is the controller serial number.
	Serial string

	// Model is the hardware model, e.g. "PICO-HRV250".
	Model string

	// Firmware is the firmware version string.
	Firmware string

	// Name is the user-assigned device name.
	Name string
}

// Encode converts the TXT record to DNS-SD format strings.
func (t *DeviceTXT) Encode() []string {
	var txt []string
	if t.Serial != "" {
		txt = append(txt, fmt.Sprintf("%s=%s", TXTKeySerial, t.Serial))
	}
	if t.Model != "" {
		txt = append(txt, fmt.Sprintf("%s=%s", TXTKeyModel, t.Model))
	}
	if t.Firmware != "" {
		txt = append(txt, fmt.Sprintf("%s=%s", TXTKeyFirmware, t.Firmware))
	}
	if t.Name != "" {
		name := t.Name
		if len(name) > MaxNameLength {
			name = name[:MaxNameLength]
		}
		txt = append(txt, fmt.Sprintf("%s=%s", TXTKeyName, name))
	}
	return txt
}

// Validate checks the TXT record values.
func (t *DeviceTXT) Validate() error {
	if len(t.Name) > MaxNameLength {
		return ErrInvalidDeviceName
	}
	return nil
}

// ParseDeviceTXT parses raw TXT record strings into a DeviceTXT.
// Unknown keys are ignored.
func ParseDeviceTXT(records []string) DeviceTXT {
	m := ParseTXT(records)
	return DeviceTXT{
		Serial:   m[TXTKeySerial],
		Model:    m[TXTKeyModel],
		Firmware: m[TXTKeyFirmware],
		Name:     m[TXTKeyName],
	}
}

// ParseTXT parses raw TXT record strings into a map.
func ParseTXT(records []string) map[string]string {
	result := make(map[string]string)
	for _, record := range records {
		if idx := strings.IndexByte(record, '='); idx > 0 {
			result[record[:idx]] = record[idx+1:]
		}
	}
	return result
}
