package pico

import (
	"context"

	"github.com/picolink/pico/pkg/protocol"
)

// Command verbs understood by the controllers.
const (
	cmdStatus      = "stato_sync"
	cmdTurnOn      = "turn_on"
	cmdTurnOff     = "turn_off"
	cmdSetMode     = "set_mode"
	cmdSetSpeed    = "set_speed"
	cmdSetHumidity = "set_humidity"
)

// GetStatus fetches the full device status. The controller assembles status
// frames slowly, so this uses the configured status timeout rather than the
// command timeout.
func (c *Client) GetStatus(ctx context.Context) (*DeviceStatus, error) {
	payload, err := c.exchange(ctx,
		protocol.Command{Name: cmdStatus, PIN: c.config.PIN},
		c.options(c.config.StatusTimeout))
	if err != nil {
		return nil, err
	}
	return StatusFromPayload(payload)
}

// SendCommand sends an arbitrary command verb with extra parameters and
// returns the raw response payload. Use the typed methods where one exists.
func (c *Client) SendCommand(ctx context.Context, command string, params map[string]any) (map[string]any, error) {
	return c.exchange(ctx,
		protocol.Command{Name: command, PIN: c.config.PIN, Params: params},
		c.options(c.config.Timeout))
}

// TurnOn powers the ventilation unit on.
func (c *Client) TurnOn(ctx context.Context) error {
	_, err := c.SendCommand(ctx, cmdTurnOn, nil)
	return err
}

// TurnOff powers the ventilation unit off.
func (c *Client) TurnOff(ctx context.Context) error {
	_, err := c.SendCommand(ctx, cmdTurnOff, nil)
	return err
}

// SetMode switches the controller to the given ventilation program.
func (c *Client) SetMode(ctx context.Context, mode DeviceMode) error {
	if !mode.IsValid() {
		return ErrInvalidMode
	}
	_, err := c.SendCommand(ctx, cmdSetMode, map[string]any{"mod": int(mode)})
	if err == nil {
		c.noteMode(mode)
	}
	return err
}

// SetFanSpeed sets the manual speed step. Only the modular modes accept a
// manual step; in a humidity-driven mode the call is rejected locally.
func (c *Client) SetFanSpeed(ctx context.Context, speed int) error {
	if speed < MinFanSpeed || speed > MaxFanSpeed {
		return ErrInvalidSpeed
	}
	if mode := c.LastMode(); mode != 0 && !mode.SupportsFanSpeed() {
		return &NotSupportedError{Op: "fan speed", Mode: mode}
	}
	_, err := c.SendCommand(ctx, cmdSetSpeed, map[string]any{"speed": speed})
	return err
}

// SetTargetHumidity sets the humidity setpoint. Only the humidity-driven
// modes regulate towards a setpoint; in a modular mode the call is rejected
// locally.
func (c *Client) SetTargetHumidity(ctx context.Context, target TargetHumidity) error {
	if !target.IsValid() {
		return ErrInvalidHumidity
	}
	if mode := c.LastMode(); mode != 0 && !mode.SupportsTargetHumidity() {
		return &NotSupportedError{Op: "target humidity", Mode: mode}
	}
	_, err := c.SendCommand(ctx, cmdSetHumidity, map[string]any{"s_umd": target.Percent()})
	return err
}
