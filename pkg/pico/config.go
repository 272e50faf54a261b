package pico

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"github.com/picolink/pico/pkg/exchange"
	"github.com/picolink/pico/pkg/metrics"
)

// Client defaults.
const (
	// DefaultTimeout is the per-attempt wait for a command reply.
	DefaultTimeout = 5 * time.Second

	// MinTimeout and MaxTimeout bound the configurable timeout window.
	MinTimeout = 5 * time.Second
	MaxTimeout = 15 * time.Second

	// DefaultStatusTimeout is the per-attempt wait for a full status frame,
	// which the controller assembles noticeably slower than command acks.
	DefaultStatusTimeout = 15 * time.Second

	// MinFanSpeed and MaxFanSpeed bound the manual speed step.
	MinFanSpeed = 1
	MaxFanSpeed = 5
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// Host is the controller's IP address or host name. Required.
	Host string

	// DevicePort is the controller's UDP command port.
	// Defaults to exchange.DefaultDevicePort.
	DevicePort int

	// PIN is the device PIN code sent with every command.
	PIN string

	// DeviceID identifies this device towards the exchange manager.
	// Defaults to a random UUID.
	DeviceID string

	// Manager is a shared exchange manager multiplexing several devices
	// over one socket. If nil, the client creates a private manager.
	Manager *exchange.Manager

	// LocalPort is the local UDP port for a private manager.
	// Defaults to exchange.DefaultLocalPort. Ignored when Manager is set.
	LocalPort int

	// Timeout is the per-attempt wait for a command reply. Must lie within
	// [MinTimeout, MaxTimeout]. Defaults to DefaultTimeout.
	Timeout time.Duration

	// StatusTimeout is the per-attempt wait for a full status frame, which
	// the controller assembles noticeably slower than command acks. Used by
	// GetStatus instead of Timeout. Defaults to DefaultStatusTimeout.
	StatusTimeout time.Duration

	// RetryAttempts is the number of outer attempts per command.
	// Defaults to exchange.DefaultRetryAttempts.
	RetryAttempts int

	// RetryDelay is the pause between outer attempts.
	// Defaults to exchange.DefaultRetryDelay.
	RetryDelay time.Duration

	// AutoReconnect enables the reconnect supervisor: commands failing on
	// connection errors transparently rebuild the link and retry.
	AutoReconnect bool

	// MaxReconnectAttempts is the reconnect budget per failure.
	// Defaults to reconnect.DefaultMaxAttempts.
	MaxReconnectAttempts int

	// ReconnectDelay is the pause before each reconnect attempt.
	// Defaults to reconnect.DefaultDelay.
	ReconnectDelay time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory

	// Metrics receives transport and exchange counters. Optional; only
	// used for a private manager.
	Metrics *metrics.Metrics
}

func (c *ClientConfig) applyDefaults() {
	if c.DevicePort == 0 {
		c.DevicePort = exchange.DefaultDevicePort
	}
	if c.DeviceID == "" {
		c.DeviceID = uuid.NewString()
	}
	if c.LocalPort == 0 {
		c.LocalPort = exchange.DefaultLocalPort
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.StatusTimeout == 0 {
		c.StatusTimeout = DefaultStatusTimeout
	}
}

// Validate checks the configuration.
func (c *ClientConfig) Validate() error {
	if c.Host == "" {
		return ErrMissingHost
	}
	if c.Timeout != 0 && (c.Timeout < MinTimeout || c.Timeout > MaxTimeout) {
		return ErrInvalidTimeout
	}
	return nil
}

// listenAddr returns the bind address for a private manager.
func (c *ClientConfig) listenAddr() string {
	return fmt.Sprintf(":%d", c.LocalPort)
}
