package pico

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/picolink/pico/pkg/exchange"
	"github.com/picolink/pico/pkg/protocol"
	"github.com/picolink/pico/pkg/reconnect"
	"github.com/picolink/pico/pkg/transport"
)

// EventHandler receives the payload of a controller-initiated frame.
type EventHandler func(payload map[string]any)

// Client drives a single Pico controller.
//
// All methods are safe for concurrent use; commands against the same device
// serialize on the underlying session.
type Client struct {
	config ClientConfig
	log    logging.LeveledLogger

	mu          sync.Mutex
	manager     *exchange.Manager
	ownsManager bool
	session     *exchange.Session
	supervisor  *reconnect.Supervisor
	connected   bool
	lastMode    DeviceMode

	handlerMu sync.RWMutex
	handlers  map[string]EventHandler
}

// NewClient creates a Client. No network activity happens until Connect.
func NewClient(config ClientConfig) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	c := &Client{
		config:   config,
		handlers: make(map[string]EventHandler),
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("pico")
	}
	return c, nil
}

// DeviceID returns the identifier this client registers under.
func (c *Client) DeviceID() string {
	return c.config.DeviceID
}

// Connect registers the device and, with AutoReconnect enabled, arms the
// reconnect supervisor. With no shared manager configured, a private one is
// created; its socket opens now, a shared manager's socket opens on the
// first registration across all its clients.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return ErrAlreadyConnected
	}

	addr, err := transport.DeviceAddr(c.config.Host, c.config.DevicePort)
	if err != nil {
		return err
	}

	manager := c.config.Manager
	owns := false
	if manager == nil {
		manager, err = exchange.NewManager(exchange.ManagerConfig{
			ListenAddr:    c.config.listenAddr(),
			LoggerFactory: c.config.LoggerFactory,
			Metrics:       c.config.Metrics,
		})
		if err != nil {
			return err
		}
		owns = true
	}

	session, err := manager.Register(c.config.DeviceID, addr, c.dispatchEvent)
	if err != nil {
		if owns {
			manager.Close()
		}
		return err
	}

	c.manager = manager
	c.ownsManager = owns
	c.session = session
	c.connected = true

	if c.config.AutoReconnect {
		c.supervisor, err = reconnect.NewSupervisor(reconnect.Config{
			Connect:       c.rebuildLink,
			MaxAttempts:   c.config.MaxReconnectAttempts,
			Delay:         c.config.ReconnectDelay,
			LoggerFactory: c.config.LoggerFactory,
			Metrics:       c.config.Metrics,
		})
		if err != nil {
			c.teardownLocked()
			return err
		}
	}

	if c.log != nil {
		c.log.Infof("connected to %s (device %s)", addr, c.config.DeviceID)
	}
	return nil
}

// rebuildLink re-registers the device, yielding a fresh session whose IDP
// counter starts at the range start. Used by the reconnect supervisor.
func (c *Client) rebuildLink(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrNotConnected
	}

	addr, err := transport.DeviceAddr(c.config.Host, c.config.DevicePort)
	if err != nil {
		return err
	}

	// Unregister first so the range is free; ignore a session that already
	// vanished. Re-registering replaces a broken socket as a side effect.
	if uerr := c.manager.Unregister(c.config.DeviceID); uerr != nil && c.log != nil {
		c.log.Debugf("unregister during reconnect: %v", uerr)
	}

	session, err := c.manager.Register(c.config.DeviceID, addr, c.dispatchEvent)
	if err != nil {
		return err
	}
	c.session = session

	if c.log != nil {
		c.log.Infof("link rebuilt for device %s", c.config.DeviceID)
	}
	return nil
}

// Disconnect unregisters the device and, for a private manager, tears the
// socket down. Safe to call when not connected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

func (c *Client) teardownLocked() {
	if !c.connected {
		return
	}
	c.connected = false
	c.supervisor = nil

	if err := c.manager.Unregister(c.config.DeviceID); err != nil && c.log != nil {
		c.log.Debugf("unregister on disconnect: %v", err)
	}
	if c.ownsManager {
		c.manager.Close()
	}
	c.manager = nil
	c.session = nil

	if c.log != nil {
		c.log.Infof("disconnected device %s", c.config.DeviceID)
	}
}

// IsConnected reports whether Connect succeeded and Disconnect has not run.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// LinkState returns the reconnect supervisor's view of the link. Without
// AutoReconnect the state is Connected whenever the client is.
func (c *Client) LinkState() reconnect.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.supervisor != nil {
		return c.supervisor.State()
	}
	if c.connected {
		return reconnect.StateConnected
	}
	return reconnect.StateFailed
}

// CurrentIDP returns the session's IDP counter.
// Returns 0 when not connected.
func (c *Client) CurrentIDP() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return 0
	}
	return c.session.CurrentIDP()
}

// ResetIDP forces the IDP counter back to the range start. Use it when the
// device is known to have rebooted.
func (c *Client) ResetIDP() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ErrNotConnected
	}
	c.session.ResetIDP()
	return nil
}

// Addr returns the device endpoint, or nil when not connected.
func (c *Client) Addr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.Addr()
}

// OnEvent registers a handler for controller-initiated frames carrying the
// given command verb. A nil handler removes the registration.
func (c *Client) OnEvent(command string, handler EventHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	if handler == nil {
		delete(c.handlers, command)
		return
	}
	c.handlers[command] = handler
}

// dispatchEvent runs on frames routed to this device outside a correlated
// exchange. It tracks the advertised mode and fires registered handlers.
func (c *Client) dispatchEvent(frame *protocol.Frame) {
	if mod, ok := frame.Payload["mod"].(float64); ok {
		c.noteMode(DeviceMode(mod))
	}

	c.handlerMu.RLock()
	handler := c.handlers[frame.Command]
	c.handlerMu.RUnlock()

	if handler != nil {
		handler(frame.Payload)
	}
}

func (c *Client) noteMode(mode DeviceMode) {
	if !mode.IsValid() {
		return
	}
	c.mu.Lock()
	c.lastMode = mode
	c.mu.Unlock()
}

// LastMode returns the ventilation mode last seen in any frame from the
// controller, or zero when none was observed yet.
func (c *Client) LastMode() DeviceMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMode
}

// exchange runs one correlated command, going through the reconnect
// supervisor when armed.
func (c *Client) exchange(ctx context.Context, cmd protocol.Command, opts exchange.Options) (map[string]any, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	sup := c.supervisor
	c.mu.Unlock()

	var payload map[string]any
	op := func(ctx context.Context) error {
		c.mu.Lock()
		session := c.session
		c.mu.Unlock()
		if session == nil {
			return ErrNotConnected
		}

		var err error
		payload, err = session.Exchange(ctx, cmd, opts)
		return err
	}

	var err error
	if sup != nil {
		err = sup.Do(ctx, op)
	} else {
		err = op(ctx)
	}
	if err != nil {
		return nil, err
	}

	if mod, ok := payload["mod"].(float64); ok {
		c.noteMode(DeviceMode(mod))
	}
	return payload, nil
}

// options builds exchange options from the client configuration.
func (c *Client) options(timeout time.Duration) exchange.Options {
	return exchange.Options{
		Timeout:       timeout,
		RetryAttempts: c.config.RetryAttempts,
		RetryDelay:    c.config.RetryDelay,
	}
}
