package exchange

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/pion/logging"

	"github.com/picolink/pico/pkg/metrics"
	"github.com/picolink/pico/pkg/protocol"
	"github.com/picolink/pico/pkg/transport"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// ListenAddr is the local UDP address the shared socket binds to.
	// Defaults to ":40069". Ignored when Conn is set.
	ListenAddr string

	// Conn is an optional pre-existing PacketConn, mainly for tests.
	// The manager takes ownership and closes it on teardown; it is used
	// for the first socket only, later rebinds use ListenAddr.
	Conn net.PacketConn

	// QueueSize is the per-session inbound frame queue capacity.
	// Defaults to DefaultQueueSize.
	QueueSize int

	// RangeSize is the IDP range granted to each registration.
	// Defaults to DefaultRangeSize.
	RangeSize int

	// IDPLimit bounds the identifier space. Defaults to DefaultIDPLimit.
	IDPLimit int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory

	// Metrics receives transport and exchange counters. Optional.
	Metrics *metrics.Metrics
}

func (c *ManagerConfig) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = fmt.Sprintf(":%d", DefaultLocalPort)
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.RangeSize <= 0 {
		c.RangeSize = DefaultRangeSize
	}
	if c.IDPLimit <= 0 {
		c.IDPLimit = DefaultIDPLimit
	}
}

// Manager multiplexes one UDP socket across any number of device sessions.
//
// The socket is opened lazily on the first registration and torn down when
// the last session unregisters. Every inbound datagram is decoded once and
// routed to the session whose IDP range contains the frame's identifier;
// frames matching no session are counted and dropped.
type Manager struct {
	config    ManagerConfig
	allocator *RangeAllocator
	metrics   *metrics.Metrics
	log       logging.LeveledLogger

	mu       sync.RWMutex
	sessions map[string]*Session
	udp      *transport.UDP
	closed   bool
}

// NewManager creates a Manager. No socket is opened until the first Register.
func NewManager(config ManagerConfig) (*Manager, error) {
	config.applyDefaults()

	m := &Manager{
		config:    config,
		allocator: NewRangeAllocator(config.RangeSize, config.IDPLimit),
		metrics:   config.Metrics,
		sessions:  make(map[string]*Session),
	}
	if config.LoggerFactory != nil {
		m.log = config.LoggerFactory.NewLogger("exchange")
	}
	return m, nil
}

// Register allocates an IDP range for the device and creates its session.
// The shared socket is opened on the first registration. onEvent may be nil.
//
// Returns ErrDuplicateRegistration when the device ID is already live and
// ErrAllocationExhausted when no range is available.
func (m *Manager) Register(deviceID string, addr net.Addr, onEvent EventHandler) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	if _, ok := m.sessions[deviceID]; ok {
		return nil, ErrDuplicateRegistration
	}

	rng, err := m.allocator.Allocate()
	if err != nil {
		return nil, err
	}

	if err := m.ensureTransportLocked(); err != nil {
		m.allocator.Release(rng)
		return nil, err
	}

	s := newSession(m, deviceID, addr, rng, m.config.QueueSize, onEvent)
	m.sessions[deviceID] = s

	if m.log != nil {
		m.log.Infof("registered device %s with idp range [%d,%d]", deviceID, rng.Start, rng.End()-1)
	}
	return s, nil
}

// Unregister closes the device's session and releases its IDP range for
// reuse. The shared socket is torn down when the last session leaves.
func (m *Manager) Unregister(deviceID string) error {
	m.mu.Lock()
	s, ok := m.sessions[deviceID]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownDevice
	}
	delete(m.sessions, deviceID)
	m.allocator.Release(s.rng)

	var stop *transport.UDP
	if len(m.sessions) == 0 && m.udp != nil {
		stop = m.udp
		m.udp = nil
	}
	m.mu.Unlock()

	s.close()
	if stop != nil {
		_ = stop.Stop()
		if m.log != nil {
			m.log.Info("last session unregistered, shared socket closed")
		}
	}
	if m.log != nil {
		m.log.Infof("unregistered device %s", deviceID)
	}
	return nil
}

// Lookup returns the live session for the device, if any.
func (m *Manager) Lookup(deviceID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[deviceID]
	return s, ok
}

// Exchange runs a correlated exchange against the named device.
// Returns ErrUnknownDevice when the device is not registered.
func (m *Manager) Exchange(ctx context.Context, deviceID string, cmd protocol.Command, opts Options) (map[string]any, error) {
	s, ok := m.Lookup(deviceID)
	if !ok {
		return nil, ErrUnknownDevice
	}
	return s.Exchange(ctx, cmd, opts)
}

// Broken reports whether the shared socket's read loop died on an error.
// A broken socket is replaced by Rebind or by the next registration.
func (m *Manager) Broken() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.udp != nil && m.udp.Broken()
}

// Rebind replaces a broken socket with a fresh one, keeping all sessions and
// their IDP ranges intact. A no-op when the socket is healthy or when no
// sessions are registered.
func (m *Manager) Rebind() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	if len(m.sessions) == 0 {
		return nil
	}
	return m.ensureTransportLocked()
}

// LocalAddr returns the shared socket's local address, or nil when no socket
// is open.
func (m *Manager) LocalAddr() net.Addr {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.udp == nil {
		return nil
	}
	return m.udp.LocalAddr()
}

// Close tears down every session and the shared socket.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.closed = true

	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)

	udp := m.udp
	m.udp = nil
	m.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	if udp != nil {
		_ = udp.Stop()
	}
	return nil
}

// ensureTransportLocked opens the shared socket if it is missing or replaces
// it if broken. Caller holds m.mu.
func (m *Manager) ensureTransportLocked() error {
	if m.udp != nil {
		if !m.udp.Broken() {
			return nil
		}
		_ = m.udp.Stop()
		m.udp = nil
		if m.log != nil {
			m.log.Warn("replacing broken shared socket")
		}
	}

	conn := m.config.Conn
	m.config.Conn = nil // a supplied conn serves the first socket only

	udp, err := transport.NewUDP(transport.UDPConfig{
		Conn:           conn,
		ListenAddr:     m.config.ListenAddr,
		MessageHandler: m.route,
		ErrorHandler: func(err error) {
			if m.log != nil {
				m.log.Errorf("shared socket read loop died: %v", err)
			}
		},
		LoggerFactory: m.config.LoggerFactory,
	})
	if err != nil {
		return &ConnectionError{Op: "bind", Err: err}
	}
	if err := udp.Start(); err != nil {
		return &ConnectionError{Op: "bind", Err: err}
	}

	m.udp = udp
	return nil
}

// route decodes an inbound datagram and delivers it to the session whose IDP
// range contains the frame's identifier. Runs on the read loop; must not
// block, which session enqueueing guarantees.
func (m *Manager) route(msg *transport.ReceivedMessage) {
	fr, err := protocol.Decode(msg.Data)
	if err != nil {
		if m.log != nil {
			m.log.Debugf("discarding undecodable datagram from %v: %v", msg.PeerAddr, err)
		}
		m.metrics.IncUnrouted()
		return
	}

	// Controllers in broadcast setups can reflect client traffic back; an
	// app-originated frame is never an answer.
	if fr.Source == protocol.SourceApp {
		if m.log != nil {
			m.log.Debugf("discarding reflected client frame idp %d from %v", fr.IDP, msg.PeerAddr)
		}
		return
	}

	// Device counts are small (a handful per home), a scan beats keeping a
	// parallel interval index in sync with the allocator.
	m.mu.RLock()
	var target *Session
	for _, s := range m.sessions {
		if s.rng.Contains(fr.IDP) {
			target = s
			break
		}
	}
	m.mu.RUnlock()

	if target == nil {
		if m.log != nil {
			m.log.Debugf("no session for idp %d from %v", fr.IDP, msg.PeerAddr)
		}
		m.metrics.IncUnrouted()
		return
	}

	m.metrics.IncRouted()
	target.enqueue(fr)
}

// sendTo writes a datagram through the shared socket.
func (m *Manager) sendTo(data []byte, addr net.Addr) error {
	m.mu.RLock()
	udp := m.udp
	m.mu.RUnlock()

	if udp == nil {
		return &ConnectionError{Op: "send", Err: transport.ErrClosed}
	}
	if err := udp.Send(data, addr); err != nil {
		return &ConnectionError{Op: "send", Err: err}
	}
	return nil
}
