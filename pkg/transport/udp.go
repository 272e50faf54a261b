// Package transport provides the single shared UDP socket used by the
// exchange layer, plus an in-memory pipe transport for deterministic tests.
package transport

import (
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
)

// MaxDatagramSize is the largest datagram the transport will send or receive.
// Pico status frames are well under this; the original client reads 8 KiB.
const MaxDatagramSize = 8192

// ReceivedMessage represents an incoming datagram.
type ReceivedMessage struct {
	// Data contains the raw datagram bytes.
	Data []byte
	// PeerAddr identifies the source of the datagram.
	PeerAddr net.Addr
}

// MessageHandler is called for each received datagram.
// Implementations must not block; the read loop delivers messages serially.
type MessageHandler func(msg *ReceivedMessage)

// ErrorHandler is called once when the read loop terminates on a socket
// error. The transport is broken afterwards and must be replaced.
type ErrorHandler func(err error)

// UDP wraps a net.PacketConn with a read loop that delivers each datagram to
// the configured MessageHandler. A fatal socket error terminates the loop,
// marks the transport broken, and notifies the ErrorHandler; the reconnect
// supervisor observes this and rebuilds the socket.
type UDP struct {
	conn    net.PacketConn
	handler MessageHandler
	onError ErrorHandler
	closeCh chan struct{}
	wg      sync.WaitGroup
	log     logging.LeveledLogger

	mu      sync.RWMutex
	started bool
	closed  bool
	broken  bool
}

// UDPConfig configures the UDP transport.
type UDPConfig struct {
	// Conn is an optional pre-existing PacketConn to use.
	// If nil, a new connection will be created using ListenAddr.
	Conn net.PacketConn

	// ListenAddr is the address to listen on (e.g., ":40069").
	// Ignored if Conn is provided.
	ListenAddr string

	// MessageHandler is called for each received datagram.
	// Required.
	MessageHandler MessageHandler

	// ErrorHandler is called when the read loop dies on a socket error.
	// Optional.
	ErrorHandler ErrorHandler

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewUDP creates a new UDP transport with the given configuration.
func NewUDP(config UDPConfig) (*UDP, error) {
	if config.MessageHandler == nil {
		return nil, ErrNoHandler
	}

	u := &UDP{
		conn:    config.Conn,
		handler: config.MessageHandler,
		onError: config.ErrorHandler,
		closeCh: make(chan struct{}),
	}

	if config.LoggerFactory != nil {
		u.log = config.LoggerFactory.NewLogger("transport-udp")
	}

	if u.conn == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0" // Use ephemeral port
		}

		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return nil, err
		}
		u.conn = conn
	}

	return u, nil
}

// Start begins the read loop for receiving datagrams.
func (u *UDP) Start() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return ErrClosed
	}
	if u.started {
		u.mu.Unlock()
		return ErrAlreadyStarted
	}
	u.started = true
	u.mu.Unlock()

	if u.log != nil {
		u.log.Infof("starting UDP transport on %s", u.conn.LocalAddr())
	}

	u.wg.Add(1)
	go u.readLoop()

	return nil
}

// Stop closes the transport and waits for the read loop to exit.
func (u *UDP) Stop() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return ErrClosed
	}
	u.closed = true
	u.mu.Unlock()

	if u.log != nil {
		u.log.Info("stopping UDP transport")
	}

	close(u.closeCh)

	// Set a short deadline to unblock any pending reads
	u.conn.SetReadDeadline(time.Now())
	u.conn.Close()
	u.wg.Wait()

	return nil
}

// Send sends a datagram to the specified address.
// Safe for concurrent use; per-datagram writes on a PacketConn are atomic.
func (u *UDP) Send(data []byte, addr net.Addr) error {
	u.mu.RLock()
	if u.closed {
		u.mu.RUnlock()
		return ErrClosed
	}
	if u.broken {
		u.mu.RUnlock()
		return ErrBroken
	}
	u.mu.RUnlock()

	if addr == nil {
		return ErrInvalidAddress
	}

	if len(data) > MaxDatagramSize {
		return ErrMessageTooLarge
	}

	if u.log != nil {
		u.log.Debugf("sending %d bytes to %v", len(data), addr)
	}

	_, err := u.conn.WriteTo(data, addr)
	if err != nil {
		if u.log != nil {
			u.log.Warnf("send failed: %v", err)
		}
		return err
	}

	return nil
}

// Broken returns true if the read loop terminated on a socket error.
func (u *UDP) Broken() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.broken
}

// LocalAddr returns the local address the transport is listening on.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// readLoop reads datagrams from the connection and dispatches them.
func (u *UDP) readLoop() {
	defer u.wg.Done()

	buf := make([]byte, MaxDatagramSize)

	for {
		select {
		case <-u.closeCh:
			return
		default:
		}

		n, addr, err := u.conn.ReadFrom(buf)
		if err != nil {
			// Check if we're shutting down
			select {
			case <-u.closeCh:
				return
			default:
			}

			// Transient timeouts keep the loop alive
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}

			if u.log != nil {
				u.log.Errorf("UDP read error, socket broken: %v", err)
			}

			u.mu.Lock()
			u.broken = true
			u.mu.Unlock()

			if u.onError != nil {
				u.onError(err)
			}
			return
		}

		if n == 0 {
			continue
		}

		// Make a copy of the data for the handler
		data := make([]byte, n)
		copy(data, buf[:n])

		if u.log != nil {
			u.log.Debugf("received %d bytes from %v", n, addr)
		}

		u.handler(&ReceivedMessage{
			Data:     data,
			PeerAddr: addr,
		})
	}
}
