package transport

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pion/transport/v3/test"
)

// NetworkCondition configures network behavior simulation.
// Use this to test protocol behavior under adverse network conditions.
type NetworkCondition struct {
	// DropRate is the probability of dropping a packet (0.0 - 1.0).
	DropRate float64

	// DelayMin is the minimum delay to add to each packet.
	DelayMin time.Duration

	// DelayMax is the maximum delay to add to each packet.
	// Actual delay is uniformly distributed between DelayMin and DelayMax.
	DelayMax time.Duration

	// DuplicateRate is the probability of duplicating a packet (0.0 - 1.0).
	DuplicateRate float64

	// ReorderRate is the probability of holding a packet back (0.0 - 1.0).
	// Packets sent while one is held overtake it, so delivery order differs
	// from send order.
	ReorderRate float64

	// ReorderDelay is how long a held packet waits before delivery.
	// Defaults to 10ms when ReorderRate is set.
	ReorderDelay time.Duration
}

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic message delivery in a background goroutine.
	// Default: true
	AutoProcess bool

	// ProcessInterval is how often the auto-processor checks for messages.
	// Default: 1ms
	ProcessInterval time.Duration
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: 1 * time.Millisecond,
	}
}

// Pipe provides bidirectional in-memory packet communication between two
// endpoints. It wraps pion's test.Bridge and adds network condition
// simulation (drops, delays, duplicates, reordering).
//
// Use a Pipe where a test needs a client and a simulated controller to talk
// without real network I/O.
type Pipe struct {
	bridge *test.Bridge

	mu              sync.RWMutex
	condition       NetworkCondition
	closed          bool
	rng             *rand.Rand
	autoProcess     bool
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// NewPipe creates a new bidirectional pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a new pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	p := &Pipe{
		bridge:          test.NewBridge(),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		autoProcess:     config.AutoProcess,
		processInterval: config.ProcessInterval,
		stopCh:          make(chan struct{}),
	}

	if config.ProcessInterval == 0 {
		p.processInterval = 1 * time.Millisecond
	}

	if p.autoProcess {
		p.startAutoProcess()
	}

	return p
}

// startAutoProcess starts the background message delivery goroutine.
func (p *Pipe) startAutoProcess() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.processInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.bridge.Tick()
			}
		}
	}()
}

// SetCondition configures network condition simulation.
// The conditions apply to packets in both directions.
func (p *Pipe) SetCondition(cond NetworkCondition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.condition = cond
}

// Tick delivers one packet in each direction (if available).
// Returns the number of packets delivered (0, 1, or 2).
func (p *Pipe) Tick() int {
	return p.bridge.Tick()
}

// Process delivers all queued packets.
// Returns the number of packets delivered.
func (p *Pipe) Process() int {
	count := 0
	for {
		n := p.Tick()
		if n == 0 {
			break
		}
		count += n
	}
	return count
}

// Close closes both endpoints of the pipe and stops auto-processing.
func (p *Pipe) Close() error {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true

	if p.autoProcess {
		close(p.stopCh)
	}
	p.mu.Unlock()

	p.wg.Wait()

	var errs []error
	if err := p.bridge.GetConn0().Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.bridge.GetConn1().Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// PacketConn returns a net.PacketConn for the given endpoint (0 or 1).
// Datagrams written to one endpoint arrive at the other.
func (p *Pipe) PacketConn(id int) net.PacketConn {
	var conn net.Conn
	if id == 0 {
		conn = p.bridge.GetConn0()
	} else {
		conn = p.bridge.GetConn1()
	}

	return &PipePacketConn{
		conn:     conn,
		localID:  id,
		peerAddr: PipeAddr{ID: 1 - id},
		pipe:     p,
	}
}

// PipeAddr implements net.Addr for pipe endpoints.
type PipeAddr struct {
	ID int // Endpoint ID (0 or 1)
}

// Network returns "pipe".
func (a PipeAddr) Network() string { return "pipe" }

// String returns a string representation of the address.
func (a PipeAddr) String() string { return fmt.Sprintf("pipe:%d", a.ID) }

// PipePacketConn wraps a Pipe endpoint to implement net.PacketConn.
// This allows pipes to be used with the UDP transport layer.
type PipePacketConn struct {
	conn     net.Conn
	localID  int
	peerAddr net.Addr
	pipe     *Pipe
}

// ReadFrom reads a packet from the pipe.
// The returned address is the peer's address.
func (c *PipePacketConn) ReadFrom(b []byte) (n int, addr net.Addr, err error) {
	n, err = c.conn.Read(b)
	return n, c.peerAddr, err
}

// WriteTo writes a packet to the pipe.
// The addr parameter is ignored since the pipe has only one peer.
func (c *PipePacketConn) WriteTo(b []byte, addr net.Addr) (n int, err error) {
	if c.pipe != nil {
		c.pipe.mu.RLock()
		cond := c.pipe.condition
		rng := c.pipe.rng
		c.pipe.mu.RUnlock()

		// Check for drop
		if cond.DropRate > 0 && rng.Float64() < cond.DropRate {
			return len(b), nil // Silently drop
		}

		// Apply delay
		if cond.DelayMax > 0 {
			delay := cond.DelayMin
			if cond.DelayMax > cond.DelayMin {
				delay += time.Duration(rng.Int63n(int64(cond.DelayMax - cond.DelayMin)))
			}
			if delay > 0 {
				time.Sleep(delay)
			}
		}

		// Check for duplicate - send twice
		if cond.DuplicateRate > 0 && rng.Float64() < cond.DuplicateRate {
			if _, err := c.conn.Write(b); err != nil {
				return 0, err
			}
		}

		// Check for reorder - hold this packet so later ones overtake it
		if cond.ReorderRate > 0 && rng.Float64() < cond.ReorderRate {
			delay := cond.ReorderDelay
			if delay == 0 {
				delay = 10 * time.Millisecond
			}
			held := append([]byte(nil), b...)
			time.AfterFunc(delay, func() {
				// The pipe may have closed while the packet was held.
				_, _ = c.conn.Write(held)
			})
			return len(b), nil
		}
	}

	return c.conn.Write(b)
}

// Close closes the pipe connection.
func (c *PipePacketConn) Close() error {
	return c.conn.Close()
}

// LocalAddr returns the local address.
func (c *PipePacketConn) LocalAddr() net.Addr {
	return PipeAddr{ID: c.localID}
}

// SetDeadline sets the read and write deadlines.
func (c *PipePacketConn) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

// SetReadDeadline sets the read deadline.
func (c *PipePacketConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// SetWriteDeadline sets the write deadline.
func (c *PipePacketConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

// Verify PipePacketConn implements net.PacketConn.
var _ net.PacketConn = (*PipePacketConn)(nil)
