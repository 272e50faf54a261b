package exchange

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/picolink/pico/pkg/protocol"
)

// EventHandler is invoked for response frames routed to a session outside of
// the correlated exchange path (controller-initiated notifications).
type EventHandler func(frame *protocol.Frame)

// Session is the per-device state machine implementing send-wait-retry-resync
// over the device's allocated IDP range.
//
// Exactly one correlated exchange may be in flight per session: the IDP
// counter is the only correlation state, so concurrent callers on the same
// session serialize on the send lock. Sessions for different devices are
// fully independent.
type Session struct {
	deviceID string
	addr     net.Addr
	rng      Range
	manager  *Manager
	log      logging.LeveledLogger
	onEvent  EventHandler

	// inbound receives decoded frames from the socket reader. The reader
	// never blocks on it: when full, the oldest frame is evicted.
	inbound chan *protocol.Frame
	closeCh chan struct{}

	// sendMu serializes exchanges. FIFO fairness is not guaranteed, only
	// mutual exclusion; callers queueing on the same device tolerate either.
	sendMu sync.Mutex

	mu         sync.Mutex
	currentIDP int
	closed     bool
}

func newSession(m *Manager, deviceID string, addr net.Addr, rng Range, queueSize int, onEvent EventHandler) *Session {
	s := &Session{
		deviceID:   deviceID,
		addr:       addr,
		rng:        rng,
		manager:    m,
		onEvent:    onEvent,
		inbound:    make(chan *protocol.Frame, queueSize),
		closeCh:    make(chan struct{}),
		currentIDP: rng.Start,
	}
	if m.config.LoggerFactory != nil {
		s.log = m.config.LoggerFactory.NewLogger("session")
	}
	return s
}

// DeviceID returns the device identifier this session was registered under.
func (s *Session) DeviceID() string {
	return s.deviceID
}

// Range returns the session's allocated IDP range.
func (s *Session) Range() Range {
	return s.rng
}

// Addr returns the device endpoint.
func (s *Session) Addr() net.Addr {
	return s.addr
}

// CurrentIDP returns the session's IDP counter.
func (s *Session) CurrentIDP() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIDP
}

// ResetIDP forces the counter back to the range start without sending
// anything. Use it when the device state is known stale (observed reboot,
// successful reconnect).
func (s *Session) ResetIDP() {
	s.mu.Lock()
	s.currentIDP = s.rng.Start
	s.mu.Unlock()
}

// advanceIDP increments the counter by one, wrapping within the allocated
// range. It never crosses into another device's range.
func (s *Session) advanceIDP() {
	s.mu.Lock()
	s.currentIDP++
	if s.currentIDP >= s.rng.End() {
		s.currentIDP = s.rng.Start
	}
	s.mu.Unlock()
}

// Exchange sends the command and waits for the correlated ACK and RESPONSE.
//
// Per attempt, the command is encoded with the current IDP and sent; frames
// echoing that IDP are awaited up to opts.Timeout. If no ACK arrives, the
// counter is incremented and the command resent, up to MaxResyncIncrements
// probes; an exhausted probe window hard-resets the counter to the range
// start and consumes one of opts.RetryAttempts outer attempts. On success
// the counter stays at the IDP that worked, keeping the client aligned with
// the device's own counter for the next call.
//
// Cancelling ctx exits at any suspension point; the counter is left wherever
// the state machine last put it.
func (s *Session) Exchange(ctx context.Context, cmd protocol.Command, opts Options) (map[string]any, error) {
	opts.applyDefaults()

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.isClosed() {
		return nil, ErrSessionClosed
	}

	lastIDP := s.CurrentIDP()
	for attempt := 1; attempt <= opts.RetryAttempts; attempt++ {
		if attempt > 1 {
			if s.log != nil {
				s.log.Infof("retry %d/%d (device %s)", attempt, opts.RetryAttempts, s.deviceID)
			}
			if err := sleepCtx(ctx, opts.RetryDelay); err != nil {
				return nil, err
			}
		}

		for probe := 0; probe <= MaxResyncIncrements; probe++ {
			if probe > 0 {
				if err := sleepCtx(ctx, opts.ResyncDelay); err != nil {
					return nil, err
				}
				s.advanceIDP()
				s.manager.metrics.IncResync()
			}

			idp := s.CurrentIDP()
			lastIDP = idp

			data, err := protocol.Encode(cmd, idp)
			if err != nil {
				return nil, err
			}
			if err := s.manager.sendTo(data, s.addr); err != nil {
				return nil, err
			}

			payload, ok, err := s.awaitResponse(ctx, idp, opts)
			if err != nil {
				return nil, err
			}
			if ok {
				if probe > 0 && s.log != nil {
					s.log.Infof("idp resynchronized after %d increments (device %s)", probe, s.deviceID)
				}
				return payload, nil
			}
		}

		// Probe window exhausted: hard reset and start over.
		s.ResetIDP()
		s.manager.metrics.IncHardReset()
		if s.log != nil {
			s.log.Warnf("idp hard reset to %d (device %s)", s.rng.Start, s.deviceID)
		}
	}

	s.manager.metrics.IncTimeout()
	return nil, &TimeoutError{DeviceID: s.deviceID, LastIDP: lastIDP, Attempts: opts.RetryAttempts}
}

// awaitResponse waits for frames echoing idp. Returns (payload, true, nil) on
// a full response, (nil, false, nil) when the attempt timed out, and a
// non-nil error only for cancellation or session closure.
func (s *Session) awaitResponse(ctx context.Context, idp int, opts Options) (map[string]any, bool, error) {
	timeout := time.NewTimer(opts.Timeout)
	defer timeout.Stop()

	// Armed once the ACK arrives: the controller confirmed receipt, so the
	// full response must follow shortly or the attempt is abandoned.
	var ackGrace *time.Timer
	var ackGraceC <-chan time.Time
	defer func() {
		if ackGrace != nil {
			ackGrace.Stop()
		}
	}()

	gotAck := false
	for {
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()

		case <-s.closeCh:
			return nil, false, ErrSessionClosed

		case <-timeout.C:
			return nil, false, nil

		case <-ackGraceC:
			if s.log != nil {
				s.log.Debugf("ack without response for idp %d (device %s)", idp, s.deviceID)
			}
			return nil, false, nil

		case fr := <-s.inbound:
			if fr.IDP != idp {
				// Stale or duplicate frame from an earlier probe.
				continue
			}
			switch fr.Kind {
			case protocol.FrameKindAck:
				// Duplicate ACKs for an acknowledged exchange are ignored.
				if !gotAck {
					gotAck = true
					ackGrace = time.NewTimer(opts.AckGrace)
					ackGraceC = ackGrace.C
				}
			case protocol.FrameKindResponse:
				// A response implies receipt even when the ACK was lost.
				// Confirm receipt back to the controller, best effort.
				_ = s.manager.sendTo(protocol.EncodeAck(idp), s.addr)
				return fr.Payload, true, nil
			}
		}
	}
}

// enqueue delivers a routed frame to the session. Called from the socket
// reader; never blocks. When the queue is full the oldest frame is evicted.
func (s *Session) enqueue(fr *protocol.Frame) {
	if s.onEvent != nil && fr.Kind == protocol.FrameKindResponse && fr.Command != "" {
		go s.onEvent(fr)
	}

	for {
		select {
		case s.inbound <- fr:
			return
		default:
		}

		select {
		case <-s.inbound:
			s.manager.metrics.IncDropped()
			if s.log != nil {
				s.log.Warnf("inbound queue full, dropped oldest frame (device %s)", s.deviceID)
			}
		default:
		}
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// close marks the session dead and drains its queue so a future occupant of
// the released range never receives this device's stale frames.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.closeCh)

	for {
		select {
		case <-s.inbound:
		default:
			return
		}
	}
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
