// Package reconnect supervises a device link, rebuilding it after connection
// failures with a bounded number of fixed-delay attempts.
package reconnect

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/picolink/pico/pkg/exchange"
	"github.com/picolink/pico/pkg/metrics"
)

// State is the supervisor's view of the link.
type State int

const (
	// StateConnected means the link is believed healthy.
	StateConnected State = iota

	// StateReconnecting means a connection failure was observed and the
	// supervisor is rebuilding the link.
	StateReconnecting

	// StateFailed means every reconnect attempt was exhausted. The link
	// stays failed until a later Do observes a successful reconnect.
	StateFailed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateReconnecting:
		return "Reconnecting"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// StateChangeHandler is notified on every state transition.
type StateChangeHandler func(state State)

// Config configures a Supervisor.
type Config struct {
	// Connect re-establishes the link. Required.
	Connect func(ctx context.Context) error

	// MaxAttempts is the reconnect attempt budget per failure.
	// Defaults to DefaultMaxAttempts.
	MaxAttempts int

	// Delay is the fixed pause before each reconnect attempt.
	// Defaults to DefaultDelay.
	Delay time.Duration

	// Retryable decides whether an operation error triggers reconnection.
	// Defaults to matching exchange.ErrConnection.
	Retryable func(err error) bool

	// OnStateChange is notified on state transitions. Optional.
	OnStateChange StateChangeHandler

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory

	// Metrics receives the reconnect attempt counter. Optional.
	Metrics *metrics.Metrics
}

// Supervisor defaults.
const (
	// DefaultMaxAttempts is the reconnect attempt budget per failure.
	DefaultMaxAttempts = 3

	// DefaultDelay is the pause before each reconnect attempt.
	DefaultDelay = 2 * time.Second
)

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Delay == 0 {
		c.Delay = DefaultDelay
	}
	if c.Retryable == nil {
		c.Retryable = func(err error) bool {
			return errors.Is(err, exchange.ErrConnection)
		}
	}
}

// Supervisor runs operations against a device link and transparently rebuilds
// the link when they fail with a connection error.
//
// One recovery runs at a time: concurrent Do calls observing the same broken
// link serialize on the recovery lock, and the later caller benefits from the
// reconnect the earlier one performed.
type Supervisor struct {
	config  Config
	metrics *metrics.Metrics
	log     logging.LeveledLogger

	// recoverMu serializes reconnection sequences.
	recoverMu sync.Mutex

	mu    sync.RWMutex
	state State
}

// NewSupervisor creates a Supervisor in the Connected state.
func NewSupervisor(config Config) (*Supervisor, error) {
	if config.Connect == nil {
		return nil, ErrNoConnect
	}
	config.applyDefaults()

	s := &Supervisor{
		config:  config,
		metrics: config.Metrics,
		state:   StateConnected,
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("reconnect")
	}
	return s, nil
}

// State returns the current link state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()

	if s.log != nil {
		s.log.Infof("link state: %s", state)
	}
	if s.config.OnStateChange != nil {
		s.config.OnStateChange(state)
	}
}

// Do runs op, reconnecting and retrying it when it fails with a retryable
// error. Each reconnect attempt waits the configured delay, rebuilds the
// link, and re-runs op; after MaxAttempts failures the supervisor enters the
// Failed state and returns a ReconnectFailedError.
//
// Non-retryable errors pass through untouched.
func (s *Supervisor) Do(ctx context.Context, op func(ctx context.Context) error) error {
	err := op(ctx)
	if err == nil || !s.config.Retryable(err) {
		return err
	}

	s.recoverMu.Lock()
	defer s.recoverMu.Unlock()

	s.setState(StateReconnecting)
	if s.log != nil {
		s.log.Warnf("connection failure, reconnecting: %v", err)
	}

	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			s.setState(StateFailed)
			return ctx.Err()
		case <-time.After(s.config.Delay):
		}

		s.metrics.IncReconnect()
		if s.log != nil {
			s.log.Infof("reconnect attempt %d/%d", attempt, s.config.MaxAttempts)
		}

		if cerr := s.config.Connect(ctx); cerr != nil {
			err = cerr
			continue
		}

		err = op(ctx)
		if err == nil {
			s.setState(StateConnected)
			return nil
		}
		if !s.config.Retryable(err) {
			// The link came back; the operation failed on its own terms.
			s.setState(StateConnected)
			return err
		}
	}

	s.setState(StateFailed)
	return &ReconnectFailedError{Attempts: s.config.MaxAttempts, Err: err}
}
