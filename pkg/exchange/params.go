package exchange

import "time"

// Defaults for the correlation engine. The port and timing values match the
// Pico controllers' factory configuration.
const (
	// DefaultRangeSize is the number of IDPs allocated to each device.
	DefaultRangeSize = 10000

	// DefaultIDPLimit bounds the identifier space. Well beyond what any
	// realistic registration churn reaches, but exhaustion is a defined
	// error rather than a panic.
	DefaultIDPLimit = 1 << 31

	// DefaultDevicePort is the UDP port Pico controllers listen on.
	DefaultDevicePort = 40070

	// DefaultLocalPort is the local UDP port the shared socket binds to.
	DefaultLocalPort = 40069

	// MaxResyncIncrements is how many times an exchange probes forward
	// (incrementing the IDP by one) before a hard reset to the range start.
	MaxResyncIncrements = 5

	// DefaultTimeout is the per-attempt wait for a correlated reply.
	DefaultTimeout = 5 * time.Second

	// DefaultRetryAttempts is the number of outer attempts per exchange.
	// Each outer attempt includes the full resync-increment sequence.
	DefaultRetryAttempts = 3

	// DefaultRetryDelay is the pause between outer attempts.
	DefaultRetryDelay = 2 * time.Second

	// DefaultResyncDelay is the pause between forward probes.
	DefaultResyncDelay = 500 * time.Millisecond

	// DefaultAckGrace is how long to keep waiting for the full RESPONSE
	// after the ACK arrived. An ACK without a RESPONSE inside this window
	// means the counters are out of sync and the attempt fails.
	DefaultAckGrace = 3 * time.Second

	// DefaultQueueSize is the per-session inbound frame queue capacity.
	DefaultQueueSize = 32
)

// Options control a single Exchange call. The zero value uses the defaults
// above.
type Options struct {
	// Timeout is the per-attempt wait for a correlated reply.
	Timeout time.Duration

	// RetryAttempts is the number of outer attempts.
	RetryAttempts int

	// RetryDelay is the pause between outer attempts.
	RetryDelay time.Duration

	// ResyncDelay is the pause between forward probes.
	ResyncDelay time.Duration

	// AckGrace is the RESPONSE wait after an ACK arrived.
	AckGrace time.Duration
}

func (o *Options) applyDefaults() {
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.RetryAttempts == 0 {
		o.RetryAttempts = DefaultRetryAttempts
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.ResyncDelay == 0 {
		o.ResyncDelay = DefaultResyncDelay
	}
	if o.AckGrace == 0 {
		o.AckGrace = DefaultAckGrace
	}
}
