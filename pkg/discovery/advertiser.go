package discovery

import (
	"sync"

	"github.com/grandcat/zeroconf"
)

// AdvertiserConfig configures an Advertiser.
type AdvertiserConfig struct {
	// Instance is the DNS-SD instance name. Required.
	Instance string

	// Port is the advertised UDP command port. Required.
	Port int

	// TXT carries the advertised metadata.
	TXT DeviceTXT
}

// Advertiser announces a _pico._udp service on the local network. Real
// controllers advertise themselves; this is for simulated devices in
// development setups.
type Advertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an Advertiser. Nothing is announced until Start.
func NewAdvertiser(config AdvertiserConfig) (*Advertiser, error) {
	if config.Instance == "" {
		return nil, ErrInvalidInstance
	}
	if err := config.TXT.Validate(); err != nil {
		return nil, err
	}
	return &Advertiser{config: config}, nil
}

// Start announces the service. A second Start without a Stop is a no-op.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return nil
	}

	server, err := zeroconf.Register(
		a.config.Instance,
		ServicePico,
		DefaultDomain,
		a.config.Port,
		a.config.TXT.Encode(),
		nil,
	)
	if err != nil {
		return err
	}

	a.server = server
	return nil
}

// Stop withdraws the announcement.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
