// Package discovery finds Pico controllers on the local network via DNS-SD.
//
// Controllers advertise the _pico._udp service with TXT metadata (serial,
// model, firmware). The Resolver browses or looks up instances and returns
// Device records ready to feed into device registration.
package discovery

import (
	"context"
	"net"
	"time"

	"github.com/grandcat/zeroconf"
)

// DNS-SD parameters for Pico controllers.
const (
	// ServicePico is the DNS-SD service type controllers advertise.
	ServicePico = "_pico._udp"

	// DefaultDomain is the DNS-SD domain.
	DefaultDomain = "local."

	// DefaultBrowseTimeout bounds a browse when the context has no deadline.
	DefaultBrowseTimeout = 10 * time.Second

	// DefaultLookupTimeout bounds a lookup when the context has no deadline.
	DefaultLookupTimeout = 5 * time.Second
)

// Device is a discovered Pico controller.
type Device struct {
	// Instance is the DNS-SD instance name.
	Instance string

	// HostName is the advertised host name.
	HostName string

	// Port is the controller's UDP command port.
	Port int

	// IPs contains the resolved addresses, sorted by preference.
	IPs []net.IP

	// TXT carries the advertised metadata.
	TXT DeviceTXT
}

// PreferredIP returns the most preferred address, or nil when none resolved.
func (d *Device) PreferredIP() net.IP {
	if len(d.IPs) > 0 {
		return d.IPs[0]
	}
	return nil
}

// Addr returns the device's UDP endpoint using the preferred address.
// Returns nil when no address resolved.
func (d *Device) Addr() *net.UDPAddr {
	ip := d.PreferredIP()
	if ip == nil {
		return nil
	}
	return &net.UDPAddr{IP: ip, Port: d.Port}
}

// MDNSResolver is the interface for mDNS service resolution.
// This allows for dependency injection in tests.
type MDNSResolver interface {
	// Browse browses for services of the given type.
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

	// Lookup looks up a specific service instance.
	Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// zeroconfResolver is the production implementation using grandcat/zeroconf.
type zeroconfResolver struct {
	resolver *zeroconf.Resolver
}

func newZeroconfResolver() (*zeroconfResolver, error) {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}
	return &zeroconfResolver{resolver: r}, nil
}

func (z *zeroconfResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return z.resolver.Browse(ctx, service, domain, entries)
}

func (z *zeroconfResolver) Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return z.resolver.Lookup(ctx, instance, service, domain, entries)
}

// ResolverConfig holds configuration for the Resolver.
type ResolverConfig struct {
	// MDNSResolver is the underlying mDNS resolver implementation.
	// If nil, the default zeroconf resolver is used.
	MDNSResolver MDNSResolver

	// BrowseTimeout is the timeout for browse operations.
	// If zero, DefaultBrowseTimeout is used.
	BrowseTimeout time.Duration

	// LookupTimeout is the timeout for lookup operations.
	// If zero, DefaultLookupTimeout is used.
	LookupTimeout time.Duration
}

// Resolver discovers Pico controllers via DNS-SD.
type Resolver struct {
	config   ResolverConfig
	resolver MDNSResolver
}

// NewResolver creates a new Resolver with the given configuration.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	resolver := config.MDNSResolver
	if resolver == nil {
		zr, err := newZeroconfResolver()
		if err != nil {
			return nil, err
		}
		resolver = zr
	}

	if config.BrowseTimeout == 0 {
		config.BrowseTimeout = DefaultBrowseTimeout
	}
	if config.LookupTimeout == 0 {
		config.LookupTimeout = DefaultLookupTimeout
	}

	return &Resolver{
		config:   config,
		resolver: resolver,
	}, nil
}

// Browse discovers controllers on the network. The returned channel receives
// devices until the context is cancelled or the browse timeout expires.
func (r *Resolver) Browse(ctx context.Context) (<-chan Device, error) {
	results := make(chan Device)
	entries := make(chan *zeroconf.ServiceEntry)

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.BrowseTimeout)
		defer cancel()
	}

	go func() {
		defer close(results)

		go func() {
			defer close(entries)
			r.resolver.Browse(ctx, ServicePico, DefaultDomain, entries)
		}()

		for entry := range entries {
			select {
			case results <- entryToDevice(entry):
			case <-ctx.Done():
				return
			}
		}
	}()

	return results, nil
}

// Lookup resolves a specific controller by its DNS-SD instance name.
func (r *Resolver) Lookup(ctx context.Context, instance string) (*Device, error) {
	if instance == "" {
		return nil, ErrInvalidInstance
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.LookupTimeout)
		defer cancel()
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		defer close(entries)
		r.resolver.Lookup(ctx, instance, ServicePico, DefaultDomain, entries)
	}()

	select {
	case entry, ok := <-entries:
		if !ok || entry == nil {
			return nil, ErrDeviceNotFound
		}
		dev := entryToDevice(entry)
		return &dev, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrLookupTimeout
		}
		return nil, ctx.Err()
	}
}

// entryToDevice converts a zeroconf.ServiceEntry to a Device.
func entryToDevice(entry *zeroconf.ServiceEntry) Device {
	var allIPs []net.IP
	allIPs = append(allIPs, entry.AddrIPv4...)
	allIPs = append(allIPs, entry.AddrIPv6...)

	return Device{
		Instance: entry.Instance,
		HostName: entry.HostName,
		Port:     entry.Port,
		IPs:      SortIPsByPreference(allIPs),
		TXT:      ParseDeviceTXT(entry.Text),
	}
}
