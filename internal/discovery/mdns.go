package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type whallera bridges advertise
	ServiceType = "_whallera._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for bridge discovery
	DefaultScanTimeout = 3 * time.Second
)

// Scanner handles mDNS bridge discovery
type Scanner struct {
	// Timeout is the maximum time to wait for bridge advertisements
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForBridges browses for bridges until the timeout or ctx ends.
func (s *Scanner) ScanForBridges(ctx context.Context) ([]*Endpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu        sync.Mutex
		endpoints []*Endpoint
		seen      = make(map[string]bool)
		done      = make(chan struct{})
	)

	go func() {
		defer close(done)
		for entry := range entries {
			ep := s.parseServiceEntry(entry)
			if ep == nil {
				continue
			}
			mu.Lock()
			if !seen[ep.URL()] {
				seen[ep.URL()] = true
				endpoints = append(endpoints, ep)
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	// zeroconf closes entries once the browse context ends
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
	}

	mu.Lock()
	defer mu.Unlock()
	return append([]*Endpoint(nil), endpoints...), nil
}

// parseServiceEntry converts a zeroconf service entry to an Endpoint
// Returns nil if the entry has no usable address
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Endpoint {
	if entry == nil || entry.Port == 0 {
		return nil
	}

	// Get IP address (prefer IPv4)
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	// TXT records are in "key=value" format
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}
	if entry.HostName != "" {
		metadata["hostname"] = entry.HostName
	}

	return &Endpoint{
		Kind:         KindBridge,
		Address:      hostPort(ip, entry.Port),
		Name:         entry.Instance,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// Options control Discover
type Options struct {
	Serial SerialFilter

	// MDNS enables bridge browsing; MDNSTimeout bounds it
	MDNS        bool
	MDNSTimeout time.Duration
}

// Discover lists serial ports first, then bridges when opts.MDNS is set.
// An mDNS failure is returned only when no serial port was found.
func Discover(ctx context.Context, opts Options) ([]*Endpoint, error) {
	endpoints, err := ListSerial(opts.Serial)
	if err != nil {
		return nil, err
	}
	if !opts.MDNS {
		return endpoints, nil
	}

	scanner := NewScanner()
	if opts.MDNSTimeout > 0 {
		scanner.Timeout = opts.MDNSTimeout
	}
	bridges, err := scanner.ScanForBridges(ctx)
	if err != nil {
		if len(endpoints) > 0 {
			return endpoints, nil
		}
		return nil, err
	}
	return append(endpoints, bridges...), nil
}

// First returns the first discovered endpoint, the way the CLI picks a
// device when --interface is not given
func First(ctx context.Context, opts Options) (*Endpoint, error) {
	endpoints, err := Discover(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no device found: connect your Whallera or specify it with --interface")
	}
	return endpoints[0], nil
}
