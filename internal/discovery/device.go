package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Kind distinguishes how an endpoint is reached
type Kind int

const (
	// KindSerial is a locally attached USB serial device
	KindSerial Kind = iota
	// KindBridge is a whallera bridge advertised over mDNS
	KindBridge
)

func (k Kind) String() string {
	switch k {
	case KindSerial:
		return "serial"
	case KindBridge:
		return "bridge"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// DefaultBridgePath is the WebSocket path a bridge serves when its TXT
// record does not say otherwise
const DefaultBridgePath = "/mp1"

// Endpoint is a place a device can be reached
type Endpoint struct {
	// Kind tells serial ports and bridges apart
	Kind Kind

	// Address is the port path (e.g., "/dev/ttyACM0") or host:port of a bridge
	Address string

	// Name is a human label: the USB product or the mDNS instance name
	Name string

	// Metadata holds USB identifiers or mDNS TXT record data
	// Common fields: "vid", "pid", "serial", "path"
	Metadata map[string]string

	// DiscoveredAt is when the endpoint was found
	DiscoveredAt time.Time
}

// URL returns the string transport.Open accepts for this endpoint
func (e *Endpoint) URL() string {
	if e.Kind == KindSerial {
		return e.Address
	}
	path := e.GetMetadata("path")
	if path == "" {
		path = DefaultBridgePath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "ws://" + e.Address + path
}

// String returns a human-readable string representation of the endpoint
func (e *Endpoint) String() string {
	if e.Name == "" {
		return fmt.Sprintf("%s %s", e.Kind, e.URL())
	}
	return fmt.Sprintf("%s %s (%s)", e.Kind, e.URL(), e.Name)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (e *Endpoint) GetMetadata(key string) string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[key]
}

func hostPort(ip string, port int) string {
	return net.JoinHostPort(ip, strconv.Itoa(port))
}
