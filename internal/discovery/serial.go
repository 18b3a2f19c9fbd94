package discovery

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"
)

// SerialFilter narrows serial enumeration to matching USB devices.
// Empty fields match anything. VID and PID are compared case-insensitively
// as the four hex digits the enumerator reports.
type SerialFilter struct {
	VID string
	PID string

	// USBOnly drops ports that are not USB devices
	USBOnly bool
}

func (f SerialFilter) match(p *enumerator.PortDetails) bool {
	if f.VID != "" || f.PID != "" || f.USBOnly {
		if !p.IsUSB {
			return false
		}
	}
	if f.VID != "" && !strings.EqualFold(p.VID, f.VID) {
		return false
	}
	if f.PID != "" && !strings.EqualFold(p.PID, f.PID) {
		return false
	}
	return true
}

// portLister is swapped out in tests
var portLister = enumerator.GetDetailedPortsList

// ListSerial enumerates local serial ports matching filter. USB ports come
// first, then the rest, each group sorted by name.
func ListSerial(filter SerialFilter) ([]*Endpoint, error) {
	ports, err := portLister()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	now := time.Now()
	endpoints := make([]*Endpoint, 0, len(ports))
	for _, p := range ports {
		if p == nil || p.Name == "" || !filter.match(p) {
			continue
		}
		endpoints = append(endpoints, serialEndpoint(p, now))
	}

	sort.SliceStable(endpoints, func(i, j int) bool {
		ui := endpoints[i].GetMetadata("usb") == "true"
		uj := endpoints[j].GetMetadata("usb") == "true"
		if ui != uj {
			return ui
		}
		return endpoints[i].Address < endpoints[j].Address
	})
	return endpoints, nil
}

func serialEndpoint(p *enumerator.PortDetails, now time.Time) *Endpoint {
	metadata := map[string]string{"usb": "false"}
	if p.IsUSB {
		metadata["usb"] = "true"
		metadata["vid"] = strings.ToLower(p.VID)
		metadata["pid"] = strings.ToLower(p.PID)
		if p.SerialNumber != "" {
			metadata["serial"] = p.SerialNumber
		}
	}

	return &Endpoint{
		Kind:         KindSerial,
		Address:      p.Name,
		Name:         p.Product,
		Metadata:     metadata,
		DiscoveredAt: now,
	}
}
