package bridge

import (
	"fmt"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/whallera/whallera/internal/discovery"
	"github.com/whallera/whallera/internal/logging"
	"github.com/whallera/whallera/internal/version"
)

// advertiser publishes the bridge over mDNS so `whallera discover` finds it
type advertiser struct {
	server *zeroconf.Server
}

// advertise registers instance as a discovery.ServiceType service on port.
// The TXT records carry the WebSocket path and the bridge version.
func advertise(instance string, port int, path string, device string) (*advertiser, error) {
	txt := []string{
		"path=" + path,
		"version=" + version.Version,
		"device=" + device,
	}

	server, err := zeroconf.Register(instance, discovery.ServiceType, discovery.ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Advertising bridge via mDNS",
		zap.String("instance", instance),
		zap.String("service", discovery.ServiceType),
		zap.Int("port", port),
		zap.Strings("txt", txt),
	)
	return &advertiser{server: server}, nil
}

func (a *advertiser) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
}
