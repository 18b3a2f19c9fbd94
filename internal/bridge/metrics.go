package bridge

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the bridge's Prometheus collectors
type Metrics struct {
	Frames         *prometheus.CounterVec // labels: cmd
	Rejected       *prometheus.CounterVec // labels: reason
	DeviceTimeouts prometheus.Counter
	DeviceErrors   prometheus.Counter
	Sessions       prometheus.Counter
	BusyRefusals   prometheus.Counter
	ActiveSessions prometheus.Gauge
}

// NewRegistry creates a registry with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// MetricsHandler serves reg in the Prometheus text format
func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// NewMetrics registers the bridge collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "whallera_bridge_frames_total",
			Help: "Request frames relayed to the device, by command.",
		}, []string{"cmd"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "whallera_bridge_rejected_total",
			Help: "Client messages refused before reaching the device.",
		}, []string{"reason"}),
		DeviceTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "whallera_bridge_device_timeouts_total",
			Help: "Requests the device did not answer within the timeout.",
		}),
		DeviceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "whallera_bridge_device_errors_total",
			Help: "Transport failures talking to the device.",
		}),
		Sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "whallera_bridge_sessions_total",
			Help: "WebSocket sessions accepted.",
		}),
		BusyRefusals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "whallera_bridge_busy_refusals_total",
			Help: "Connections refused because another session owned the device.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "whallera_bridge_active_sessions",
			Help: "Sessions currently holding the device (0 or 1).",
		}),
	}
	reg.MustRegister(m.Frames, m.Rejected, m.DeviceTimeouts, m.DeviceErrors, m.Sessions, m.BusyRefusals, m.ActiveSessions)
	return m
}
