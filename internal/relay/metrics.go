package relay

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Frame outcomes counted by the relay.
const (
	resultRelayed   = "relayed"
	resultDropped   = "dropped"
	resultMalformed = "malformed"
)

type metrics struct {
	registry *prometheus.Registry
	peers    prometheus.Gauge
	frames   *prometheus.CounterVec
}

// newMetrics registers the relay's collectors on a registry of its own, so
// several hubs can live in one process.
func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meshcall",
			Subsystem: "relay",
			Name:      "peers",
			Help:      "Connected peers.",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meshcall",
			Subsystem: "relay",
			Name:      "frames_total",
			Help:      "Frames received from peers, by outcome. A dropped frame is counted once per peer it could not reach.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.peers, m.frames)
	for _, result := range []string{resultRelayed, resultDropped, resultMalformed} {
		m.frames.WithLabelValues(result)
	}
	return m
}
